package present

// viewerPage is the live view served at /. It shows annotated previews while
// scanning, then the captured card with download and rescan buttons.
const viewerPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Card Scanner</title>
<style>
body { font-family: sans-serif; background: #111827; color: #f9fafb; text-align: center; }
img { max-width: 90vw; border-radius: 6px; margin-top: 12px; }
#status { font-size: 1.2em; margin-top: 16px; }
#result { display: none; }
button, a.button { background: #10b981; color: #fff; border: 0; padding: 8px 16px;
  margin: 8px; border-radius: 4px; text-decoration: none; font-size: 1em; cursor: pointer; }
</style>
</head>
<body>
<div id="status">Connecting...</div>
<img id="live" alt="">
<div id="result">
  <img id="card" alt="Scanned card">
  <div>
    <a id="download" class="button" download>Download</a>
    <button id="restart">Scan again</button>
  </div>
</div>
<script>
const status = document.getElementById("status");
const live = document.getElementById("live");
const result = document.getElementById("result");
const card = document.getElementById("card");
const download = document.getElementById("download");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");

ws.onopen = () => { status.textContent = "Waiting for frames..."; };
ws.onclose = () => { status.textContent = "Disconnected"; };
ws.onmessage = (ev) => {
  const msg = JSON.parse(ev.data);
  if (msg.type === "overlay") {
    status.textContent = msg.overlay.message;
    status.style.color = msg.overlay.color;
    if (msg.image) { live.src = "data:image/png;base64," + msg.image; }
  } else if (msg.type === "capture") {
    const url = "data:image/png;base64," + msg.image;
    card.src = url;
    download.href = url;
    download.download = "business-card-scan-" + msg.capture.session + ".png";
    live.style.display = "none";
    result.style.display = "block";
    status.textContent = "Scan complete!";
  } else if (msg.type === "status") {
    if (msg.status.kind === "timed_out" || msg.status.kind === "failed") {
      status.textContent = msg.status.message;
      result.style.display = "block";
      card.removeAttribute("src");
      download.removeAttribute("href");
    }
  }
};

document.getElementById("restart").onclick = () => {
  ws.send(JSON.stringify({type: "reset"}));
  result.style.display = "none";
  live.style.display = "";
  status.textContent = "Looking for card edges...";
};
</script>
</body>
</html>
`

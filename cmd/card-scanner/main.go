package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/card-scanner/internal/config"
	"github.com/ironsheep/card-scanner/internal/present"
	"github.com/ironsheep/card-scanner/internal/scanner"
	"github.com/ironsheep/card-scanner/internal/server"
	"github.com/ironsheep/card-scanner/internal/source"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Exit codes
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitNotFound = 3
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Printf("card-scanner %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage(os.Stdout)
			return
		}
	}

	cmd := "scan"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "scan":
		os.Exit(runScan(args))
	case "mcp":
		os.Exit(runMCP(args))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage(os.Stderr)
		os.Exit(exitUsage)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "card-scanner - hands-free business card capture")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  card-scanner scan [options]   Scan frames until a card is held still, then save it")
	fmt.Fprintln(w, "  card-scanner mcp [options]    Serve card tools over MCP on stdin/stdout")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Scan options:")
	fmt.Fprintln(w, "  -frames dir     Read frames from an image directory")
	fmt.Fprintln(w, "  -camera n       Read frames from camera n (requires a gocv build)")
	fmt.Fprintln(w, "  -demo           Scan a built-in synthetic scene")
	fmt.Fprintln(w, "  -out dir        Directory for the captured card (default .)")
	fmt.Fprintln(w, "  -previews       Also save annotated preview frames")
	fmt.Fprintln(w, "  -listen addr    Serve a live viewer with rescan button, e.g. :8080")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common options:")
	fmt.Fprintln(w, "  -config file    YAML configuration layered over the profile")
	fmt.Fprintf(w, "  -profile name   One of %s (default \"default\")\n", strings.Join(config.ProfileNames(), ", "))
	fmt.Fprintln(w, "  -debug          Enable debug logging")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  CARD_SCANNER_LOG_LEVEL=debug|info|warn|error")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit status: 0 captured, 1 error, 2 usage, 3 no card found before timeout.")
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
		return logger
	}

	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if env := os.Getenv("CARD_SCANNER_LOG_LEVEL"); env != "" {
		level, err := logrus.ParseLevel(env)
		if err != nil {
			logger.WithField("value", env).Warn("Ignoring invalid CARD_SCANNER_LOG_LEVEL")
		} else {
			logger.SetLevel(level)
		}
	}
	return logger
}

// loadConfig resolves profile, then the YAML file, then validates.
func loadConfig(profile, path string) (config.Config, error) {
	cfg, err := config.Profile(profile)
	if err != nil {
		return config.Config{}, err
	}
	if path != "" {
		if cfg, err = config.Load(path, cfg); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func runScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	profile := fs.String("profile", "default", "configuration profile")
	frames := fs.String("frames", "", "image directory to read frames from")
	camera := fs.Int("camera", -1, "camera device index")
	demo := fs.Bool("demo", false, "scan the built-in synthetic scene")
	outDir := fs.String("out", ".", "output directory")
	previews := fs.Bool("previews", false, "save annotated preview frames")
	listen := fs.String("listen", "", "address for the live viewer")
	lockFrames := fs.Int("lock-frames", 0, "override stability.lock_frames")
	timeout := fs.Duration("timeout", 0, "override stability.timeout")
	debugMode := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	logger := initLogger(*debugMode, os.Stderr)

	cfg, err := loadConfig(*profile, *configPath)
	if err != nil {
		logger.WithError(err).Error("Invalid configuration")
		return exitUsage
	}
	if *lockFrames > 0 {
		cfg.Stability.LockFrames = *lockFrames
	}
	if *timeout > 0 {
		cfg.Stability.Timeout = *timeout
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		return exitUsage
	}

	opts := source.Options{Frames: *frames, Demo: *demo, Camera: *camera}
	if opts.Frames == "" && !opts.Demo && opts.Camera < 0 {
		opts.Camera = cfg.Source.Device
	}
	src, err := source.Open(opts, cfg.Source)
	if err != nil {
		logger.WithError(err).Error("Failed to open frame source")
		return exitError
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := present.Multi{
		present.NewLogSink(logger),
		present.NewFileSink(*outDir, *previews, logger),
	}

	var hub *present.Hub
	if *listen != "" {
		hub = present.NewHub(present.DefaultHubOptions(), logger)
		sinks = append(sinks, hub)
		httpSrv := &http.Server{Addr: *listen, Handler: hub.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Viewer server failed")
				stop()
			}
		}()
		defer func() {
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
		logger.WithField("addr", *listen).Info("Live viewer listening")
	}

	sess := scanner.NewSession(cfg, src, sinks, logger)
	if hub != nil {
		hub.OnReset(sess.Reset)
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"profile": *profile,
		"session": sess.ID,
	}).Info("Scanning")

	for {
		res, err := sess.Run(ctx)
		code := exitOK
		switch {
		case err == nil:
			logger.WithFields(logrus.Fields{
				"width":  res.Width,
				"height": res.Height,
				"file":   present.CaptureName(sess.ID),
			}).Info("Scan complete")
		case errors.Is(err, context.Canceled):
			logger.Info("Interrupted")
			return exitOK
		case scanner.IsTimeout(err):
			logger.Warn("No card found")
			code = exitNotFound
		default:
			logger.WithError(err).Error("Scan failed")
			code = exitError
		}

		if hub == nil {
			return code
		}
		logger.Info("Waiting for a rescan request from the viewer")
		if err := sess.WaitReset(ctx); err != nil {
			return code
		}
	}
}

func runMCP(args []string) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	profile := fs.String("profile", "default", "configuration profile")
	debugMode := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	// stdout carries the protocol
	logger := initLogger(*debugMode, os.Stderr)

	cfg, err := loadConfig(*profile, *configPath)
	if err != nil {
		logger.WithError(err).Error("Invalid configuration")
		return exitUsage
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("Card scanner MCP server starting")

	srv := server.New(cfg, logger)
	srv.SetVersion(Version)
	if err := srv.Run(); err != nil {
		logger.WithError(err).Error("Server error")
		return exitError
	}
	return exitOK
}

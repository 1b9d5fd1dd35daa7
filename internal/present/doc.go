// Package present delivers session events to people: log lines, files on
// disk and live websocket clients.
//
// Every type here implements scanner.Sink. Combine them with Multi.
package present

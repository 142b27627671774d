// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (text or json), to the systemd journal when journald
// is reachable, and to an in-memory ring buffer that backs GET /api/logs.
//
// Initialize once at startup, then ask for module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"stream": "debug",
//		},
//	})
//
//	logger := logging.GetLogger("stream").With("conn_id", id)
//	logger.Warn("Connection failed", "error", err)
//
// Module levels are held in slog.LevelVar values, so ApplyLevels can change
// them at runtime (the config watcher calls it when [logging] changes).
//
// Journal records are tagged SYSLOG_IDENTIFIER=camrelay:
//
//	journalctl -t camrelay -f
//	journalctl -t camrelay MODULE=stream
package logging

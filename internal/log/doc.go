// Package log builds the slog loggers used across csstrim.
//
// Every logger returned by NewLogger passes records through SecureHandler,
// which masks credential material: the server's basic auth username and
// password, Authorization and Cookie headers forwarded to target sites,
// and token-like values.
//
// Loggers are injected into components explicitly. Quiet mode yields a
// logger over io.Discard instead of silencing output process-wide.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	logger.Info("run started", "target", target, "cookie", cookie) // cookie is masked
package log

// Package logging provides structured logging for coastermelt.
//
// The package wraps a zap logger that is silent by default. Set
// COASTERMELT_LOG_LEVEL to "debug", "info", "warn" or "error" (or pass
// --log-level) to enable output on stderr; stdout stays reserved for
// command results.
//
// # Log Levels
//
//   - Debug: toolchain command lines, image hex dumps, bridge messages
//   - Info: completed assemble, compile and call operations
//   - Warn: temporary files that could not be removed, failed diagnostics
//   - Error: fatal command failures
//
// # Structured Logging
//
// Components receive a *zap.Logger in their constructor. Command code uses
// the package-level helpers:
//
//	logging.Info("evaluated",
//	    logging.Address("scratch", 0x1fffda0),
//	    zap.Uint32("result", 10),
//	)
//
// Image dumps are only formatted when debug logging is enabled:
//
//	logging.LogWords(logger, "loading image", address, words)
//	logging.LogRawBytes(logger, "flat image", data)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging

// Package logging provides structured logging for Canopy Core.
//
// It wraps log/slog with configuration-driven handler selection and
// default service/version attributes. Domain packages do not import this
// package directly; they declare a minimal Logger interface of their own
// (Debug/Info/Warn/Error) which *logging.Logger satisfies, keeping them
// testable with no-op loggers.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	pollLog := log.With("component", "poller")
//	pollLog.Info("run complete", "controllers", 12)
package logging

// Package logging provides structured logging for Voicematch.
//
// It wraps log/slog with the service's default fields (service name,
// version) and config-driven level, format, and output selection. All
// components receive a *Logger (or a narrower interface satisfied by it)
// through dependency injection; nothing logs through a package-global.
package logging

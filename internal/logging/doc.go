// Package logging builds slog loggers and standardized structured attributes
// for the publish pipeline. Console and JSON handlers share the same field
// vocabulary so CLI output and log files stay greppable.
package logging

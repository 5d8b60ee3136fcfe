// Package logging configures structured slog output for wikindex.
// Logs are JSON lines written to a size-rotated file under ~/.wikindex/logs/
// and, optionally, mirrored to stderr.
package logging

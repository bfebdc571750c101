// Package logging builds the slog loggers used across clef and carries
// stage/project identity through contexts so every stage log line is
// attributable to one conversion run.
package logging

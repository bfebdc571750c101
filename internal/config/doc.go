// Package config loads, normalizes, and validates clef configuration.
//
// Configuration is a single immutable value constructed once at startup
// and passed by parameter into the pipeline and every stage; there is no
// process-wide configuration state. Values come from an optional TOML
// file (strict decoding, unknown keys rejected), environment variables
// for secrets, and repository defaults.
package config

// Package notestream holds the in-memory representation of musical events
// between transcription and serialization, plus the pure normalization and
// quality-scoring functions applied by the conversion stage.
package notestream

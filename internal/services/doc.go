// Package services provides the shared error taxonomy and context helpers
// used by the external tool clients and pipeline stages.
package services

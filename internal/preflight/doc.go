// Package preflight runs startup checks before the pipeline accepts
// work: directory access, required binaries, and LLM reachability when
// refinement is enabled.
package preflight

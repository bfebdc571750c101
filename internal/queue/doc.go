// Package queue persists conversion projects in SQLite so batch runs
// survive process restarts. Each item tracks one project through the
// pipeline's lifecycle from pending to completed or failed.
package queue

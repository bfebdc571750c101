// Package workflow drains the project queue through the pipeline
// controller. A file lock enforces a single drainer per queue database;
// one-shot conversions bypass the queue entirely and are unaffected.
package workflow

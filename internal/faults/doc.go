// Package faults defines the error taxonomy shared by the scan pipeline.
//
// Stages tag failures with one of the exported markers through Wrap so callers
// can branch with errors.Is without parsing messages. The package also carries
// the context keys (run ID, stage) that the logging package reads to annotate
// every log line emitted during a run.
package faults

// Package orchestrator composes provisioning, process supervision, output
// parsing, and job bookkeeping into the caller-facing operations: fetch
// metadata, download, cut, and stop.
package orchestrator

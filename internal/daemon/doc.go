// Package daemon wires the orchestration facade, job history, event bus,
// and HTTP observer endpoint into the long-running snagd process.
package daemon

// Package jobs tracks units of external work.
//
// The Registry holds live process handles keyed by job id together with
// user-cancel intent; it is the only mutable shared state between the
// orchestration facade and stop requests. The Store persists a history of
// finished jobs in SQLite for the CLI to list.
package jobs

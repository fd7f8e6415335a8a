// Package supervise spawns and terminates the external processes that back
// jobs. Processes are started in their own process group (POSIX) or with a
// hidden console (Windows) so that the whole process tree can be killed on a
// stop request. Registry bookkeeping is settled exactly once per process, in
// the exit path, before the caller sees the terminal state.
package supervise

// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs shared
// by both ends of the protocol. Long-running operations such as downloads
// block the calling RPC; each connection is served on its own goroutine so a
// concurrent StopJob call can still reach a busy daemon.
package ipc

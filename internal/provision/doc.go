// Package provision downloads, verifies, and resolves the external
// executables jobs depend on: a transcoder and prober shipped as a versioned
// bundle, and a fetcher shipped as a single release asset.
//
// Ensure is idempotent and safe to call concurrently: in-flight work is
// memoized per tool family inside the process, and a file lock on the
// install directory keeps separate processes from racing the same download.
// Verification and download phases are reported through a status callback so
// a front end can show progress even though Ensure itself only returns the
// final paths.
package provision

// Package ytdlp builds fetcher command lines and turns the tool's
// interleaved stdout/stderr text into typed events and classified errors.
package ytdlp

// Package ffprobe runs the prober binary against downloaded media and
// parses the values the cutting pipeline needs.
package ffprobe

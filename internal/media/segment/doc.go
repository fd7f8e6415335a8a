// Package segment plans frame-accurate video segmentation and tracks the
// transcoder's progress while it runs.
package segment

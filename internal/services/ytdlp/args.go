package ytdlp

import (
	"path/filepath"
	"strings"
)

// MetadataOptions tune a metadata fetch.
type MetadataOptions struct {
	UseCookieFile    bool
	CookieFilePath   string
	DownloadPlaylist bool
}

// DownloadOptions tune a download.
type DownloadOptions struct {
	FormatCode       string
	IsAudioOnly      bool
	DownloadPlaylist bool
	UseCookieFile    bool
	CookieFilePath   string
}

// IsPlaylistRequest reports whether the URL carries a playlist marker and the
// caller actually asked for playlist handling. A bare playlist URL without the
// option set is still treated as a single-item request.
func IsPlaylistRequest(url string, downloadPlaylist bool) bool {
	return strings.Contains(url, "list=") && downloadPlaylist
}

// MetadataArgs builds the argument list for a single-JSON-per-item dump.
func MetadataArgs(url string, opts MetadataOptions) []string {
	playlist := IsPlaylistRequest(url, opts.DownloadPlaylist)

	args := []string{
		url,
		"--dump-single-json",
		"--ignore-errors",
		"--no-warnings",
		"--no-call-home",
		"--encoding", "utf-8",
		"--no-color",
	}
	if !playlist {
		args = append(args, "--no-playlist")
	} else {
		args = append(args, "--flat-playlist")
	}
	if opts.UseCookieFile && opts.CookieFilePath != "" {
		args = append(args, "--cookies", opts.CookieFilePath)
	}
	return args
}

// OutputTemplate returns the fetcher filename template for a download. Audio
// jobs keep the plain title; video jobs embed the height so multiple
// resolutions of the same title do not collide.
func OutputTemplate(outputDir string, audioOnly bool) string {
	if audioOnly {
		return filepath.Join(outputDir, "%(title)s.%(ext)s")
	}
	return filepath.Join(outputDir, "%(title)s-%(height)sp.%(ext)s")
}

// DownloadArgs builds the argument list for a download. transcoderPath points
// the fetcher at the managed transcoder so muxing never falls back to
// whatever is on PATH.
func DownloadArgs(url, outputDir, transcoderPath string, mergeFormat, audioFormat string, opts DownloadOptions) []string {
	args := []string{
		url,
		"--output", OutputTemplate(outputDir, opts.IsAudioOnly),
		"--merge-output-format", mergeFormat,
		"--no-warnings",
		"--no-call-home",
		"--ffmpeg-location", transcoderPath,
		"--no-check-certificates",
		"--encoding", "utf-8",
		"--no-color",
		"--restrict-filenames",
		"--replace-in-metadata", "title", `\s+`, "-",
	}
	if opts.UseCookieFile && opts.CookieFilePath != "" {
		args = append(args, "--cookies", opts.CookieFilePath)
	}
	if !opts.DownloadPlaylist {
		args = append(args, "--no-playlist")
	}
	switch {
	case opts.IsAudioOnly:
		args = append(args, "--extract-audio", "--audio-format", audioFormat, "--format", "bestaudio/best")
	case opts.FormatCode != "":
		args = append(args, "--format", opts.FormatCode+"+bestaudio/"+opts.FormatCode)
	default:
		args = append(args, "--format", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best")
	}
	return args
}

package ytdlp

import (
	"fmt"
	"strings"

	"snag/internal/services"
)

// Operation selects the fallback failure code for classification.
type Operation int

const (
	// OpFetch is a metadata fetch; generic failures become FETCH_FAILED.
	OpFetch Operation = iota
	// OpDownload is a media download; generic failures become DOWNLOAD_FAILED.
	OpDownload
)

// Classify maps accumulated stderr and an exit code to a coded error.
// Checks run in priority order and the first match wins: cookie and auth
// shaped failures are indistinguishable from generic ones by exit code
// alone, and each has a distinct remedy the caller can prompt for.
func Classify(op Operation, stderr string, exitCode int, cookieFileUsed bool) error {
	lower := strings.ToLower(stderr)

	switch {
	case strings.Contains(lower, "fresh cookies") && strings.Contains(lower, "are needed"):
		return services.NewCoded(services.CodeCookiesNeeded, strings.TrimSpace(stderr))
	case cookieFileUsed && strings.Contains(lower, "http error 403"):
		return services.NewCoded(services.CodeHTTP403Forbidden, strings.TrimSpace(stderr))
	case BenignCookieFailureOnly(stderr):
		return services.NewCoded(services.CodeAuthRequired, strings.TrimSpace(stderr))
	case strings.Contains(lower, "unsupported url"):
		return services.NewCoded(services.CodeUnsupportedURL, strings.TrimSpace(stderr))
	}

	code := services.CodeDownloadFailed
	if op == OpFetch {
		code = services.CodeFetchFailed
	}
	detail := lastErrorLine(stderr)
	if detail == "" {
		detail = fmt.Sprintf("process exited with code %d", exitCode)
	}
	return services.NewCoded(code, detail)
}

// BenignCookieFailureOnly reports whether stderr contains the automatic
// browser-cookie lookup failure and nothing else that looks fatal. On its
// own that failure means the media needs authentication; alongside real
// errors it is just noise.
func BenignCookieFailureOnly(stderr string) bool {
	lower := strings.ToLower(stderr)
	if !strings.Contains(lower, "could not find") || !strings.Contains(lower, "cookies database") {
		return false
	}
	for _, line := range strings.Split(lower, "\n") {
		if !strings.Contains(line, "error:") {
			continue
		}
		if strings.Contains(line, "could not find") && strings.Contains(line, "cookies database") {
			continue
		}
		return false
	}
	return true
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "error") {
			return line
		}
	}
	return ""
}

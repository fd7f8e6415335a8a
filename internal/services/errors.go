package services

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a caller-visible failure class.
type Code string

const (
	CodeProvisionFailed     Code = "PROVISION_FAILED"
	CodeUnsupportedPlatform Code = "UNSUPPORTED_PLATFORM"
	CodeProcessError        Code = "PROCESS_ERROR"
	CodeParseError          Code = "PARSE_ERROR"
	CodeUnsupportedURL      Code = "UNSUPPORTED_URL"
	CodeCookiesNeeded       Code = "COOKIES_NEEDED"
	CodeHTTP403Forbidden    Code = "HTTP_403_FORBIDDEN"
	CodeAuthRequired        Code = "AUTH_REQUIRED"
	CodeFetchFailed         Code = "FETCH_FAILED"
	CodeDownloadFailed      Code = "DOWNLOAD_FAILED"
	CodeDownloadCanceled    Code = "DOWNLOAD_CANCELED"
	CodeProbeFailed         Code = "PROBE_FAILED"
	CodeCutFailed           Code = "CUT_FAILED"
)

// Coded is an error with a stable classification code and raw diagnostic
// detail. Detail is tool output or a short operator-facing message, never a
// stack trace.
type Coded struct {
	Code   Code
	Detail string
	Err    error
}

func (e *Coded) Error() string {
	detail := strings.TrimSpace(e.Detail)
	switch {
	case detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, detail, e.Err)
	case detail != "":
		return fmt.Sprintf("%s: %s", e.Code, detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Coded) Unwrap() error { return e.Err }

// NewCoded builds a classified error from a detail message.
func NewCoded(code Code, detail string) *Coded {
	return &Coded{Code: code, Detail: strings.TrimSpace(detail)}
}

// WrapCoded attaches a classification code to an underlying error.
func WrapCoded(code Code, detail string, err error) *Coded {
	return &Coded{Code: code, Detail: strings.TrimSpace(detail), Err: err}
}

// CodeOf extracts the classification code from err, if any.
func CodeOf(err error) (Code, bool) {
	var coded *Coded
	if errors.As(err, &coded) {
		return coded.Code, true
	}
	return "", false
}

// IsCanceled reports whether err represents a user-initiated stop rather
// than a failure. Callers use this to suppress error presentation.
func IsCanceled(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeDownloadCanceled
}

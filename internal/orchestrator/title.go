package orchestrator

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleOrDerived returns the parsed title when the fetcher reported one,
// otherwise a presentable title derived from the output filename.
func titleOrDerived(parsed, finalPath string) string {
	if parsed != "" {
		return parsed
	}
	return deriveTitle(finalPath)
}

func deriveTitle(path string) string {
	if path == "" {
		return "Unknown Media"
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Unknown Media"
	}
	return cases.Title(language.Und).String(title)
}

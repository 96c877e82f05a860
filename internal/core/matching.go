package core

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultAcceptedTypes is the single-mode allow-list: MIME types and
// extensions a dropped file may carry.
var DefaultAcceptedTypes = []string{"text/csv", "text/plain", ".csv"}

// foldName returns the case-folded form used to compare file names.
// A Caser is stateful, so one is created per call.
func foldName(name string) string {
	return cases.Fold().String(name)
}

// SameFileName reports whether two names match case-insensitively.
func SameFileName(a, b string) bool {
	return foldName(a) == foldName(b)
}

// MatchExpected returns the expected file whose display name matches name.
func MatchExpected(expected []ExpectedFile, name string) (ExpectedFile, bool) {
	folded := foldName(name)
	for _, ef := range expected {
		if foldName(ef.DisplayName) == folded {
			return ef, true
		}
	}
	return ExpectedFile{}, false
}

// newExpectedFiles builds the expected list, rejecting blank and
// case-insensitively duplicated names.
func newExpectedFiles(names []string) ([]ExpectedFile, error) {
	seen := make(map[string]string, len(names))
	result := make([]ExpectedFile, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("expected file name must not be blank")
		}
		key := foldName(name)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("expected files %q and %q differ only by case", prev, name)
		}
		seen[key] = name
		result = append(result, ExpectedFile{DisplayName: name})
	}

	return result, nil
}

// AcceptsType reports whether a file passes the allow-list.
// Entries starting with "." match the extension; other entries match the
// MIME type exactly or by "type/*" wildcard. Parameters such as charset are
// ignored.
func AcceptsType(allow []string, name, mimeType string) bool {
	ext := strings.ToLower(path.Ext(name))

	mediaType := strings.ToLower(strings.TrimSpace(mimeType))
	if mediaType != "" {
		if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
			mediaType = mt
		}
	}

	for _, entry := range allow {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
			continue
		case strings.HasPrefix(entry, "."):
			if ext == entry {
				return true
			}
		case strings.HasSuffix(entry, "/*"):
			if mediaType != "" && strings.HasPrefix(mediaType, strings.TrimSuffix(entry, "*")) {
				return true
			}
		default:
			if mediaType == entry {
				return true
			}
		}
	}
	return false
}

// textTypes covers extensions the mime package does not know on every host.
var textTypes = map[string]string{
	".csv": "text/csv; charset=utf-8",
	".txt": "text/plain; charset=utf-8",
}

// mimeForName guesses a content type for download links.
func mimeForName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := textTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

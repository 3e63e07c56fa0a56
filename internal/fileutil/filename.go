package fileutil

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	illegalChars = regexp.MustCompile(`[\/\\:*?"<>|]`)
	whitespace   = regexp.MustCompile(`[\s_]+`)
)

// SanitizeForFilename sanitizes a string for safe use in filenames
func SanitizeForFilename(input string) string {
	if input == "" {
		return "audio"
	}

	// Illegal chars: / \ : * ? " < > |
	sanitized := illegalChars.ReplaceAllString(input, "_")

	// Replace runs of spaces/underscores with a single hyphen
	sanitized = whitespace.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")

	// Limit to 50 runes so multi-byte names are not cut mid-character
	if r := []rune(sanitized); len(r) > 50 {
		sanitized = strings.TrimRight(string(r[:50]), "-")
	}

	if sanitized == "" {
		return "audio"
	}
	return sanitized
}

// OutputBase returns the extension-less path outputs for src are written
// under. An empty outDir keeps outputs next to the source.
func OutputBase(src, outDir string) string {
	name := filepath.Base(src)
	// foo.result.json and foo.json both map to foo
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimSuffix(name, ".result")
	if outDir == "" {
		outDir = filepath.Dir(src)
	}
	return filepath.Join(outDir, name)
}

// IsOutputFile reports whether path looks like something WriteAll or
// WriteMetadata produced, so watchers can ignore their own writes.
func IsOutputFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".meta.json"),
		strings.HasSuffix(name, ".asr.json"),
		strings.HasSuffix(name, ".tmp"),
		strings.HasPrefix(name, "."):
		return true
	}
	switch filepath.Ext(name) {
	case ".srt", ".vtt", ".txt":
		return true
	}
	return false
}

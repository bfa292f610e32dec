package middleware

import (
	"path"
	"strings"
	"unicode/utf8"
)

// Input validation and sanitization utilities

const maxUploadNameLen = 255

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// SanitizeUploadName reduces a client-supplied filename to a safe base name.
// Browsers on Windows may send full paths, so both separators are stripped.
// The result is empty when nothing usable remains.
func SanitizeUploadName(name string) string {
	name = SanitizeString(name)
	name = strings.ReplaceAll(name, "\t", "")
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	if len(name) > maxUploadNameLen {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		cut := maxUploadNameLen - len(ext)
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut] + ext
	}
	return name
}

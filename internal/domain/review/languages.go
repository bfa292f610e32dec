package review

import (
	"path"
	"strings"
)

// supportedExtensions is the allow-list for single uploads and archive members.
var supportedExtensions = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".html": true, ".css": true,
	".py": true, ".java": true, ".cs": true, ".php": true, ".rb": true,
	".go": true, ".rs": true, ".swift": true, ".kt": true, ".m": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true,
}

// excludedDirs are never descended into when walking an archive.
var excludedDirs = map[string]bool{
	"node_modules": true,
	"dist":         true,
	"build":        true,
	".git":         true,
	".next":        true,
	".vercel":      true,
	"coverage":     true,
	"tmp":          true,
	"public":       true,
	".yarn":        true,
	"vendor":       true,
}

// IsSupportedFile reports whether name carries an allowed source extension.
func IsSupportedFile(name string) bool {
	return supportedExtensions[strings.ToLower(path.Ext(name))]
}

// IsExcludedDir matches a single directory name, case-insensitively.
func IsExcludedDir(name string) bool {
	return excludedDirs[strings.ToLower(name)]
}

// IsArchiveName reports whether an upload should be treated as a zip archive.
func IsArchiveName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".zip")
}

package files

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType rejects uploads whose mime class the API cannot ingest.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrFileTooLarge rejects uploads over the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// textExtensions are coerced to text/plain so the Files API accepts source
// code, config, and docs alongside real plaintext.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".log": true, ".adoc": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".cs": true, ".rb": true, ".rs": true, ".php": true, ".swift": true,
	".kt": true, ".scala": true, ".sh": true, ".bat": true, ".ps1": true,
	".html": true, ".htm": true, ".css": true, ".scss": true,
	".json": true, ".xml": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".cfg": true, ".conf": true, ".csv": true, ".tsv": true,
	".sql": true, ".tf": true, ".proto": true,
}

// extensionless file names treated as text.
var textNames = map[string]bool{
	"dockerfile": true, "makefile": true, "procfile": true,
	"jenkinsfile": true, "gemfile": true, "rakefile": true,
	"readme": true, "changelog": true, "license": true, "notice": true,
}

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ClassifyMime maps a file path to the mime type sent with the upload.
// Text-like files go as text/plain, PDFs and common images keep their type,
// anything else is rejected with ErrUnsupportedType.
func ClassifyMime(path string) (string, error) {
	name := strings.ToLower(filepath.Base(path))
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == ".pdf":
		return "application/pdf", nil
	case imageExtensions[ext] != "":
		return imageExtensions[ext], nil
	case textExtensions[ext] || textNames[name]:
		return "text/plain", nil
	}
	return "", ErrUnsupportedType
}

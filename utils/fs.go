package utils

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

var contentDispositionName = regexp.MustCompile(`filename\*?=['"]?(?:UTF-\d['"]*)?([^;"']*)['"]?`)

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// SanitizeFilename strips characters that are unsafe on common filesystems.
func SanitizeFilename(name string) string {
	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	safe = strings.Trim(safe, " .")
	if safe == "" {
		safe = "file_" + time.Now().Format("20060102_150405")
	}
	return safe
}

// DetermineFilename picks a filename for a fetched resource, preferring
// Content-Disposition, then the URL path, then a generated name. The
// extension is filled in from the MIME type when missing.
func DetermineFilename(rawURL string, headers http.Header) string {
	name := ""

	if cd := headers.Get("Content-Disposition"); cd != "" {
		if m := contentDispositionName.FindStringSubmatch(cd); len(m) > 1 && m[1] != "" {
			name = m[1]
		}
	}

	if name == "" {
		if u, err := url.Parse(rawURL); err == nil && u.Path != "" && u.Path != "/" {
			if base := filepath.Base(u.Path); base != "" && base != "." && base != "/" {
				name = base
			}
		}
	}

	if name == "" {
		name = "download_" + time.Now().Format("20060102_150405")
	}

	if filepath.Ext(name) == "" {
		mimeType := strings.Split(headers.Get("Content-Type"), ";")[0]
		if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
			name += exts[0]
		}
	}

	return SanitizeFilename(name)
}

// UniquePath returns path, or a numbered variant when path already exists.
func UniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

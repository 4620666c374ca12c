package files

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxBaseLen = 120

// SanitizeFilename strips path components and control characters from a
// client-supplied name so it can be shown and used as a disposition value.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" || name == "/" {
		return "unnamed"
	}
	return name
}

// StoredName derives the unique blob name for an upload:
// <sanitized base>-<unix nanos>-<random> followed by the original extension.
// Only ASCII letters, digits, '-' and '_' survive in the base.
func StoredName(original string, now time.Time) string {
	original = SanitizeFilename(original)
	ext := strings.ToLower(filepath.Ext(original))
	if !safeExt(ext) {
		ext = ""
	}
	base := strings.TrimSuffix(original, filepath.Ext(original))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		}
		return -1
	}, base)
	if len(base) > maxBaseLen {
		base = base[:maxBaseLen]
	}
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s-%d-%s%s", base, now.UnixNano(), uuid.NewString()[:8], ext)
}

func safeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 16 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

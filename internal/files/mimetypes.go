package files

import (
	"mime"
	"path/filepath"
	"strings"
)

const octetStream = "application/octet-stream"

// contentTypes is the closed extension table used when serving documents.
// Extensions outside it are served as application/octet-stream.
var contentTypes = map[string]string{
	// Office
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	// Text
	".txt":  "text/plain",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",

	// Audio / video
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",

	// Archives
	".zip": "application/zip",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",
}

// inlineViewable lists the extensions a browser can render in place.
var inlineViewable = map[string]bool{
	".pdf": true, ".txt": true, ".csv": true, ".html": true, ".htm": true,
	".css": true, ".js": true, ".json": true, ".xml": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".webp": true, ".svg": true, ".ico": true,
	".mp4": true, ".webm": true, ".mp3": true, ".wav": true,
}

func extOf(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ContentTypeFor returns the MIME type served for a file name.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[extOf(name)]; ok {
		return ct
	}
	return octetStream
}

// InlineViewable reports whether name is served with inline disposition.
func InlineViewable(name string) bool {
	return inlineViewable[extOf(name)]
}

// ContentDisposition builds the Content-Disposition header value. Names that
// need quoting or contain non-ASCII characters are encoded per RFC 2231.
func ContentDisposition(name string, inline bool) string {
	kind := "attachment"
	if inline {
		kind = "inline"
	}
	if name == "" {
		return kind
	}
	v := mime.FormatMediaType(kind, map[string]string{"filename": name})
	if v == "" {
		return kind
	}
	return v
}

// download.go - Streaming stored files back to clients.
package server

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// serveHandler handles GET /serve/{id} and, with forceAttachment,
// GET /download/{id}. Once headers are written a copy failure can only be
// logged; the response is cut short.
func (cfg Config) serveHandler(forceAttachment bool) http.HandlerFunc {
	mode := "serve"
	if forceAttachment {
		mode = "download"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseFileID(r)
		if !ok {
			downloadsTotal.WithLabelValues(mode, "not_found").Inc()
			writeJSON(w, http.StatusNotFound, errorResp{Error: "File not found"})
			return
		}

		d, err := cfg.Files.Open(r.Context(), id, forceAttachment)
		if err != nil {
			downloadsTotal.WithLabelValues(mode, resultLabel(err)).Inc()
			cfg.writeError(w, r, err)
			return
		}
		defer d.Close()

		h := w.Header()
		h.Set("Content-Type", d.ContentType)
		h.Set("Content-Length", strconv.FormatInt(d.Size, 10))
		h.Set("Content-Disposition", d.Disposition)
		if scriptable(d.ContentType) {
			h.Set("Content-Security-Policy", "sandbox; frame-ancestors 'self'")
		}
		w.WriteHeader(http.StatusOK)

		n, err := io.Copy(w, d)
		if err != nil {
			downloadsTotal.WithLabelValues(mode, "aborted").Inc()
			cfg.Logger.WithContext(r.Context()).Warn("stream aborted",
				zap.Int64("file_id", id),
				zap.Int64("written", n),
				zap.Int64("size_bytes", d.Size),
				zap.Error(err),
			)
			return
		}
		downloadsTotal.WithLabelValues(mode, "ok").Inc()
	}
}

// scriptable reports whether a browser may execute content of this type
// when it is rendered inline.
func scriptable(contentType string) bool {
	switch contentType {
	case "text/html", "image/svg+xml", "application/javascript", "application/xml":
		return true
	}
	return false
}

// files.go - Listing and deleting file records.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"filedesk/internal/files"
	"filedesk/internal/logger"
)

type listFilesResp struct {
	Success bool               `json:"success"`
	Files   []files.FileRecord `json:"files"`
}

type deleteFileReq struct {
	UserName string `json:"userName"`
	UserType string `json:"userType"`
}

// listFilesHandler handles GET /files?program=&memo_id=&userType=&userName=.
// Admins see every record matching the filters; other callers only their own.
func (cfg Config) listFilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		caller := cfg.Auth.resolveCaller(r, q.Get("userName"), q.Get("userType"))
		r = r.WithContext(logger.WithUser(r.Context(), caller.Identity))

		recs, err := cfg.Files.List(r.Context(), caller, q.Get("program"), q.Get("memo_id"))
		if err != nil {
			cfg.writeError(w, r, err)
			return
		}
		if recs == nil {
			recs = []files.FileRecord{}
		}
		writeJSON(w, http.StatusOK, listFilesResp{Success: true, Files: recs})
	}
}

// deleteFileHandler handles DELETE /files/{id}. The body names the caller
// as {"userName": "...", "userType": "..."}; a missing body is allowed.
func (cfg Config) deleteFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseFileID(r)
		if !ok {
			deletesTotal.WithLabelValues("not_found").Inc()
			writeJSON(w, http.StatusNotFound, errorResp{Error: "File not found"})
			return
		}

		var body deleteFileReq
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			deletesTotal.WithLabelValues("invalid").Inc()
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid JSON body"})
			return
		}

		caller := cfg.Auth.resolveCaller(r, body.UserName, body.UserType)
		r = r.WithContext(logger.WithUser(r.Context(), caller.Identity))

		if err := cfg.Files.Delete(r.Context(), id, caller); err != nil {
			deletesTotal.WithLabelValues(resultLabel(err)).Inc()
			cfg.writeError(w, r, err)
			return
		}

		deletesTotal.WithLabelValues("ok").Inc()
		cfg.Logger.WithContext(r.Context()).Info("file deleted", zap.Int64("file_id", id))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "File deleted successfully",
		})
	}
}

// parseFileID reads the {id} URL parameter. Ids are positive integers.
func parseFileID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

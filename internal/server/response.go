package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"filedesk/internal/files"
)

// errorResp is the body of every JSON error response.
type errorResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a pipeline error to its HTTP status and client message.
// Causes of 500s are logged and never sent to the client.
func (cfg Config) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		tooLarge   *http.MaxBytesError
		invalid    *files.ValidationError
		notFound   *files.NotFoundError
		forbidden  *files.ForbiddenError
		corrupted  *files.CorruptedFileError
		persistErr *files.PersistenceError
	)
	log := cfg.Logger.WithContext(r.Context())

	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp{Error: "file too large"})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorResp{Error: invalid.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResp{Error: notFound.Error()})
	case errors.As(err, &forbidden):
		log.Info("delete denied", zap.Int64("file_id", forbidden.ID), zap.String("caller", forbidden.Identity))
		writeJSON(w, http.StatusForbidden, errorResp{Error: forbidden.Error()})
	case errors.As(err, &corrupted):
		log.Warn("refused corrupted file", zap.Int64("file_id", corrupted.ID))
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: corrupted.Error()})
	case errors.As(err, &persistErr):
		log.Error("persistence failure", zap.String("op", persistErr.Op), zap.Error(persistErr.Err))
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: persistenceMessage(persistErr.Op)})
	default:
		log.Error("unhandled error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal server error"})
	}
}

func persistenceMessage(op string) string {
	switch op {
	case "insert file record", "store blob":
		return "Failed to save file information"
	case "delete file record":
		return "Failed to delete file"
	case "list file records":
		return "Failed to fetch files"
	}
	return "Database error"
}

// upload.go - Streaming multipart upload.
//
// The file part is written to the blob store as it arrives; text fields are
// collected alongside and validated once the body is consumed. A rejected
// upload removes the blob it already wrote.
package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"filedesk/internal/files"
	"filedesk/internal/logger"
)

// maxFieldBytes bounds each non-file form field.
const maxFieldBytes = 4 << 10

type uploadResp struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FileID   int64  `json:"fileId"`
	Filename string `json:"filename"`
}

// uploadHandler handles POST /upload.
//
// Form fields: file (required), fileNo, subject, department, date
// (required), program, memo_id, createdBy (optional). A valid session
// cookie replaces createdBy with the session user.
func (cfg Config) uploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}

		fail := func(staged *files.StagedBlob, err error) {
			cfg.Files.Discard(ctx, staged)
			uploadsTotal.WithLabelValues(resultLabel(err)).Inc()
			cfg.writeError(w, r, err)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			fail(nil, &files.ValidationError{Message: "expected multipart/form-data body"})
			return
		}

		var staged *files.StagedBlob
		fields := make(map[string]string)

		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				fail(staged, badMultipart(err))
				return
			}

			name := part.FormName()
			switch {
			case name == "file" && part.FileName() != "":
				if staged != nil {
					// only the first file part is kept
					break
				}
				staged, err = cfg.Files.StageBlob(ctx, part.FileName(), part.Header.Get("Content-Type"), part)
				if err != nil {
					_ = part.Close()
					fail(nil, err)
					return
				}
			case name != "" && part.FileName() == "":
				v, err := readField(part)
				if err != nil {
					_ = part.Close()
					fail(staged, err)
					return
				}
				fields[name] = v
			}
			_ = part.Close()
		}

		req := files.UploadRequest{
			FileNumber: fields["fileNo"],
			Subject:    fields["subject"],
			Department: fields["department"],
			Date:       fields["date"],
			Program:    fields["program"],
			MemoID:     fields["memo_id"],
			CreatedBy:  fields["createdBy"],
		}
		if c, ok := cfg.Auth.sessionCaller(r); ok {
			req.CreatedBy = c.Identity
		}
		ctx = logger.WithUser(ctx, req.CreatedBy)

		res, err := cfg.Files.Commit(ctx, staged, req)
		if err != nil {
			uploadsTotal.WithLabelValues(resultLabel(err)).Inc()
			cfg.writeError(w, r.WithContext(ctx), err)
			return
		}

		uploadsTotal.WithLabelValues("ok").Inc()
		uploadBytesTotal.Add(float64(res.SizeBytes))
		cfg.Logger.WithContext(ctx).Info("file uploaded",
			zap.Int64("file_id", res.ID),
			zap.String("filename", res.StoredFilename),
			zap.Int64("size_bytes", res.SizeBytes),
			zap.Duration("duration", time.Since(start)),
		)

		writeJSON(w, http.StatusOK, uploadResp{
			Success:  true,
			Message:  "File Uploaded Successfully",
			FileID:   res.ID,
			Filename: res.StoredFilename,
		})
	}
}

func readField(part io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", badMultipart(err)
	}
	if len(b) > maxFieldBytes {
		return "", &files.ValidationError{Message: "form field too long"}
	}
	return string(b), nil
}

// badMultipart keeps body-size errors intact so they surface as 413.
func badMultipart(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return &files.ValidationError{Message: "malformed multipart body"}
}

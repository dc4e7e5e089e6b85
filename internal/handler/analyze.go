package handler

import (
	"io"
	"net/http"
	"time"

	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"
	"deepfakedetector/internal/service"
)

// MaxUploadSize caps uploaded images and videos.
const MaxUploadSize = 200 << 20

type jobResponse struct {
	ID        string           `json:"id"`
	Kind      model.SourceKind `json:"kind"`
	Label     string           `json:"label"`
	StartedAt time.Time        `json:"started_at"`
}

// AnalyzeHandler handles POST /api/analyze. The multipart "file" field is
// submitted with its declared content type; progress and the verdict arrive
// over the websocket.
func AnalyzeHandler(session *service.Session, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "File too large or malformed upload"})
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to get file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			logger.Error("Reading upload %s: %v", header.Filename, err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to read file"})
			return
		}

		h, err := session.SubmitFile(header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusAccepted, jobResponse{
			ID:        h.ID,
			Kind:      h.Kind,
			Label:     h.Label,
			StartedAt: h.StartedAt,
		})
	}
}

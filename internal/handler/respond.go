package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"
	"deepfakedetector/internal/service"
	"deepfakedetector/internal/service/camera"
)

type errorResponse struct {
	Error    string            `json:"error"`
	Reason   model.ErrorReason `json:"reason,omitempty"`
	Fallback bool              `json:"fallback,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps core errors onto HTTP status codes.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	var ce *camera.Error
	switch {
	case errors.Is(err, service.ErrInvalidFileType):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: service.InvalidFileTypeMessage})
	case errors.Is(err, service.ErrEmptyFile), errors.Is(err, service.ErrNotCameraMode):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, camera.ErrAcquisitionInProgress), errors.Is(err, camera.ErrAborted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &ce) && ce.Reason == model.ReasonCaptureNotReady:
		writeJSON(w, http.StatusConflict, errorResponse{Error: ce.Message, Reason: ce.Reason})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: ce.Message, Reason: ce.Reason, Fallback: ce.Fallback})
	case errors.Is(err, context.Canceled):
		// The client went away; the camera attempt keeps running.
		logger.Info("Request cancelled before completion: %v", err)
	default:
		logger.Error("Unhandled request error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

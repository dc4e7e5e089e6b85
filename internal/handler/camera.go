package handler

import (
	"context"
	"net/http"

	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/service"
)

// cameraAction runs a camera operation and answers with the resulting state.
func cameraAction(session *service.Session, logger *logger.Logger, op func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r.Context()); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, session.Snapshot().Camera)
	}
}

// CameraStartHandler handles POST /api/camera/start.
func CameraStartHandler(session *service.Session, logger *logger.Logger) http.HandlerFunc {
	return cameraAction(session, logger, session.StartCamera)
}

// CameraRetryHandler handles POST /api/camera/retry.
func CameraRetryHandler(session *service.Session, logger *logger.Logger) http.HandlerFunc {
	return cameraAction(session, logger, session.RetryCamera)
}

// CameraFlipHandler handles POST /api/camera/flip.
func CameraFlipHandler(session *service.Session, logger *logger.Logger) http.HandlerFunc {
	return cameraAction(session, logger, session.FlipCamera)
}

// CameraStopHandler handles POST /api/camera/stop.
func CameraStopHandler(session *service.Session, logger *logger.Logger) http.HandlerFunc {
	return cameraAction(session, logger, func(context.Context) error {
		session.StopCamera()
		return nil
	})
}

// CameraCaptureHandler handles POST /api/camera/capture. The frame is
// analyzed asynchronously; the response only acknowledges the capture.
func CameraCaptureHandler(session *service.Session, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := session.Capture()
		if err != nil {
			writeError(w, logger, err)
			return
		}

		resp := struct {
			Kind  string `json:"kind"`
			Label string `json:"label"`
			Bytes int    `json:"bytes"`
		}{req.Kind.String(), req.Label, len(req.Payload)}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

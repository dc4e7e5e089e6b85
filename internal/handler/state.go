package handler

import (
	"encoding/json"
	"net/http"

	"deepfakedetector/internal/model"
	"deepfakedetector/internal/service"
)

// StateHandler handles GET /api/state.
func StateHandler(session *service.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

// HistoryHandler handles GET /api/history.
func HistoryHandler(session *service.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, session.History())
	}
}

// ModeHandler handles POST /api/mode with a body of {"mode": "image"}.
func ModeHandler(session *service.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
			return
		}

		mode, err := model.ParseMode(body.Mode)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		session.SetMode(mode)
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

// HealthHandler handles GET /healthz.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

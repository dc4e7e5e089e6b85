package handler

import (
	"net/http"
	"time"

	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/service"
	"deepfakedetector/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
)

const viewerReadTimeout = 60 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler handles viewer connections on /api/ws. Each viewer
// first receives the current snapshot, then every event published to the hub.
func ViewWebsocketHandler(session *service.Session, hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
		connection.SetPongHandler(func(string) error {
			connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
			return nil
		})

		snapshot := struct {
			Type string `json:"type"`
			service.Snapshot
		}{"snapshot", session.Snapshot()}
		if err := connection.WriteJSON(snapshot); err != nil {
			logger.Error("Sending snapshot: %v", err)
			connection.Close()
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		logger.Info("Viewer connected")

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected: %v", err)
				}
				break
			}
			connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
		}
	}
}

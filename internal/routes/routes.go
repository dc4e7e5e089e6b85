package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"deepfakedetector/internal/config"
	"deepfakedetector/internal/handler"
	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/middleware"
	"deepfakedetector/internal/service"
	"deepfakedetector/internal/service/websocket"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the API, log and auth endpoints plus static pages,
// behind the login gate.
func SetupRoutes(session *service.Session, hub *websocket.HubService, cfg *config.Config, logger *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Auth(cfg.Password))

	r.Get("/healthz", handler.HealthHandler)

	// Static files
	fileServer := http.FileServer(http.Dir(cfg.StaticDir))
	r.Handle("/static/*", http.StripPrefix("/static", fileServer))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ws", handler.ViewWebsocketHandler(session, hub, logger))
		r.Get("/state", handler.StateHandler(session))
		r.Get("/history", handler.HistoryHandler(session))
		r.Post("/mode", handler.ModeHandler(session))
		r.Post("/analyze", handler.AnalyzeHandler(session, logger))

		r.Route("/camera", func(r chi.Router) {
			r.Post("/start", handler.CameraStartHandler(session, logger))
			r.Post("/stop", handler.CameraStopHandler(session, logger))
			r.Post("/flip", handler.CameraFlipHandler(session, logger))
			r.Post("/retry", handler.CameraRetryHandler(session, logger))
			r.Post("/capture", handler.CameraCaptureHandler(session, logger))
		})
	})

	// Log endpoints
	r.Get("/logs/{level}", handler.ShowLogsHandler(logger))
	r.Post("/logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Auth endpoints
	r.Post("/auth/login", handler.LoginHandler(cfg, logger))
	r.Post("/auth/logout", handler.LogoutHandler)

	// Automatic HTML mapping, for example /login -> <static>/login.html
	pages := dynamicHTMLHandler(cfg.StaticDir)
	r.Get("/", pages)
	r.Get("/*", pages)

	return r
}

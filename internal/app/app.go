package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"deepfakedetector/internal/config"
	"deepfakedetector/internal/device/gocvcam"
	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/routes"
	"deepfakedetector/internal/service"
	"deepfakedetector/internal/service/ai"
	"deepfakedetector/internal/service/camera"
	"deepfakedetector/internal/service/history"
	"deepfakedetector/internal/service/pipeline"
	"deepfakedetector/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	hubService *websocket.HubService
	session    *service.Session
	server     *http.Server
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	hub := websocket.NewHubService(log)
	hist := history.NewLog(history.DefaultCapacity)

	analyzer := pipeline.NewPipeline(pipeline.ConfigFrom(cfg), ai.NewGenerator(), hist, hub, log)
	controller := camera.NewController(camera.ConfigFrom(cfg), gocvcam.NewDevices(cfg, log), hub, log)
	session := service.NewSession(analyzer, controller, hist, hub, log)

	router := routes.SetupRoutes(session, hub, cfg, log)

	return &App{
		config:     cfg,
		logger:     log,
		hubService: hub,
		session:    session,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	go a.hubService.Run()

	a.logger.Info("Deepfake detector listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Logs: %s, static: %s", a.config.LogDirectory, a.config.StaticDir)
	if a.config.Password == "" {
		a.logger.Warning("No PASSWORD set, login gate disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP shutdown: %v", err)
		}
	}

	a.session.Close()
	a.hubService.Close()
	a.logger.Close()
	return serveErr
}

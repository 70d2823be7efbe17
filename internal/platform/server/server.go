package server

import (
	"context"
	"fmt"
	"net/http"

	"ACDB/internal/platform/config"
	"ACDB/internal/platform/server/handler/calibration"
	"ACDB/internal/platform/server/handler/database"
	"ACDB/internal/platform/server/handler/delta"
	"ACDB/internal/platform/server/handler/health"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
)

type Server struct {
	httpAddr string
	engine   *chi.Mux
	srv      *http.Server
	logger   logrus.FieldLogger
}

type Handlers struct {
	dig.In

	Database    *database.DatabaseHandler
	Calibration *calibration.CalibrationHandler
	Delta       *delta.DeltaHandler
}

func NewServer(cfg config.Config, handlers Handlers, logger logrus.FieldLogger) *Server {
	url := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &Server{
		engine:   chi.NewRouter(),
		httpAddr: url,
		logger:   logger,
	}
	srv.engine.Use(middleware.Logger)
	srv.engine.Use(middleware.Recoverer)
	srv.registerRoutes(handlers)
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run() error {
	s.logger.WithField("address", s.httpAddr).Info("server running")
	s.srv = &http.Server{Addr: s.httpAddr, Handler: s.engine}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes(h Handlers) {
	s.engine.Get("/health", health.CheckHandler)

	s.engine.Post("/databases", h.Database.OpenDatabase)
	s.engine.Delete("/databases/{index}", h.Database.CloseDatabase)
	s.engine.Put("/databases/{index}/active", h.Database.SetActive)

	s.engine.Post("/calibration", h.Calibration.SetCalibration)
	s.engine.Get("/calibration/{keyVector}", h.Calibration.GetCalibration)
	s.engine.Get("/maps", h.Calibration.ListMaps)
	s.engine.Get("/heap-info", h.Calibration.HeapInfo)

	s.engine.Post("/delta/save", h.Delta.Save)
	s.engine.Get("/delta/{index}/version", h.Delta.GetVersion)
	s.engine.Put("/delta/persistence", h.Delta.SetPersistence)
}

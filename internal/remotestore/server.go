// Package remotestore is the hosted table store the sync engine pushes to:
// six tables under /rest/v1 plus the recovery RPCs.
package remotestore

import (
	"database/sql"
	"net/http"

	"fitlog-go/internal/config"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/remotestore/handlers"
	httpapi "fitlog-go/internal/remotestore/http"
	"fitlog-go/internal/remotestore/repos"
	"fitlog-go/internal/remotestore/services"
)

type Server struct {
	db      *sql.DB
	svc     *services.Service
	handler http.Handler
}

func New(cfg config.ServerConfig, logger *logging.Logger) (*Server, error) {
	db, err := repos.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	svc := services.NewService(repos.NewRepo(db))
	h := handlers.NewTableHandler(svc)
	return &Server{db: db, svc: svc, handler: httpapi.NewRouter(cfg, h, logger)}, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Service() *services.Service { return s.svc }

func (s *Server) Close() error { return s.db.Close() }

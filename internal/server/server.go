package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/annex/internal/annostore"
	"github.com/dukerupert/annex/internal/annotator"
	"github.com/dukerupert/annex/internal/event"
	"github.com/dukerupert/annex/internal/handler"
	"github.com/dukerupert/annex/internal/linksync"
	"github.com/dukerupert/annex/internal/middleware"
	"github.com/dukerupert/annex/internal/paperless"
)

type Server struct {
	db          *sql.DB
	hub         *event.Hub
	annotationH *handler.AnnotationHandler
	adminH      *handler.AdminHandler
	logger      *slog.Logger
}

func New(db *sql.DB, client *paperless.Client, storage annostore.Storage, syncer *linksync.Syncer, logger *slog.Logger) *Server {
	hub := event.NewHub(logger.With("component", "events"))
	a := annotator.New(client, storage, logger.With("component", "annotator"))

	return &Server{
		db:          db,
		hub:         hub,
		annotationH: handler.NewAnnotationHandler(a, hub, logger.With("component", "annotations")),
		adminH:      handler.NewAdminHandler(a, syncer, client, logger.With("component", "admin")),
		logger:      logger,
	}
}

// Hub returns the event hub so other components can broadcast through it.
func (s *Server) Hub() *event.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/documents/{doc_id}/annotations", s.annotationH.List)
	mux.HandleFunc("POST /api/documents/{doc_id}/annotations", s.annotationH.Create)
	mux.HandleFunc("PATCH /api/documents/{doc_id}/annotations/{db_id}", s.annotationH.Update)
	mux.HandleFunc("DELETE /api/documents/{doc_id}/annotations/{db_id}", s.annotationH.Delete)
	mux.HandleFunc("GET /api/documents/{doc_id}/download", s.annotationH.Download)

	mux.HandleFunc("POST /api/links/sync", s.adminH.SyncLinks)
	mux.HandleFunc("DELETE /api/links", s.adminH.DeleteLinks)
	mux.HandleFunc("DELETE /api/annotations", s.adminH.DeleteAnnotations)
	mux.HandleFunc("POST /api/webhooks/document-added", s.adminH.DocumentAdded)

	mux.Handle("GET /ws", event.Handler(s.hub, s.logger.With("component", "websocket")))
	mux.HandleFunc("GET /health", s.healthHandler)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

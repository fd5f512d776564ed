// Package api exposes the HTTP surface: export upload and parsing,
// extraction runs, profile persistence and export, and companion chat.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flaggdavid-source/lifeboat/internal/chat"
	"github.com/flaggdavid-source/lifeboat/internal/events"
	"github.com/flaggdavid-source/lifeboat/internal/extract"
	"github.com/flaggdavid-source/lifeboat/internal/llm"
	"github.com/flaggdavid-source/lifeboat/internal/parse"
	"github.com/flaggdavid-source/lifeboat/internal/store"
)

type Server struct {
	router   *chi.Mux
	port     int
	pipeline *extract.Pipeline
	store    store.Store
	llm      llm.StreamingClient
	events   *events.Publisher
	logger   *slog.Logger

	mu    sync.Mutex
	batch []parse.Conversation     // conversations from the last parse call
	chats map[string]*chat.Session // chat sessions keyed by profile id
}

func NewServer(port int, pipeline *extract.Pipeline, st store.Store, client llm.StreamingClient, pub *events.Publisher, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		pipeline: pipeline,
		store:    st,
		llm:      client,
		events:   pub,
		logger:   logger,
		chats:    make(map[string]*chat.Session),
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/parse", s.parseUpload)
		r.Post("/extract", s.runExtraction)
		r.Get("/extract/status", s.extractionStatus)
		r.Post("/extract/cancel", s.cancelExtraction)

		r.Get("/profiles", s.listProfiles)
		r.Post("/profiles", s.saveProfile)
		r.Post("/profiles/import", s.importProfile)
		r.Get("/profiles/{id}", s.getProfile)
		r.Delete("/profiles/{id}", s.deleteProfile)
		r.Get("/profiles/{id}/export", s.exportProfile)

		r.Post("/chat", s.chatSend)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Package server wires the HTTP surface: health endpoints, Prometheus
// metrics, the Q&A message REST API, and the websocket entry point.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/confera/confera/config"
	"github.com/confera/confera/conversation"
	"github.com/confera/confera/domain"
	"github.com/confera/confera/protocol"
	"github.com/confera/confera/qa"
	"github.com/confera/confera/retrieval"
	"github.com/confera/confera/server/handlers"
	"github.com/confera/confera/store"
)

const ReadTimeout = 30 * time.Second

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
	hub    *Hub
	store  *store.Store
}

// Deps carries the services the server exposes.
type Deps struct {
	Store          *store.Store
	Orchestrator   *conversation.Orchestrator
	Router         *qa.Router
	Embedder       retrieval.Embedder
	ModelHealth    func(context.Context) bool
	PlatformHealth func(context.Context) bool
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	hub := NewHub()
	router := chi.NewRouter()

	router.Use(Recovery)
	router.Use(Logger)
	router.Use(CORS(cfg.Server.AllowedOrigins))

	healthH := handlers.NewHealthHandler(handlers.HealthHandlerConfig{
		DBPing:         func(ctx context.Context) error { return deps.Store.Pool().Ping(ctx) },
		ModelHealth:    deps.ModelHealth,
		PlatformHealth: deps.PlatformHealth,
	})
	router.Get("/health", healthH.Readiness)
	router.Get("/health/ready", healthH.Readiness)
	router.Get("/health/live", healthH.Liveness)
	router.Get("/health/full", healthH.Health)

	router.Handle("/metrics", promhttp.Handler())

	wsHandler := NewWSHandler(hub, cfg, deps.Store, deps.Orchestrator, deps.Router, deps.Embedder)
	router.Get("/api/v1/ws", wsHandler.ServeHTTP)

	router.Route("/api/v1", func(r chi.Router) {
		msgH := handlers.NewMessageHandler(deps.Store, deps.Embedder, func(msg *domain.Message) {
			answer := protocol.ReceiveAnswer{Message: msg}
			if msg.QuestionType == domain.QuestionTypePersonalized {
				hub.SendToUser(msg.UserID, msg.EventID, protocol.TypeReceiveAnswer, answer)
			} else {
				hub.BroadcastToEvent(msg.EventID, nil, protocol.TypeReceiveAnswer, answer)
			}
		})
		r.Get("/events/{eventID}/messages", msgH.ListByEvent)
		r.Get("/events/{eventID}/messages/pending", msgH.ListPending)
		r.Get("/messages/{id}", msgH.Get)
		r.Put("/messages/{id}/answer", msgH.Answer)
		r.Delete("/events/{eventID}/cache", msgH.ClearCache)
	})

	return &Server{
		cfg:    cfg,
		router: router,
		hub:    hub,
		store:  deps.Store,
	}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.ListenAddr(),
		Handler:      s.router,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: 0,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

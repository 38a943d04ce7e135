// Package api exposes the HTTP surface: health, the gateway webhook, and
// Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rolesclub/rolesbot/internal/handlers"
	"github.com/rolesclub/rolesbot/internal/metrics"
	"github.com/rolesclub/rolesbot/internal/registry"
)

// Server handles inbound webhook traffic and hands events to the router.
type Server struct {
	router      *handlers.Router
	registry    *registry.Registry
	appName     string
	verifyToken string
	logger      *logrus.Logger
	mux         chi.Router
}

// NewServer creates the server and registers all routes.
func NewServer(router *handlers.Router, reg *registry.Registry, appName, verifyToken string, logger *logrus.Logger) *Server {
	s := &Server{
		router:      router,
		registry:    reg,
		appName:     appName,
		verifyToken: verifyToken,
		logger:      logger,
		mux:         chi.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the http.Handler to mount on the http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.Use(middleware.Recoverer)

	s.mux.Get("/", s.handleHealth)
	s.mux.Get("/webhook", s.handleVerify)
	s.mux.Post("/webhook", s.handleWebhook)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// ---------------------------------------------------------------------------
// Webhook payload (Meta v3 shape, as delivered by the gateway)
// ---------------------------------------------------------------------------

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage  `json:"messages"`
				Statuses []json.RawMessage `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	Type string `json:"type"`
	From string `json:"from"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// handleHealth reports the app and per-club catalog sizes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type clubInfo struct {
		Members int `json:"members"`
		Roles   int `json:"roles"`
	}
	clubs := map[string]clubInfo{}
	for _, t := range s.registry.Contexts() {
		t.Lock()
		clubs[t.ClubID] = clubInfo{
			Members: len(t.Catalog().Members),
			Roles:   len(t.Catalog().Roles),
		}
		t.Unlock()
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"app":   s.appName,
		"clubs": clubs,
	})
}

// handleVerify answers the subscription handshake.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == s.verifyToken {
		if challenge == "" {
			challenge = "OK"
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleWebhook processes gateway events. It always answers 200 so the
// gateway does not retry; processing failures are logged, never surfaced.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.logger.WithError(err).Warn("Undecodable webhook payload")
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.From == "" {
					continue
				}
				metrics.WebhookEvents.Inc()
				s.router.HandleEvent(r.Context(), msg.From, msg.Text.Body)
			}
			if len(change.Value.Statuses) > 0 {
				s.logger.Debugf("Delivery statuses: %d", len(change.Value.Statuses))
			}
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("failed to encode JSON response")
	}
}

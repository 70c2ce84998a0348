// Package devbackend serves the four widget endpoints for local development
// and tests. Replies are canned or echoed; there is no inference.
package devbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/chatwidget/pkg/widget/api"
)

// Review is one stored rating.
type Review struct {
	TenantID  string
	Rating    int
	Comment   string
	SessionID string
	At        time.Time
}

// ChatRecord is one received visitor message.
type ChatRecord struct {
	TenantID  string
	SessionID string
	Message   string
}

type Server struct {
	mu          sync.Mutex
	tenants     map[string]TenantFixture
	usage       map[string][]string
	reviews     []Review
	chats       []ChatRecord
	rotateEvery int
	failChat    bool
}

type Option func(*Server)

// WithRotateEvery makes every n-th chat reply carry a new session id.
func WithRotateEvery(n int) Option {
	return func(s *Server) { s.rotateEvery = n }
}

// WithFailingChat makes the chat endpoint answer 500.
func WithFailingChat(fail bool) Option {
	return func(s *Server) { s.failChat = fail }
}

func New(f *Fixtures, opts ...Option) *Server {
	if f == nil {
		f = DefaultFixtures()
	}
	s := &Server{
		tenants: map[string]TenantFixture{},
		usage:   map[string][]string{},
	}
	for _, t := range f.Tenants {
		s.tenants[t.ID] = t
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router for the widget API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Route("/api/widget", func(r chi.Router) {
		r.Get("/config/{tenantID}", s.handleConfig)
		r.Post("/chat/{tenantID}", s.handleChat)
		r.Post("/usage/{tenantID}", s.handleUsage)
		r.Post("/review/{tenantID}", s.handleReview)
	})
	return r
}

func (s *Server) tenant(r *http.Request) (TenantFixture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[chi.URLParam(r, "tenantID")]
	return t, ok
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenant(r)
	if !ok {
		respondError(w, http.StatusNotFound, "chatbot not found")
		return
	}
	respondJSON(w, http.StatusOK, t.Config())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenant(r)
	if !ok {
		respondError(w, http.StatusNotFound, "chatbot not found")
		return
	}
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	s.mu.Lock()
	s.chats = append(s.chats, ChatRecord{TenantID: t.ID, SessionID: req.SessionID, Message: req.Message})
	n := len(s.chats)
	fail := s.failChat
	rotate := s.rotateEvery > 0 && n%s.rotateEvery == 0
	s.mu.Unlock()

	if fail {
		respondError(w, http.StatusInternalServerError, "inference unavailable")
		return
	}

	resp := api.ChatResponse{Reply: reply(t, req.Message)}
	if rotate {
		resp.SessionID = "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	respondJSON(w, http.StatusOK, resp)
}

func reply(t TenantFixture, msg string) string {
	if r, ok := t.Replies[strings.ToLower(strings.TrimSpace(msg))]; ok {
		return r
	}
	return fmt.Sprintf("You said: %s", msg)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenant(r)
	if !ok {
		respondError(w, http.StatusNotFound, "chatbot not found")
		return
	}
	var req api.UsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	s.usage[t.ID] = append(s.usage[t.ID], req.SessionID)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenant(r)
	if !ok {
		respondError(w, http.StatusNotFound, "chatbot not found")
		return
	}
	var req api.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusUnprocessableEntity, "rating must be between 1 and 5")
		return
	}
	s.mu.Lock()
	s.reviews = append(s.reviews, Review{
		TenantID:  t.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		SessionID: req.SessionID,
		At:        time.Now(),
	})
	s.mu.Unlock()
	respondJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// UsageSessions returns the session ids usage was recorded for.
func (s *Server) UsageSessions(tenantID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.usage[tenantID]...)
}

func (s *Server) Reviews(tenantID string) []Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Review
	for _, r := range s.reviews {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) Chats(tenantID string) []ChatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ChatRecord
	for _, c := range s.chats {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("dev backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("component", "devbackend").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// cors allows any origin; the widget is embedded on arbitrary sites.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/engine"
	"github.com/hupe1980/ordermesh/logging"
)

const maxBodyBytes = 64 << 10

// Turner is the engine surface the server needs.
type Turner interface {
	PostTurn(ctx context.Context, sessionID, text string) (core.TurnResult, error)
	Session(ctx context.Context, id string) (*core.SessionSnapshot, error)
	EndSession(ctx context.Context, id string) error
	ActiveSessions() int
}

// Options configure a Server.
type Options struct {
	// RateLimit is the sustained turns per second per session; zero disables
	// limiting.
	RateLimit float64
	RateBurst int
	// HistoryLimit caps the messages returned by GET /v1/sessions/{id}.
	HistoryLimit int
	Logger       logging.Logger
}

// Server serves the Turn API.
type Server struct {
	turns   Turner
	limiter *RateLimiter
	opts    Options
	logger  logging.Logger
}

// New creates a Server.
func New(turns Turner, optFns ...func(o *Options)) *Server {
	opts := Options{RateLimit: 2, RateBurst: 5, HistoryLimit: 50}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		turns:   turns,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateBurst),
		opts:    opts,
		logger:  logging.OrNoOp(opts.Logger),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/health"))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", s.postTurn)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Post("/turns", s.postSessionTurn)
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
		})
		r.Get("/stats", s.stats)
	})
	return r
}

// HTTPServer wraps Handler in an http.Server.
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}

type turnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

func (s *Server) postTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !decode(w, r, &req) {
		return
	}
	s.turn(w, r, req.SessionID, req.Message)
}

func (s *Server) postSessionTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if !decode(w, r, &req) {
		return
	}
	s.turn(w, r, chi.URLParam(r, "id"), req.Message)
}

func (s *Server) turn(w http.ResponseWriter, r *http.Request, sessionID, message string) {
	if sessionID == "" {
		sessionID = core.NewID()
	}
	if !s.limiter.Allow(sessionID) {
		Error(w, http.StatusTooManyRequests, "too many turns for this session, slow down")
		return
	}

	res, err := s.turns.PostTurn(r.Context(), sessionID, message)
	switch {
	case errors.Is(err, engine.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message must not be empty")
	case err != nil:
		s.logger.Error("server.turn.failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "turn could not be processed")
	default:
		JSON(w, http.StatusOK, res)
	}
}

type sessionResponse struct {
	SessionID  string          `json:"session_id"`
	Cart       core.Cart       `json:"cart"`
	Total      decimal.Decimal `json:"total"`
	OrderState core.OrderState `json:"order_state"`
	OrderRef   string          `json:"order_ref,omitempty"`
	History    core.History    `json:"history"`
	Created    time.Time       `json:"created"`
	Updated    time.Time       `json:"updated"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.turns.Session(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrSessionNotFound) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("server.session.failed", "error", err)
		Error(w, http.StatusInternalServerError, "session could not be loaded")
		return
	}

	JSON(w, http.StatusOK, sessionResponse{
		SessionID:  snap.ID,
		Cart:       snap.Memory.Cart,
		Total:      snap.Memory.Cart.Total(),
		OrderState: snap.Memory.OrderState,
		OrderRef:   snap.Memory.OrderRef,
		History:    snap.History.Tail(s.opts.HistoryLimit),
		Created:    snap.Created,
		Updated:    snap.Updated,
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.turns.EndSession(r.Context(), id); err != nil {
		s.logger.Error("server.session.end.failed", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "session could not be ended")
		return
	}
	s.limiter.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]int{"active_sessions": s.turns.ActiveSessions()})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("server.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

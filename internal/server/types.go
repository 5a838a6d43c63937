package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/preprocess"
	"github.com/MeKo-Tech/matrixscan/internal/results"
	"github.com/MeKo-Tech/matrixscan/internal/scanner"
)

// Server holds the HTTP server state and dependencies. Each WebSocket
// connection on /ws is one scanning session.
type Server struct {
	decoder       barcode.Decoder
	preprocess    preprocess.Options
	candidates    scanner.CandidateOptions
	labelMode     results.LabelMode
	corsOrigin    string
	maxFrameBytes int64
	idleTimeout   time.Duration
	rateLimiter   *RateLimiter
	sessions      *registry
	log           *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxFrameMB  int64
	IdleTimeout time.Duration

	Decoder    barcode.Decoder
	Preprocess preprocess.Options
	Candidates scanner.CandidateOptions
	LabelMode  results.LabelMode

	// RateLimiter is optional.
	RateLimiter *RateLimiter
	Logger      *slog.Logger
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version,omitempty"`
	Time           string `json:"time"`
	ActiveSessions int    `json:"active_sessions"`
}

// SessionResponse describes one session and its barcode list.
type SessionResponse struct {
	ID       string            `json:"id"`
	Active   bool              `json:"active"`
	Started  time.Time         `json:"started"`
	Ended    *time.Time        `json:"ended,omitempty"`
	Barcodes []results.Barcode `json:"barcodes"`
}

// SessionsResponse is returned by /api/sessions.
type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Count    int               `json:"count"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewServer validates cfg and returns a server ready to route.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Decoder == nil {
		return nil, errors.New("server: decoder is required")
	}
	if err := cfg.Preprocess.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxFrameMB <= 0 {
		cfg.MaxFrameMB = 8
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mode, err := results.ParseLabelMode(string(cfg.LabelMode))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		decoder:       cfg.Decoder,
		preprocess:    cfg.Preprocess,
		candidates:    cfg.Candidates,
		labelMode:     mode,
		corsOrigin:    cfg.CORSOrigin,
		maxFrameBytes: cfg.MaxFrameMB * 1024 * 1024,
		idleTimeout:   cfg.IdleTimeout,
		rateLimiter:   cfg.RateLimiter,
		sessions:      newRegistry(100),
		log:           logger,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Close ends every live session. Connected clients receive session_end
// when they next send a frame.
func (s *Server) Close() error {
	s.cancel()
	s.sessions.closeAll()
	return nil
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/ws", s.corsMiddleware(s.rateLimitMiddleware(s.scanWebSocketHandler)))
	r.HandleFunc("/api/sessions", s.corsMiddleware(s.sessionsHandler))
	r.HandleFunc("/api/sessions/{id}/barcodes", s.corsMiddleware(s.sessionBarcodesHandler))
	return r
}

package server

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// corsMiddleware adds CORS headers and records request metrics.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		start := time.Now()
		next(rw, r)
		duration := time.Since(start)

		endpoint := routeTemplate(r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, http.StatusText(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration.Seconds())
	}
}

// routeTemplate returns the matched route pattern so session ids do not
// end up as metric labels.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// rateLimitMiddleware admits new sessions per client.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next(w, r)
			return
		}

		if err := s.rateLimiter.CheckSession(getClientIP(r)); err != nil {
			recordRateLimitHit(err)
			s.handleRateLimitError(w, err)
			return
		}

		next(w, r)
	}
}

func recordRateLimitHit(err error) {
	var e *RateLimitError
	var e1 *QuotaExceededError
	switch {
	case errors.As(err, &e):
		rateLimitHits.WithLabelValues(e.Type).Inc()
	case errors.As(err, &e1):
		rateLimitHits.WithLabelValues(e1.Type).Inc()
	}
}

// handleRateLimitError handles rate limit and quota errors.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var e *RateLimitError
	var e1 *QuotaExceededError
	switch {
	case errors.As(err, &e):
		w.Header().Set("X-RateLimit-Type", e.Type)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(e.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", e.RetryAfter.Seconds()))
		s.writeErrorResponse(w, "rate_limit_exceeded", e.Error(), http.StatusTooManyRequests)
	case errors.As(err, &e1):
		w.Header().Set("X-Quota-Type", e1.Type)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(e1.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(e1.Used, 10))
		w.Header().Set("X-Quota-Resets", e1.Resets.Format(http.TimeFormat))
		s.writeErrorResponse(w, "quota_exceeded", e1.Error(), http.StatusTooManyRequests)
	default:
		slog.Error("Rate limiting check failed", "error", err)
		s.writeErrorResponse(w, "internal_error", "Rate limiting check failed", http.StatusInternalServerError)
	}
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

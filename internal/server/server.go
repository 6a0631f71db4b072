// Package server provides the HTTP handlers and routing for the tool relay.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"portal-relay/internal/logger"
	"portal-relay/internal/metrics"
)

// maxBodyBytes caps an /execute request body.
const maxBodyBytes = 1 << 20

// Config contains what the relay reports about itself and how it guards /execute.
type Config struct {
	// Type is the integration type reported by /status, e.g. "mysql".
	Type string
	// Token, when set, is required as a bearer token on /execute.
	Token string
}

// Server contains the configured router, tool registry and logger.
type Server struct {
	cfg      Config
	router   *chi.Mux
	registry *Registry
	log      *zap.Logger

	// serial makes the relay handle one request at a time.
	serial sync.Mutex
}

// New constructs a Server with middleware and routes configured.
func New(cfg Config, registry *Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		registry: registry,
		log:      log,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.Requests(log))
	s.router.Use(s.recoverer)
	s.router.Use(s.serialize)

	s.router.Get("/status", s.handleStatus)
	s.router.With(s.auth).Post("/execute", s.handleExecute)

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleNotFound)

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serial.Lock()
		defer s.serial.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status: "running",
		Type:   s.cfg.Type,
		Tools:  s.registry.Names(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, "Missing tool")
		return
	}
	tool, ok := s.registry.Lookup(req.Tool)
	if !ok {
		metrics.ExecutionsTotal.WithLabelValues("unknown", metrics.OutcomeClientError).Inc()
		writeError(w, http.StatusBadRequest, "Unknown tool: "+req.Tool)
		return
	}
	params := bytes.TrimSpace(req.Parameters)
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		writeError(w, http.StatusBadRequest, "Missing parameters")
		return
	}
	if params[0] != '{' {
		writeError(w, http.StatusBadRequest, "Parameters must be an object")
		return
	}

	name := string(tool.Kind())
	log := s.log.With(
		zap.String("tool", name),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	start := time.Now()
	// A started execute runs to completion even if the caller goes away.
	res, err := tool.Invoke(context.WithoutCancel(r.Context()), params)
	elapsed := time.Since(start)
	metrics.ExecutionDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		var pe *ParamError
		if errors.As(err, &pe) {
			metrics.ExecutionsTotal.WithLabelValues(name, metrics.OutcomeClientError).Inc()
			log.Info("rejected parameters", zap.String("reason", pe.Msg))
			writeError(w, http.StatusBadRequest, pe.Msg)
			return
		}
		metrics.ExecutionsTotal.WithLabelValues(name, metrics.OutcomeDownstreamError).Inc()
		log.Warn("downstream error", zap.Error(err), zap.Duration("duration", elapsed))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body, err := json.Marshal(ExecuteResponse{Results: res})
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues(name, metrics.OutcomeDownstreamError).Inc()
		log.Error("encode results", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.ExecutionsTotal.WithLabelValues(name, metrics.OutcomeOK).Inc()
	log.Debug("executed", zap.Duration("duration", elapsed))
	writeBody(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: err.Error()})
	}
	writeBody(w, code, body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

func writeBody(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

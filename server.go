package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const maxRequestBytes = 10 << 20

// DigestRunner runs the digest workflow for a set of articles
type DigestRunner interface {
	Run(ctx context.Context, articles []RawArticle) (*WorkflowResult, error)
}

// Server exposes the digest workflow over HTTP
type Server struct {
	runner DigestRunner
	logger *slog.Logger
}

// NewServer creates an HTTP server around runner
func NewServer(runner DigestRunner, logger *slog.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("digest runner required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, logger: logger}, nil
}

// Routes returns the server's HTTP handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/digests", s.handleDigestCreate)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return s.logMiddleware(mux)
}

type digestCreateReq struct {
	Articles []RawArticle `json:"articles"`
}

type errorResp struct {
	Error string    `json:"error"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

func (s *Server) handleDigestCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req digestCreateReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := s.runner.Run(r.Context(), req.Articles)
	if err != nil {
		kind := errorKind(err)
		s.logger.Error("digest request failed", "kind", kind, "error", err)
		writeJSON(w, statusForError(err), errorResp{Error: err.Error(), Kind: kind})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// statusForError maps workflow failures to HTTP status codes. Only
// InputError is the caller's fault; a draft failing validation means the
// model misbehaved.
func statusForError(err error) int {
	switch errorKind(err) {
	case InputError:
		return http.StatusBadRequest
	case GenerationError, ValidationError:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

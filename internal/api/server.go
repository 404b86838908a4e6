// Package api exposes the clinical co-pilot HTTP surface: doctor login,
// patient lookup, grounded question answering, and SOAP note submission.
// Routing is the standard library mux with method-qualified patterns.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clinrag/clinrag/internal/auth"
	"github.com/clinrag/clinrag/internal/records"
)

// Store is the slice of the record store the handlers consume.
type Store interface {
	GetDoctorByUsername(ctx context.Context, username string) (*records.Doctor, error)
	FindPatientByDetails(ctx context.Context, firstName, lastName, dob string) (int64, error)
	InsertSOAPNote(ctx context.Context, note records.SOAPNote) (int64, error)
	LogAction(ctx context.Context, doctorID int64, action string, patientID *int64) records.LogResult
}

// Answerer runs the retrieval pipeline for one question.
type Answerer interface {
	Answer(ctx context.Context, doctorID, patientID int64, question string) (string, []string, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig contains the dependencies for creating the API server.
type ServerConfig struct {
	Logger   *slog.Logger
	Store    Store             // Required
	Pipeline Answerer          // Required
	Embedder Embedder          // Required: embeds SOAP note content
	Tokens   *auth.TokenIssuer // Required
	Pool     Pinger            // Optional: nil disables the health ping
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler

	logger   *slog.Logger
	store    Store
	pipeline Answerer
	embedder Embedder
	tokens   *auth.TokenIssuer
	pool     Pinger
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("record store is required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("retrieval pipeline is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:   logger,
		store:    cfg.Store,
		pipeline: cfg.Pipeline,
		embedder: cfg.Embedder,
		tokens:   cfg.Tokens,
		pool:     cfg.Pool,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.root)
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /token", s.login)
	mux.Handle("POST /find-patient", s.requireDoctor(s.findPatient))
	mux.Handle("POST /ask", s.requireDoctor(s.ask))
	mux.Handle("POST /patients/{id}/notes", s.requireDoctor(s.createNote))

	s.handler = loggingMiddleware(logger)(recoveryMiddleware(logger)(mux))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the Clinical RAG Co-pilot API",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pool != nil {
		if err := s.pool.Ping(r.Context()); err != nil {
			s.logger.Warn("health check database ping failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireDoctor authenticates the bearer token, resolves the doctor, and
// stores it in the request context. Any failure is a uniform 401: the client
// learns nothing about which step rejected it.
func (s *Server) requireDoctor(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const invalidCredentials = "Could not validate credentials"

		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, invalidCredentials)
			return
		}

		claims, ok := s.tokens.Verify(token)
		if !ok {
			writeUnauthorized(w, invalidCredentials)
			return
		}

		username, _ := claims["sub"].(string)
		if username == "" {
			writeUnauthorized(w, invalidCredentials)
			return
		}

		doctor, err := s.store.GetDoctorByUsername(r.Context(), username)
		if err != nil {
			if !errors.Is(err, records.ErrNotFound) {
				s.logger.Error("doctor lookup failed", "username", username, "error", err)
			}
			writeUnauthorized(w, invalidCredentials)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyDoctor, doctor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
// The scheme is matched case-insensitively per RFC 6750.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

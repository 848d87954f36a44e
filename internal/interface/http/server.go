// Package http exposes the progress engine over a small JSON API: read
// endpoints for progress, summaries and leaderboards, and authenticated
// write endpoints for sessions, goals and rank maintenance.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/studyquest/progress-engine/internal/application/command"
	"github.com/studyquest/progress-engine/internal/application/query"
	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/interface/http/handlers"
	"github.com/studyquest/progress-engine/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// AllowedOrigins - allowed origins for CORS.
	AllowedOrigins []string

	// APIKeyHeader - header name for API key authentication.
	APIKeyHeader string

	// APIKeyHashes - bcrypt hashes of accepted admin API keys.
	APIKeyHashes []string

	// JWTSecret - HS256 secret for admin bearer tokens (empty disables).
	JWTSecret string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		AllowedOrigins: []string{"*"},
		APIKeyHeader:   "X-API-Key",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains the handlers served by the API. Nil handlers leave
// their routes answering 503.
type Dependencies struct {
	RecordSession       *command.RecordSessionHandler
	CreateGoal          *command.CreateGoalHandler
	UpdateAchievement   *command.UpdateGoalProgressHandler[*goal.Achievement]
	UpdateMission       *command.UpdateGoalProgressHandler[*goal.Mission]
	UpdateRank          *command.UpdateRankHandler
	RecalculateRanks    *command.RecalculateRanksHandler
	GetTopicProgress    *query.GetTopicProgressHandler
	GetSessionHistory   *query.GetSessionHistoryHandler
	GetUserSummary      *query.GetUserSummaryHandler
	GetLeaderboardEntry *query.GetLeaderboardEntryHandler
	GetTop              *query.GetTopHandler

	// Scheduler is used to report job status. Optional.
	Scheduler *scheduler.Scheduler

	HealthChecker handlers.HealthChecker
	Logger        *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	router     *mux.Router
	auth       *handlers.AdminAuth
	httpServer *http.Server
	logger     *slog.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: mux.NewRouter(),
		auth:   handlers.NewAdminAuth(config.APIKeyHeader, config.APIKeyHashes, config.JWTSecret),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", config.APIKeyHeader, "X-Request-ID"},
		MaxAge:         86400,
	})

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        c.Handler(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(s.recoveryMiddleware, s.requestIDMiddleware, s.loggingMiddleware)

	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status
	// ─────────────────────────────────────────────────────────────────────────
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Read Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/users/{userID}/topics/{topicID}", s.handleGetTopicProgress).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/topics/{topicID}/sessions", s.handleGetSessionHistory).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/summary", s.handleGetUserSummary).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/rank", s.handleGetRank).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard/top", s.handleGetTop).Methods(http.MethodGet)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Write Endpoints (admin)
	// ─────────────────────────────────────────────────────────────────────────
	admin := api.PathPrefix("").Subrouter()
	admin.Use(s.auth.Middleware)
	admin.HandleFunc("/users/{userID}/topics/{topicID}/sessions", s.handleRecordSession).Methods(http.MethodPost)
	admin.HandleFunc("/users/{userID}/achievements", s.handleCreateAchievement).Methods(http.MethodPost)
	admin.HandleFunc("/users/{userID}/missions", s.handleCreateMission).Methods(http.MethodPost)
	admin.HandleFunc("/achievements/{goalID}/progress", s.handleUpdateAchievement).Methods(http.MethodPut)
	admin.HandleFunc("/missions/{goalID}/progress", s.handleUpdateMission).Methods(http.MethodPut)
	admin.HandleFunc("/users/{userID}/rank", s.handleUpdateRank).Methods(http.MethodPut)
	admin.HandleFunc("/leaderboard/recalculate", s.handleRecalculate).Methods(http.MethodPost)
	admin.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	admin.HandleFunc("/jobs/{name}", s.handleGetJob).Methods(http.MethodGet)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// requestIDMiddleware adds a unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", getRequestID(r.Context()),
		)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if !s.auth.Enabled() {
		s.logger.Warn("no admin credentials configured, write endpoints reject every request")
	}
	s.logger.Info("starting HTTP server", "address", s.config.Address())

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		RequestID: getRequestID(r.Context()),
	})
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(JSONResponse{
		Error: &APIError{Code: code, Message: message},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

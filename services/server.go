package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/openhire/interview-engine/repository"
	ws "github.com/openhire/interview-engine/websocket"
)

// Server holds all server dependencies
type Server struct {
	config      *Config
	repo        *repository.InterviewStore
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	sessions  *SessionManager
	conductor *Conductor
	sweeper   *ExpirySweeper

	interviewEndpoints *InterviewEndpoints
	jobEndpoints       *JobEndpoints
	websocketHandler   *WebSocketHandler
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetDatabase sets the persistence connections
func (s *Server) SetDatabase(repo *repository.InterviewStore, dbPool *pgxpool.Pool, redisClient *redis.Client) {
	s.repo = repo
	s.dbPool = dbPool
	s.redisClient = redisClient
}

// InitializeServices wires the orchestration engine together
func (s *Server) InitializeServices() error {
	if s.repo == nil {
		return fmt.Errorf("database not configured")
	}
	if s.config.AI.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	geminiService := NewGeminiService(s.config.AI.GeminiAPIKey)
	if geminiService == nil {
		return fmt.Errorf("failed to initialize Gemini service")
	}
	slog.Info("Gemini service initialized")

	detector := NewViolationDetector(s.config.Interview)
	s.sessions = NewSessionManager(s.repo, s.config.Interview)
	s.conductor = NewConductor(s.sessions, s.repo, s.repo, geminiService, geminiService, s.repo, detector, s.config.Interview)
	slog.Info("Interview conductor initialized", "violation_threshold", s.config.Interview.ViolationThreshold, "closing_threshold_pct", s.config.Interview.ClosingThresholdPct)

	if s.redisClient != nil {
		locker := NewSessionLocker(s.redisClient, s.config.Sweeper.LockTTL)
		s.sweeper = NewExpirySweeper(s.repo, locker, s.conductor, s.config.Sweeper.Interval)
		slog.Info("Expiry sweeper initialized", "interval", s.config.Sweeper.Interval, "lock_ttl", s.config.Sweeper.LockTTL)
	} else {
		slog.Warn("Redis not configured, expired sessions will only finalize on interaction")
	}

	s.interviewEndpoints = NewInterviewEndpoints(s.conductor, s.sessions)
	s.jobEndpoints = NewJobEndpoints(s.repo)
	s.websocketHandler = NewWebSocketHandler(s.conductor)

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)
		r.Get("/ws", s.websocketHandlerFunc)

		s.interviewEndpoints.RegisterRoutes(r)
		s.jobEndpoints.RegisterRoutes(r)
	})

	return r
}

// Start starts the HTTP server and the expiry sweeper, blocking until an
// interrupt arrives
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	if s.sweeper != nil {
		if err := s.sweeper.Start(); err != nil {
			slog.Error("Failed to start expiry sweeper", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF
// attacks. An empty allow-list denies everything.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	allowedOrigins := strings.Split(allowedOriginsStr, ",")
	for _, allowed := range allowedOrigins {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"
	redisStatus := "not configured"

	if s.dbPool != nil {
		if err := s.dbPool.Ping(r.Context()); err != nil {
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()).Err(); err != nil {
			redisStatus = "down"
			status = "degraded"
		} else {
			redisStatus = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `","redis":"` + redisStatus + `"}`))

	slog.Info("Health check", "status", status, "database", dbStatus, "redis", redisStatus)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))
}

func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	sctx, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to load session for websocket", "error", err, "session_id", sessionID)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	if !sctx.Session.Status.Active() {
		http.Error(w, "Session is no longer active", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "session_id", sessionID, "user_id", sctx.Session.UserID)

	client := s.wsHub.RegisterClient(conn, sctx.Session.UserID, sessionID)
	client.MessageHandler = func(c *ws.Client, messageBytes []byte) {
		s.websocketHandler.HandleWebSocketMessage(c, messageBytes)
	}

	go client.WritePump()
	client.ReadPump()
}

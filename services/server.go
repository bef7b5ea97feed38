package services

import (
	"context"
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

	"github.com/careerloop/backend/models"
	"github.com/careerloop/backend/repository"
	ws "github.com/careerloop/backend/websocket"
)

// Server holds all server dependencies
type Server struct {
	config             *Config
	gormDB             *repository.GORMRepository
	pool               *pgxpool.Pool
	scheduler          *Scheduler
	reminderService    *ReminderService
	calendarService    *CalendarService
	mailer             *GmailMailer
	questionService    *QuestionService
	authService        *AuthService
	authEndpoints      *AuthEndpoints
	interviewEndpoints *InterviewEndpoints
	settingsEndpoints  *SettingsEndpoints
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

// SetDatabase sets the database connections. The pgx pool is only used for
// health checks; everything else goes through the GORM repository.
func (s *Server) SetDatabase(db *repository.GORMRepository, pool *pgxpool.Pool) {
	s.gormDB = db
	s.pool = pool
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices(ctx context.Context) error {
	if s.gormDB == nil {
		slog.Warn("Database not configured, running with reduced functionality")
	}

	// Scheduling core
	if s.gormDB != nil {
		s.scheduler = NewScheduler(s.gormDB)
		if step := s.config.Scheduler.SlotStepMinutes; step > 0 {
			s.scheduler.SetSlotStep(step)
		}
		if err := s.scheduler.Load(ctx); err != nil {
			return err
		}
		s.reminderService = NewReminderService(s.scheduler, s.gormDB, s.config.Scheduler.ReminderPollMinutes)
		slog.Info("Scheduler initialized")
	}

	// Google calendar sync
	if s.gormDB != nil && s.config.Google.CredentialsFile != "" {
		calendarService, err := NewCalendarService(ctx, s.config.Google, s.gormDB)
		if err != nil {
			slog.Warn("Calendar service unavailable", "error", err)
		} else {
			s.calendarService = calendarService
			s.scheduler.SetCalendar(calendarService)
			slog.Info("Calendar service initialized")
		}
	}

	// Gmail delivery for reminders and cancellations
	if s.config.Google.CredentialsFile != "" && s.config.Google.MailFrom != "" {
		mailer, err := NewGmailMailer(ctx, s.config.Google)
		if err != nil {
			slog.Warn("Mailer unavailable", "error", err)
		} else {
			s.mailer = mailer
			if s.scheduler != nil {
				s.scheduler.SetMailer(mailer)
			}
			if s.reminderService != nil {
				s.reminderService.SetMailer(mailer)
			}
			slog.Info("Gmail mailer initialized")
		}
	}

	// AI question generation
	if s.config.AI.GeminiAPIKey != "" {
		s.questionService = NewQuestionService(s.config.AI.GeminiAPIKey)
		if s.questionService != nil {
			slog.Info("Question service initialized")
		}
	}

	// Authentication services
	if s.config.JWT.Secret != "" && s.gormDB != nil {
		s.authService = NewAuthService(s.gormDB, s.config.JWT.Secret)
		s.authEndpoints = NewAuthEndpoints(s.authService)
		s.interviewEndpoints = NewInterviewEndpoints(s.gormDB, s.scheduler, s.questionService)
		s.settingsEndpoints = NewSettingsEndpoints(s.gormDB, s.calendarService)
		slog.Info("Authentication service initialized")
	}

	// WebSocket hub for live notifications
	s.wsHub = ws.NewHub()
	go s.wsHub.Run()
	if s.scheduler != nil {
		s.scheduler.SetPublisher(s.wsHub)
	}
	if s.reminderService != nil {
		s.reminderService.SetPublisher(s.wsHub)
	}

	return nil
}

// StartReminderLoop runs the reminder poll loop until the context is cancelled.
func (s *Server) StartReminderLoop(ctx context.Context) {
	if s.reminderService == nil {
		return
	}
	go s.reminderService.Run(ctx)
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

		// WebSocket route (protected)
		if s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				r.Get("/ws", s.websocketHandlerFunc)
			})
		} else {
			r.Get("/ws", s.websocketHandlerFunc)
		}

		// Authentication routes
		if s.authEndpoints != nil {
			r.Route("/auth", func(r chi.Router) {
				// Public auth routes (no middleware)
				r.Post("/login", s.authEndpoints.LoginHandler)
				r.Post("/signup", s.authEndpoints.SignupHandler)
				r.Post("/refresh", s.authEndpoints.RefreshHandler)
				r.Post("/logout", s.authEndpoints.LogoutHandler)

				// Protected auth routes (with middleware)
				r.Group(func(r chi.Router) {
					r.Use(s.authService.Middleware)
					r.Get("/me", s.authEndpoints.MeHandler)
				})
			})
		}

		// Interview routes (protected)
		if s.interviewEndpoints != nil && s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				s.interviewEndpoints.RegisterRoutes(r)
			})
		}

		// Settings routes (protected)
		if s.settingsEndpoints != nil && s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				s.settingsEndpoints.RegisterRoutes(r)
			})
		}
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	// Parse allowed origins (comma-separated list)
	allowedOrigins := strings.Split(allowedOriginsStr, ",")

	// Trim whitespace from origins
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	// Check if origin is in allowed list
	for _, allowed := range allowedOrigins {
		if allowed == origin {
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

	if s.pool != nil {
		if err := s.pool.Ping(r.Context()); err != nil {
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))

	slog.Info("Health check", "status", status, "database", dbStatus)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))

	slog.Info("API v1 accessed")
}

func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	// Get user from context (set by auth middleware)
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		slog.Error("WebSocket connection failed - user not found in context")
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID, "email", user.Email)

	client := s.wsHub.RegisterClient(conn, user.ID)
	go client.WritePump()
	go client.ReadPump()
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/internal/config"
	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/metrics"
)

// Server exposes the protection engine over HTTP: evaluation and scoring,
// swap protection, per-user configuration, alert history, and the live
// websocket alert stream.
type Server struct {
	config    *config.ServerConfig
	evaluator interfaces.Evaluator
	scorer    interfaces.RiskScorer
	engine    interfaces.ProtectionEngine
	recorder  interfaces.MetricsRecorder
	alerts    interfaces.AlertManager
	pipeline  interfaces.ObservationPipeline
	logger    *zap.Logger

	auth    *AuthService
	limiter *RateLimiter
	hub     *AlertHub

	router     *mux.Router
	httpServer *http.Server
	startedAt  time.Time
	stopClean  chan struct{}
}

// NewServer wires the HTTP surface over the engine components. The pipeline
// and recorder may be nil; their routes degrade to empty payloads.
func NewServer(cfg *config.ServerConfig, evaluator interfaces.Evaluator, scorer interfaces.RiskScorer, engine interfaces.ProtectionEngine, recorder interfaces.MetricsRecorder, alerts interfaces.AlertManager, pipeline interfaces.ObservationPipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:    cfg,
		evaluator: evaluator,
		scorer:    scorer,
		engine:    engine,
		recorder:  recorder,
		alerts:    alerts,
		pipeline:  pipeline,
		logger:    logger,
		auth:      NewAuthService(logger),
		limiter:   NewRateLimiter(DefaultRateLimit()),
		hub:       NewAlertHub(alerts, logger),
		router:    mux.NewRouter(),
		stopClean: make(chan struct{}),
	}
	s.setupRoutes()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      corsHandler.Handler(s.loggingMiddleware(s.router)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	// Public surface.
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", metrics.PrometheusHandler()).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.HandleWebSocket)

	// Authenticated API.
	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(s.auth.AuthMiddleware, s.limiter.Middleware)

	apiRouter.HandleFunc("/evaluate", s.handleEvaluate).Methods("POST")
	apiRouter.HandleFunc("/score", s.handleScore).Methods("POST")
	apiRouter.HandleFunc("/protect", s.handleProtectSwap).Methods("POST")
	apiRouter.HandleFunc("/config", s.handleConfigure).Methods("POST")
	apiRouter.HandleFunc("/config/{address}", s.handleGetConfig).Methods("GET")
	apiRouter.HandleFunc("/alerts", s.handleAlerts).Methods("GET")
	apiRouter.HandleFunc("/status", s.handleStatus).Methods("GET")

	// Operator surface.
	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(RequireRole(RoleOperator))
	adminRouter.HandleFunc("/thresholds", s.handleGetThresholds).Methods("GET")
	adminRouter.HandleFunc("/thresholds", s.handleSetThresholds).Methods("PUT")
	adminRouter.HandleFunc("/emergency-stop/{address}", s.handleEmergencyStop).Methods("POST")
}

// Start begins serving. It returns once the listener has been handed off to
// its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()
	s.hub.Start()
	go s.rateLimiterCleanup()

	go func() {
		s.logger.Info("API server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	close(s.stopClean)
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Auth exposes the auth service so operators can provision API keys.
func (s *Server) Auth() *AuthService {
	return s.auth
}

func (s *Server) rateLimiterCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.limiter.CleanupExpiredClients(10 * time.Minute)
		case <-s.stopClean:
			return
		}
	}
}

// responseWriter captures the status code for the request log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket upgrade needs the raw ResponseWriter (Hijacker).
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)))
	})
}

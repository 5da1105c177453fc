package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/firescope/resource-governor/internal/config"
	"github.com/firescope/resource-governor/internal/handler"
	"github.com/firescope/resource-governor/internal/middleware"
	"github.com/firescope/resource-governor/internal/monitor"
	"github.com/firescope/resource-governor/internal/ratelimit"
	"github.com/firescope/resource-governor/internal/repository"
	"github.com/firescope/resource-governor/internal/service"
	"github.com/firescope/resource-governor/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	store    storage.Store
	redis    *storage.RedisClient
	postgres *storage.Postgres
	monitor  *monitor.Monitor

	limiter   *ratelimit.Limiter
	logWriter *middleware.RequestLogWriter

	authService         *service.AuthService
	subscriptionService *service.SubscriptionService
	analyticsService    *service.AnalyticsService

	authHandler         *handler.AuthHandler
	subscriptionHandler *handler.SubscriptionHandler
	analyticsHandler    *handler.AnalyticsHandler
	performanceHandler  *handler.PerformanceHandler
	systemHandler       *handler.SystemHandler

	httpServer *http.Server
}

// New wires the full request path. The redis argument may be nil when
// the process runs against the in-memory store; the store argument is
// whichever backend the caller connected.
func New(cfg *config.Config, store storage.Store, redis *storage.RedisClient, postgres *storage.Postgres, mon *monitor.Monitor) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	userRepo := repository.NewUserRepository(postgres, mon)
	subscriptionRepo := repository.NewSubscriptionRepository(postgres, mon)
	requestLogRepo := repository.NewRequestLogRepository(postgres, mon)

	subscriptionService := service.NewSubscriptionService(subscriptionRepo, store)
	authService := service.NewAuthService(userRepo, subscriptionService, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)
	analyticsService := service.NewAnalyticsService(postgres, requestLogRepo)

	limiter := ratelimit.New(store, subscriptionService, limiterConfig(cfg.RateLimit))
	logWriter := middleware.NewRequestLogWriter(requestLogRepo, 1000)

	s := &Server{
		router:              router,
		config:              cfg,
		store:               store,
		redis:               redis,
		postgres:            postgres,
		monitor:             mon,
		limiter:             limiter,
		logWriter:           logWriter,
		authService:         authService,
		subscriptionService: subscriptionService,
		analyticsService:    analyticsService,
		authHandler:         handler.NewAuthHandler(authService),
		subscriptionHandler: handler.NewSubscriptionHandler(subscriptionService, cfg.RateLimit.Tiers),
		analyticsHandler:    handler.NewAnalyticsHandler(analyticsService),
		performanceHandler:  handler.NewPerformanceHandler(mon),
		systemHandler:       handler.NewSystemHandler(redis),
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	return s
}

// Translates file configuration into the limiter's domain types
func limiterConfig(cfg config.RateLimitConfig) ratelimit.Config {
	policies := make([]ratelimit.Policy, 0, len(cfg.Policies))
	for _, p := range cfg.Policies {
		policies = append(policies, ratelimit.Policy{
			Endpoint: p.Endpoint,
			Capacity: p.Capacity,
			Window:   ratelimit.WindowUnit(p.Window),
		})
	}

	return ratelimit.Config{
		Policies: policies,
		Tiers:    cfg.Tiers,
		DefaultPolicy: ratelimit.Policy{
			Capacity: cfg.Default.Capacity,
			Window:   ratelimit.WindowUnit(cfg.Default.Window),
		},
		Adaptive: ratelimit.AdaptiveConfig{
			LowLoadThreshold:  cfg.Adaptive.LowLoadThreshold,
			HighLoadThreshold: cfg.Adaptive.HighLoadThreshold,
			BoostFactor:       cfg.Adaptive.BoostFactor,
			ShedFactor:        cfg.Adaptive.ShedFactor,
			LoadWindow:        time.Duration(cfg.Adaptive.LoadWindowSeconds) * time.Second,
		},
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(s.logWriter.Middleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	auth := s.router.Group("/auth")
	auth.Use(middleware.RateLimit(s.limiter))
	{
		auth.POST("/register", s.authHandler.Register)
		auth.POST("/login", s.authHandler.Login)
	}

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.authService))
	admin.Use(middleware.RateLimit(s.limiter))
	{
		admin.GET("/status", s.adminStatus)

		admin.GET("/breaker", s.systemHandler.CircuitBreakerStatus)
		admin.POST("/breaker/reset", s.systemHandler.ResetCircuitBreaker)

		admin.GET("/subscriptions", s.subscriptionHandler.List)
		admin.GET("/subscriptions/:user_id", s.subscriptionHandler.Get)
		admin.PUT("/subscriptions/:user_id", s.subscriptionHandler.SetTier)
		admin.DELETE("/subscriptions/:user_id", s.subscriptionHandler.Cancel)

		admin.GET("/analytics", s.analyticsHandler.GetSummary)
		admin.GET("/analytics/users/:user_id", s.analyticsHandler.GetUserStats)
		admin.GET("/logs", s.analyticsHandler.GetLogs)

		admin.GET("/limits/*endpoint", s.effectiveLimit)

		admin.GET("/performance", s.performanceHandler.GetReport)
		admin.GET("/performance/alerts", s.performanceHandler.GetAlerts)
		admin.POST("/performance/alerts/:id/resolve", s.performanceHandler.ResolveAlert)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	storeHealthy := true

	if err := s.store.Ping(c.Request.Context()); err != nil {
		storeHealthy = false
		log.Printf("Store health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !storeHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "resource-governor",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"store":    storeHealthy,
			"database": dbHealthy,
		},
	})
}

// Reports the caller's effective limit for an endpoint without
// consuming quota. The wildcard keeps slashes in the endpoint path.
func (s *Server) effectiveLimit(c *gin.Context) {
	endpoint := c.Param("endpoint")
	userID := c.GetString("user_id")

	spec := s.limiter.GetRateLimit(c.Request.Context(), endpoint, userID)

	c.JSON(http.StatusOK, gin.H{
		"endpoint": endpoint,
		"user_id":  userID,
		"limit":    spec.Capacity,
		"window":   string(spec.Window),
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	ctx := c.Request.Context()
	subs, _ := s.subscriptionService.List(ctx)

	tierNames := make([]string, 0, len(s.config.RateLimit.Tiers))
	for tier := range s.config.RateLimit.Tiers {
		tierNames = append(tierNames, tier)
	}
	tiers, err := s.subscriptionService.TierBreakdown(ctx, tierNames)
	if err != nil {
		log.Printf("Tier breakdown failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"governor":      "running",
		"subscriptions": len(subs),
		"tiers":         tiers,
		"in_flight":     s.monitor.InFlightCount(),
		"uptime":        time.Since(startTime).Seconds(),
		"timestamp":     time.Now().Unix(),
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting resource governor on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	s.logWriter.Stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

var startTime = time.Now()

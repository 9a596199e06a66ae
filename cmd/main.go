package main

import (
	"time"

	"buyer-lead-service/internal/handler"
	"buyer-lead-service/internal/middleware"
	"buyer-lead-service/internal/model"
	"buyer-lead-service/pkg/config"
	"buyer-lead-service/pkg/database"
	"buyer-lead-service/pkg/jwtutil"
	"buyer-lead-service/pkg/logger"
	"buyer-lead-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiter builds a per-IP rate limiter allowing max requests per window
func rateLimiter(max int, window time.Duration) echo.MiddlewareFunc {
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(max) / window.Seconds()),
			Burst:     max,
			ExpiresIn: window,
		}),
	})
}

// seedDemoUsers ensures the demo accounts exist so tokens can be issued
// immediately after startup
func seedDemoUsers(log *zap.Logger) {
	demoUsers := []model.User{
		{Email: "demo@example.com", FullName: "Demo User", Role: model.RoleUser},
		{Email: "admin@example.com", FullName: "Admin User", Role: model.RoleAdmin},
	}

	db := database.GetDB()
	for _, u := range demoUsers {
		var existing model.User
		if err := db.Where("email = ?", u.Email).First(&existing).Error; err == nil {
			continue
		}
		if err := db.Create(&u).Error; err != nil {
			log.Warn("Failed to seed demo user", zap.String("email", u.Email), zap.Error(err))
			continue
		}
		log.Info("Seeded demo user", zap.String("email", u.Email), zap.String("role", u.Role))
	}
}

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting buyer lead service...", cfg.LogConfig()...)

	// Initialize JWT token handling
	jwtutil.Initialize(&cfg.JWT)

	// Initialize database
	if _, err := database.InitDB(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(&model.User{}, &model.Buyer{}, &model.BuyerHistory{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	seedDemoUsers(log)

	// Apply CSV import limits from config
	handler.SetImportLimits(cfg.Import.MaxRows, cfg.Import.MaxUploadBytes)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(prometheus.MetricsMiddleware())

	// Rate limiters mirror the per-route-class request budgets
	window := 15 * time.Minute
	apiLimiter := rateLimiter(100, window)
	writeLimiter := rateLimiter(50, window)
	importLimiter := rateLimiter(20, window)
	authLimiter := rateLimiter(10, window)

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	api := e.Group("/api", apiLimiter)

	// Authentication routes
	auth := api.Group("/auth")
	auth.POST("/demo-login", handler.DemoLogin, authLimiter)
	auth.GET("/me", handler.Me, middleware.AuthMiddleware)

	// Buyer routes - all require a valid token
	buyers := api.Group("/buyers", middleware.AuthMiddleware)
	buyers.GET("", handler.ListBuyers)
	buyers.POST("", handler.CreateBuyer, writeLimiter)
	buyers.GET("/export", handler.ExportBuyers)
	buyers.POST("/import", handler.ImportBuyers, importLimiter)
	buyers.GET("/:id", handler.GetBuyer)
	buyers.PUT("/:id", handler.UpdateBuyer, writeLimiter)
	buyers.DELETE("/:id", handler.DeleteBuyer, writeLimiter)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

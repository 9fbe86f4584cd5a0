package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/HamzaArc/Tontine-app-chat/internal/handlers"
	"github.com/HamzaArc/Tontine-app-chat/internal/metrics"
	appmw "github.com/HamzaArc/Tontine-app-chat/internal/middleware"
	"github.com/HamzaArc/Tontine-app-chat/internal/services"
	"github.com/HamzaArc/Tontine-app-chat/pkg/logging"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment")
	}
	logging.Setup()

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL not set")
		os.Exit(1)
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := services.AutoMigrate(db); err != nil {
		slog.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// Bearer tokens
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET not set")
		os.Exit(1)
	}
	ttlHours := 72
	if raw := os.Getenv("JWT_TTL_HOURS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			ttlHours = parsed
		}
	}
	jwtService := services.NewJWTService(secret, time.Duration(ttlHours)*time.Hour)

	// Redis is optional; without it group lists are uncached.
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			slog.Warn("redis unavailable, continuing without cache", "error", err)
			cache = nil
		}
	}

	// Payment gateway
	midtransService := services.NewMidtransService()
	checkoutService := services.NewCheckoutService(db, midtransService)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = appmw.CustomErrorHandler

	// Middleware
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(appmw.Metrics())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, jwtService)
	userHandler := handlers.NewUserHandler(db)
	groupHandler := handlers.NewGroupHandler(db, cache)
	membershipHandler := handlers.NewMembershipHandler(db)
	cycleHandler := handlers.NewCycleHandler(db)
	paymentHandler := handlers.NewPaymentHandler(db, checkoutService, midtransService)
	healthHandler := handlers.NewHealthHandler(db)

	// Public routes
	e.POST("/users", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.GET("/api/health", healthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.POST("/payments/midtrans/webhook", paymentHandler.MidtransWebhook)

	// Protected routes
	protected := e.Group("")
	protected.Use(appmw.RequireAuth(jwtService))

	protected.GET("/users/me", userHandler.Me)
	protected.PUT("/users/:id", userHandler.UpdateProfile)
	protected.PUT("/users/:id/password", userHandler.UpdatePassword)
	protected.PUT("/users/:id/settings", userHandler.UpdateSettings)
	protected.PUT("/users/:id/push-token", userHandler.UpdatePushToken)

	protected.GET("/groups", groupHandler.ListGroups)
	protected.POST("/groups", groupHandler.CreateGroup)
	protected.GET("/groups/:id", groupHandler.GetGroup)
	protected.PUT("/groups/:id", groupHandler.UpdateGroup)
	protected.DELETE("/groups/:id", groupHandler.DeleteGroup)

	protected.GET("/groups/:id/cycles", cycleHandler.ListCycles)
	protected.POST("/groups/:id/cycles", cycleHandler.CreateCycle)

	protected.GET("/memberships", membershipHandler.ListMemberships)
	protected.POST("/memberships", membershipHandler.AddMembership)
	protected.PUT("/memberships/:id", membershipHandler.UpdateRole)
	protected.DELETE("/memberships/:id", membershipHandler.RemoveMembership)

	protected.GET("/cycles/:id", cycleHandler.GetCycle)
	protected.PUT("/cycles/:id", cycleHandler.UpdateCycle)
	protected.DELETE("/cycles/:id", cycleHandler.DeleteCycle)
	protected.GET("/cycles/:id/payments", paymentHandler.ListForCycle)

	protected.PUT("/payments/:id/pay", paymentHandler.MarkPaid)
	protected.POST("/payments/:id/checkout", paymentHandler.Checkout)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	slog.Info("server starting", "port", port)
	if err := e.Start(":" + port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

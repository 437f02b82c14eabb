package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/quickcart-backend/config"
	"github.com/ikkim/quickcart-backend/internal/app/controller"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/internal/app/service"
	"github.com/ikkim/quickcart-backend/internal/cache"
	"github.com/ikkim/quickcart-backend/internal/db"
	"github.com/ikkim/quickcart-backend/internal/middleware"
	"github.com/ikkim/quickcart-backend/internal/router"
	"github.com/ikkim/quickcart-backend/internal/scheduler"
	"github.com/ikkim/quickcart-backend/internal/websocket"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/ikkim/quickcart-backend/pkg/payment/razorpay"
	"github.com/ikkim/quickcart-backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := cfg.Log.Level
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
		Component:   "api",
	})

	logger.Info("Starting QuickCart API server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// The ranking cache is optional; without Redis the ranking is computed per request.
	var ranking service.RankingStore
	redisClient, err := redis.Connect(context.Background(), &cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, most sold ranking will not be cached", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		ranking = cache.NewRankingCache(redisClient, cfg.Catalog.MostSoldTTL)
		defer redisClient.Close()
	}

	var gateway service.GatewayClient
	razorpayClient, err := razorpay.NewClient(razorpay.Config{
		KeyID:     cfg.Payment.Razorpay.KeyID,
		KeySecret: cfg.Payment.Razorpay.KeySecret,
		BaseURL:   cfg.Payment.Razorpay.BaseURL,
		Currency:  cfg.Payment.Razorpay.Currency,
	})
	if err != nil {
		logger.Warn("Razorpay is not configured, online payment is disabled", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		gateway = razorpayClient
	}

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	categoryRepo := repository.NewCategoryRepository(db.GetDB())
	orderRepo := repository.NewOrderRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	productService := service.NewProductService(productRepo, categoryRepo, orderRepo, ranking, cfg.Catalog.MostSoldLimit)
	paymentService := service.NewPaymentService(gateway, repository.NewGatewayOrderRepository(db.GetDB()), cfg.Payment.Razorpay.Currency)
	orderService := service.NewOrderService(orderRepo, paymentService, hub, db.GetDB())

	if ranking != nil {
		mostSold := scheduler.NewMostSoldScheduler(productService, cfg.Catalog.MostSoldSchedule)
		if err := mostSold.Start(); err != nil {
			logger.Fatal("Failed to start most sold scheduler", err)
		}
		defer mostSold.Stop()
	}

	r := router.NewRouter(
		controller.NewAuthController(authService),
		controller.NewProductController(productService),
		controller.NewOrderController(orderService),
		controller.NewPaymentController(paymentService),
		controller.NewOrderFeedController(hub, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(cfg.JWT.Secret),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	logger.Info("Server stopped successfully")
}

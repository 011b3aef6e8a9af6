package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"collabflow/auth"
	"collabflow/chatroom"
	"collabflow/config"
	"collabflow/contract"
	"collabflow/db"
	"collabflow/handler"
	"collabflow/middleware"
	"collabflow/pkg/logger"
	"collabflow/quotation"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	tokenExpiry := time.Duration(cfg.Auth.TokenExpireHours) * time.Hour

	authSvc := auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret, tokenExpiry)
	roomSvc := chatroom.NewService(chatroom.NewRepository(pool))
	contractRepo := contract.NewRepository(pool)
	contractSvc := contract.NewService(pool, contractRepo)
	quotationSvc := quotation.NewService(pool, quotation.NewRepository(pool), contractRepo)

	authHandler := handler.NewAuthHandler(authSvc)
	roomHandler := handler.NewChatroomHandler(roomSvc)
	quotationHandler := handler.NewQuotationHandler(quotationSvc, roomSvc)
	contractHandler := handler.NewContractHandler(contractSvc, roomSvc)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimit(100, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(middleware.Auth(authSvc))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/chatrooms", roomHandler.Open)
		protected.GET("/chatrooms", roomHandler.List)
		protected.GET("/chatrooms/:id", roomHandler.Get)
		protected.POST("/chatrooms/:id/messages", roomHandler.PostMessage)
		protected.GET("/chatrooms/:id/messages", roomHandler.ListMessages)
		protected.GET("/chatrooms/:id/quotations", quotationHandler.ListByChatroom)
		protected.GET("/chatrooms/:id/contracts", contractHandler.ListByChatroom)

		protected.POST("/quotations", quotationHandler.Create)
		protected.GET("/quotations/:id", quotationHandler.Get)
		protected.POST("/quotations/:id/accept", quotationHandler.Accept)
		protected.POST("/quotations/:id/decline", quotationHandler.Decline)

		protected.POST("/contracts", contractHandler.Create)
		protected.GET("/contracts", contractHandler.List)
		protected.GET("/contracts/:id", contractHandler.Get)
		protected.POST("/contracts/:id/sign", contractHandler.Sign)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}

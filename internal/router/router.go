package router

import (
	"time"

	"github.com/aistudio-dev/aistudio/internal/config"
	"github.com/aistudio-dev/aistudio/internal/handlers"
	"github.com/aistudio-dev/aistudio/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config) *gin.Engine {
	r := gin.Default()

	handlers.ConfigureWebSocket(cfg.AllowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", handlers.HealthCheck)
	r.Static("/uploads", cfg.UploadsDir)

	auth := r.Group("/auth")
	{
		auth.POST("/signup", handlers.Signup)
		auth.POST("/login", handlers.Login)
	}

	generations := r.Group("/generations", middleware.AuthMiddleware())
	{
		generations.POST("", middleware.RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst), handlers.CreateGeneration)
		generations.GET("", handlers.ListGenerations)
	}

	r.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocket)

	return r
}

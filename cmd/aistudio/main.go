package main

import (
	"os"

	"github.com/aistudio-dev/aistudio/db"
	"github.com/aistudio-dev/aistudio/internal/auth"
	"github.com/aistudio-dev/aistudio/internal/config"
	"github.com/aistudio-dev/aistudio/internal/handlers"
	"github.com/aistudio-dev/aistudio/internal/pipeline"
	"github.com/aistudio-dev/aistudio/internal/router"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.JWTSecret == config.DefaultJWTSecret {
		logrus.Warn("JWT_SECRET not set, using the development default")
	}

	if err := auth.Init(cfg.JWTSecret); err != nil {
		logrus.Fatalf("Failed to initialize token service: %v", err)
	}

	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		logrus.Fatalf("Failed to create uploads directory: %v", err)
	}

	if err := db.ConnectDatabase(cfg.DSN()); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	handlers.ConfigureGenerations(pipeline.New(cfg.UploadsDir))

	r := router.NewRouter(cfg)

	logrus.Infof("Server running on port %s (%s)", cfg.Port, cfg.Env)

	if err := r.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}

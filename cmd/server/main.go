package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cinehall/seatlink/internal/archive"
	"github.com/cinehall/seatlink/internal/config"
	"github.com/cinehall/seatlink/internal/httpapi"
	"github.com/cinehall/seatlink/internal/hub"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var log *zap.Logger
	var err error
	if cfg.Env == "prod" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var arc archive.Archive
	if cfg.RedisAddr != "" {
		r, err := archive.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("booking archive unavailable, running without it", zap.Error(err))
		} else {
			arc = r
		}
	}

	ctx := context.Background()
	h := hub.NewHub(ctx, cfg.HoldTTL, arc, log)

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, log)

	log.Info("listening", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

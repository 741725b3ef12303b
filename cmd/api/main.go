package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"lassoc/adapters/excel"
	"lassoc/adapters/postgres"
	"lassoc/app"
	"lassoc/internal/config"
	"lassoc/ports"
	"lassoc/ui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[API] no .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] configuration error: %v", err)
	}
	if cfg.Data.DataFile == "" {
		log.Fatal("[API] DATA_FILE is required")
	}

	frame, err := excel.NewDataReader(cfg.Data.DataFile).Load()
	if err != nil {
		log.Fatalf("[API] failed to load data: %v", err)
	}

	var repo ports.ResultRepository
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("[API] database connection failed: %v", err)
		}
		defer db.Close()
		pgRepo := postgres.NewResultRepository(db)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("[API] schema migration failed: %v", err)
		}
		repo = pgRepo
	} else {
		log.Println("[API] DATABASE_URL unset, results will not be persisted")
	}

	svc := app.NewAnalysisService(frame, repo, cfg.Analysis)
	server := ui.NewServer(svc, cfg.Server.GinMode)
	if err := server.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("[API] server stopped: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"time"

	"meetsumgo/internal/api"
	"meetsumgo/internal/config"
	"meetsumgo/internal/redis"
	"meetsumgo/internal/service/recorder"
	"meetsumgo/internal/service/summarizer"
	"meetsumgo/internal/storage"
	"meetsumgo/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("MEETSUMGO_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("MEETSUMGO_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: transcripts, sessions, summaries, edits, outcomes
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// Redis only backs the outcome-history cache; run without it if down.
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, outcome cache disabled: %v", err)
		rdb = nil
	}
	defer rdb.Close()

	ctx := context.Background()
	invoker, err := summarizer.NewInvoker(ctx, cfg)
	if err != nil {
		log.Fatalf("init completion models: %v", err)
	}

	recorderService := recorder.NewService(db, rdb)
	pipeline := summarizer.NewService(cfg, invoker, recorderService)

	idleTimeout := time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute
	dispatcher := worker.NewDispatcher(
		cfg.BasicConfig.MinWorkers,
		cfg.BasicConfig.MaxWorkers,
		cfg.BasicConfig.QueueSize,
		pipeline,
		idleTimeout,
	)

	handlers := api.NewHandler(recorderService, pipeline, dispatcher)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"tokoscout/internal/config"
	"tokoscout/internal/core/history"
	"tokoscout/internal/core/scrape"
	"tokoscout/internal/core/session"
	"tokoscout/internal/logger"
	rds "tokoscout/internal/platform/redis"
	tasks "tokoscout/internal/platform/tasks"
	"tokoscout/internal/server"
	"tokoscout/internal/worker"
)

func main() {
	cfg := config.Load()
	log.Printf("[tokoscout] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{"default": 1},
	})

	selectors, err := scrape.LoadSelectors(cfg.SelectorsPath)
	if err != nil {
		log.Fatalf("load selectors: %v", err)
	}

	// Core services
	historyStore := history.NewStore(context.Background(), redisSvc)
	scrapeSvc := scrape.NewService(redisSvc, selectors)
	engine := scrape.NewEngine(taskClient, redisSvc, cfg.TaskMaxRetries)
	console := session.NewController(engine, historyStore)

	// Worker
	mux := worker.NewMux()
	mux.Handle(scrape.TaskTypeSearch, scrapeSvc.HandleSearchTask)
	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Tokoscout Console",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	deps := server.Dependencies{
		Console: console,
		History: historyStore,
		Redis:   redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)
	healthHandler.SetReady()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		console.Close()
		asynqServer.Shutdown()
		_ = taskClient.Close()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}

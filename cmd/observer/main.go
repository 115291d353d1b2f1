package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/observer"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/redisconn"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/utils"
)

func main() {
	logger := utils.NewLogger()
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pools, err := redisconn.Dial(ctx, cfg)
	if err != nil {
		log.Fatalf("expire-observer: %v", err)
	}
	defer pools.Close()

	stream := event_queue.NewStream(pools.EventQueue, cfg.RedisStreamKey, cfg.RedisGroup)
	obs := observer.New(pools.Rooms, stream, logger)

	log.Printf("expire-observer listening on %s", observer.Channel())
	if err := obs.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("expire-observer: %v", err)
	}
}

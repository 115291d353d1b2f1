package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/gateway"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/questions"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/redisconn"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/review"
	roomManager "github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/room_management"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/routers"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/utils"
)

func main() {
	logger := utils.NewLogger()
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	pools, err := redisconn.Dial(ctx, cfg)
	if err != nil {
		log.Fatalf("collaboration-svc: %v", err)
	}
	defer pools.Close()

	ws := gateway.NewWSManager(cfg.GatewayWebsocketURL, logger)
	if err := ws.Connect(); err != nil {
		logger.Warn("gateway websocket unavailable at startup; will redial on send", zap.Error(err))
	}
	defer ws.Close()

	events := event_queue.New(pools.EventQueue)
	stream := event_queue.NewStream(pools.EventQueue, cfg.RedisStreamKey, cfg.RedisGroup)

	rm := roomManager.NewRoomManager(cfg, pools.Rooms, events,
		ws,
		questions.NewClient(cfg.QuestionPoolURL),
		review.NewClient(cfg.QuestionHistoryURL),
		logger)

	registry := gateway.NewRegistryClient(cfg, "collaboration-svc", routers.CollabRegistryRoutes(), logger)
	if err := registry.Register(ctx); err != nil {
		logger.Warn("gateway registration failed; continuing unregistered")
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	go registry.RunHeartbeat(workerCtx)
	go rm.RunEventPoller(workerCtx)

	consumer := roomManager.NewExpiryConsumer(rm, stream, registry.InstanceID(), logger)
	go func() {
		if err := consumer.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("expiry consumer stopped", zap.Error(err))
		}
	}()

	r := chi.NewRouter()
	// No global timeout middleware here: the heartbeat websocket stays
	// open for the life of a room.
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	routers.CollabRoutes(r, rm, cfg.FrontEndURL)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	addr := ":" + cfg.Port
	log.Printf("collaboration-svc listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

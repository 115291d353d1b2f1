package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/event_queue"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/gateway"
	matchManager "github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/match_management"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/redisconn"
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
		log.Fatalf("matching-svc: %v", err)
	}
	defer pools.Close()

	events := event_queue.New(pools.EventQueue)
	mm := matchManager.NewMatchmaker(cfg, pools.Matchmaking, pools.Confirmation, events, logger)

	registry := gateway.NewRegistryClient(cfg, "matching-svc", routers.MatchRegistryRoutes(), logger)
	if err := registry.Register(ctx); err != nil {
		logger.Warn("gateway registration failed; continuing unregistered")
	}
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go registry.RunHeartbeat(hbCtx)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		// find_match holds the request open for the full wait budget.
		middleware.Timeout(cfg.MatchWaitTimeout+30*time.Second),
	)

	routers.MatchRoutes(r, mm, cfg.FrontEndURL)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	addr := ":" + cfg.Port
	log.Printf("matching-svc listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

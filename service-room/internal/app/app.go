package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"game-party/pkg/auth"
	"game-party/pkg/config"
	"game-party/pkg/database"
	"game-party/pkg/logger"
	redisclient "game-party/pkg/redis"
	"game-party/pkg/storage"

	"game-party/service-room/internal/broadcast"
	"game-party/service-room/internal/correlator"
	"game-party/service-room/internal/fanout"
	"game-party/service-room/internal/handler"
	"game-party/service-room/internal/recovery"
	"game-party/service-room/internal/registry"
	"game-party/service-room/internal/repository"
	"game-party/service-room/internal/scheduler"
	roomService "game-party/service-room/internal/service/room"
	"game-party/service-room/internal/stream"
)

type appServer struct {
	config          *config.Config
	redis           *redisclient.Client
	roomHandler     *handler.RoomHandler
	recoveryHandler *handler.RecoveryHandler
	wsHandler       *handler.WsHandler
	consumer        *stream.Consumer
	subscriber      *fanout.Subscriber
}

// NewAppServer wires the room service and its background workers
func NewAppServer(cfg *config.Config) *appServer {
	redisClient, err := redisclient.NewClient(cfg)
	if err != nil {
		logger.Fatalf("failed to initialize Redis: %v", err)
	}

	// shared infrastructure
	reg := registry.NewRegistry()
	sched := scheduler.New()
	corr := correlator.New(cfg.Room.AwaitTimeout)
	rec := recovery.NewLog(redisClient, &cfg.Recovery)
	bcast := broadcast.New(reg, rec, fanout.NewPublisher(redisClient, &cfg.Fanout))
	store := roomService.NewStore(redisClient, &cfg.Room)
	publisher := stream.NewPublisher(redisClient, &cfg.Stream)

	// roulette history is optional; the service runs without Postgres
	var results *repository.ResultStore
	if cfg.Database.Enabled() {
		db, err := database.NewPgDB(cfg)
		if err != nil {
			logger.Fatalf("failed to initialize database: %v", err)
		}
		results = repository.NewResultStore(db)
		if err := results.EnsureSchema(context.Background()); err != nil {
			logger.Fatalf("failed to prepare result schema: %v", err)
		}
	}

	// QR join links need object storage and a token signer
	storageProvider, err := storage.NewStorageProvider(context.Background(), &cfg.Storage)
	if err != nil {
		logger.Fatalf("failed to initialize storage provider: %v", err)
	}
	issuer := auth.NewJoinTokenIssuer(cfg.JoinToken.Secret, cfg.JoinToken.TTL)
	qrJob := roomService.NewQrCodeJob(cfg.PublicBaseURL, issuer, storageProvider, publisher)

	svc := roomService.NewService(cfg, store, publisher, corr, bcast, reg, sched, rec, results, qrJob)

	wsHandler := handler.NewWsHandler(svc)
	bcast.SetTransport(wsHandler)

	return &appServer{
		config:          cfg,
		redis:           redisClient,
		roomHandler:     handler.NewRoomHandler(svc, issuer, results),
		recoveryHandler: handler.NewRecoveryHandler(svc),
		wsHandler:       wsHandler,
		consumer:        stream.NewConsumer(redisClient, &cfg.Stream, svc.Handlers()),
		subscriber:      fanout.NewSubscriber(redisClient, &cfg.Fanout, bcast.DeliverLocal),
	}
}

// Serve starts the HTTP server and the background consumers, then blocks
// until a shutdown signal arrives.
func (a *appServer) Serve() {
	workerCtx, stopWorkers := context.WithCancel(context.Background())

	go func() {
		if err := a.consumer.Run(workerCtx); err != nil {
			logger.Fatalf("command consumer stopped: %v", err)
		}
	}()
	go func() {
		if err := a.subscriber.Run(workerCtx); err != nil {
			logger.Errorf(err, "fan-out subscriber stopped")
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.config.Port),
		Handler: a.RegisterHandlers(),
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	logger.Infof("server started on port %s", a.config.Port)

	a.gracefulShutdown(server, stopWorkers)

	logger.Info("server shutdown complete")
}

func (a *appServer) gracefulShutdown(server *http.Server, stopWorkers context.CancelFunc) {
	ctx, stopCtx := context.WithCancel(context.Background())

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP) // wait for the sigterm
		<-signals

		// we received an os signal, shut down.
		stopWorkers()
		err := server.Shutdown(ctx)
		if err != nil {
			logger.Error(err, "server shutdown error")
		} else {
			logger.Info("server graceful shutdown")
		}

		if err := a.redis.Close(); err != nil {
			logger.Error(err, "failed to close Redis connection")
		}

		stopCtx()
	}()

	<-ctx.Done()
}

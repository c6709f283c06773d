package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/broadcast"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/config"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/consumer"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/coordinator"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/handler"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/hub"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/metrics"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/reconciler"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/repository"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/service"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/store"
	"github.com/weiawesome/wes-io-social/pkg/database"
	"github.com/weiawesome/wes-io-social/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/middleware"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

const serviceName = "interaction-service"

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: serviceName,
		InstanceID:  cfg.PubSub.Kafka.InstanceID,
	})
	logger := pkglog.L()

	// 3. Init DB and migrate the interaction tables
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	if err := repository.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// 4. Init Redis counter cache; counts fall back to the database without it
	var counterStore store.CounterStore
	if cfg.Redis.Address != "" {
		rs, err := store.NewRedisCounterStore(store.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.CountTTL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to redis, counter cache disabled")
		} else {
			counterStore = rs
			defer rs.Close()
			logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
		}
	}

	// 5. Init pub/sub transport
	ps, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create pubsub")
	}
	defer ps.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("pubsub ready")

	// 6. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Live hub, fan-out workers and the pub/sub relay feeding the hub
	liveHub := hub.NewHub(cfg.WebSocket, cfg.Broadcast.StreamBuffer, m)
	go liveHub.Run()

	fanout := broadcast.NewFanout(ps, broadcast.Config{
		QueueSize:     cfg.Broadcast.QueueSize,
		Workers:       cfg.Broadcast.Workers,
		NotifyOnUnset: cfg.Broadcast.NotifyOnUnset,
	}, m)
	fanout.Start(ctx)

	relay := broadcast.NewRelay(ps, liveHub)
	go relay.Run(ctx)

	// 8. Repositories, coordinator, service
	members := repository.NewGormMembershipRepository(db)
	counters := repository.NewGormCounterRepository(db)
	targets := repository.NewGormTargetRepository(db)

	opts := []coordinator.Option{coordinator.WithMetrics(m)}
	if counterStore != nil {
		opts = append(opts, coordinator.WithCache(counterStore))
	}
	coord := coordinator.New(
		repository.NewGormTransactor(db),
		members,
		counters,
		targets,
		fanout,
		coordinator.Config{
			Retry: coordinator.RetryPolicy{
				MaxAttempts: cfg.Coordinator.MaxAttempts,
				BaseDelay:   cfg.Coordinator.BaseDelay,
				Jitter:      cfg.Coordinator.Jitter,
			},
			ReadBackTimeout:  cfg.Coordinator.ReadBackTimeout,
			BatchParallelism: cfg.Batch.MaxParallelGroups,
		},
		opts...,
	)
	svc := service.NewInteractionService(coord, members, counters, targets, counterStore,
		service.Config{MaxBatchItems: cfg.Batch.MaxItems}, m)

	// 9. Token verification
	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load jwt public key")
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	// 10. Init Kafka CDC consumer
	var cdcConsumer *consumer.ConfluentConsumer
	if cfg.CDC.Enabled && cfg.CDC.Brokers != "" && counterStore != nil {
		cc, err := consumer.NewConfluentConsumer(cfg.CDC.Brokers, cfg.CDC.Topic, cfg.CDC.GroupID, svc)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, CDC updates disabled")
		} else if err := cc.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to start kafka consumer")
		} else {
			cdcConsumer = cc
			logger.Info().Str("topic", cfg.CDC.Topic).Msg("kafka CDC consumer started")
		}
	} else {
		logger.Warn().Msg("CDC consumer disabled")
	}

	// 11. Init reconciler
	var rec *reconciler.Reconciler
	if cfg.Reconciler.Enabled && counterStore != nil {
		rec = reconciler.New(repository.NewGormTransactor(db), counterStore, counters, members, cfg.Reconciler, m)
		rec.Start(ctx)
		logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("top_n", cfg.Reconciler.TopN).Msg("reconciler started")
	}

	// 12. API server (gin)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	handler.NewHandler(svc, authMiddleware).RegisterRoutes(r)

	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	apiSrv := &http.Server{Addr: apiAddr, Handler: r}

	// 13. Live server (gorilla mux + websocket)
	lr := mux.NewRouter()
	lr.Use(pkglog.HTTPMiddleware(logger))
	handler.NewWSHandler(liveHub, verifier).RegisterRoutes(lr)

	liveAddr := fmt.Sprintf("%s:%d", cfg.Live.Host, cfg.Live.Port)
	liveSrv := &http.Server{Addr: liveAddr, Handler: lr}

	for _, s := range []*http.Server{apiSrv, liveSrv} {
		go func(s *http.Server) {
			logger.Info().Str("addr", s.Addr).Msg(serviceName + " listening")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal().Err(err).Str("addr", s.Addr).Msg("HTTP server error")
			}
		}(s)
	}

	// 14. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// 1. stop accepting requests so no new toggles reach the fan-out
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		for _, s := range []*http.Server{apiSrv, liveSrv} {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Str("addr", s.Addr).Msg("HTTP server forced to shutdown")
			}
		}

		// 2. drain queued broadcasts while the transport is still up
		fanout.Stop()
		<-fanout.Done()

		// 3. cancel() stops the CDC loop, reconciler ticker and relay
		cancel()

		if cdcConsumer != nil {
			if err := cdcConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		if rec != nil {
			rec.Stop()
			<-rec.Done()
		}

		<-relay.Done()

		// 4. close live clients and streams
		liveHub.Stop()
		<-liveHub.Done()
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg(serviceName + " stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}

func newVerifier(cfg config.AuthConfig) (*jwt.Verifier, error) {
	if cfg.PublicKey != "" {
		return jwt.NewVerifier([]byte(cfg.PublicKey), cfg.Issuer)
	}
	if cfg.PublicKeyPath == "" {
		return nil, errors.New("auth.public_key or auth.public_key_path is required")
	}
	return jwt.NewVerifierFromFile(cfg.PublicKeyPath, cfg.Issuer)
}

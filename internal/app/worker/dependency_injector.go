package wapp

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/homeworkai/backend/internal/infra/config"
	"github.com/homeworkai/backend/internal/infra/queue"
	"github.com/homeworkai/backend/internal/infra/store/record"
	"github.com/homeworkai/backend/internal/solver"
	"github.com/homeworkai/backend/internal/worker"
)

const defaultCfgPath = "./configs/local.yaml"

type dependencyInjector struct {
	cfg    *config.Config
	logger *slog.Logger

	redis    *redis.Client
	analyses worker.AnalysisStore
	parses   worker.ParseStore

	natsConn *nats.Conn
	js       nats.JetStreamContext

	solver   worker.Solver
	consumer *worker.Consumer
}

func newDI() *dependencyInjector {
	return &dependencyInjector{}
}

func cfgPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultCfgPath
}

func (di *dependencyInjector) Config() *config.Config {
	if di.cfg == nil {
		di.cfg = config.MustLoad(cfgPath())
	}

	return di.cfg
}

func (di *dependencyInjector) Logger() *slog.Logger {
	if di.logger == nil {
		di.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(di.logger)
	return di.logger
}

func (di *dependencyInjector) RedisClient(ctx context.Context) *redis.Client {
	if di.redis == nil {
		cfg := di.Config().Redis
		client, err := record.NewClient(record.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			log.Fatalf("redis connect: %+v", err)
		}

		di.redis = client
		di.Logger().Info("connected to redis", slog.String("addr", cfg.Addr))
	}
	return di.redis
}

func (di *dependencyInjector) AnalysisStore(ctx context.Context) worker.AnalysisStore {
	if di.analyses == nil {
		di.analyses = record.NewAnalysisStore(di.RedisClient(ctx))
	}
	return di.analyses
}

func (di *dependencyInjector) ParseStore(ctx context.Context) worker.ParseStore {
	if di.parses == nil {
		di.parses = record.NewParseStore(di.RedisClient(ctx))
	}
	return di.parses
}

func (di *dependencyInjector) NATSConn(ctx context.Context) *nats.Conn {
	if di.natsConn == nil {
		cfg := di.Config().NATS
		nc, err := queue.Connect(queue.Config{
			URL:           cfg.URL,
			Name:          cfg.Name,
			MaxReconnects: cfg.MaxReconnects,
		})
		if err != nil {
			log.Fatalf("NATS connect: %+v", err)
		}
		di.natsConn = nc
	}
	return di.natsConn
}

func (di *dependencyInjector) JetStream(ctx context.Context) nats.JetStreamContext {
	if di.js == nil {
		cfg := di.Config().NATS
		js, err := queue.NewJetStream(di.NATSConn(ctx), queue.Config{
			Stream:  cfg.Stream,
			Subject: cfg.Subject,
		})
		if err != nil {
			log.Fatalf("DI JetStream: %+v", err)
		}

		di.js = js
	}
	return di.js
}

func (di *dependencyInjector) Solver() worker.Solver {
	if di.solver == nil {
		cfg := di.Config().Solver
		client, err := solver.NewClient(solver.Config{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			log.Fatalf("solver client: %+v", err)
		}
		di.solver = client
	}
	return di.solver
}

func (di *dependencyInjector) Consumer(ctx context.Context) *worker.Consumer {
	if di.consumer == nil {
		cfg := di.Config()
		di.consumer = worker.New(
			worker.Config{
				Stream:       cfg.NATS.Stream,
				Subject:      cfg.NATS.Subject,
				Durable:      cfg.NATS.Durable,
				PoolSize:     cfg.Worker.PoolSize,
				SolveTimeout: cfg.Worker.SolveTimeout,
			},
			di.JetStream(ctx),
			di.AnalysisStore(ctx),
			di.ParseStore(ctx),
			di.Solver(),
		)
	}
	return di.consumer
}

func (di *dependencyInjector) Close() {
	if di.natsConn != nil {
		di.natsConn.Close()
	}
	if di.redis != nil {
		if err := di.redis.Close(); err != nil {
			slog.Warn("redis close", slog.String("error", err.Error()))
		}
	}
}

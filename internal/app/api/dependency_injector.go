package app

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/homeworkai/backend/internal/auth"
	"github.com/homeworkai/backend/internal/infra/config"
	"github.com/homeworkai/backend/internal/infra/queue"
	"github.com/homeworkai/backend/internal/infra/store/object"
	"github.com/homeworkai/backend/internal/infra/store/record"
	"github.com/homeworkai/backend/internal/pdfdoc"
	"github.com/homeworkai/backend/internal/transport"
	"github.com/homeworkai/backend/internal/usecase"
)

const defaultCfgPath = "./configs/local.yaml"

type Router interface {
	MountRoutes(*http.ServeMux) *http.ServeMux
}

type dependencyInjector struct {
	cfg    *config.Config
	logger *slog.Logger

	redis    *redis.Client
	uploads  usecase.UploadStore
	parses   usecase.ParseStore
	analyses usecase.AnalysisStore

	objects usecase.ObjectStore

	natsConn *nats.Conn
	js       nats.JetStreamContext
	jobQueue usecase.JobQueue

	verifier auth.Verifier
	usecase  transport.Usecase
	handler  transport.Handler
	router   Router
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

func (di *dependencyInjector) UploadStore(ctx context.Context) usecase.UploadStore {
	if di.uploads == nil {
		di.uploads = record.NewUploadStore(di.RedisClient(ctx))
	}
	return di.uploads
}

func (di *dependencyInjector) ParseStore(ctx context.Context) usecase.ParseStore {
	if di.parses == nil {
		di.parses = record.NewParseStore(di.RedisClient(ctx))
	}
	return di.parses
}

func (di *dependencyInjector) AnalysisStore(ctx context.Context) usecase.AnalysisStore {
	if di.analyses == nil {
		di.analyses = record.NewAnalysisStore(di.RedisClient(ctx))
	}
	return di.analyses
}

func (di *dependencyInjector) ObjectStore(ctx context.Context) usecase.ObjectStore {
	if di.objects == nil {
		cfg := di.Config().MinIO

		store, err := object.NewMinIOStore(ctx, object.Config{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			Bucket:          cfg.Bucket,
		})
		if err != nil {
			log.Fatalf("ObjectStore minio: %+v", err)
		}
		di.Logger().Info(
			"initialized MinIO object store",
			slog.String("endpoint", cfg.Endpoint),
			slog.String("bucket", cfg.Bucket),
		)

		di.objects = store
	}

	return di.objects
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

func (di *dependencyInjector) JobQueue(ctx context.Context) usecase.JobQueue {
	if di.jobQueue == nil {
		di.jobQueue = queue.NewProducer(di.JetStream(ctx), di.Config().NATS.Subject)
	}
	return di.jobQueue
}

func (di *dependencyInjector) Verifier() auth.Verifier {
	if di.verifier == nil {
		di.verifier = auth.NewHMACVerifier(di.Config().Auth.Secret)
	}
	return di.verifier
}

func (di *dependencyInjector) Usecase(ctx context.Context) transport.Usecase {
	if di.usecase == nil {
		cfg := di.Config()
		di.usecase = usecase.New(
			cfg.PresignExpiry,
			di.UploadStore(ctx),
			di.ParseStore(ctx),
			di.AnalysisStore(ctx),
			di.ObjectStore(ctx),
			di.JobQueue(ctx),
			pdfdoc.NewExtractor(),
			pdfdoc.NewRenderer(),
		)
	}

	return di.usecase
}

func (di *dependencyInjector) Handler(ctx context.Context) transport.Handler {
	if di.handler == nil {
		di.handler = transport.NewHandler(di.Config().MaxUploadMb, di.Usecase(ctx))
	}

	return di.handler
}

func (di *dependencyInjector) Router(ctx context.Context) Router {
	if di.router == nil {
		di.router = transport.NewRouter(
			di.Handler(ctx),
			transport.AuthMiddleware(di.Verifier()),
		)
	}

	return di.router
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

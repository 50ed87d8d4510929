package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	PresignExpiry time.Duration `yaml:"presign_expiry"`
	MaxUploadMb   int64         `yaml:"max_upload_mb"`

	Worker Worker `yaml:"worker"`
	Auth   Auth   `yaml:"auth"`
	Redis  Redis  `yaml:"redis"`
	MinIO  MinIO  `yaml:"minio"`
	NATS   NATS   `yaml:"nats"`
	Solver Solver `yaml:"solver"`
}

type Worker struct {
	PoolSize     int           `yaml:"pool_size"`
	SolveTimeout time.Duration `yaml:"solve_timeout"`
}

type Auth struct {
	// Secret comes from AUTH_SECRET when unset in the file.
	Secret string `yaml:"secret"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Bucket          string `yaml:"bucket"`
}

type NATS struct {
	URL           string `yaml:"url"`
	Name          string `yaml:"name"`
	MaxReconnects int    `yaml:"max_reconnects"`
	Stream        string `yaml:"stream"`
	Subject       string `yaml:"subject"`
	Durable       string `yaml:"durable"`
}

type Solver struct {
	URL string `yaml:"url"`
	// APIKey comes from SOLVER_API_KEY when unset in the file.
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

func MustLoad(path string) *Config {
	// Optional .env overlay for local runs; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("config: cannot read file %q: %v", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("config: cannot unmarshal yaml: %v", err)
	}

	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = os.Getenv("AUTH_SECRET")
	}
	if cfg.Solver.APIKey == "" {
		cfg.Solver.APIKey = os.Getenv("SOLVER_API_KEY")
	}

	if cfg.Addr == "" {
		log.Fatalf("config: addr is empty")
	}
	if cfg.MinIO.Bucket == "" {
		log.Fatalf("config: minio.bucket is empty")
	}
	if cfg.NATS.Subject == "" {
		log.Fatalf("config: nats.subject is empty")
	}
	if cfg.NATS.Stream == "" {
		cfg.NATS.Stream = "ANALYSIS"
	}
	if cfg.NATS.Durable == "" {
		cfg.NATS.Durable = "analysis-worker"
	}
	if cfg.Solver.URL == "" {
		log.Fatalf("config: solver.url is empty")
	}
	if cfg.Auth.Secret == "" {
		log.Fatalf("config: auth secret is empty (set auth.secret or AUTH_SECRET)")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	if cfg.MaxUploadMb <= 0 {
		cfg.MaxUploadMb = 50
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 4
	}
	if cfg.Worker.SolveTimeout <= 0 {
		cfg.Worker.SolveTimeout = 2 * time.Minute
	}

	return &cfg
}

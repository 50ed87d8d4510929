// Package record keeps the durable Upload, ParseResult and AnalysisResult
// records in redis: one hash per record plus small secondary indexes.
package record

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

func uploadKey(id string) string {
	return "upload:" + id
}

func uploadByKeyKey(bucket, key string) string {
	return "upload:bykey:" + bucket + ":" + key
}

func userUploadsKey(userID string) string {
	return "user:" + userID + ":uploads"
}

func parseKey(uploadID string) string {
	return "parse:" + uploadID
}

func analysisKey(id string) string {
	return "analysis:" + id
}

func uploadAnalysesKey(uploadID string) string {
	return "upload:" + uploadID + ":analyses"
}

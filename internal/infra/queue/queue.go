// Package queue is the durable analysis job channel on NATS JetStream:
// at-least-once delivery, explicit acks, minimal JSON payloads.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/homeworkai/backend/internal/domain"
)

type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	Stream        string
	Subject       string
	MessageTTL    time.Duration
}

func Connect(cfg Config) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// NewJetStream opens a JetStream context and makes sure the analysis
// stream exists (file-backed, so jobs survive broker restarts).
func NewJetStream(nc *nats.Conn, cfg Config) (nats.JetStreamContext, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("JetStream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
		Storage:  nats.FileStorage,
		Replicas: 1,
		MaxAge:   cfg.MessageTTL,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("JetStream AddStream: %w", err)
	}

	return js, nil
}

type Producer struct {
	js      nats.JetStreamContext
	subject string
}

func NewProducer(js nats.JetStreamContext, subject string) *Producer {
	return &Producer{js: js, subject: subject}
}

// Enqueue publishes a job. Callers must have created the AnalysisResult
// record first; a worker may dequeue the instant the publish is acked.
func (p *Producer) Enqueue(ctx context.Context, job domain.Job) error {
	if job.AnalysisID == "" || job.UploadID == "" {
		return fmt.Errorf("enqueue: incomplete job payload")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("enqueue: marshal job: %w", err)
	}

	ack, err := p.js.PublishMsg(&nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("enqueue analysis %s: publish failed: %w", job.AnalysisID, err)
	}

	slog.Debug("job enqueued",
		slog.String("analysis_id", job.AnalysisID),
		slog.String("upload_id", job.UploadID),
		slog.String("subject", p.subject),
		slog.String("stream", ack.Stream),
		slog.Uint64("seq", ack.Sequence),
	)
	return nil
}

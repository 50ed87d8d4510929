// Package worker consumes analysis jobs and drives each AnalysisResult
// through queued -> running -> {completed, failed}. Delivery is
// at-least-once; the worker re-reads durable state on every job instead
// of trusting the payload.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/homeworkai/backend/internal/domain"
	"github.com/homeworkai/backend/internal/solver"
	"github.com/homeworkai/backend/internal/span"
)

// errDrop marks a job that must be acked without redelivery: either the
// outcome is already durably recorded on the analysis, or there is no
// record to retry against.
var errDrop = errors.New("drop job")

type AnalysisStore interface {
	Analysis(ctx context.Context, id string) (domain.AnalysisResult, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, output []byte) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type ParseStore interface {
	ParseResult(ctx context.Context, uploadID string) (domain.ParseResult, error)
}

type Solver interface {
	Solve(ctx context.Context, spans []string) (domain.Solution, []byte, error)
}

type Config struct {
	Stream       string
	Subject      string
	Durable      string
	PoolSize     int
	SolveTimeout time.Duration
}

type Consumer struct {
	cfg Config

	js       nats.JetStreamContext
	analyses AnalysisStore
	parses   ParseStore
	solver   Solver
	spanOpts span.Options

	sub *nats.Subscription
}

func New(
	cfg Config,
	js nats.JetStreamContext,
	analyses AnalysisStore,
	parses ParseStore,
	sv Solver,
) *Consumer {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if cfg.SolveTimeout <= 0 {
		cfg.SolveTimeout = 2 * time.Minute
	}

	opts := span.DefaultOptions()
	opts.PrependPrompt = solver.SolverPrompt

	return &Consumer{
		cfg:      cfg,
		js:       js,
		analyses: analyses,
		parses:   parses,
		solver:   sv,
		spanOpts: opts,
	}
}

// Run subscribes and consumes until ctx is canceled, then drains.
func (c *Consumer) Run(ctx context.Context) error {
	_, err := c.js.AddConsumer(c.cfg.Stream, &nats.ConsumerConfig{
		Durable:       c.cfg.Durable,
		AckPolicy:     nats.AckExplicitPolicy,
		FilterSubject: c.cfg.Subject,
		MaxAckPending: c.cfg.PoolSize * 2,
	})
	if err != nil && !errors.Is(err, nats.ErrConsumerNameAlreadyInUse) {
		return fmt.Errorf("JetStream AddConsumer: %w", err)
	}

	sub, err := c.js.PullSubscribe(c.cfg.Subject, c.cfg.Durable)
	if err != nil {
		return fmt.Errorf("JetStream PullSubscribe: %w", err)
	}
	c.sub = sub

	slog.Info("analysis worker running",
		slog.Int("workers", c.cfg.PoolSize),
		slog.String("subject", c.cfg.Subject),
	)

	g, gCtx := errgroup.WithContext(ctx)
	for range c.cfg.PoolSize {
		g.Go(func() error {
			c.consume(gCtx)
			return nil
		})
	}
	err = g.Wait()

	if drainErr := c.sub.Drain(); drainErr != nil {
		slog.Warn("NATS subscription drain", slog.String("error", drainErr.Error()))
	}
	slog.Info("analysis worker stopped")
	return err
}

func (c *Consumer) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(1, nats.Context(ctx))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			slog.Warn("NATS Fetch", slog.String("error", err.Error()))
			time.Sleep(100 * time.Millisecond)
			continue
		}

		for _, msg := range msgs {
			if err := c.process(ctx, msg.Data); err != nil {
				slog.Error("process job", slog.String("error", err.Error()))
				if !errors.Is(err, errDrop) {
					_ = msg.Nak()
					continue
				}
			}
			if err := msg.Ack(); err != nil {
				slog.Warn("NATS Ack", slog.String("error", err.Error()))
			}
		}
	}
}

// process runs the per-job state machine. A nil or errDrop return acks
// the message; anything else naks it for redelivery.
func (c *Consumer) process(ctx context.Context, data []byte) (err error) {
	var job domain.Job
	if jErr := json.Unmarshal(data, &job); jErr != nil || job.AnalysisID == "" || job.UploadID == "" {
		return fmt.Errorf("%w: malformed job payload %q", errDrop, data)
	}

	logger := slog.With(
		slog.String("analysis_id", job.AnalysisID),
		slog.String("upload_id", job.UploadID),
	)

	a, err := c.analyses.Analysis(ctx, job.AnalysisID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: analysis %s not found", errDrop, job.AnalysisID)
		}
		// record store hiccup: redeliver, the job itself is fine
		return fmt.Errorf("load analysis: %w", err)
	}

	// Redelivered duplicate of a finished job: nothing left to do.
	if a.Status.Terminal() {
		logger.Info("skipping terminal analysis", slog.String("status", string(a.Status)))
		return nil
	}

	// Whatever goes wrong from here on, never leave the record stuck in
	// "running" when this worker is the one that broke.
	defer func() {
		if rec := recover(); rec != nil {
			c.markFailed(ctx, job.AnalysisID, fmt.Sprintf("internal: %v", rec))
			err = fmt.Errorf("%w: panic while processing: %v", errDrop, rec)
		}
	}()

	pr, err := c.parses.ParseResult(ctx, job.UploadID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.markFailed(ctx, job.AnalysisID, "Parse result not found")
			return fmt.Errorf("%w: parse result for upload %s not found", errDrop, job.UploadID)
		}
		return fmt.Errorf("load parse result: %w", err)
	}
	if strings.TrimSpace(pr.Text) == "" {
		c.markFailed(ctx, job.AnalysisID, "Parse result not found")
		return fmt.Errorf("%w: parse result for upload %s is empty", errDrop, job.UploadID)
	}

	if mErr := c.analyses.MarkRunning(ctx, job.AnalysisID); mErr != nil {
		// record store hiccup before any work happened: retryable
		return fmt.Errorf("mark running: %w", mErr)
	}
	logger.Info("analysis running")

	spans := span.Build(pr.Text, c.spanOpts)

	solveCtx, cancel := context.WithTimeout(ctx, c.cfg.SolveTimeout)
	defer cancel()

	_, raw, sErr := c.solver.Solve(solveCtx, spans)
	if sErr != nil {
		// Shutdown cut the solve short: not this analysis' fault. Nak so
		// another worker picks it up instead of recording a failure we
		// could not even persist on a canceled context.
		if ctx.Err() != nil {
			return fmt.Errorf("solve interrupted: %w", ctx.Err())
		}
		reason := "Invalid output"
		if !errors.Is(sErr, domain.ErrInvalidOutput) {
			reason = truncateReason(sErr.Error())
		}
		c.markFailed(ctx, job.AnalysisID, reason)
		logger.Warn("analysis failed", slog.String("reason", reason))
		return nil
	}

	if mErr := c.analyses.MarkCompleted(ctx, job.AnalysisID, raw); mErr != nil {
		c.markFailed(ctx, job.AnalysisID, "persist output failed")
		return fmt.Errorf("mark completed: %w", mErr)
	}

	logger.Info("analysis completed")
	return nil
}

// markFailed records a terminal failure. The write is detached from the
// caller's cancellation so a failure discovered during shutdown still
// lands in the store.
func (c *Consumer) markFailed(ctx context.Context, analysisID, reason string) {
	if err := c.analyses.MarkFailed(context.WithoutCancel(ctx), analysisID, reason); err != nil {
		slog.Warn("mark analysis failed",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
	}
}

func truncateReason(s string) string {
	const limit = 500
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

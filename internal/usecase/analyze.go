package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/homeworkai/backend/internal/domain"
)

// Analyze creates an AnalysisResult in "queued" and enqueues the job.
// The record is durably written before the publish so a worker can never
// dequeue a job whose analysis it cannot see.
func (uc *Usecase) Analyze(ctx context.Context, userID, uploadID string) (domain.AnalysisResult, error) {
	u, err := uc.ownedUpload(ctx, userID, uploadID)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	pr, err := uc.parses.ParseResult(ctx, u.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AnalysisResult{}, fmt.Errorf("%w: parse result not found", domain.ErrNotFound)
		}
		return domain.AnalysisResult{}, fmt.Errorf("load parse result: %w", err)
	}
	if strings.TrimSpace(pr.Text) == "" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: parse result not found", domain.ErrNotFound)
	}

	now := time.Now()
	a := domain.AnalysisResult{
		ID:        uuid.NewString(),
		UploadID:  u.ID,
		Status:    domain.AnalysisQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.analyses.CreateAnalysis(ctx, a); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("create analysis: %w", err)
	}

	job := domain.Job{AnalysisID: a.ID, UploadID: u.ID}
	if err := uc.queue.Enqueue(ctx, job); err != nil {
		slog.Error("enqueue analysis failed",
			slog.String("analysis_id", a.ID),
			slog.String("error", err.Error()),
		)
		if mErr := uc.analyses.MarkFailed(ctx, a.ID, "enqueue failed: "+err.Error()); mErr != nil {
			slog.Warn("mark analysis failed",
				slog.String("analysis_id", a.ID),
				slog.String("error", mErr.Error()),
			)
		}
		return domain.AnalysisResult{}, fmt.Errorf("enqueue: %w", err)
	}

	return a, nil
}

func (uc *Usecase) GetAnalysis(ctx context.Context, userID, uploadID, analysisID string) (domain.AnalysisResult, error) {
	if _, err := uc.ownedUpload(ctx, userID, uploadID); err != nil {
		return domain.AnalysisResult{}, err
	}

	a, err := uc.analyses.Analysis(ctx, analysisID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AnalysisResult{}, domain.ErrNotFound
		}
		return domain.AnalysisResult{}, fmt.Errorf("load analysis: %w", err)
	}
	if a.UploadID != uploadID {
		return domain.AnalysisResult{}, domain.ErrNotFound
	}
	return a, nil
}

func (uc *Usecase) ListAnalyses(ctx context.Context, userID, uploadID string) ([]domain.AnalysisResult, error) {
	if _, err := uc.ownedUpload(ctx, userID, uploadID); err != nil {
		return nil, err
	}
	return uc.analyses.AnalysesByUpload(ctx, uploadID)
}

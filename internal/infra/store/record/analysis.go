package record

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/homeworkai/backend/internal/domain"
)

type ParseStore struct {
	rdb redis.Cmdable
}

func NewParseStore(rdb redis.Cmdable) *ParseStore {
	return &ParseStore{rdb: rdb}
}

// UpsertParseResult replaces any previous extraction for the upload; one
// logical result per upload.
func (s *ParseStore) UpsertParseResult(ctx context.Context, pr domain.ParseResult) error {
	err := s.rdb.HSet(ctx, parseKey(pr.UploadID), map[string]interface{}{
		"text":       pr.Text,
		"pages":      pr.Pages,
		"updated_at": time.Now().UnixNano(),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis UpsertParseResult: %w", err)
	}
	return nil
}

// ParseResult loads the extraction for an upload. Absent is
// domain.ErrNotFound; a store failure must surface as itself so callers
// never mistake an outage for a missing extraction.
func (s *ParseStore) ParseResult(ctx context.Context, uploadID string) (domain.ParseResult, error) {
	res, err := s.rdb.HGetAll(ctx, parseKey(uploadID)).Result()
	if err != nil {
		return domain.ParseResult{}, fmt.Errorf("redis HGetAll parse: %w", err)
	}
	if len(res) == 0 {
		return domain.ParseResult{}, domain.ErrNotFound
	}

	pr := domain.ParseResult{
		UploadID:  uploadID,
		Text:      res["text"],
		UpdatedAt: parseTimeField(res["updated_at"]),
	}
	if v := res["pages"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pr.Pages = n
		}
	}
	return pr, nil
}

func (s *ParseStore) DeleteParseResult(ctx context.Context, uploadID string) error {
	if err := s.rdb.Del(ctx, parseKey(uploadID)).Err(); err != nil {
		return fmt.Errorf("redis DeleteParseResult: %w", err)
	}
	return nil
}

type AnalysisStore struct {
	rdb redis.Cmdable
}

func NewAnalysisStore(rdb redis.Cmdable) *AnalysisStore {
	return &AnalysisStore{rdb: rdb}
}

func (s *AnalysisStore) CreateAnalysis(ctx context.Context, a domain.AnalysisResult) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, analysisKey(a.ID), map[string]interface{}{
		"id":         a.ID,
		"upload_id":  a.UploadID,
		"status":     string(a.Status),
		"output":     string(a.Output),
		"error":      a.Error,
		"created_at": a.CreatedAt.UnixNano(),
		"updated_at": a.UpdatedAt.UnixNano(),
	})
	pipe.RPush(ctx, uploadAnalysesKey(a.UploadID), a.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline CreateAnalysis: %w", err)
	}
	return nil
}

func (s *AnalysisStore) Analysis(ctx context.Context, id string) (domain.AnalysisResult, error) {
	res, err := s.rdb.HGetAll(ctx, analysisKey(id)).Result()
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("redis HGetAll analysis: %w", err)
	}
	if len(res) == 0 {
		return domain.AnalysisResult{}, domain.ErrNotFound
	}

	a := domain.AnalysisResult{
		ID:             id,
		UploadID:       res["upload_id"],
		Status:         domain.AnalysisStatus(res["status"]),
		Error:          res["error"],
		SolutionBucket: res["solution_bucket"],
		SolutionKey:    res["solution_key"],
		CreatedAt:      parseTimeField(res["created_at"]),
		UpdatedAt:      parseTimeField(res["updated_at"]),
	}
	if v := res["output"]; v != "" {
		a.Output = []byte(v)
	}
	return a, nil
}

func (s *AnalysisStore) AnalysesByUpload(ctx context.Context, uploadID string) ([]domain.AnalysisResult, error) {
	ids, err := s.rdb.LRange(ctx, uploadAnalysesKey(uploadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRange: %w", err)
	}

	out := make([]domain.AnalysisResult, 0, len(ids))
	for _, id := range ids {
		a, err := s.Analysis(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *AnalysisStore) MarkRunning(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, domain.AnalysisRunning, "", nil)
}

// MarkCompleted stores the validated output and clears any error; the
// output is non-empty iff the analysis is completed.
func (s *AnalysisStore) MarkCompleted(ctx context.Context, id string, output []byte) error {
	return s.setStatus(ctx, id, domain.AnalysisCompleted, "", output)
}

// MarkFailed records why the attempt died; the record itself is the
// durable explanation, not just a propagated error.
func (s *AnalysisStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.setStatus(ctx, id, domain.AnalysisFailed, reason, nil)
}

func (s *AnalysisStore) setStatus(ctx context.Context, id string, status domain.AnalysisStatus, reason string, output []byte) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, analysisKey(id), "status", string(status))
	pipe.HSet(ctx, analysisKey(id), "error", reason)
	pipe.HSet(ctx, analysisKey(id), "output", string(output))
	pipe.HSet(ctx, analysisKey(id), "updated_at", time.Now().UnixNano())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set analysis status: %w", err)
	}
	return nil
}

func (s *AnalysisStore) SetSolutionLocation(ctx context.Context, id, bucket, key string) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, analysisKey(id), "solution_bucket", bucket)
	pipe.HSet(ctx, analysisKey(id), "solution_key", key)
	pipe.HSet(ctx, analysisKey(id), "updated_at", time.Now().UnixNano())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis SetSolutionLocation: %w", err)
	}
	return nil
}

// DeleteByUpload removes every analysis belonging to an upload together
// with the per-upload index.
func (s *AnalysisStore) DeleteByUpload(ctx context.Context, uploadID string) error {
	ids, err := s.rdb.LRange(ctx, uploadAnalysesKey(uploadID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis LRange: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, analysisKey(id))
	}
	pipe.Del(ctx, uploadAnalysesKey(uploadID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis DeleteByUpload: %w", err)
	}
	return nil
}

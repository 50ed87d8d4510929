// Package usecase drives the upload lifecycle: presign, confirm, parse,
// analyze, render. All collaborators are injected behind small interfaces
// so tests can substitute fakes.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/homeworkai/backend/internal/domain"
)

type ObjectStore interface {
	Bucket() string
	PresignPut(ctx context.Context, key string, expiry time.Duration) (url string, expiresAt time.Time, err error)
	Head(ctx context.Context, key string) (domain.ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type UploadStore interface {
	CreateUpload(ctx context.Context, u domain.Upload) error
	Upload(ctx context.Context, id string) (domain.Upload, error)
	UploadByKey(ctx context.Context, bucket, key string) (domain.Upload, error)
	UploadsByUser(ctx context.Context, userID string) ([]domain.Upload, error)
	UpdateUploadStatus(ctx context.Context, id string, status domain.UploadStatus, reason string) error
	SetUploaded(ctx context.Context, id string, info domain.ObjectInfo, confirmedAt time.Time) error
	DeleteUpload(ctx context.Context, id string) error
}

type ParseStore interface {
	UpsertParseResult(ctx context.Context, pr domain.ParseResult) error
	ParseResult(ctx context.Context, uploadID string) (domain.ParseResult, error)
	DeleteParseResult(ctx context.Context, uploadID string) error
}

type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, a domain.AnalysisResult) error
	Analysis(ctx context.Context, id string) (domain.AnalysisResult, error)
	AnalysesByUpload(ctx context.Context, uploadID string) ([]domain.AnalysisResult, error)
	MarkFailed(ctx context.Context, id string, reason string) error
	SetSolutionLocation(ctx context.Context, id, bucket, key string) error
	DeleteByUpload(ctx context.Context, uploadID string) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, job domain.Job) error
}

type Extractor interface {
	Extract(data []byte) (text string, pages int, err error)
}

type Renderer interface {
	Render(sol domain.Solution) (data []byte, pages int, err error)
}

type Usecase struct {
	presignExpiry time.Duration

	uploads  UploadStore
	parses   ParseStore
	analyses AnalysisStore
	objects  ObjectStore
	queue    JobQueue

	extractor Extractor
	renderer  Renderer
}

func New(
	presignExpiry time.Duration,
	uploads UploadStore,
	parses ParseStore,
	analyses AnalysisStore,
	objects ObjectStore,
	queue JobQueue,
	extractor Extractor,
	renderer Renderer,
) *Usecase {
	return &Usecase{
		presignExpiry: presignExpiry,
		uploads:       uploads,
		parses:        parses,
		analyses:      analyses,
		objects:       objects,
		queue:         queue,
		extractor:     extractor,
		renderer:      renderer,
	}
}

// ownedUpload loads an upload and checks the caller owns it. Cross-user
// access reads the same as a miss so existence never leaks; store
// failures stay store failures and never masquerade as a miss.
func (uc *Usecase) ownedUpload(ctx context.Context, userID, uploadID string) (domain.Upload, error) {
	u, err := uc.uploads.Upload(ctx, uploadID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Upload{}, domain.ErrNotFound
		}
		return domain.Upload{}, fmt.Errorf("load upload: %w", err)
	}
	if u.UserID != userID {
		return domain.Upload{}, domain.ErrNotFound
	}
	return u, nil
}

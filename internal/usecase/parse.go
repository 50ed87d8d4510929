package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/homeworkai/backend/internal/domain"
)

// Parse fetches the upload's bytes, extracts its text and upserts the
// ParseResult. Calling it again just overwrites the stored text; the
// "processing" status is a progress marker, not a lock.
func (uc *Usecase) Parse(ctx context.Context, userID, uploadID string) (domain.ParseResponse, error) {
	u, err := uc.ownedUpload(ctx, userID, uploadID)
	if err != nil {
		return domain.ParseResponse{}, err
	}
	if u.Status == domain.UploadUploading {
		return domain.ParseResponse{}, fmt.Errorf("%w: upload not confirmed", domain.ErrValidation)
	}

	if u.Status == domain.UploadUploaded {
		if err := uc.uploads.UpdateUploadStatus(ctx, uploadID, domain.UploadProcessing, ""); err != nil {
			return domain.ParseResponse{}, fmt.Errorf("mark processing: %w", err)
		}
	}

	// A fetch failure is a storage problem, not a verdict on the document.
	// Leave the status alone so a retry can still reach "processed".
	data, err := uc.objects.Get(ctx, u.Key)
	if err != nil {
		return domain.ParseResponse{}, fmt.Errorf("get %q: %w", u.Key, err)
	}

	text, pages, err := uc.extractor.Extract(data)
	if err != nil {
		uc.markParseFailed(ctx, uploadID, "text extraction failed")
		return domain.ParseResponse{}, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	if strings.TrimSpace(text) == "" {
		uc.markParseFailed(ctx, uploadID, "no text extracted")
		return domain.ParseResponse{}, fmt.Errorf("%w: document has no extractable text", domain.ErrExtraction)
	}

	err = uc.parses.UpsertParseResult(ctx, domain.ParseResult{
		UploadID:  uploadID,
		Text:      text,
		Pages:     pages,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return domain.ParseResponse{}, fmt.Errorf("upsert parse result: %w", err)
	}

	if err := uc.uploads.UpdateUploadStatus(ctx, uploadID, domain.UploadProcessed, ""); err != nil {
		return domain.ParseResponse{}, fmt.Errorf("mark processed: %w", err)
	}

	return domain.ParseResponse{
		UploadID: uploadID,
		Pages:    pages,
		Chars:    len(text),
	}, nil
}

// markParseFailed is best-effort: a re-parse of an already processed
// upload cannot move backward to failed, and that is fine.
func (uc *Usecase) markParseFailed(ctx context.Context, uploadID, reason string) {
	if err := uc.uploads.UpdateUploadStatus(ctx, uploadID, domain.UploadFailed, reason); err != nil {
		slog.Warn("mark upload failed",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/homeworkai/backend/internal/domain"
)

const pdfContentType = "application/pdf"

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename replaces every character outside [a-zA-Z0-9._-] with
// an underscore; path separators never survive.
func SanitizeFilename(name string) string {
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

// SanitizeFolder normalizes an optional folder prefix: backslashes become
// slashes, traversal and empty segments are dropped, every remaining
// segment is sanitized. The result is "" or ends with "/".
func SanitizeFolder(folder string) string {
	clean := strings.ReplaceAll(folder, `\`, "/")

	var parts []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		parts = append(parts, SanitizeFilename(seg))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "/") + "/"
}

// Presign issues a direct-upload URL and records the new upload in
// "uploading". The key embeds the upload ID so concurrent uploads of the
// same filename never collide.
func (uc *Usecase) Presign(ctx context.Context, userID, filename, contentType, folder string) (domain.PresignResponse, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" || len(filename) > 255 {
		return domain.PresignResponse{}, fmt.Errorf("%w: filename must be 1-255 characters", domain.ErrValidation)
	}
	if contentType != pdfContentType {
		return domain.PresignResponse{}, fmt.Errorf("%w: contentType must be %q", domain.ErrValidation, pdfContentType)
	}

	uploadID := uuid.NewString()
	key := SanitizeFolder(folder) + uploadID + "-" + SanitizeFilename(filename)

	url, expiresAt, err := uc.objects.PresignPut(ctx, key, uc.presignExpiry)
	if err != nil {
		return domain.PresignResponse{}, fmt.Errorf("presign put: %w", err)
	}

	now := time.Now()
	err = uc.uploads.CreateUpload(ctx, domain.Upload{
		ID:        uploadID,
		UserID:    userID,
		Bucket:    uc.objects.Bucket(),
		Key:       key,
		Status:    domain.UploadUploading,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.PresignResponse{}, fmt.Errorf("create upload: %w", err)
	}

	return domain.PresignResponse{
		UploadID:  uploadID,
		URL:       url,
		Key:       key,
		Bucket:    uc.objects.Bucket(),
		ExpiresAt: expiresAt,
	}, nil
}

// Confirm checks the object actually landed in storage and moves the
// upload to "uploaded", stamping the storage metadata.
func (uc *Usecase) Confirm(ctx context.Context, userID, bucket, key string) (domain.ConfirmResponse, error) {
	if key == "" {
		return domain.ConfirmResponse{}, fmt.Errorf("%w: key is required", domain.ErrValidation)
	}
	if bucket == "" {
		bucket = uc.objects.Bucket()
	}

	u, err := uc.uploads.UploadByKey(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ConfirmResponse{}, domain.ErrNotFound
		}
		return domain.ConfirmResponse{}, fmt.Errorf("load upload by key: %w", err)
	}
	if u.UserID != userID {
		return domain.ConfirmResponse{}, domain.ErrNotFound
	}

	info, err := uc.objects.Head(ctx, key)
	if err != nil {
		return domain.ConfirmResponse{}, fmt.Errorf("head %q: %w", key, err)
	}

	confirmedAt := time.Now()
	if err := uc.uploads.SetUploaded(ctx, u.ID, info, confirmedAt); err != nil {
		return domain.ConfirmResponse{}, fmt.Errorf("set uploaded: %w", err)
	}

	return domain.ConfirmResponse{
		Bucket:       bucket,
		Key:          key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

func (uc *Usecase) GetUpload(ctx context.Context, userID, uploadID string) (domain.Upload, error) {
	return uc.ownedUpload(ctx, userID, uploadID)
}

func (uc *Usecase) ListUploads(ctx context.Context, userID string) ([]domain.Upload, error) {
	return uc.uploads.UploadsByUser(ctx, userID)
}

// DeleteUpload removes the upload, its derived records and its stored
// objects. Object deletion is best-effort; records go regardless.
func (uc *Usecase) DeleteUpload(ctx context.Context, userID, uploadID string) error {
	u, err := uc.ownedUpload(ctx, userID, uploadID)
	if err != nil {
		return err
	}

	if err := uc.objects.Delete(ctx, u.Key); err != nil {
		slog.Warn("delete source object",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
	}

	analyses, err := uc.analyses.AnalysesByUpload(ctx, uploadID)
	if err == nil {
		for _, a := range analyses {
			if a.SolutionKey == "" {
				continue
			}
			if err := uc.objects.Delete(ctx, a.SolutionKey); err != nil {
				slog.Warn("delete solution object",
					slog.String("analysis_id", a.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if err := uc.analyses.DeleteByUpload(ctx, uploadID); err != nil {
		return fmt.Errorf("delete analyses: %w", err)
	}
	if err := uc.parses.DeleteParseResult(ctx, uploadID); err != nil {
		return fmt.Errorf("delete parse result: %w", err)
	}
	if err := uc.uploads.DeleteUpload(ctx, uploadID); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

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

type UploadStore struct {
	rdb redis.Cmdable
}

func NewUploadStore(rdb redis.Cmdable) *UploadStore {
	return &UploadStore{rdb: rdb}
}

func (s *UploadStore) CreateUpload(ctx context.Context, u domain.Upload) error {
	// (bucket, key) is unique: refuse to create a second upload for the
	// same storage coordinate.
	ok, err := s.rdb.SetNX(ctx, uploadByKeyKey(u.Bucket, u.Key), u.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("redis set bykey index: %w", err)
	}
	if !ok {
		return fmt.Errorf("upload for %s/%s already exists", u.Bucket, u.Key)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, uploadKey(u.ID), uploadFields(u))
	pipe.SAdd(ctx, userUploadsKey(u.UserID), u.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline CreateUpload: %w", err)
	}
	return nil
}

// Upload loads one record. A missing record is domain.ErrNotFound;
// anything else is a real store failure and must not read as a miss.
func (s *UploadStore) Upload(ctx context.Context, id string) (domain.Upload, error) {
	res, err := s.rdb.HGetAll(ctx, uploadKey(id)).Result()
	if err != nil {
		return domain.Upload{}, fmt.Errorf("redis HGetAll upload: %w", err)
	}
	if len(res) == 0 {
		return domain.Upload{}, domain.ErrNotFound
	}
	return uploadFromFields(id, res), nil
}

func (s *UploadStore) UploadByKey(ctx context.Context, bucket, key string) (domain.Upload, error) {
	id, err := s.rdb.Get(ctx, uploadByKeyKey(bucket, key)).Result()
	if err == redis.Nil {
		return domain.Upload{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Upload{}, fmt.Errorf("redis get bykey index: %w", err)
	}
	if id == "" {
		return domain.Upload{}, domain.ErrNotFound
	}
	return s.Upload(ctx, id)
}

func (s *UploadStore) UploadsByUser(ctx context.Context, userID string) ([]domain.Upload, error) {
	ids, err := s.rdb.SMembers(ctx, userUploadsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMembers: %w", err)
	}

	uploads := make([]domain.Upload, 0, len(ids))
	for _, id := range ids {
		u, err := s.Upload(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

// UpdateUploadStatus applies a status transition, enforcing the
// uploading -> uploaded -> processing -> {processed, failed} order.
func (s *UploadStore) UpdateUploadStatus(ctx context.Context, id string, status domain.UploadStatus, reason string) error {
	u, err := s.Upload(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(u.Status, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrBadTransition, u.Status, status)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, uploadKey(id), "status", string(status))
	pipe.HSet(ctx, uploadKey(id), "error", reason)
	pipe.HSet(ctx, uploadKey(id), "updated_at", time.Now().UnixNano())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis UpdateUploadStatus: %w", err)
	}
	return nil
}

// SetUploaded stamps the storage metadata recorded at confirm time and
// moves the upload to "uploaded".
func (s *UploadStore) SetUploaded(ctx context.Context, id string, info domain.ObjectInfo, confirmedAt time.Time) error {
	u, err := s.Upload(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(u.Status, domain.UploadUploaded) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrBadTransition, u.Status, domain.UploadUploaded)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, uploadKey(id), map[string]interface{}{
		"status":       string(domain.UploadUploaded),
		"size":         info.Size,
		"mime":         info.ContentType,
		"etag":         info.ETag,
		"confirmed_at": confirmedAt.UnixNano(),
		"updated_at":   time.Now().UnixNano(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis SetUploaded: %w", err)
	}
	return nil
}

func (s *UploadStore) DeleteUpload(ctx context.Context, id string) error {
	u, err := s.Upload(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, uploadKey(id))
	pipe.Del(ctx, uploadByKeyKey(u.Bucket, u.Key))
	pipe.SRem(ctx, userUploadsKey(u.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis DeleteUpload: %w", err)
	}
	return nil
}

func uploadFields(u domain.Upload) map[string]interface{} {
	return map[string]interface{}{
		"id":           u.ID,
		"user_id":      u.UserID,
		"bucket":       u.Bucket,
		"key":          u.Key,
		"status":       string(u.Status),
		"size":         u.Size,
		"mime":         u.Mime,
		"etag":         u.ETag,
		"error":        u.Error,
		"confirmed_at": timeField(u.ConfirmedAt),
		"created_at":   u.CreatedAt.UnixNano(),
		"updated_at":   u.UpdatedAt.UnixNano(),
	}
}

func uploadFromFields(id string, res map[string]string) domain.Upload {
	u := domain.Upload{
		ID:     id,
		UserID: res["user_id"],
		Bucket: res["bucket"],
		Key:    res["key"],
		Status: domain.UploadStatus(res["status"]),
		Mime:   res["mime"],
		ETag:   res["etag"],
		Error:  res["error"],
	}

	if v := res["size"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			u.Size = n
		}
	}
	u.ConfirmedAt = parseTimeField(res["confirmed_at"])
	u.CreatedAt = parseTimeField(res["created_at"])
	u.UpdatedAt = parseTimeField(res["updated_at"])

	return u
}

func timeField(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func parseTimeField(v string) time.Time {
	if v == "" || v == "0" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

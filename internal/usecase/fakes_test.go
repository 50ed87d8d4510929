package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/homeworkai/backend/internal/domain"
)

type memObjects struct {
	bucket     string
	data       map[string][]byte
	heads      map[string]domain.ObjectInfo
	presignErr error
	getErr     error
	putErr     error
	puts       []string
}

func newMemObjects() *memObjects {
	return &memObjects{
		bucket: "test-bucket",
		data:   map[string][]byte{},
		heads:  map[string]domain.ObjectInfo{},
	}
}

func (m *memObjects) Bucket() string { return m.bucket }

func (m *memObjects) PresignPut(_ context.Context, key string, expiry time.Duration) (string, time.Time, error) {
	if m.presignErr != nil {
		return "", time.Time{}, m.presignErr
	}
	return "https://storage.test/" + m.bucket + "/" + key, time.Now().Add(expiry), nil
}

func (m *memObjects) Head(_ context.Context, key string) (domain.ObjectInfo, error) {
	info, ok := m.heads[key]
	if !ok {
		return domain.ObjectInfo{}, domain.ErrObjectMissing
	}
	return info, nil
}

func (m *memObjects) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.data[key]
	if !ok {
		return nil, domain.ErrObjectMissing
	}
	return d, nil
}

func (m *memObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = data
	m.puts = append(m.puts, key)
	return nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type memUploads struct {
	byID    map[string]domain.Upload
	byKey   map[string]string
	loadErr error
}

func newMemUploads() *memUploads {
	return &memUploads{byID: map[string]domain.Upload{}, byKey: map[string]string{}}
}

func (m *memUploads) CreateUpload(_ context.Context, u domain.Upload) error {
	coord := u.Bucket + ":" + u.Key
	if _, exists := m.byKey[coord]; exists {
		return fmt.Errorf("upload for %s already exists", coord)
	}
	m.byID[u.ID] = u
	m.byKey[coord] = u.ID
	return nil
}

func (m *memUploads) Upload(_ context.Context, id string) (domain.Upload, error) {
	if m.loadErr != nil {
		return domain.Upload{}, m.loadErr
	}
	u, ok := m.byID[id]
	if !ok {
		return domain.Upload{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUploads) UploadByKey(ctx context.Context, bucket, key string) (domain.Upload, error) {
	if m.loadErr != nil {
		return domain.Upload{}, m.loadErr
	}
	id, ok := m.byKey[bucket+":"+key]
	if !ok {
		return domain.Upload{}, domain.ErrNotFound
	}
	return m.Upload(ctx, id)
}

func (m *memUploads) UploadsByUser(_ context.Context, userID string) ([]domain.Upload, error) {
	var out []domain.Upload
	for _, u := range m.byID {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUploads) UpdateUploadStatus(_ context.Context, id string, status domain.UploadStatus, reason string) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(u.Status, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrBadTransition, u.Status, status)
	}
	u.Status = status
	u.Error = reason
	u.UpdatedAt = time.Now()
	m.byID[id] = u
	return nil
}

func (m *memUploads) SetUploaded(_ context.Context, id string, info domain.ObjectInfo, confirmedAt time.Time) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(u.Status, domain.UploadUploaded) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrBadTransition, u.Status, domain.UploadUploaded)
	}
	u.Status = domain.UploadUploaded
	u.Size = info.Size
	u.Mime = info.ContentType
	u.ETag = info.ETag
	u.ConfirmedAt = confirmedAt
	m.byID[id] = u
	return nil
}

func (m *memUploads) DeleteUpload(_ context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byKey, u.Bucket+":"+u.Key)
	return nil
}

type memParses struct {
	byUpload map[string]domain.ParseResult
	loadErr  error
}

func newMemParses() *memParses {
	return &memParses{byUpload: map[string]domain.ParseResult{}}
}

func (m *memParses) UpsertParseResult(_ context.Context, pr domain.ParseResult) error {
	m.byUpload[pr.UploadID] = pr
	return nil
}

func (m *memParses) ParseResult(_ context.Context, uploadID string) (domain.ParseResult, error) {
	if m.loadErr != nil {
		return domain.ParseResult{}, m.loadErr
	}
	pr, ok := m.byUpload[uploadID]
	if !ok {
		return domain.ParseResult{}, domain.ErrNotFound
	}
	return pr, nil
}

func (m *memParses) DeleteParseResult(_ context.Context, uploadID string) error {
	delete(m.byUpload, uploadID)
	return nil
}

type memAnalyses struct {
	byID    map[string]domain.AnalysisResult
	loadErr error
}

func newMemAnalyses() *memAnalyses {
	return &memAnalyses{byID: map[string]domain.AnalysisResult{}}
}

func (m *memAnalyses) CreateAnalysis(_ context.Context, a domain.AnalysisResult) error {
	m.byID[a.ID] = a
	return nil
}

func (m *memAnalyses) Analysis(_ context.Context, id string) (domain.AnalysisResult, error) {
	if m.loadErr != nil {
		return domain.AnalysisResult{}, m.loadErr
	}
	a, ok := m.byID[id]
	if !ok {
		return domain.AnalysisResult{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *memAnalyses) AnalysesByUpload(_ context.Context, uploadID string) ([]domain.AnalysisResult, error) {
	var out []domain.AnalysisResult
	for _, a := range m.byID {
		if a.UploadID == uploadID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAnalyses) MarkFailed(_ context.Context, id string, reason string) error {
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = domain.AnalysisFailed
	a.Error = reason
	a.Output = nil
	m.byID[id] = a
	return nil
}

func (m *memAnalyses) SetSolutionLocation(_ context.Context, id, bucket, key string) error {
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.SolutionBucket = bucket
	a.SolutionKey = key
	m.byID[id] = a
	return nil
}

func (m *memAnalyses) DeleteByUpload(_ context.Context, uploadID string) error {
	for id, a := range m.byID {
		if a.UploadID == uploadID {
			delete(m.byID, id)
		}
	}
	return nil
}

type fakeQueue struct {
	jobs []domain.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job domain.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeExtractor struct {
	text  string
	pages int
	err   error
}

func (e *fakeExtractor) Extract(_ []byte) (string, int, error) {
	return e.text, e.pages, e.err
}

type fakeRenderer struct {
	data  []byte
	pages int
	err   error
}

func (r *fakeRenderer) Render(_ domain.Solution) ([]byte, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	return r.data, r.pages, nil
}

var errBoom = errors.New("boom")

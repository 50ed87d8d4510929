package domain

import (
	"errors"
	"time"
)

type UploadStatus string

const (
	UploadUploading  UploadStatus = "uploading"
	UploadUploaded   UploadStatus = "uploaded"
	UploadProcessing UploadStatus = "processing"
	UploadProcessed  UploadStatus = "processed"
	UploadFailed     UploadStatus = "failed"
)

// statusRank orders upload statuses along the only legal path:
// uploading -> uploaded -> processing -> {processed, failed}.
var statusRank = map[UploadStatus]int{
	UploadUploading:  0,
	UploadUploaded:   1,
	UploadProcessing: 2,
	UploadProcessed:  3,
	UploadFailed:     3,
}

// CanTransition reports whether moving from one upload status to the next
// is allowed. Transitions never go backward and never skip "uploaded";
// re-applying the current status is allowed (idempotent updates).
func CanTransition(from, to UploadStatus) bool {
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	if tr < fr {
		return false
	}
	return tr-fr == 1 || (fr == 2 && tr == 3)
}

type Upload struct {
	ID     string `json:"uploadId"`
	UserID string `json:"-"`

	Bucket string `json:"bucket"`
	Key    string `json:"key"`

	Status UploadStatus `json:"status"`

	// meta, stamped on confirm
	Size        int64     `json:"size,omitempty"`
	Mime        string    `json:"mime,omitempty"`
	ETag        string    `json:"etag,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at,omitzero"`

	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseResult is the extracted plain text for exactly one upload.
// Re-parsing overwrites it in place.
type ParseResult struct {
	UploadID  string    `json:"uploadId"`
	Text      string    `json:"text"`
	Pages     int       `json:"pages"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AnalysisStatus string

const (
	AnalysisQueued    AnalysisStatus = "queued"
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisCompleted || s == AnalysisFailed
}

// AnalysisResult is one solving attempt against an upload's parsed text.
// A failed analysis is never retried in place; retries get a new identity.
type AnalysisResult struct {
	ID       string `json:"analysisId"`
	UploadID string `json:"uploadId"`

	Status AnalysisStatus `json:"status"`

	// Output holds the raw validated solution JSON; non-nil iff completed.
	Output []byte `json:"output,omitempty"`
	// Error is non-empty iff failed.
	Error string `json:"error,omitempty"`

	SolutionBucket string `json:"solution_bucket,omitempty"`
	SolutionKey    string `json:"solution_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is a queue entry referencing one AnalysisResult. The payload is
// intentionally minimal: the worker re-reads durable state by these IDs
// instead of trusting anything carried in the message body.
type Job struct {
	AnalysisID string `json:"analysisId"`
	UploadID   string `json:"uploadId"`
}

// Solution is the structured output of the solve capability.
type Solution struct {
	DocumentID string     `json:"document_id"`
	Questions  []Question `json:"questions"`
}

type Question struct {
	QID          string `json:"qid"`
	QuestionText string `json:"question_text"`
	Parts        []Part `json:"parts"`
}

type Part struct {
	Label    string `json:"label"`
	Answer   string `json:"answer"`
	Workings string `json:"workings"`
}

type ObjectInfo struct {
	Size         int64     `json:"contentLength"`
	ContentType  string    `json:"contentType"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"lastModified"`
}

type PresignResponse struct {
	UploadID  string    `json:"uploadId"`
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Bucket    string    `json:"bucket"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ConfirmResponse struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"contentLength"`
	ContentType  string    `json:"contentType"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"lastModified"`
}

type ParseResponse struct {
	UploadID string `json:"uploadId"`
	Pages    int    `json:"pages"`
	Chars    int    `json:"chars"`
}

type RenderResponse struct {
	Key   string `json:"key"`
	Pages int    `json:"pages"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	ErrValidation    = errors.New("invalid request")
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrObjectMissing = errors.New("object not found in storage")
	ErrExtraction    = errors.New("text extraction failed")
	ErrInvalidOutput = errors.New("invalid output")
	ErrBadTransition = errors.New("illegal status transition")
)

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/homeworkai/backend/internal/domain"
)

type Usecase interface {
	Presign(ctx context.Context, userID, filename, contentType, folder string) (domain.PresignResponse, error)
	Confirm(ctx context.Context, userID, bucket, key string) (domain.ConfirmResponse, error)
	GetUpload(ctx context.Context, userID, uploadID string) (domain.Upload, error)
	ListUploads(ctx context.Context, userID string) ([]domain.Upload, error)
	DeleteUpload(ctx context.Context, userID, uploadID string) error
	Parse(ctx context.Context, userID, uploadID string) (domain.ParseResponse, error)
	Analyze(ctx context.Context, userID, uploadID string) (domain.AnalysisResult, error)
	GetAnalysis(ctx context.Context, userID, uploadID, analysisID string) (domain.AnalysisResult, error)
	ListAnalyses(ctx context.Context, userID, uploadID string) ([]domain.AnalysisResult, error)
	Render(ctx context.Context, userID, uploadID, analysisID string) (domain.RenderResponse, error)
}

type handler struct {
	maxBodyBytes int64
	usecase      Usecase
}

func NewHandler(maxBodyMb int64, uc Usecase) *handler {
	if maxBodyMb <= 0 {
		maxBodyMb = 1
	}
	return &handler{
		maxBodyBytes: maxBodyMb << 20,
		usecase:      uc,
	}
}

type presignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Folder      string `json:"folder,omitempty"`
}

type confirmRequest struct {
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key"`
}

func (h *handler) presign(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "presign")
	if !ok {
		return
	}

	var req presignRequest
	if !h.decode(w, r, logger, &req) {
		return
	}

	resp, err := h.usecase.Presign(r.Context(), userID, req.Filename, req.ContentType, req.Folder)
	if err != nil {
		writeDomainError(w, logger, "Presign", err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *handler) confirm(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "confirm")
	if !ok {
		return
	}

	var req confirmRequest
	if !h.decode(w, r, logger, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "field `key` is required")
		return
	}

	resp, err := h.usecase.Confirm(r.Context(), userID, req.Bucket, req.Key)
	if err != nil {
		writeDomainError(w, logger, "Confirm", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listUploads(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "listUploads")
	if !ok {
		return
	}

	uploads, err := h.usecase.ListUploads(r.Context(), userID)
	if err != nil {
		writeDomainError(w, logger, "ListUploads", err)
		return
	}
	if uploads == nil {
		uploads = []domain.Upload{}
	}

	writeJSON(w, http.StatusOK, uploads)
}

func (h *handler) getUpload(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "getUpload")
	if !ok {
		return
	}

	upload, err := h.usecase.GetUpload(r.Context(), userID, r.PathValue("uploadId"))
	if err != nil {
		writeDomainError(w, logger, "GetUpload", err)
		return
	}

	writeJSON(w, http.StatusOK, upload)
}

func (h *handler) deleteUpload(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "deleteUpload")
	if !ok {
		return
	}

	if err := h.usecase.DeleteUpload(r.Context(), userID, r.PathValue("uploadId")); err != nil {
		writeDomainError(w, logger, "DeleteUpload", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) parse(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "parse")
	if !ok {
		return
	}

	resp, err := h.usecase.Parse(r.Context(), userID, r.PathValue("uploadId"))
	if err != nil {
		writeDomainError(w, logger, "Parse", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) createAnalysis(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "createAnalysis")
	if !ok {
		return
	}

	a, err := h.usecase.Analyze(r.Context(), userID, r.PathValue("uploadId"))
	if err != nil {
		writeDomainError(w, logger, "Analyze", err)
		return
	}

	writeJSON(w, http.StatusAccepted, a)
}

func (h *handler) listAnalyses(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "listAnalyses")
	if !ok {
		return
	}

	analyses, err := h.usecase.ListAnalyses(r.Context(), userID, r.PathValue("uploadId"))
	if err != nil {
		writeDomainError(w, logger, "ListAnalyses", err)
		return
	}
	if analyses == nil {
		analyses = []domain.AnalysisResult{}
	}

	writeJSON(w, http.StatusOK, analyses)
}

func (h *handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "getAnalysis")
	if !ok {
		return
	}

	a, err := h.usecase.GetAnalysis(r.Context(), userID, r.PathValue("uploadId"), r.PathValue("analysisId"))
	if err != nil {
		writeDomainError(w, logger, "GetAnalysis", err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *handler) render(w http.ResponseWriter, r *http.Request) {
	logger, userID, ok := h.begin(w, r, "render")
	if !ok {
		return
	}

	resp, err := h.usecase.Render(r.Context(), userID, r.PathValue("uploadId"), r.PathValue("analysisId"))
	if err != nil {
		writeDomainError(w, logger, "Render", err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// begin resolves the authenticated caller and builds the per-request
// logger. Reaching a handler without a user means the auth middleware
// was not mounted.
func (h *handler) begin(w http.ResponseWriter, r *http.Request, name string) (*slog.Logger, string, bool) {
	logger := slog.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("handler", name),
		slog.String("remote_addr", r.RemoteAddr),
	)

	userID, ok := UserID(r.Context())
	if !ok {
		logger.Error("no user in context")
		writeError(w, http.StatusUnauthorized, "")
		return nil, "", false
	}

	return logger, userID, true
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v any) bool {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Warn("decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func writeDomainError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op, slog.String("error", err.Error()))
		writeError(w, status, "")
		return
	}
	logger.Warn(op, slog.String("error", err.Error()))
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidOutput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrObjectMissing), errors.Is(err, domain.ErrBadTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, domain.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON", slog.String("error", err.Error()))
	}
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homeworkai/backend/internal/auth"
	"github.com/homeworkai/backend/internal/domain"
)

type stubUsecase struct {
	presignResp  domain.PresignResponse
	presignErr   error
	confirmResp  domain.ConfirmResponse
	confirmErr   error
	upload       domain.Upload
	uploadErr    error
	uploads      []domain.Upload
	deleteErr    error
	parseResp    domain.ParseResponse
	parseErr     error
	analysis     domain.AnalysisResult
	analysisErr  error
	analyses     []domain.AnalysisResult
	renderResp   domain.RenderResponse
	renderErr    error
	gotUserID    string
	gotUploadID  string
	gotAnalysis  string
	gotFilename  string
	gotConfirmed string
}

func (s *stubUsecase) Presign(_ context.Context, userID, filename, _, _ string) (domain.PresignResponse, error) {
	s.gotUserID, s.gotFilename = userID, filename
	return s.presignResp, s.presignErr
}

func (s *stubUsecase) Confirm(_ context.Context, userID, _, key string) (domain.ConfirmResponse, error) {
	s.gotUserID, s.gotConfirmed = userID, key
	return s.confirmResp, s.confirmErr
}

func (s *stubUsecase) GetUpload(_ context.Context, userID, uploadID string) (domain.Upload, error) {
	s.gotUserID, s.gotUploadID = userID, uploadID
	return s.upload, s.uploadErr
}

func (s *stubUsecase) ListUploads(_ context.Context, userID string) ([]domain.Upload, error) {
	s.gotUserID = userID
	return s.uploads, nil
}

func (s *stubUsecase) DeleteUpload(_ context.Context, userID, uploadID string) error {
	s.gotUserID, s.gotUploadID = userID, uploadID
	return s.deleteErr
}

func (s *stubUsecase) Parse(_ context.Context, userID, uploadID string) (domain.ParseResponse, error) {
	s.gotUserID, s.gotUploadID = userID, uploadID
	return s.parseResp, s.parseErr
}

func (s *stubUsecase) Analyze(_ context.Context, userID, uploadID string) (domain.AnalysisResult, error) {
	s.gotUserID, s.gotUploadID = userID, uploadID
	return s.analysis, s.analysisErr
}

func (s *stubUsecase) GetAnalysis(_ context.Context, userID, uploadID, analysisID string) (domain.AnalysisResult, error) {
	s.gotUserID, s.gotUploadID, s.gotAnalysis = userID, uploadID, analysisID
	return s.analysis, s.analysisErr
}

func (s *stubUsecase) ListAnalyses(_ context.Context, userID, uploadID string) ([]domain.AnalysisResult, error) {
	s.gotUserID, s.gotUploadID = userID, uploadID
	return s.analyses, nil
}

func (s *stubUsecase) Render(_ context.Context, userID, uploadID, analysisID string) (domain.RenderResponse, error) {
	s.gotUserID, s.gotUploadID, s.gotAnalysis = userID, uploadID, analysisID
	return s.renderResp, s.renderErr
}

const testSecret = "test-secret"

func newTestServer(t *testing.T, uc Usecase) *httptest.Server {
	t.Helper()
	verifier := auth.NewHMACVerifier(testSecret)
	mux := NewRouter(NewHandler(1, uc), AuthMiddleware(verifier)).MountRoutes(http.NewServeMux())
	srv := httptest.NewServer(WithRecover(LogMiddleware(mux)))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func userToken(userID string) string {
	return auth.NewHMACVerifier(testSecret).Sign(userID)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, &stubUsecase{})

	resp := doRequest(t, srv, http.MethodGet, "/uploads", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/uploads", "u1.deadbeef", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthzOpen(t *testing.T) {
	srv := newTestServer(t, &stubUsecase{})

	resp := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPresign(t *testing.T) {
	uc := &stubUsecase{presignResp: domain.PresignResponse{
		UploadID:  "u1",
		URL:       "http://minio/put",
		Key:       "u1-hw.pdf",
		Bucket:    "uploads",
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodPost, "/uploads/presign", userToken("alice"),
		map[string]string{"filename": "hw.pdf", "contentType": "application/pdf"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alice", uc.gotUserID)
	assert.Equal(t, "hw.pdf", uc.gotFilename)

	var got domain.PresignResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "u1", got.UploadID)
	assert.Equal(t, "http://minio/put", got.URL)
}

func TestPresignValidationError(t *testing.T) {
	uc := &stubUsecase{presignErr: domain.ErrValidation}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodPost, "/uploads/presign", userToken("alice"),
		map[string]string{"filename": "hw.txt", "contentType": "text/plain"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirmRequiresKey(t *testing.T) {
	srv := newTestServer(t, &stubUsecase{})

	resp := doRequest(t, srv, http.MethodPost, "/uploads/confirm", userToken("alice"),
		map[string]string{"bucket": "uploads"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirmObjectMissingConflict(t *testing.T) {
	uc := &stubUsecase{confirmErr: domain.ErrObjectMissing}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodPost, "/uploads/confirm", userToken("alice"),
		map[string]string{"key": "u1-hw.pdf"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "u1-hw.pdf", uc.gotConfirmed)
}

func TestGetUploadNotFound(t *testing.T) {
	uc := &stubUsecase{uploadErr: domain.ErrNotFound}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodGet, "/uploads/nope", userToken("alice"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "nope", uc.gotUploadID)
}

func TestListUploadsEmptyArray(t *testing.T) {
	srv := newTestServer(t, &stubUsecase{})

	resp := doRequest(t, srv, http.MethodGet, "/uploads", userToken("alice"), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body bytes.Buffer
	_, err := body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", body.String())
}

func TestDeleteUpload(t *testing.T) {
	uc := &stubUsecase{}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodDelete, "/uploads/u1", userToken("alice"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "u1", uc.gotUploadID)
}

func TestParseExtractionFailure(t *testing.T) {
	uc := &stubUsecase{parseErr: domain.ErrExtraction}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodPost, "/uploads/u1/parse", userToken("alice"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCreateAnalysisAccepted(t *testing.T) {
	uc := &stubUsecase{analysis: domain.AnalysisResult{
		ID:       "a1",
		UploadID: "u1",
		Status:   domain.AnalysisQueued,
	}}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodPost, "/uploads/u1/analyses", userToken("alice"), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var got domain.AnalysisResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, domain.AnalysisQueued, got.Status)
}

func TestGetAnalysisPathValues(t *testing.T) {
	uc := &stubUsecase{analysis: domain.AnalysisResult{ID: "a1", UploadID: "u1"}}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodGet, "/uploads/u1/analyses/a1", userToken("alice"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", uc.gotUploadID)
	assert.Equal(t, "a1", uc.gotAnalysis)
}

func TestRenderValidationError(t *testing.T) {
	uc := &stubUsecase{renderErr: domain.ErrValidation}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodPost, "/uploads/u1/analyses/a1/render", userToken("alice"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRenderCreated(t *testing.T) {
	uc := &stubUsecase{renderResp: domain.RenderResponse{Key: "u1/a1.pdf", Pages: 2}}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodPost, "/uploads/u1/analyses/a1/render", userToken("alice"), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got domain.RenderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "u1/a1.pdf", got.Key)
	assert.Equal(t, 2, got.Pages)
}

func TestInternalErrorHidesDetails(t *testing.T) {
	uc := &stubUsecase{parseErr: errors.New("redis: connection pool timeout")}
	srv := newTestServer(t, uc)

	resp := doRequest(t, srv, http.MethodPost, "/uploads/u1/parse", userToken("alice"), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var got domain.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotContains(t, got.Message, "redis")
}

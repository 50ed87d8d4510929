package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homeworkai/backend/internal/domain"
)

func newTestUsecase() (*Usecase, *memUploads, *memParses, *memAnalyses, *memObjects, *fakeQueue, *fakeExtractor, *fakeRenderer) {
	uploads := newMemUploads()
	parses := newMemParses()
	analyses := newMemAnalyses()
	objects := newMemObjects()
	queue := &fakeQueue{}
	extractor := &fakeExtractor{text: "extracted text", pages: 2}
	renderer := &fakeRenderer{data: []byte("%PDF-fake"), pages: 1}

	uc := New(15*time.Minute, uploads, parses, analyses, objects, queue, extractor, renderer)
	return uc, uploads, parses, analyses, objects, queue, extractor, renderer
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "hw.pdf", SanitizeFilename("hw.pdf"))
	assert.Equal(t, "my_homework_1_.pdf", SanitizeFilename("my homework(1).pdf"))
	assert.Equal(t, ".._.._etc_passwd", SanitizeFilename("../../etc/passwd"))
}

func TestPresignHappyPath(t *testing.T) {
	uc, uploads, _, _, _, _, _, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Presign(ctx, "user-1", "hw.pdf", "application/pdf", "")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.UploadID)
	assert.True(t, strings.HasSuffix(resp.Key, "hw.pdf"), "key %q", resp.Key)
	assert.Equal(t, "test-bucket", resp.Bucket)
	assert.NotEmpty(t, resp.URL)

	u, err := uploads.Upload(ctx, resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadUploading, u.Status)
	assert.Equal(t, "user-1", u.UserID)
}

func TestPresignSanitizesTraversal(t *testing.T) {
	uc, _, _, _, _, _, _, _ := newTestUsecase()

	resp, err := uc.Presign(context.Background(), "user-1", "../../etc/passwd", "application/pdf", "")
	require.NoError(t, err)

	name := resp.Key[strings.LastIndex(resp.Key, "-")+1:]
	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, `\`)
	assert.True(t, strings.HasSuffix(resp.Key, "etc_passwd"), "key %q", resp.Key)
}

func TestPresignValidation(t *testing.T) {
	uc, _, _, _, _, _, _, _ := newTestUsecase()
	ctx := context.Background()

	_, err := uc.Presign(ctx, "user-1", "", "application/pdf", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = uc.Presign(ctx, "user-1", strings.Repeat("a", 256), "application/pdf", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = uc.Presign(ctx, "user-1", "hw.pdf", "image/png", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPresignFolderIsSanitized(t *testing.T) {
	uc, _, _, _, _, _, _, _ := newTestUsecase()

	resp, err := uc.Presign(context.Background(), "user-1", "hw.pdf", "application/pdf", `..\..\secret//stuff`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Key, "secret/stuff/"), "key %q", resp.Key)
}

func TestConfirmHappyPath(t *testing.T) {
	uc, uploads, _, _, objects, _, _, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Presign(ctx, "user-1", "hw.pdf", "application/pdf", "")
	require.NoError(t, err)

	objects.heads[resp.Key] = domain.ObjectInfo{
		Size:        1234,
		ContentType: "application/pdf",
		ETag:        "etag-1",
	}

	meta, err := uc.Confirm(ctx, "user-1", resp.Bucket, resp.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), meta.Size)
	assert.Equal(t, "etag-1", meta.ETag)

	u, err := uploads.Upload(ctx, resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadUploaded, u.Status)
	assert.Equal(t, int64(1234), u.Size)
	assert.False(t, u.ConfirmedAt.IsZero())
}

func TestConfirmUnknownKeyFailsWithoutSideEffects(t *testing.T) {
	uc, uploads, _, _, _, _, _, _ := newTestUsecase()

	_, err := uc.Confirm(context.Background(), "user-1", "test-bucket", "nope.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, uploads.byID)
}

func TestConfirmObjectMissingInStorage(t *testing.T) {
	uc, _, _, _, _, _, _, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Presign(ctx, "user-1", "hw.pdf", "application/pdf", "")
	require.NoError(t, err)

	// no head registered: storage says the object never arrived
	_, err = uc.Confirm(ctx, "user-1", resp.Bucket, resp.Key)
	assert.ErrorIs(t, err, domain.ErrObjectMissing)
}

func TestConfirmCrossUserReadsAsNotFound(t *testing.T) {
	uc, _, _, _, objects, _, _, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Presign(ctx, "user-1", "hw.pdf", "application/pdf", "")
	require.NoError(t, err)
	objects.heads[resp.Key] = domain.ObjectInfo{Size: 1}

	_, err = uc.Confirm(ctx, "user-2", resp.Bucket, resp.Key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetUploadOwnership(t *testing.T) {
	uc, _, _, _, _, _, _, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Presign(ctx, "user-1", "hw.pdf", "application/pdf", "")
	require.NoError(t, err)

	_, err = uc.GetUpload(ctx, "user-1", resp.UploadID)
	assert.NoError(t, err)

	_, err = uc.GetUpload(ctx, "user-2", resp.UploadID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteUploadRemovesDerivedState(t *testing.T) {
	uc, uploads, parses, analyses, objects, _, _, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Presign(ctx, "user-1", "hw.pdf", "application/pdf", "")
	require.NoError(t, err)

	require.NoError(t, parses.UpsertParseResult(ctx, domain.ParseResult{UploadID: resp.UploadID, Text: "t"}))
	require.NoError(t, analyses.CreateAnalysis(ctx, domain.AnalysisResult{
		ID: "a1", UploadID: resp.UploadID, Status: domain.AnalysisCompleted, SolutionKey: resp.UploadID + "/a1.pdf",
	}))
	objects.data[resp.Key] = []byte("pdf")
	objects.data[resp.UploadID+"/a1.pdf"] = []byte("pdf")

	require.NoError(t, uc.DeleteUpload(ctx, "user-1", resp.UploadID))

	_, err = uploads.Upload(ctx, resp.UploadID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = parses.ParseResult(ctx, resp.UploadID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, analyses.byID)
	assert.NotContains(t, objects.data, resp.Key)
	assert.NotContains(t, objects.data, resp.UploadID+"/a1.pdf")
}

func TestDeleteUploadCrossUser(t *testing.T) {
	uc, uploads, _, _, _, _, _, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Presign(ctx, "user-1", "hw.pdf", "application/pdf", "")
	require.NoError(t, err)

	err = uc.DeleteUpload(ctx, "user-2", resp.UploadID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = uploads.Upload(ctx, resp.UploadID)
	assert.NoError(t, err)
}

func TestGetUploadStoreOutageIsNotNotFound(t *testing.T) {
	uc, uploads, _, _, _, _, _, _ := newTestUsecase()
	ctx := context.Background()

	resp, err := uc.Presign(ctx, "user-1", "hw.pdf", "application/pdf", "")
	require.NoError(t, err)

	uploads.loadErr = errBoom
	_, err = uc.GetUpload(ctx, "user-1", resp.UploadID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, errBoom)
}

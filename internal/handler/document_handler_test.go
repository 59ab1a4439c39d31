package handler

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/internal/service"
)

// testDocumentService 以固定结果模拟摄取服务。
type testDocumentService struct {
	result    *service.UploadResultDTO
	ingestErr error
}

func (s *testDocumentService) Ingest(ctx context.Context, filename string, content []byte) (*service.UploadResultDTO, error) {
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	return s.result, nil
}

func (s *testDocumentService) GetDocument(id uint) (*model.Document, error) {
	return nil, fmt.Errorf("record not found")
}

func uploadRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "test.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newUploadRouter(svc service.DocumentService, maxFileSize int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/documents/upload", NewDocumentHandler(svc, maxFileSize).Upload)
	return r
}

func TestUploadSuccess(t *testing.T) {
	svc := &testDocumentService{result: &service.UploadResultDTO{
		DocumentID: 1, Filename: "test.pdf", Status: "pending",
	}}
	rec := httptest.NewRecorder()
	newUploadRouter(svc, 1024).ServeHTTP(rec, uploadRequest(t, []byte("content")))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"documentId":1`)
}

func TestUploadDuplicateReturnsOK(t *testing.T) {
	svc := &testDocumentService{result: &service.UploadResultDTO{
		DocumentID: 1, Filename: "test.pdf", Status: "embedded", Duplicate: true,
	}}
	rec := httptest.NewRecorder()
	newUploadRouter(svc, 1024).ServeHTTP(rec, uploadRequest(t, []byte("content")))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadDatabaseDownReturns503(t *testing.T) {
	svc := &testDocumentService{
		ingestErr: fmt.Errorf("查询重复文档失败: %w: connection refused", service.ErrDatabaseUnavailable),
	}
	rec := httptest.NewRecorder()
	newUploadRouter(svc, 1024).ServeHTTP(rec, uploadRequest(t, []byte("content")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploadUnexpectedErrorReturns500(t *testing.T) {
	svc := &testDocumentService{ingestErr: fmt.Errorf("boom")}
	rec := httptest.NewRecorder()
	newUploadRouter(svc, 1024).ServeHTTP(rec, uploadRequest(t, []byte("content")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUploadFileTooLarge(t *testing.T) {
	svc := &testDocumentService{result: &service.UploadResultDTO{DocumentID: 1}}
	rec := httptest.NewRecorder()
	newUploadRouter(svc, 4).ServeHTTP(rec, uploadRequest(t, []byte("more than four bytes")))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

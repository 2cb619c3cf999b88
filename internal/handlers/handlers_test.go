package handlers_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"mangashelf-backend/internal/events"
	"mangashelf-backend/internal/handlers"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/repository/memory"
	"mangashelf-backend/internal/sequence"
	"mangashelf-backend/internal/services"
	"mangashelf-backend/internal/storage"
)

type testServer struct {
	router    *gin.Engine
	uploadDir string
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, maxUploadBytes int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	store := memory.NewStore()
	store.AddUser(models.User{ID: 7, Username: "reader", Email: "reader@example.com"})
	store.AddVolume(models.Volume{ID: 3, Title: "Vol. 1", Price: decimal.RequireFromString("10.00")})
	store.AddVolume(models.Volume{ID: 5, Title: "Vol. 2", Price: decimal.RequireFromString("15.00")})

	uploadDir := t.TempDir()
	objects, err := storage.NewLocalStore(uploadDir)
	require.NoError(t, err)
	staging, err := storage.NewStaging(uploadDir)
	require.NoError(t, err)

	seq := sequence.NewMemorySequencer()
	publisher := events.NewNoopPublisher()
	limits := services.ArchiveLimits{MaxEntries: 100, MaxArchiveBytes: 1 << 20, MaxEntryBytes: 1 << 20}

	router := handlers.NewRouter(handlers.RouterConfig{
		Orders:         handlers.NewOrdersHandler(services.NewOrderService(store, seq, publisher, logger)),
		Payments:       handlers.NewPaymentsHandler(services.NewPaymentService(store, seq, publisher, logger)),
		Pages:          handlers.NewPagesHandler(services.NewPageService(store, objects, staging, limits, publisher, logger), maxUploadBytes, logger),
		Health:         handlers.NewHealthHandler(store, logger),
		Logger:         logger,
		UploadDir:      uploadDir,
		StagingDirName: storage.StagingDirName,
	})
	return &testServer{router: router, uploadDir: uploadDir}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	health := decode[models.HealthResponse](t, w)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
}

func TestHealth_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	router.GET("/health", handlers.NewHealthHandler(down, zaptest.NewLogger(t)).Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}

func TestOrderAndPaymentFlow(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/v1/orders", gin.H{"userId": 7, "volumeIds": []int64{3, 5}, "paymentMethod": "CARD"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.FinalAmount.Equal(decimal.RequireFromString("25")))
	assert.Contains(t, w.Body.String(), `"orderItems"`)

	orderPath := "/api/v1/orders/" + itoa(order.ID)
	w = s.do(t, http.MethodGet, orderPath, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/payments", gin.H{"orderId": order.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	payment := decode[models.Payment](t, w)
	assert.True(t, strings.HasPrefix(payment.PaymentNumber, "PAY-"))

	paymentPath := "/api/v1/payments/" + itoa(payment.ID)
	w = s.do(t, http.MethodPost, paymentPath+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, paymentPath+"/complete?pgTransactionId=TXN1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.PaymentStatusCompleted, decode[models.Payment](t, w).Status)

	w = s.do(t, http.MethodPost, paymentPath+"/complete?pgTransactionId=TXN2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "business_rule_violation", decode[models.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodGet, "/api/v1/payments/order/"+itoa(order.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, paymentPath+"/refund?refundReason=damaged", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	refunded := decode[models.Payment](t, w)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)

	w = s.do(t, http.MethodGet, orderPath, nil)
	assert.Equal(t, models.OrderStatusRefunded, decode[models.Order](t, w).Status)

	w = s.do(t, http.MethodGet, "/api/v1/orders?userId=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.OrderListResponse](t, w).Orders, 1)
}

func TestOrders_ErrorMapping(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"missing volumes", http.MethodPost, "/api/v1/orders", gin.H{"userId": 7}, http.StatusBadRequest, "validation_failed"},
		{"unknown user", http.MethodPost, "/api/v1/orders", gin.H{"userId": 99, "volumeIds": []int64{3}}, http.StatusNotFound, "not_found"},
		{"unknown volume", http.MethodPost, "/api/v1/orders", gin.H{"userId": 7, "volumeIds": []int64{404}}, http.StatusNotFound, "not_found"},
		{"malformed id", http.MethodGet, "/api/v1/orders/abc", nil, http.StatusBadRequest, "validation_failed"},
		{"unknown order", http.MethodGet, "/api/v1/orders/404", nil, http.StatusNotFound, "not_found"},
		{"list without user", http.MethodGet, "/api/v1/orders", nil, http.StatusBadRequest, "validation_failed"},
		{"unknown status", http.MethodPut, "/api/v1/orders/1/status?status=SHIPPED", nil, http.StatusBadRequest, "validation_failed"},
		{"cancel without user", http.MethodDelete, "/api/v1/orders/1", nil, http.StatusBadRequest, "validation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decode[models.ErrorResponse](t, w).Error)
		})
	}
}

func TestCancelOrder(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/v1/orders", gin.H{"userId": 7, "volumeIds": []int64{3}})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[models.Order](t, w)
	orderPath := "/api/v1/orders/" + itoa(order.ID)

	w = s.do(t, http.MethodDelete, orderPath+"?userId=8", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, orderPath+"?userId=7", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, orderPath, nil)
	assert.Equal(t, models.OrderStatusCancelled, decode[models.Order](t, w).Status)
}

func TestUploadArchive(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.upload(t, "/api/v1/pages/volume/3/upload-zip", map[string][]byte{
		"a.jpg":     []byte("jpeg"),
		"notes.txt": []byte("skip"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pages := decode[[]models.Page](t, w)
	require.Len(t, pages, 1)
	assert.Equal(t, "/uploads/volumes/3/page_001.jpg", pages[0].ImagePath)
	assert.FileExists(t, filepath.Join(s.uploadDir, "volumes", "3", "page_001.jpg"))

	w = s.do(t, http.MethodGet, "/uploads/volumes/3/page_001.jpg", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/pages/volume/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Page](t, w), 1)

	w = s.do(t, http.MethodDelete, "/api/v1/pages/volume/3", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUploadArchive_Rejections(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.upload(t, "/api/v1/pages/volume/404/upload-zip", map[string][]byte{"a.jpg": []byte("a")})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.upload(t, "/api/v1/pages/volume/3/upload-zip", map[string][]byte{"../evil.jpg": []byte("a")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pages/volume/3/upload-zip", strings.NewReader("nothing"))
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadArchive_TooLarge(t *testing.T) {
	s := newTestServer(t, 512)

	w := s.upload(t, "/api/v1/pages/volume/3/upload-zip", map[string][]byte{
		"a.png": bytes.Repeat([]byte("x"), 4096),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestStagingIsNotServed(t *testing.T) {
	s := newTestServer(t, 0)
	staged := filepath.Join(s.uploadDir, storage.StagingDirName, "batch", "page_001.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(staged), 0o755))
	require.NoError(t, os.WriteFile(staged, []byte("partial"), 0o644))

	w := s.do(t, http.MethodGet, "/uploads/.staging/batch/page_001.jpg", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPageEndpoints(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/v1/pages", gin.H{
		"volumeId": 3, "pageNumber": 1, "imagePath": "/uploads/volumes/3/page_001.jpg",
		"frameData": gin.H{"frames": []int{}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	page := decode[models.Page](t, w)
	pagePath := "/api/v1/pages/" + itoa(page.ID)

	w = s.do(t, http.MethodPost, "/api/v1/pages", gin.H{"volumeId": 3, "pageNumber": 1, "imagePath": "/dup.jpg"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, pagePath, gin.H{"imagePath": "/other.jpg"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/other.jpg", decode[models.Page](t, w).ImagePath)

	w = s.do(t, http.MethodPut, pagePath+"/reorder?newPageNumber=4", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4, decode[models.Page](t, w).PageNumber)

	w = s.do(t, http.MethodPut, pagePath+"/reorder?newPageNumber=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, pagePath, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, pagePath, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, pagePath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (s *testServer) upload(t *testing.T, path string, entries map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	for name, body := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		require.NoError(t, err)
		_, err = fw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "volume.zip")
	require.NoError(t, err)
	_, err = part.Write(archive.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

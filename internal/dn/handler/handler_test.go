package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/reconcile"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/dn/service"
	"dn_tracker_backend/internal/dn/transport"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/logger"
	"dn_tracker_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// stubStore implements only what the routes under test reach.
type stubStore struct {
	repository.DNStore
	repository.SyncLogStore
	records int64
}

func (s *stubStore) EnsureDN(_ context.Context, number string, _ map[string]*string) (repository.DN, error) {
	return repository.DN{ID: 1, DNNumber: number, Fields: map[string]*string{}}, nil
}

func (s *stubStore) AddRecord(_ context.Context, rec repository.NewRecord) (repository.Record, error) {
	s.records++
	return repository.Record{ID: s.records, DNNumber: rec.DNNumber, Status: rec.Status}, nil
}

func (s *stubStore) GetDN(_ context.Context, number string) (repository.DN, error) {
	return repository.DN{}, apperr.NotFound("dn not found")
}

func (s *stubStore) LatestSyncLog(context.Context) (*repository.SyncLog, error) {
	return nil, nil
}

type failingSyncer struct{}

func (failingSyncer) Run(context.Context, dnsync.Trigger) (reconcile.Result, error) {
	return reconcile.Result{}, &dnsync.RunError{Err: errors.New("sheets api unreachable"), Trace: "trace"}
}

func newTestEngine(t *testing.T) (*gin.Engine, *stubStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	val := validator.New()
	if err := transport.RegisterValidations(val); err != nil {
		t.Fatalf("register validations: %v", err)
	}
	store := &stubStore{}
	svc := service.New(service.Deps{Store: store, Syncer: failingSyncer{}, Log: logger.NewDiscard()})
	h := New(svc, val, 1<<20)

	engine := gin.New()
	group := engine.Group("/api/v1/dn")
	h.RegisterPublicRoutes(group)
	h.RegisterAdminRoutes(group, func(c *gin.Context) { c.Next() })
	return engine, store
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestUpdateAcceptsMultipart(t *testing.T) {
	engine, store := newTestEngine(t)
	body, contentType := multipartBody(t, map[string]string{"dnNumber": "dn1", "status": "ON SITE", "remark": "gate 3"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dn/update", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp transport.UpdateDNResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.DNNumber != "DN1" || store.records != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	engine, _ := newTestEngine(t)
	body, contentType := multipartBody(t, map[string]string{"dnNumber": "DN1", "status": "delivered"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dn/update", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"dn_status"`) {
		t.Fatalf("expected field details, got %s", w.Body.String())
	}
}

func TestGetMissingDN(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dn/numbers/DN404", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSyncFailureCarriesErrorInfo(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/dn/sync", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp transport.SyncFailureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OK || resp.Error != "dn_sync_failed" || resp.ErrorInfo.Message != "sheets api unreachable" {
		t.Fatalf("unexpected failure body %+v", resp)
	}
}

func TestEnqueueSyncWithoutQueue(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/dn/sync/async", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestLatestSyncLogBeforeFirstRun(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dn/sync/log/latest", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"data":null`) {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestRecordRoutesRejectBadID(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/dn/records/abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

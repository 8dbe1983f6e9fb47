package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnigest/internal/audit"
	"omnigest/internal/compliance"
	"omnigest/internal/domain"
	"omnigest/internal/normalizer"
	"omnigest/internal/parser"
	"omnigest/internal/pipeline"
	"omnigest/internal/record"
	"omnigest/internal/storage"
)

type fixture struct {
	handler http.Handler
	store   *storage.MemoryStore
	trail   *audit.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := storage.NewMemoryStore()
	trail := audit.NewMemoryStore()
	auditor := audit.NewService(trail, nil, logger)

	engine := compliance.NewEngine(compliance.Config{
		RetentionDays:      365,
		NoticeYear:         2026,
		AuthorizedPurposes: []string{"Consultation", "Treatment", "Audit", "Emergency Care"},
	}).WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })

	svc := pipeline.New(pipeline.Options{
		Registry:   parser.NewRegistry(),
		Normalizer: normalizer.New(),
		Builder:    record.NewBuilder(record.Config{NoticeYear: 2026, DefaultNoticeDate: "2026-01-01"}),
		Engine:     engine,
		Store:      store,
		Auditor:    auditor,
		Logger:     logger,
		Workers:    2,
	})

	handler := NewRouter(NewHandler(svc, store, auditor, logger), logger)
	return &fixture{handler: handler, store: store, trail: trail}
}

func (fx *fixture) seed(t *testing.T, rec *domain.CanonicalRecord) {
	t.Helper()
	require.NoError(t, fx.store.Save(context.Background(), rec))
}

func processedRecord() *domain.CanonicalRecord {
	d := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	return &domain.CanonicalRecord{
		PatientName:   "Asha Rao",
		IdentityID:    "12-3456-7890-1234",
		ConsentStatus: domain.ConsentGranted,
		NoticeID:      "N-2026-CONS-v1.2",
		NoticeDate:    &d,
		DataPurpose:   "Treatment",
		IngestStatus:  domain.StatusProcessed,
		StatusReason:  domain.ReasonNone,
	}
}

func purgedRecord() *domain.CanonicalRecord {
	return &domain.CanonicalRecord{
		PatientName:     domain.RedactedValue,
		IdentityID:      domain.RedactedValue,
		ClinicalPayload: domain.ErasedPayload,
		ConsentStatus:   domain.ConsentRevoked,
		NoticeID:        "N-2026-REV-v1.0",
		IngestStatus:    domain.StatusPurged,
		StatusReason:    domain.ReasonConsentRevoked,
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestIngestEndpoint(t *testing.T) {
	fx := newFixture(t)

	csv := "pt_name,abha-number,consent_status,notice_id,notice_date\n" +
		"Vikram Malhotra,91-1234-5678-9012,REVOKED,N-2026-CONS-v1.2,2026-01-10\n"
	body, contentType := multipartBody(t, "intake.csv", csv)

	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Files []pipeline.FileResult `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, 1, resp.Files[0].Summary.Purged)

	rec, err := fx.store.FindByNoticeID(context.Background(), "N-2026-CONS-v1.2")
	require.NoError(t, err)
	assert.Equal(t, domain.RedactedValue, rec.PatientName)
}

func TestIngestEndpointRejectsEmptyForm(t *testing.T) {
	fx := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetRecord(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, processedRecord())

	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/records/N-2026-CONS-v1.2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Asha Rao")

	rr = httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/records/N-2026-NOPE-v9.9", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPreviewMasksIdentifiers(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, processedRecord())
	fx.seed(t, purgedRecord())

	preview := func() string {
		rr := httptest.NewRecorder()
		fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/records/preview", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		return rr.Body.String()
	}

	first := preview()
	assert.NotContains(t, first, "Asha Rao")
	assert.NotContains(t, first, "12-3456-7890-1234")
	assert.Regexp(t, `Pt_[0-9a-f]{8}`, first)
	assert.Regexp(t, `ABHA_[0-9a-f]{8}`, first)
	assert.Contains(t, first, domain.RedactedValue, "purged records keep their sentinels")

	// A fresh vault per request: aliases never correlate across calls.
	assert.NotEqual(t, first, preview())
}

func TestRecordsSummary(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, processedRecord())
	fx.seed(t, purgedRecord())

	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/records/summary", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var summary pipeline.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Purged)
}

func TestExportCSV(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, processedRecord())
	fx.seed(t, purgedRecord())

	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Asha Rao")
	assert.Contains(t, rr.Body.String(), domain.ErasedPayload)
}

func TestExportCompliantExcludesPurged(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, processedRecord())
	fx.seed(t, purgedRecord())

	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/compliant", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Asha Rao")
	assert.NotContains(t, rr.Body.String(), "N-2026-REV-v1.0")
}

func TestExportBundle(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, processedRecord())
	fx.seed(t, purgedRecord())

	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/fhir-bundle", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var bundle map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bundle))
	assert.Equal(t, "Bundle", bundle["resourceType"])
	assert.Equal(t, "collection", bundle["type"])
	entries := bundle["entry"].([]any)
	assert.Len(t, entries, 1)
}

func TestAuditTrailEndpoint(t *testing.T) {
	fx := newFixture(t)

	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?limit=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "events")
}

func TestHardDelete(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t, processedRecord())
	fx.seed(t, purgedRecord())

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/hard-delete", strings.NewReader(body))
		rr := httptest.NewRecorder()
		fx.handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusBadRequest, post(`{}`).Code)
	assert.Equal(t, http.StatusNotFound, post(`{"notice_id":"N-2026-NOPE-v9.9"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"notice_id":"N-2026-CONS-v1.2"}`).Code, "processed records cannot be hard-deleted")
	assert.Equal(t, http.StatusNoContent, post(`{"notice_id":"N-2026-REV-v1.0"}`).Code)

	_, err := fx.store.FindByNoticeID(context.Background(), "N-2026-REV-v1.0")
	assert.Error(t, err)

	events, err := fx.trail.List(context.Background(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, audit.ActionHardDeleted, events[0].Action)
}

func TestConfigReload(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/config/reload",
		strings.NewReader(`{"notice_year":2027}`))
	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(2027), resp["notice_year"])
	assert.Equal(t, float64(365), resp["retention_days"], "omitted fields keep current values")

	events, err := fx.trail.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionConfigReload, events[0].Action)
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t)
	rr := httptest.NewRecorder()
	fx.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

// Package httptransport is the thin HTTP layer. Handlers delegate to the
// pipeline and stores without embedding business logic so transport concerns
// stay isolated.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"omnigest/internal/audit"
	"omnigest/internal/compliance"
	"omnigest/internal/domain"
	"omnigest/internal/export"
	"omnigest/internal/pipeline"
	"omnigest/internal/platform/middleware"
	"omnigest/internal/storage"
	derrors "omnigest/pkg/domain-errors"
)

// maxUploadBytes bounds a single ingestion request.
const maxUploadBytes = 64 << 20

type Handler struct {
	pipeline *pipeline.Service
	store    storage.RecordStore
	auditor  *audit.Service
	logger   *slog.Logger
}

func NewHandler(p *pipeline.Service, store storage.RecordStore, auditor *audit.Service, logger *slog.Logger) *Handler {
	return &Handler{pipeline: p, store: store, auditor: auditor, logger: logger}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ingest", h.handleIngest)

	r.Get("/records", h.handleListRecords)
	r.Get("/records/preview", h.handlePreviewRecords)
	r.Get("/records/summary", h.handleSummary)
	r.Get("/records/{noticeID}", h.handleGetRecord)

	r.Get("/export/csv", h.handleExportCSV)
	r.Get("/export/json", h.handleExportJSON)
	r.Get("/export/xlsx", h.handleExportExcel)
	r.Get("/export/compliant", h.handleExportCompliant)
	r.Get("/export/fhir-bundle", h.handleExportBundle)

	r.Get("/audit", h.handleAuditTrail)

	r.Post("/admin/hard-delete", h.handleHardDelete)
	r.Post("/admin/config/reload", h.handleConfigReload)
}

// handleIngest accepts one or more files as multipart form data and runs each
// through the pipeline. Files are independent; per-file outcomes are reported
// in the response body.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, derrors.Wrap(err, derrors.CodeBadRequest, "invalid multipart request"))
		return
	}

	var files []pipeline.NamedReader
	var closers []io.Closer
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				writeError(w, derrors.Wrap(err, derrors.CodeBadRequest, fmt.Sprintf("open upload %s", fh.Filename)))
				return
			}
			closers = append(closers, f)
			files = append(files, pipeline.NamedReader{Name: fh.Filename, Reader: f})
		}
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	if len(files) == 0 {
		writeError(w, derrors.New(derrors.CodeBadRequest, "no files in request"))
		return
	}

	results := h.pipeline.IngestBatch(ctx, files, middleware.GetActor(ctx))
	writeJSON(w, http.StatusOK, map[string]any{"files": results})
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteJSON(w, records); err != nil {
		h.logger.Error("write records response", "error", err)
	}
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	noticeID := chi.URLParam(r, "noticeID")
	rec, err := h.store.FindByNoticeID(r.Context(), noticeID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteJSON(w, []*domain.CanonicalRecord{rec}); err != nil {
		h.logger.Error("write record response", "error", err)
	}
}

// handlePreviewRecords returns records with direct identifiers replaced by
// pseudonyms scoped to this request. The vault key is shredded when the
// request finishes, so aliases from different requests cannot be linked.
func (h *Handler) handlePreviewRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	vault, err := compliance.NewVault()
	if err != nil {
		writeError(w, err)
		return
	}
	defer vault.Shred()

	if err := compliance.MaskPreview(vault, records); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteJSON(w, records); err != nil {
		h.logger.Error("write preview response", "error", err)
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.SummarizeStored(records))
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.tabularExport(w, r, "records.csv", "text/csv", export.WriteCSV, false)
}

func (h *Handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	h.tabularExport(w, r, "records.json", "application/json", export.WriteJSON, false)
}

func (h *Handler) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	h.tabularExport(w, r, "records.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.WriteExcel, false)
}

// handleExportCompliant is the partner-facing CSV: processed records only.
func (h *Handler) handleExportCompliant(w http.ResponseWriter, r *http.Request) {
	h.tabularExport(w, r, "compliant.csv", "text/csv", export.WriteCSV, true)
}

func (h *Handler) tabularExport(
	w http.ResponseWriter,
	r *http.Request,
	filename, contentType string,
	write func(io.Writer, []*domain.CanonicalRecord) error,
	compliantOnly bool,
) {
	ctx := r.Context()
	records, err := h.store.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if compliantOnly {
		records = export.Compliant(records)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := write(w, records); err != nil {
		h.logger.Error("write export", "file", filename, "error", err)
		return
	}
	h.auditExport(ctx, filename, len(records))
}

func (h *Handler) handleExportBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.store.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	bundle := export.BuildBundle(records, time.Now())
	h.auditExport(ctx, "fhir-bundle", len(bundle.Entry))
	writeJSON(w, http.StatusOK, bundle)
}

func (h *Handler) auditExport(ctx context.Context, format string, count int) {
	if err := h.auditor.Emit(ctx, audit.Event{
		Action: audit.ActionExported,
		Actor:  middleware.GetActor(ctx),
		Status: "EXPORTED",
		Reason: fmt.Sprintf("%s (%d records)", format, count),
	}); err != nil {
		h.logger.Error("audit export", "error", err)
	}
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, derrors.New(derrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	events, err := h.auditor.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type hardDeleteRequest struct {
	NoticeID string `json:"notice_id"`
}

// handleHardDelete physically removes a purged record. Records that have not
// been purged by the rules cannot be deleted this way.
func (h *Handler) handleHardDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req hardDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NoticeID == "" {
		writeError(w, derrors.New(derrors.CodeBadRequest, "notice_id is required"))
		return
	}

	if err := h.store.HardDelete(ctx, req.NoticeID); err != nil {
		if errors.Is(err, storage.ErrNotPurged) {
			writeError(w, derrors.Wrap(err, derrors.CodeBadRequest, "record must be purged before hard deletion"))
			return
		}
		writeError(w, err)
		return
	}

	if err := h.auditor.Emit(ctx, audit.Event{
		Action: audit.ActionHardDeleted,
		Actor:  middleware.GetActor(ctx),
		Status: "DELETED",
		Reason: req.NoticeID,
	}); err != nil {
		h.logger.Error("audit hard delete", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type reloadRequest struct {
	RetentionDays      int      `json:"retention_days"`
	NoticeYear         int      `json:"notice_year"`
	AuthorizedPurposes []string `json:"authorized_purposes"`
}

// handleConfigReload rebuilds the rule engine from the submitted values.
// Omitted fields keep their current values.
func (h *Handler) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	current := h.pipeline.Engine().Config()
	next := compliance.Config{
		RetentionDays:      current.RetentionDays,
		NoticeYear:         current.NoticeYear,
		AuthorizedPurposes: current.AuthorizedPurposes,
	}
	if req.RetentionDays > 0 {
		next.RetentionDays = req.RetentionDays
	}
	if req.NoticeYear > 0 {
		next.NoticeYear = req.NoticeYear
	}
	if len(req.AuthorizedPurposes) > 0 {
		next.AuthorizedPurposes = req.AuthorizedPurposes
	}

	if err := h.pipeline.ReloadRules(ctx, next, middleware.GetActor(ctx)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"retention_days":      next.RetentionDays,
		"notice_year":         next.NoticeYear,
		"authorized_purposes": next.AuthorizedPurposes,
	})
}

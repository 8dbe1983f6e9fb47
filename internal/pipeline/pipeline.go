// Package pipeline drives a file from raw bytes to a classified, stored
// record: parse, normalize column names, build the canonical record, resolve
// a missing identity, evaluate the compliance rules, erase what must not be
// kept, persist, and leave an audit entry. Files in a batch are independent;
// one malformed file never aborts the others.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"omnigest/internal/audit"
	"omnigest/internal/compliance"
	"omnigest/internal/domain"
	"omnigest/internal/normalizer"
	"omnigest/internal/parser"
	"omnigest/internal/platform/metrics"
	"omnigest/internal/record"
	"omnigest/internal/resolver"
	"omnigest/internal/storage"
)

// Auditor records classification outcomes. Both the synchronous audit
// service and the buffering worker satisfy it, so main can choose whether
// trail writes sit on the ingestion path.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service wires the stages together. The engine sits behind a mutex because
// the audited reload operation replaces it at runtime.
type Service struct {
	registry *parser.Registry
	norm     *normalizer.Normalizer
	builder  *record.Builder
	resolver *resolver.Resolver
	store    storage.RecordStore
	auditor  Auditor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer

	policy  record.FillPolicy
	workers int

	mu     sync.RWMutex
	engine *compliance.Engine
}

// Options collects the collaborators main assembles.
type Options struct {
	Registry   *parser.Registry
	Normalizer *normalizer.Normalizer
	Builder    *record.Builder
	Resolver   *resolver.Resolver
	Engine     *compliance.Engine
	Store      storage.RecordStore
	Auditor    Auditor
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Autofill   bool
	Workers    int
}

func New(opts Options) *Service {
	policy := record.FillStrict
	if opts.Autofill {
		policy = record.FillAutofill
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Service{
		registry: opts.Registry,
		norm:     opts.Normalizer,
		builder:  opts.Builder,
		resolver: opts.Resolver,
		engine:   opts.Engine,
		store:    opts.Store,
		auditor:  opts.Auditor,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		tracer:   otel.Tracer("omnigest/pipeline"),
		policy:   policy,
		workers:  workers,
	}
}

// Engine returns the current rule engine.
func (s *Service) Engine() *compliance.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// ReloadRules swaps the rule engine and audits the change. In-flight
// evaluations finish on the engine they started with.
func (s *Service) ReloadRules(ctx context.Context, cfg compliance.Config, actor string) error {
	engine := compliance.NewEngine(cfg)
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()

	s.logger.Info("compliance rules reloaded",
		"retention_days", cfg.RetentionDays,
		"notice_year", cfg.NoticeYear,
		"authorized_purposes", cfg.AuthorizedPurposes,
	)
	return s.auditor.Emit(ctx, audit.Event{
		Action: audit.ActionConfigReload,
		Actor:  actor,
		Status: "APPLIED",
		Reason: fmt.Sprintf("retention=%dd year=%d", cfg.RetentionDays, cfg.NoticeYear),
	})
}

// FileResult reports the outcome for one input file.
type FileResult struct {
	File    string  `json:"file"`
	Format  string  `json:"format,omitempty"`
	Error   string  `json:"error,omitempty"`
	Summary Summary `json:"summary"`
}

// NamedReader pairs an input stream with the filename that selects its parser.
type NamedReader struct {
	Name   string
	Reader io.Reader
}

// IngestFile runs one file through the full pipeline.
func (s *Service) IngestFile(ctx context.Context, name string, r io.Reader, actor string) (FileResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.ingest_file",
		trace.WithAttributes(attribute.String("file.name", name)))
	defer span.End()

	start := time.Now()
	result := FileResult{File: name, Summary: NewSummary()}

	p, err := s.registry.ForFilename(name)
	if err != nil {
		s.metrics.IncParseFailure("unknown", "unsupported")
		return result, err
	}
	result.Format = p.Format()

	raws, err := p.Parse(name, r)
	if err != nil {
		s.metrics.IncParseFailure(p.Format(), "malformed")
		return result, fmt.Errorf("parse %s: %w", name, err)
	}
	span.SetAttributes(attribute.Int("records.count", len(raws)))

	summaries := make([]Summary, len(raws))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, raw := range raws {
		g.Go(func() error {
			rec, err := s.processRecord(groupCtx, raw, name, actor)
			if err != nil {
				return err
			}
			summaries[i] = summarize(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	for _, sum := range summaries {
		result.Summary.Merge(sum)
	}
	s.metrics.ObserveFile(time.Since(start))
	return result, nil
}

// IngestBatch processes files independently. A file that fails to parse is
// reported in its result; the batch itself only fails on storage errors.
func (s *Service) IngestBatch(ctx context.Context, files []NamedReader, actor string) []FileResult {
	results := make([]FileResult, 0, len(files))
	for _, f := range files {
		res, err := s.IngestFile(ctx, f.Name, f.Reader, actor)
		if err != nil {
			res.Error = err.Error()
			s.logger.Warn("file ingestion failed", "file", f.Name, "error", err)
		}
		results = append(results, res)
	}
	return results
}

// processRecord takes one raw record end to end. The subject hash for the
// audit trail is computed before erasure; afterwards the identifier is gone.
func (s *Service) processRecord(ctx context.Context, raw *domain.RawRecord, source, actor string) (*domain.CanonicalRecord, error) {
	normalized, _ := s.norm.Normalize(raw)
	rec := s.builder.Build(normalized, s.policy)

	if rec.IdentityID == "" && s.resolver != nil {
		id, discovery := s.resolver.Resolve(ctx, rec)
		rec.IdentityID = id
		rec.DiscoveryStatus = discovery
	}

	subjectHash := compliance.Fingerprint(rec.IdentityID)

	rec.IngestStatus, rec.StatusReason = s.Engine().Evaluate(rec)
	if rec.IngestStatus == domain.StatusPurged {
		compliance.Purge(rec)
	}
	s.metrics.IncClassified(string(rec.IngestStatus), string(rec.StatusReason))
	s.metrics.AddUnmappedColumns(len(rec.Unmapped))

	// A file with no notice column still produces classified records. They
	// get a synthetic storage key so persistence and the audit trail never
	// depend on a field the rules have already acted on.
	if rec.NoticeID == "" {
		rec.NoticeID = syntheticNoticeKey()
		rec.AddFlag(domain.FlagSyntheticNoticeKey)
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record %s: %w", rec.NoticeID, err)
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:      actionFor(rec.IngestStatus),
		Actor:       actor,
		SubjectHash: subjectHash,
		Status:      string(rec.IngestStatus),
		Reason:      string(rec.StatusReason),
		Source:      source,
	}); err != nil {
		return nil, fmt.Errorf("audit record %s: %w", rec.NoticeID, err)
	}
	return rec, nil
}

func syntheticNoticeKey() string {
	return "UNKEYED-" + uuid.NewString()
}

func actionFor(status domain.IngestStatus) audit.Action {
	switch status {
	case domain.StatusPurged:
		return audit.ActionPurged
	case domain.StatusQuarantined:
		return audit.ActionQuarantined
	default:
		return audit.ActionIngested
	}
}

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"omnigest/internal/platform/metrics"
)

// Sink receives a serialized copy of every event, typically a message broker.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Service captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. A broker sink
// is best-effort: publish failures are logged, never surfaced to the caller,
// because losing a broker must not block erasure.
type Service struct {
	store   Store
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store Store, sink Sink, logger *slog.Logger) *Service {
	return &Service{store: store, sink: sink, logger: logger, now: time.Now}
}

// WithClock fixes the timestamp source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithMetrics attaches the event counter.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Emit stamps and persists an event, then fans it out to the sink.
func (s *Service) Emit(ctx context.Context, event Event) error {
	if event.AuditID == uuid.Nil {
		event.AuditID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.store.Append(ctx, event); err != nil {
		return err
	}
	s.metrics.IncAuditEvent()

	if s.sink != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("marshal audit event", "error", err)
			return nil
		}
		if err := s.sink.Publish(ctx, event.SubjectHash, payload); err != nil {
			s.logger.Warn("audit sink publish failed", "action", event.Action, "error", err)
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Event, error) {
	return s.store.List(ctx, limit)
}

// Package resolver recovers missing health identifiers. Resolution is purely
// additive: it consults a local cache keyed by patient name, then an injected
// external lookup with a bounded timeout, and on any failure the record simply
// proceeds unresolved. Nothing here can make a record worse.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"omnigest/internal/domain"
	"omnigest/internal/platform/metrics"
	"omnigest/pkg/platform/sentinel"
)

// Cache stores name→identifier associations learned in earlier sessions.
type Cache interface {
	Get(ctx context.Context, name string) (string, error)
	Put(ctx context.Context, name, id string) error
}

// Lookup is the external identity gateway capability.
type Lookup interface {
	Lookup(ctx context.Context, hint string) (string, error)
}

// Resolver ties the cache and lookup together. Either collaborator may be
// nil; a nil collaborator is skipped.
type Resolver struct {
	cache   Cache
	lookup  Lookup
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(cache Cache, lookup Lookup, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{cache: cache, lookup: lookup, timeout: timeout, logger: logger, metrics: m}
}

// Resolve returns the identifier for a record and how it was discovered. A
// record that already carries an identifier passes through untouched. Lookup
// failures degrade to unresolved; the compliance engine quarantines the
// record downstream exactly as if resolution had never been attempted.
func (r *Resolver) Resolve(ctx context.Context, rec *domain.CanonicalRecord) (string, domain.DiscoveryStatus) {
	if rec.IdentityID != "" {
		return rec.IdentityID, domain.DiscoveryNone
	}
	hint := rec.PatientName
	if hint == "" || hint == domain.RedactedValue {
		return "", domain.DiscoveryUnresolved
	}

	if r.cache != nil {
		start := time.Now()
		id, err := r.cache.Get(ctx, hint)
		r.metrics.ObserveResolver("cache", time.Since(start))
		switch {
		case err == nil && id != "":
			return id, domain.DiscoveryFromCache
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			r.logger.Warn("identity cache lookup failed", "error", err)
		}
	}

	if r.lookup != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		start := time.Now()
		id, err := r.lookup.Lookup(lookupCtx, hint)
		r.metrics.ObserveResolver("gateway", time.Since(start))
		if err != nil {
			r.logger.Warn("gateway identity lookup failed", "error", err)
			return "", domain.DiscoveryUnresolved
		}
		if id != "" {
			if r.cache != nil {
				if err := r.cache.Put(ctx, hint, id); err != nil {
					r.logger.Warn("identity cache write failed", "error", err)
				}
			}
			return id, domain.DiscoveryFromGateway
		}
	}

	return "", domain.DiscoveryUnresolved
}

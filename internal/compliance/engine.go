// Package compliance classifies canonical records under the data-protection
// rule set. The engine is a pure function of the record and its configuration:
// no I/O, no clock access beyond the injected now source, fully deterministic.
package compliance

import (
	"fmt"
	"regexp"
	"time"

	"omnigest/internal/domain"
)

// Config is the rule surface. Values come from startup configuration and are
// immutable for the lifetime of an Engine; reloading builds a new Engine.
type Config struct {
	RetentionDays      int
	NoticeYear         int
	AuthorizedPurposes []string
}

// Engine evaluates records against the rule set. Safe for concurrent use.
type Engine struct {
	cfg         Config
	noticeRegex *regexp.Regexp
	authorized  map[string]bool
	now         func() time.Time
}

// NewEngine builds an engine for the given rule configuration. The accepted
// notice pattern is derived from the configured year so it can roll forward
// without a release.
func NewEngine(cfg Config) *Engine {
	authorized := make(map[string]bool, len(cfg.AuthorizedPurposes))
	for _, p := range cfg.AuthorizedPurposes {
		authorized[p] = true
	}
	return &Engine{
		cfg:         cfg,
		noticeRegex: regexp.MustCompile(fmt.Sprintf(`^N-%d-[A-Z]{3,4}-v\d+\.\d+$`, cfg.NoticeYear)),
		authorized:  authorized,
		now:         time.Now,
	}
}

// WithClock returns a copy using the given now source. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	clone := *e
	clone.now = now
	return &clone
}

// Config returns the rule configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// ValidNoticeID reports whether a notice id matches the currently accepted
// version pattern.
func (e *Engine) ValidNoticeID(noticeID string) bool {
	return e.noticeRegex.MatchString(noticeID)
}

// rule is one ordered check. A rule either claims the record with a terminal
// classification or passes it to the next rule.
type rule struct {
	name string
	eval func(e *Engine, rec *domain.CanonicalRecord, now time.Time) (domain.IngestStatus, domain.StatusReason, bool)
}

// rules fire in order; the first match wins. Identity problems come first
// because they are data-quality defects a resubmission can fix, while the
// consent and retention rules below them are policy violations that purge.
var rules = []rule{
	{
		name: "missing_id",
		eval: func(e *Engine, rec *domain.CanonicalRecord, now time.Time) (domain.IngestStatus, domain.StatusReason, bool) {
			if rec.IdentityID == "" {
				return domain.StatusQuarantined, domain.ReasonMissingID, true
			}
			return "", "", false
		},
	},
	{
		name: "malformed_id",
		eval: func(e *Engine, rec *domain.CanonicalRecord, now time.Time) (domain.IngestStatus, domain.StatusReason, bool) {
			if !domain.ValidIdentityID(rec.IdentityID) {
				return domain.StatusQuarantined, domain.ReasonMalformedID, true
			}
			return "", "", false
		},
	},
	{
		name: "consent_revoked",
		eval: func(e *Engine, rec *domain.CanonicalRecord, now time.Time) (domain.IngestStatus, domain.StatusReason, bool) {
			if rec.ConsentStatus == domain.ConsentRevoked {
				return domain.StatusPurged, domain.ReasonConsentRevoked, true
			}
			return "", "", false
		},
	},
	{
		name: "notice_expired",
		eval: func(e *Engine, rec *domain.CanonicalRecord, now time.Time) (domain.IngestStatus, domain.StatusReason, bool) {
			// Absent dates are non-expired by policy; the builder has already
			// flagged them for operator review.
			if rec.NoticeDate == nil {
				return "", "", false
			}
			threshold := now.AddDate(0, 0, -e.cfg.RetentionDays)
			if rec.NoticeDate.Before(threshold) {
				return domain.StatusPurged, domain.ReasonNoticeExpired, true
			}
			return "", "", false
		},
	},
	{
		name: "outdated_notice_version",
		eval: func(e *Engine, rec *domain.CanonicalRecord, now time.Time) (domain.IngestStatus, domain.StatusReason, bool) {
			if !e.ValidNoticeID(rec.NoticeID) {
				return domain.StatusPurged, domain.ReasonOutdatedNoticeVersion, true
			}
			return "", "", false
		},
	},
	{
		name: "unauthorized_purpose",
		eval: func(e *Engine, rec *domain.CanonicalRecord, now time.Time) (domain.IngestStatus, domain.StatusReason, bool) {
			purpose := rec.DataPurpose
			if purpose == "" || purpose == "UNKNOWN" {
				return "", "", false
			}
			if !e.authorized[purpose] {
				return domain.StatusPurged, domain.ReasonUnauthorizedPurpose, true
			}
			return "", "", false
		},
	},
}

// Evaluate classifies one record. Exactly one status holds per record and the
// reason pins the first rule that fired.
func (e *Engine) Evaluate(rec *domain.CanonicalRecord) (domain.IngestStatus, domain.StatusReason) {
	now := e.now()
	for _, r := range rules {
		if status, reason, matched := r.eval(e, rec, now); matched {
			return status, reason
		}
	}
	return domain.StatusProcessed, domain.ReasonNone
}

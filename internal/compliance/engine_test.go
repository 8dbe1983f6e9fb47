package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnigest/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(Config{
		RetentionDays:      365,
		NoticeYear:         2026,
		AuthorizedPurposes: []string{"Consultation", "Treatment", "Audit", "Emergency Care"},
	}).WithClock(func() time.Time { return testNow })
}

func daysAgo(n int) *time.Time {
	d := testNow.AddDate(0, 0, -n)
	return &d
}

func validRecord() *domain.CanonicalRecord {
	return &domain.CanonicalRecord{
		PatientName:   "Asha Rao",
		IdentityID:    "12-3456-7890-1234",
		ConsentStatus: domain.ConsentGranted,
		NoticeID:      "N-2026-CONS-v1.2",
		NoticeDate:    daysAgo(30),
		DataPurpose:   "Treatment",
	}
}

func TestEvaluate(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name   string
		mutate func(*domain.CanonicalRecord)
		status domain.IngestStatus
		reason domain.StatusReason
	}{
		{
			name:   "clean record processes",
			mutate: func(r *domain.CanonicalRecord) {},
			status: domain.StatusProcessed,
			reason: domain.ReasonNone,
		},
		{
			name:   "missing id quarantines",
			mutate: func(r *domain.CanonicalRecord) { r.IdentityID = "" },
			status: domain.StatusQuarantined,
			reason: domain.ReasonMissingID,
		},
		{
			name:   "malformed id quarantines",
			mutate: func(r *domain.CanonicalRecord) { r.IdentityID = "ABHA-777" },
			status: domain.StatusQuarantined,
			reason: domain.ReasonMalformedID,
		},
		{
			name:   "sandbox address id is valid",
			mutate: func(r *domain.CanonicalRecord) { r.IdentityID = "asha.rao@sbx" },
			status: domain.StatusProcessed,
			reason: domain.ReasonNone,
		},
		{
			name:   "revoked consent purges",
			mutate: func(r *domain.CanonicalRecord) { r.ConsentStatus = domain.ConsentRevoked },
			status: domain.StatusPurged,
			reason: domain.ReasonConsentRevoked,
		},
		{
			name:   "expired notice purges",
			mutate: func(r *domain.CanonicalRecord) { r.NoticeDate = daysAgo(400) },
			status: domain.StatusPurged,
			reason: domain.ReasonNoticeExpired,
		},
		{
			name:   "absent notice date is not expired",
			mutate: func(r *domain.CanonicalRecord) { r.NoticeDate = nil },
			status: domain.StatusProcessed,
			reason: domain.ReasonNone,
		},
		{
			name:   "legacy notice year purges",
			mutate: func(r *domain.CanonicalRecord) { r.NoticeID = "N-2025-CONS-v1.0" },
			status: domain.StatusPurged,
			reason: domain.ReasonOutdatedNoticeVersion,
		},
		{
			name:   "unversioned notice id purges",
			mutate: func(r *domain.CanonicalRecord) { r.NoticeID = "N-2026-CONS" },
			status: domain.StatusPurged,
			reason: domain.ReasonOutdatedNoticeVersion,
		},
		{
			name:   "unauthorized purpose purges",
			mutate: func(r *domain.CanonicalRecord) { r.DataPurpose = "Marketing" },
			status: domain.StatusPurged,
			reason: domain.ReasonUnauthorizedPurpose,
		},
		{
			name:   "unknown purpose passes",
			mutate: func(r *domain.CanonicalRecord) { r.DataPurpose = "UNKNOWN" },
			status: domain.StatusProcessed,
			reason: domain.ReasonNone,
		},
		{
			name:   "empty purpose passes",
			mutate: func(r *domain.CanonicalRecord) { r.DataPurpose = "" },
			status: domain.StatusProcessed,
			reason: domain.ReasonNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			status, reason := engine.Evaluate(rec)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestEvaluatePrecedence(t *testing.T) {
	engine := newTestEngine()

	t.Run("revoked consent beats expired notice", func(t *testing.T) {
		rec := validRecord()
		rec.ConsentStatus = domain.ConsentRevoked
		rec.NoticeDate = daysAgo(400)
		status, reason := engine.Evaluate(rec)
		assert.Equal(t, domain.StatusPurged, status)
		assert.Equal(t, domain.ReasonConsentRevoked, reason)
	})

	t.Run("missing id beats revoked consent", func(t *testing.T) {
		rec := validRecord()
		rec.IdentityID = ""
		rec.ConsentStatus = domain.ConsentRevoked
		status, reason := engine.Evaluate(rec)
		assert.Equal(t, domain.StatusQuarantined, status)
		assert.Equal(t, domain.ReasonMissingID, reason)
	})

	t.Run("expired notice beats outdated version", func(t *testing.T) {
		rec := validRecord()
		rec.NoticeDate = daysAgo(400)
		rec.NoticeID = "N-2025-CONS-v1.0"
		status, reason := engine.Evaluate(rec)
		assert.Equal(t, domain.StatusPurged, status)
		assert.Equal(t, domain.ReasonNoticeExpired, reason)
	})
}

func TestEvaluateIsIdempotent(t *testing.T) {
	engine := newTestEngine()
	rec := validRecord()

	first, firstReason := engine.Evaluate(rec)
	second, secondReason := engine.Evaluate(rec)
	assert.Equal(t, first, second)
	assert.Equal(t, firstReason, secondReason)
}

func TestValidNoticeID(t *testing.T) {
	engine := newTestEngine()

	assert.True(t, engine.ValidNoticeID("N-2026-CONS-v1.2"))
	assert.True(t, engine.ValidNoticeID("N-2026-HOSP-v10.0"))
	assert.False(t, engine.ValidNoticeID("N-2025-CONS-v1.0"))
	assert.False(t, engine.ValidNoticeID("N-2026-cons-v1.2"))
	assert.False(t, engine.ValidNoticeID("N-2026-TOOLONG-v1.2"))
	assert.False(t, engine.ValidNoticeID(""))
}

func TestNoticeYearRollsForward(t *testing.T) {
	engine := NewEngine(Config{RetentionDays: 365, NoticeYear: 2027}).
		WithClock(func() time.Time { return testNow })

	assert.True(t, engine.ValidNoticeID("N-2027-CONS-v1.0"))
	assert.False(t, engine.ValidNoticeID("N-2026-CONS-v1.2"))
}

func TestPurge(t *testing.T) {
	rec := validRecord()
	rec.ConsentToken = "tok-9912"
	rec.ClinicalPayload = `{"diagnosis":"hypertension"}`

	Purge(rec)

	assert.Equal(t, domain.RedactedValue, rec.PatientName)
	assert.Equal(t, domain.RedactedValue, rec.IdentityID)
	assert.Equal(t, domain.RedactedValue, rec.ConsentToken)
	assert.Equal(t, domain.ErasedPayload, rec.ClinicalPayload)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("12-3456-7890-1234")
	require.Len(t, fp, 8)

	// Stable across calls so audit entries correlate.
	assert.Equal(t, fp, Fingerprint("12-3456-7890-1234"))
	assert.NotEqual(t, fp, Fingerprint("91-2345-6789-0123"))

	assert.Equal(t, "****", Fingerprint(""))
	assert.Equal(t, "****", Fingerprint(domain.RedactedValue))
}

func TestVault(t *testing.T) {
	vault, err := NewVault()
	require.NoError(t, err)

	alias, err := vault.Pseudonym(PseudonymName, "Asha Rao")
	require.NoError(t, err)
	assert.Regexp(t, `^Pt_[0-9a-f]{8}$`, alias)

	id, err := vault.Pseudonym(PseudonymID, "12-3456-7890-1234")
	require.NoError(t, err)
	assert.Regexp(t, `^ABHA_[0-9a-f]{8}$`, id)

	// Stable within the session.
	again, err := vault.Pseudonym(PseudonymName, "Asha Rao")
	require.NoError(t, err)
	assert.Equal(t, alias, again)

	other, err := vault.Pseudonym(PseudonymName, "Vikram Malhotra")
	require.NoError(t, err)
	assert.NotEqual(t, alias, other)

	vault.Shred()
	_, err = vault.Pseudonym(PseudonymName, "Asha Rao")
	assert.ErrorIs(t, err, ErrVaultShredded)
}

func TestMaskPreview(t *testing.T) {
	vault, err := NewVault()
	require.NoError(t, err)
	defer vault.Shred()

	clean := validRecord()
	purged := validRecord()
	Purge(purged)

	require.NoError(t, MaskPreview(vault, []*domain.CanonicalRecord{clean, purged}))

	assert.Regexp(t, `^Pt_[0-9a-f]{8}$`, clean.PatientName)
	assert.Regexp(t, `^ABHA_[0-9a-f]{8}$`, clean.IdentityID)
	assert.Equal(t, domain.RedactedValue, purged.PatientName, "redaction sentinels pass through")
	assert.Equal(t, domain.RedactedValue, purged.IdentityID)
}

func TestVaultKeysDifferPerSession(t *testing.T) {
	a, err := NewVault()
	require.NoError(t, err)
	b, err := NewVault()
	require.NoError(t, err)

	aliasA, _ := a.Pseudonym(PseudonymName, "Asha Rao")
	aliasB, _ := b.Pseudonym(PseudonymName, "Asha Rao")
	assert.NotEqual(t, aliasA, aliasB)
}

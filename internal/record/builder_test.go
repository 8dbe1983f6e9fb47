package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnigest/internal/domain"
	"omnigest/internal/normalizer"
)

func newTestBuilder() *Builder {
	return NewBuilder(Config{NoticeYear: 2026, DefaultNoticeDate: "2026-01-01"})
}

func TestBuildStrict(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldPatientName, "Vikram Malhotra")
	fields.Set(normalizer.FieldIdentityID, "91-1234-5678-9012")
	fields.Set(normalizer.FieldConsentStatus, "REVOKED")
	fields.Set(normalizer.FieldNoticeID, "N-2026-CONS-v1.2")
	fields.Set(normalizer.FieldNoticeDate, "2026-01-10")

	rec := newTestBuilder().Build(fields, FillStrict)

	assert.Equal(t, "Vikram Malhotra", rec.PatientName)
	assert.Equal(t, "91-1234-5678-9012", rec.IdentityID)
	assert.Equal(t, domain.ConsentRevoked, rec.ConsentStatus)
	assert.Equal(t, "N-2026-CONS-v1.2", rec.NoticeID)
	require.NotNil(t, rec.NoticeDate)
	assert.Equal(t, "2026-01-10", rec.NoticeDate.Format("2006-01-02"))
	assert.False(t, rec.HasFlag(domain.FlagSyntheticAutofill))
}

func TestBuildStrictLeavesMissingFieldsEmpty(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldPatientName, "Asha Rao")

	rec := newTestBuilder().Build(fields, FillStrict)

	assert.Empty(t, rec.IdentityID)
	assert.Empty(t, rec.NoticeID)
	assert.Equal(t, domain.ConsentUnknown, rec.ConsentStatus)
	assert.Nil(t, rec.NoticeDate)
	assert.True(t, rec.HasFlag(domain.FlagNoticeDateMissing))
}

func TestBuildAutofill(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldPatientName, "Asha Rao")
	fields.Set(normalizer.FieldIdentityID, "12-3456-7890-1234")

	rec := newTestBuilder().Build(fields, FillAutofill)

	assert.Equal(t, domain.ConsentGranted, rec.ConsentStatus)
	assert.Equal(t, "N-2026-AUTO-v0.0", rec.NoticeID)
	require.NotNil(t, rec.NoticeDate)
	assert.Equal(t, "2026-01-01", rec.NoticeDate.Format("2006-01-02"))
	assert.True(t, rec.HasFlag(domain.FlagSyntheticAutofill))
}

func TestBuildRecoversIdentityFromText(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldPayload, "follow-up scan for ABHA 91 2345 6789 0123 scheduled")

	rec := newTestBuilder().Build(fields, FillStrict)

	assert.Equal(t, "91-2345-6789-0123", rec.IdentityID)
}

func TestBuildRecoversNameFromText(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldPayload, "Patient Name: Sunita Devi, admitted for observation")

	rec := newTestBuilder().Build(fields, FillStrict)

	assert.Equal(t, "Sunita Devi", rec.PatientName)
}

func TestBuildRecoveryReplacesPlaceholderName(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldPatientName, "Unknown/Redacted")
	fields.Set(normalizer.FieldPayload, "Pt Name: Ramesh Kumar")

	rec := newTestBuilder().Build(fields, FillStrict)

	assert.Equal(t, "Ramesh Kumar", rec.PatientName)
}

func TestBuildRecoveryLeavesResolvedFieldsAlone(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldPatientName, "Asha Rao")
	fields.Set(normalizer.FieldIdentityID, "12-3456-7890-1234")
	fields.Set(normalizer.FieldPayload, "referred by Patient Name: Someone Else, id 99-9999-9999-9999")

	rec := newTestBuilder().Build(fields, FillStrict)

	assert.Equal(t, "Asha Rao", rec.PatientName)
	assert.Equal(t, "12-3456-7890-1234", rec.IdentityID)
}

func TestBuildPreservesUnmapped(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldPatientName, "Asha Rao")
	fields.Set(normalizer.UnmappedPrefix+"guardian_contact", "98765-43210")

	rec := newTestBuilder().Build(fields, FillStrict)

	require.Contains(t, rec.Unmapped, "UNMAPPED_guardian_contact")
	assert.Equal(t, "98765-43210", rec.Unmapped["UNMAPPED_guardian_contact"])
}

func TestBuildUnparseableDateFlagsRecord(t *testing.T) {
	fields := domain.NewRawRecord()
	fields.Set(normalizer.FieldNoticeDate, "sometime last spring")

	rec := newTestBuilder().Build(fields, FillStrict)

	assert.Nil(t, rec.NoticeDate)
	assert.True(t, rec.HasFlag(domain.FlagNoticeDateMissing))
}

func TestParseNoticeDateFormats(t *testing.T) {
	for _, raw := range []string{"2026-01-10", "2026-01-10T09:30:00Z", "2026/01/10"} {
		d := parseNoticeDate(raw)
		require.NotNil(t, d, "expected %q to parse", raw)
		assert.Equal(t, "2026-01-10", d.Format("2006-01-02"))
	}
	assert.Nil(t, parseNoticeDate("10 Jan"))
}

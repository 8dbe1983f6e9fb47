package compliance

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	"omnigest/internal/domain"
)

// maskedFingerprint stands in when no real identifier exists to hash.
const maskedFingerprint = "****"

// Purge irreversibly erases the identifying fields of a record classified for
// purge. Erasure is atomic per record: callers see either the original or the
// fully redacted state, never a mix, and must not retain references to
// pre-erasure copies.
func Purge(rec *domain.CanonicalRecord) {
	rec.PatientName = domain.RedactedValue
	rec.IdentityID = domain.RedactedValue
	rec.ConsentToken = domain.RedactedValue
	rec.ClinicalPayload = domain.ErasedPayload
}

// Fingerprint produces a one-way, truncated hash of an identifier for audit
// correlation. SHA-256, first 8 hex characters: stable across runs and
// processes so audit trails stay comparable, short enough that it makes no
// uniqueness claim. Empty or already-redacted input yields a fixed mask.
func Fingerprint(identifier string) string {
	switch identifier {
	case "", domain.RedactedValue, "UNKNOWN":
		return maskedFingerprint
	}
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])[:8]
}

// ErrVaultShredded is returned once the session key is destroyed.
var ErrVaultShredded = errors.New("vault key shredded")

// Vault issues session-scoped pseudonyms for preview and reporting surfaces
// that must not show real names. The pseudonym key is derived per session and
// never persisted, so Shred makes every pseudonym mapping from this session
// unrecoverable.
type Vault struct {
	mu  sync.Mutex
	key []byte
}

// NewVault derives a fresh session key.
func NewVault() (*Vault, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("vault seed: %w", err)
	}
	kdf := hkdf.New(sha256.New, secret, nil, []byte("omnigest-session-pseudonyms"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	return &Vault{key: key}, nil
}

// Pseudonym prefixes distinguish what kind of value an alias stands for.
const (
	PseudonymName = "Pt"
	PseudonymID   = "ABHA"
)

// Pseudonym maps a value to a stable session-scoped alias like Pt_3fa9c21b
// or ABHA_3fa9c21b.
func (v *Vault) Pseudonym(prefix, value string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key == nil {
		return "", ErrVaultShredded
	}
	h := sha256.New()
	h.Write(v.key)
	h.Write([]byte(value))
	return prefix + "_" + hex.EncodeToString(h.Sum(nil))[:8], nil
}

// MaskPreview replaces direct identifiers with session pseudonyms so records
// can be inspected without exposing PII. Records are masked in place; callers
// pass copies. Empty and already-redacted values pass through untouched.
func MaskPreview(v *Vault, recs []*domain.CanonicalRecord) error {
	for _, rec := range recs {
		if rec.PatientName != "" && rec.PatientName != domain.RedactedValue {
			alias, err := v.Pseudonym(PseudonymName, rec.PatientName)
			if err != nil {
				return err
			}
			rec.PatientName = alias
		}
		if rec.IdentityID != "" && rec.IdentityID != domain.RedactedValue {
			alias, err := v.Pseudonym(PseudonymID, rec.IdentityID)
			if err != nil {
				return err
			}
			rec.IdentityID = alias
		}
	}
	return nil
}

// Shred destroys the session key. Irreversible: every subsequent Pseudonym
// call fails and no prior mapping can be reconstructed.
func (v *Vault) Shred() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
}

// Package parser turns uploaded clinical files into raw records. Each parser
// handles one wire format and emits source-shaped column names; field
// canonicalization happens downstream in the normalizer.
package parser

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"omnigest/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned when no parser claims the file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMalformedInput is returned when a file matches a known format but
	// cannot be decoded.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNoRecords is returned when a file decodes cleanly but yields nothing.
	ErrNoRecords = errors.New("no records found")
)

// Parser decodes one file into raw records. name is the original filename;
// several formats fall back to its stem when the payload carries no notice id.
type Parser interface {
	Format() string
	Parse(name string, r io.Reader) ([]*domain.RawRecord, error)
}

// Registry maps file extensions to parsers.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry builds the default registry covering every supported format.
func NewRegistry() *Registry {
	reg := &Registry{byExt: make(map[string]Parser)}
	reg.Register(CSV{}, ".csv")
	reg.Register(JSON{}, ".json")
	reg.Register(XML{}, ".xml")
	reg.Register(Excel{}, ".xlsx", ".xls")
	reg.Register(DICOM{}, ".dcm", ".dicom")
	reg.Register(HL7{}, ".hl7")
	reg.Register(FHIR{}, ".fhir")
	reg.Register(PDF{}, ".pdf")
	reg.Register(Text{}, ".txt", ".text")
	return reg
}

// Register binds a parser to one or more extensions (lowercase, with dot).
func (reg *Registry) Register(p Parser, exts ...string) {
	for _, ext := range exts {
		reg.byExt[ext] = p
	}
}

// ForFilename picks the parser for a filename by its extension. FHIR bundles
// conventionally ship as *.fhir.json, so that suffix wins over plain JSON.
func (reg *Registry) ForFilename(name string) (Parser, error) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".fhir.json") {
		return reg.byExt[".fhir"], nil
	}
	p, ok := reg.byExt[filepath.Ext(lower)]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	return p, nil
}

// Formats lists the registered extensions, for error messages and health info.
func (reg *Registry) Formats() []string {
	out := make([]string, 0, len(reg.byExt))
	for ext := range reg.byExt {
		out = append(out, ext)
	}
	return out
}

// stem returns the filename without directory or extension.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

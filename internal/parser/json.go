package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"omnigest/internal/domain"
)

// JSON parses JSON files holding either a list of flat objects or a single
// object, optionally wrapped under a records/data/patients key. Documents that
// carry a resourceType are handed to the FHIR parser.
type JSON struct{}

func (JSON) Format() string { return "json" }

// wrapperKeys are common envelope keys APIs put their payload under.
var wrapperKeys = []string{"records", "data", "patients", "results", "items"}

func (JSON) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	if obj, ok := doc.(map[string]any); ok {
		if _, isFHIR := obj["resourceType"]; isFHIR {
			return parseFHIRDocument(obj)
		}
		unwrapped := false
		for _, key := range wrapperKeys {
			if inner, found := obj[key]; found {
				doc = inner
				unwrapped = true
				break
			}
		}
		if !unwrapped {
			doc = []any{obj}
		}
	}

	list, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of objects", ErrMalformedInput)
	}

	var records []*domain.RawRecord
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := domain.NewRawRecord()
		for _, key := range sortedKeys(obj) {
			rec.Set(key, stringify(obj[key]))
		}
		if rec.Len() > 0 {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringify flattens a JSON value into the string form the normalizer works
// with. Nested structures are re-encoded so no clinical detail is lost.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(encoded)
	}
}

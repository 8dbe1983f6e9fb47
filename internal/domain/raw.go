package domain

// RawRecord is one loosely-typed row produced by a format parser: field names
// exactly as they appeared in the source, values as strings. Insertion order
// is preserved so normalization reports stay in source-column order.
type RawRecord struct {
	names  []string
	values map[string]string
}

// NewRawRecord creates an empty raw record.
func NewRawRecord() *RawRecord {
	return &RawRecord{values: make(map[string]string)}
}

// Set stores a field value, preserving first-seen ordering of names.
func (r *RawRecord) Set(name, value string) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Get returns the value for a field and whether it was present.
func (r *RawRecord) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Names returns field names in insertion order.
func (r *RawRecord) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of fields.
func (r *RawRecord) Len() int { return len(r.names) }

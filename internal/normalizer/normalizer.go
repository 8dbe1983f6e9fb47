// Package normalizer maps arbitrary input column names onto the canonical
// field set. Known aliases resolve through a static index; novel headers get
// similarity-scored suggestions for operator review but are never auto-mapped.
package normalizer

import (
	"sort"
	"strings"

	"omnigest/internal/domain"
)

// UnmappedPrefix marks passthrough fields whose source column matched no
// alias. They are preserved rather than dropped so nothing disappears
// silently between intake and export.
const UnmappedPrefix = "UNMAPPED_"

// SuggestionThreshold is the minimum similarity score at which a canonical
// field is offered as a candidate for an unknown header.
const SuggestionThreshold = 0.3

// maxSuggestions caps how many alternatives are surfaced per unknown header.
const maxSuggestions = 3

// Suggestion is one ranked candidate mapping for an unknown column.
type Suggestion struct {
	Field string  `json:"field"`
	Score float64 `json:"score"`
	Alias string  `json:"closest_alias"`
}

// Mapping reports how one source column was handled.
type Mapping struct {
	Source      string       `json:"source"`
	Canonical   string       `json:"canonical,omitempty"`
	Unmapped    bool         `json:"unmapped"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

type aliasEntry struct {
	alias     string
	canonical string
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	index   map[string]string
	entries []aliasEntry
}

// New builds the normalizer from the static alias table.
func New() *Normalizer {
	index := buildAliasIndex()
	entries := make([]aliasEntry, 0, len(index))
	for alias, canonical := range index {
		entries = append(entries, aliasEntry{alias: alias, canonical: canonical})
	}
	// Deterministic scoring order regardless of map iteration.
	sort.Slice(entries, func(i, j int) bool { return entries[i].alias < entries[j].alias })
	return &Normalizer{index: index, entries: entries}
}

// Resolve maps a column name to its canonical field via exact alias lookup.
func (n *Normalizer) Resolve(column string) (string, bool) {
	key := normalizeKey(column)
	if canonical, ok := n.index[key]; ok {
		return canonical, true
	}
	if canonical, ok := n.index[stripSeparators(key)]; ok {
		return canonical, true
	}
	return "", false
}

// Suggest scores an unknown column against every alias and returns up to
// three candidate canonical fields above the threshold, best first. Resolution
// of a suggestion is the caller's decision; Suggest never maps anything.
func (n *Normalizer) Suggest(column string) []Suggestion {
	key := normalizeKey(column)
	if key == "" {
		return nil
	}

	best := make(map[string]Suggestion)
	for _, entry := range n.entries {
		score := similarity(key, entry.alias)
		if score < SuggestionThreshold {
			continue
		}
		cur, ok := best[entry.canonical]
		if !ok || score > cur.Score {
			best[entry.canonical] = Suggestion{Field: entry.canonical, Score: score, Alias: entry.alias}
		}
	}

	ranked := make([]Suggestion, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Field < ranked[j].Field
	})
	if len(ranked) > maxSuggestions {
		ranked = ranked[:maxSuggestions]
	}
	return ranked
}

// Plan previews how a header row would map without touching any values.
func (n *Normalizer) Plan(headers []string) []Mapping {
	mappings := make([]Mapping, 0, len(headers))
	for _, h := range headers {
		if canonical, ok := n.Resolve(h); ok {
			mappings = append(mappings, Mapping{Source: h, Canonical: canonical})
			continue
		}
		mappings = append(mappings, Mapping{
			Source:      h,
			Unmapped:    true,
			Suggestions: n.Suggest(h),
		})
	}
	return mappings
}

// Normalize rewrites a raw record's field names onto the canonical set. The
// first column resolving to a canonical field wins; later duplicates fall
// through to passthrough. Unmapped columns are kept under UNMAPPED_<source>.
func (n *Normalizer) Normalize(raw *domain.RawRecord) (*domain.RawRecord, []Mapping) {
	out := domain.NewRawRecord()
	mappings := make([]Mapping, 0, raw.Len())

	for _, source := range raw.Names() {
		value, _ := raw.Get(source)
		canonical, ok := n.Resolve(source)
		if ok {
			if _, taken := out.Get(canonical); !taken {
				out.Set(canonical, value)
				mappings = append(mappings, Mapping{Source: source, Canonical: canonical})
				continue
			}
		}
		passthrough := UnmappedPrefix + source
		out.Set(passthrough, value)
		mappings = append(mappings, Mapping{
			Source:      source,
			Canonical:   passthrough,
			Unmapped:    true,
			Suggestions: n.Suggest(source),
		})
	}
	return out, mappings
}

// normalizeKey lowercases and converts spaces and hyphens to underscores.
func normalizeKey(column string) string {
	key := strings.ToLower(strings.TrimSpace(column))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

func stripSeparators(s string) string {
	return strings.ReplaceAll(s, "_", "")
}

// similarity blends character-set overlap with underscore-word overlap.
// Identical strings score 1.0 and substring containment short-circuits to
// 0.8; otherwise both Jaccard terms weigh in at 50% each.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	charScore := jaccard(charSet(a), charSet(b))
	wordScore := jaccard(wordSet(a), wordSet(b))
	return charScore*0.5 + wordScore*0.5
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Split(s, "_") {
		set[w] = struct{}{}
	}
	return set
}

func jaccard[K comparable](a, b map[K]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	common := 0
	for k := range a {
		if _, ok := b[k]; ok {
			common++
		}
	}
	union := len(a) + len(b) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}

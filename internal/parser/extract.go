package parser

import (
	"regexp"
	"strings"
)

// payloadLimit caps how much free text is carried into the clinical payload.
const payloadLimit = 2000

// Extraction patterns for unstructured reports (PDF and plain text). Each
// list is tried in order and the first match wins.
var (
	reportNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Patient(?:'s)? Name[:\s]*([A-Za-z0-9_\s.]{3,50})`),
		regexp.MustCompile(`(?i)Pt\.? Name[:\s]*([A-Za-z0-9_\s.]{3,50})`),
		regexp.MustCompile(`(?i)Full Name[:\s]*([A-Za-z0-9_\s.]{3,50})`),
		regexp.MustCompile(`(?i)Name[:\s]*([A-Za-z0-9_\s.]{3,50})`),
	}

	// Health ids come as 12-3456-7890-1234, a bare 14-digit run, or labelled.
	reportIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:ABHA|Health ID)[:\s]*([0-9]{2}-?[0-9]{4}-?[0-9]{4}-?[0-9]{4})`),
		regexp.MustCompile(`\b([0-9]{2}-[0-9]{4}-[0-9]{4}-[0-9]{4})\b`),
		regexp.MustCompile(`\b([a-zA-Z0-9.]+@sbx)\b`),
		regexp.MustCompile(`\b([0-9]{14})\b`),
	}

	reportDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Notice Date[:\s]*(\d{4}[-/]\d{2}[-/]\d{2})`),
		regexp.MustCompile(`(\d{4}[-/]\d{2}[-/]\d{2})`),
		regexp.MustCompile(`(\d{2}[-/]\d{2}[-/]\d{4})`),
	}

	reportNoticePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Notice(?: ID)?[:\s]*([Nn]-\d{4}-[A-Za-z0-9.\-]+)`),
		regexp.MustCompile(`(?i)Ref(?: No)?[:\s]*([A-Za-z0-9.\-]+)`),
	}

	reportConsentPattern = regexp.MustCompile(`(?i)Consent(?: Status)?[:\s]*([A-Za-z]+)`)
)

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// normalizeReportDate canonicalizes matched dates to YYYY-MM-DD, flipping
// DD-MM-YYYY when the year trails.
func normalizeReportDate(raw string) string {
	d := strings.ReplaceAll(raw, "/", "-")
	if len(d) == 10 && d[2] == '-' && d[5] == '-' {
		return d[6:] + "-" + d[3:5] + "-" + d[:2]
	}
	return d
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

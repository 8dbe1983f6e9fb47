package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"omnigest/internal/domain"
)

// XML parses XML exports where each record is an element whose children are
// the fields. Elements named record, patient, row or item are preferred; when
// none exist, the root's direct children are treated as records.
type XML struct{}

func (XML) Format() string { return "xml" }

type xmlNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

var recordTags = map[string]bool{"record": true, "patient": true, "row": true, "item": true}

func (XML) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	var root xmlNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	var records []*domain.RawRecord
	collectRecordNodes(root, &records)
	if len(records) == 0 {
		for _, child := range root.Children {
			if rec := nodeToRecord(child); rec.Len() > 0 {
				records = append(records, rec)
			}
		}
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

func collectRecordNodes(node xmlNode, out *[]*domain.RawRecord) {
	for _, child := range node.Children {
		if recordTags[strings.ToLower(child.XMLName.Local)] {
			if rec := nodeToRecord(child); rec.Len() > 0 {
				*out = append(*out, rec)
			}
			continue
		}
		collectRecordNodes(child, out)
	}
}

func nodeToRecord(node xmlNode) *domain.RawRecord {
	rec := domain.NewRawRecord()
	for _, field := range node.Children {
		rec.Set(field.XMLName.Local, strings.TrimSpace(field.Text))
	}
	return rec
}

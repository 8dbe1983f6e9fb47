package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"omnigest/internal/domain"
)

// HL7 parses HL7 v2 pipe-delimited messages. One raw record per MSH-led
// message: the patient block comes from PID (name in PID.5, identifier in
// PID.3), the notice id from the MSH control id and the notice date from the
// MSH timestamp.
type HL7 struct{}

func (HL7) Format() string { return "hl7" }

func (HL7) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	content := string(raw)

	var records []*domain.RawRecord
	for _, message := range splitMessages(content) {
		rec := parseHL7Message(message)
		if rec.Len() > 0 {
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		// Messy HL7 still quarantines downstream rather than failing intake.
		rec := domain.NewRawRecord()
		rec.Set("Patient_Name", "Unknown/Redacted")
		rec.Set("Notice_ID", stem(name))
		payload, _ := json.Marshal(map[string]string{"raw_message": truncate(content, payloadLimit)})
		rec.Set("Clinical_Payload", string(payload))
		rec.Set("Consent_Status", "ACTIVE")
		records = append(records, rec)
	}
	return records, nil
}

// splitMessages separates a file into messages, each starting with its MSH
// segment. Segments within a message are newline or CR separated.
func splitMessages(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")

	var messages []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			messages = append(messages, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "MSH|") {
			flush()
		}
		if strings.TrimSpace(line) != "" {
			current = append(current, line)
		}
	}
	flush()
	return messages
}

func parseHL7Message(message string) *domain.RawRecord {
	rec := domain.NewRawRecord()
	segments := strings.Split(message, "\n")
	if len(segments) == 0 || !strings.HasPrefix(segments[0], "MSH|") {
		return rec
	}

	// MSH field numbering counts the separator itself as MSH.1, so after
	// splitting on | the timestamp (MSH.7) sits at index 6, the message type
	// (MSH.9) at index 8 and the control id (MSH.10) at index 9.
	msh := strings.Split(segments[0], "|")
	if len(msh) > 9 && msh[9] != "" {
		rec.Set("Notice_ID", msh[9])
	}
	if len(msh) > 6 && len(msh[6]) >= 8 {
		d := msh[6][:8]
		rec.Set("Notice_Date", d[:4]+"-"+d[4:6]+"-"+d[6:8])
	}

	for _, seg := range segments {
		if !strings.HasPrefix(seg, "PID|") {
			continue
		}
		pid := strings.Split(seg, "|")
		if len(pid) > 5 && pid[5] != "" {
			// PID.5 components: family^given^middle...
			parts := strings.Split(pid[5], "^")
			var nameParts []string
			for _, p := range parts[:min(2, len(parts))] {
				if p != "" {
					nameParts = append(nameParts, p)
				}
			}
			rec.Set("Patient_Name", strings.Join(nameParts, " "))
		}
		if len(pid) > 3 && pid[3] != "" {
			rec.Set("ABHA_ID", strings.Split(pid[3], "^")[0])
		}
		break
	}

	msgType := ""
	if len(msh) > 8 {
		msgType = msh[8]
	}
	payload, _ := json.Marshal(map[string]string{"message_type": msgType})
	rec.Set("Clinical_Payload", string(payload))
	rec.Set("Consent_Status", "ACTIVE")
	return rec
}

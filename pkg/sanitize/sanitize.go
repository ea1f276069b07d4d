// Package sanitize structurally normalizes inbound messages. It never
// rejects; it only caps part counts and truncates oversized text.
package sanitize

import "github.com/ghifiardi/gatra-world-monitor/pkg/a2a"

const (
	// MaxParts caps how many parts one message may carry.
	MaxParts = 20
	// MaxTextBytes truncates any single text part beyond this length.
	MaxTextBytes = 10000
)

// Report says what Normalize changed, for audit metadata.
type Report struct {
	PartsDropped   int
	PartsTruncated int
}

// Normalize mutates the message in place and reports what it did.
func Normalize(m *a2a.Message) Report {
	var rep Report
	if m == nil {
		return rep
	}
	if len(m.Parts) > MaxParts {
		rep.PartsDropped = len(m.Parts) - MaxParts
		m.Parts = m.Parts[:MaxParts]
	}
	for i := range m.Parts {
		if m.Parts[i].Kind != "text" {
			continue
		}
		if len(m.Parts[i].Text) > MaxTextBytes {
			m.Parts[i].Text = truncateUTF8(m.Parts[i].Text, MaxTextBytes)
			rep.PartsTruncated++
		}
	}
	return rep
}

// truncateUTF8 cuts at a byte budget without splitting a rune.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}

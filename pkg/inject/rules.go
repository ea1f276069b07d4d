// Package inject scores message content against a fixed catalog of
// prompt-injection pattern rules. The catalog is data; one scan loop
// evaluates it uniformly.
package inject

import "regexp"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Rule is one declarative detection pattern.
type Rule struct {
	ID       string
	Severity Severity
	Matcher  *regexp.Regexp
}

// catalog is the fixed rule set. Medium rules are only evaluated under
// deep scan; they record signal but never reject on their own.
var catalog = []Rule{
	{"ignore-instructions", SeverityCritical, regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`)},
	{"system-prompt-override", SeverityCritical, regexp.MustCompile(`(?i)(new|override|replace)\s+system\s+prompt`)},
	{"reveal-system-prompt", SeverityCritical, regexp.MustCompile(`(?i)(reveal|print|repeat|show)\s+(your\s+)?(system\s+prompt|initial\s+instructions)`)},
	{"jailbreak-marker", SeverityCritical, regexp.MustCompile(`(?i)\b(DAN\s+mode|jailbreak|developer\s+mode\s+enabled)\b`)},

	{"role-reassignment", SeverityHigh, regexp.MustCompile(`(?i)you\s+are\s+(now|no\s+longer)\s+(a|an|the)\s`)},
	{"pretend-directive", SeverityHigh, regexp.MustCompile(`(?i)\bpretend\s+(to\s+be|you\s+are)\b`)},
	{"disregard-safety", SeverityHigh, regexp.MustCompile(`(?i)(disregard|bypass|disable)\s+(safety|security|content)\s+(checks?|filters?|polic(y|ies))`)},
	{"exfiltrate-secrets", SeverityHigh, regexp.MustCompile(`(?i)(send|leak|exfiltrate|forward)\s+.{0,40}(credentials|secrets|api\s+keys?|tokens?)`)},
	{"encoded-payload", SeverityHigh, regexp.MustCompile(`(?i)(decode|execute|eval)\s+.{0,20}base64`)},
	{"tool-abuse", SeverityHigh, regexp.MustCompile(`(?i)(call|invoke)\s+.{0,30}(shell|exec|subprocess|os\.system)`)},

	{"hidden-unicode", SeverityMedium, regexp.MustCompile("[\u200B\u200C\u200D\u2060\uFEFF]")},
	{"markdown-image-beacon", SeverityMedium, regexp.MustCompile(`!\[[^\]]*\]\(https?://`)},
	{"excessive-urls", SeverityMedium, regexp.MustCompile(`(?is)(https?://\S+.*){5,}`)},
	{"prompt-boundary-fake", SeverityMedium, regexp.MustCompile(`(?i)(\[/?(system|assistant|inst)\]|<\|im_(start|end)\|>)`)},
	{"urgency-pressure", SeverityMedium, regexp.MustCompile(`(?i)\b(urgent|immediately|right\s+now)\b.{0,40}\b(override|approve|bypass)\b`)},
}

// Catalog returns the rule table, for the scanner and for tests.
func Catalog() []Rule {
	return catalog
}

package inject

// ScanResult lists the distinct rule IDs matched per severity.
type ScanResult struct {
	Critical []string
	High     []string
	Medium   []string
}

// Blocked applies the decision rule: any critical match rejects; two or
// more distinct high matches reject; medium matches never reject alone.
func (r ScanResult) Blocked() bool {
	return len(r.Critical) > 0 || len(r.High) >= 2
}

// Matched reports whether anything in the catalog fired.
func (r ScanResult) Matched() bool {
	return len(r.Critical)+len(r.High)+len(r.Medium) > 0
}

// Scan evaluates the catalog against the text. Medium-severity rules
// are skipped unless deep scan is requested; deep scan is additive, not
// a different algorithm.
func Scan(text string, deep bool) ScanResult {
	var res ScanResult
	if text == "" {
		return res
	}
	for _, rule := range catalog {
		if rule.Severity == SeverityMedium && !deep {
			continue
		}
		if !rule.Matcher.MatchString(text) {
			continue
		}
		switch rule.Severity {
		case SeverityCritical:
			res.Critical = append(res.Critical, rule.ID)
		case SeverityHigh:
			res.High = append(res.High, rule.ID)
		case SeverityMedium:
			res.Medium = append(res.Medium, rule.ID)
		}
	}
	return res
}

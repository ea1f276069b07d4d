package task

import (
	"regexp"
	"strings"
)

// Skill categories, in routing priority order.
const (
	SkillIOCLookup          = "ioc-lookup"
	SkillThreatAnalysis     = "threat-analysis"
	SkillVulnerabilityIntel = "vulnerability-intel"
	SkillGeoRisk            = "geo-risk"
	SkillAnomalyDetection   = "anomaly-detection"
)

var ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

type skillRule struct {
	id       string
	keywords []string
}

// skillRules is evaluated top to bottom; first match wins. IOC lookup
// sits first so an IPv4-shaped token outranks any other keyword in the
// same message.
var skillRules = []skillRule{
	{SkillIOCLookup, []string{"ioc", "indicator", "hash", "sha256", "md5", "malicious ip", "domain reputation"}},
	{SkillThreatAnalysis, []string{"mitre", "att&ck", "attack technique", "ttp", "threat actor", "apt", "campaign"}},
	{SkillVulnerabilityIntel, []string{"cve", "vulnerability", "exploit", "patch", "zero-day", "zero day"}},
	{SkillGeoRisk, []string{"country", "region", "instability", "sanction", "geopolitic", "conflict zone"}},
}

var knownSkills = map[string]struct{}{
	SkillIOCLookup:          {},
	SkillThreatAnalysis:     {},
	SkillVulnerabilityIntel: {},
	SkillGeoRisk:            {},
	SkillAnomalyDetection:   {},
}

// RouteSkill picks the skill for a message. An explicit, recognized
// skillId wins outright; an unrecognized one falls back to keyword
// routing. An unmatched message lands in anomaly-detection - a
// deliberate catch-all, not an error.
func RouteSkill(explicitID, text string) string {
	if _, ok := knownSkills[explicitID]; ok && explicitID != "" {
		return explicitID
	}
	lower := strings.ToLower(text)
	if ipv4Pattern.MatchString(text) {
		return SkillIOCLookup
	}
	for _, rule := range skillRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.id
			}
		}
	}
	return SkillAnomalyDetection
}

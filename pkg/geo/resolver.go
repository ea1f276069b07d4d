// Package geo derives a claimed country of origin for an inbound
// request from a prioritized set of signals. Resolution never fails;
// the worst case is the unknown sentinel.
package geo

import (
	"net/http"
	"net/url"
	"strings"
)

// Source labels for where a country code came from. The two edge
// headers carry genuinely distinct labels even though both are
// fabric-injected.
const (
	SourceEdgePrimary   = "edge-geo-primary"
	SourceEdgeSecondary = "edge-geo-secondary"
	SourceURLTLD        = "url-tld"
	SourceSelfReported  = "self-reported"
	SourceUnknown       = "unknown"
)

// UnknownCountry is the fail-open sentinel code.
const UnknownCountry = "XX"

const (
	// HeaderEdgePrimary is injected by the edge fabric in front of the
	// service and is not attacker-controlled.
	HeaderEdgePrimary = "x-vercel-ip-country"
	// HeaderEdgeSecondary is set by an upstream proxy; it uses "XX" as
	// its own unknown sentinel, which never counts as a match.
	HeaderEdgeSecondary = "cf-ipcountry"
	// HeaderSelfReported is client-supplied and spoofable; last resort
	// before unknown.
	HeaderSelfReported = "x-agent-country"
)

// Resolution is the outcome of country resolution for one request. It
// is computed per request and never cached.
type Resolution struct {
	CountryCode string `json:"countryCode"`
	Source      string `json:"source"`
}

// Resolve walks the signal priority order and returns the first match.
func Resolve(h http.Header, agentCardURL string) Resolution {
	if cc, ok := validCountry(h.Get(HeaderEdgePrimary)); ok {
		return Resolution{CountryCode: cc, Source: SourceEdgePrimary}
	}
	if cc, ok := validCountry(h.Get(HeaderEdgeSecondary)); ok && cc != UnknownCountry {
		return Resolution{CountryCode: cc, Source: SourceEdgeSecondary}
	}
	if cc, ok := countryFromURL(agentCardURL); ok {
		return Resolution{CountryCode: cc, Source: SourceURLTLD}
	}
	if cc, ok := validCountry(h.Get(HeaderSelfReported)); ok {
		return Resolution{CountryCode: cc, Source: SourceSelfReported}
	}
	return Resolution{CountryCode: UnknownCountry, Source: SourceUnknown}
}

// validCountry accepts exactly two alphabetic characters, canonicalized
// to upper case.
func validCountry(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if len(v) != 2 {
		return "", false
	}
	for _, r := range v {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", false
		}
	}
	return strings.ToUpper(v), true
}

func countryFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return CountryForHost(u.Hostname())
}

// CountryForHost matches the hostname against the ccTLD table using the
// longest matching suffix.
func CountryForHost(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return "", false
	}
	best := ""
	bestCC := ""
	for suffix, cc := range ccTLDTable {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			if len(suffix) > len(best) {
				best = suffix
				bestCC = cc
			}
		}
	}
	if best == "" {
		return "", false
	}
	return bestCC, true
}

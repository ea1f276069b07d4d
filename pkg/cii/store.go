// Package cii tracks per-country instability scores. Scores are seeded
// from a static table, may be overridden at boot, and can be adjusted
// at runtime through an explicit update. A country absent from the
// table scores 0.0 so unknown origins fail open.
package cii

import (
	"fmt"
	"strings"
	"sync"
)

// Store holds the mutable country → score map for one running
// instance. Construct one per service and inject it; there is no
// package-level state.
type Store struct {
	mu     sync.RWMutex
	scores map[string]float64
}

// NewStore seeds a store from the static table and applies overrides
// on top (override wins).
func NewStore(overrides map[string]float64) *Store {
	s := &Store{scores: make(map[string]float64, len(staticScores)+len(overrides))}
	for cc, score := range staticScores {
		s.scores[cc] = score
	}
	for cc, score := range overrides {
		key, err := canonicalCode(cc)
		if err != nil {
			continue
		}
		if score < 0 {
			continue
		}
		s.scores[key] = score
	}
	return s
}

// Score returns the instability score for a country, 0.0 when absent.
func (s *Store) Score(countryCode string) float64 {
	key, err := canonicalCode(countryCode)
	if err != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores[key]
}

// Set updates a country's score at runtime.
func (s *Store) Set(countryCode string, score float64) error {
	key, err := canonicalCode(countryCode)
	if err != nil {
		return err
	}
	if score < 0 {
		return fmt.Errorf("cii: score must be non-negative, got %v", score)
	}
	s.mu.Lock()
	s.scores[key] = score
	s.mu.Unlock()
	return nil
}

// Snapshot copies the current table, for the admin surface.
func (s *Store) Snapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.scores))
	for cc, score := range s.scores {
		out[cc] = score
	}
	return out
}

func canonicalCode(raw string) (string, error) {
	cc := strings.ToUpper(strings.TrimSpace(raw))
	if len(cc) != 2 {
		return "", fmt.Errorf("cii: invalid country code %q", raw)
	}
	for _, r := range cc {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("cii: invalid country code %q", raw)
		}
	}
	return cc, nil
}

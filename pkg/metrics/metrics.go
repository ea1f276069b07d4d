// Package metrics is the gateway's in-process counters: endpoint
// latencies, tier and gate outcomes, skill routing. Exposed as JSON
// and as Prometheus text.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ghifiardi/gatra-world-monitor/pkg/httpx"
)

type Registry struct {
	mu       sync.RWMutex
	endpoint map[string]*EndpointStat
	tier     map[string]int64
	gate     map[string]int64
	outcome  map[string]int64
	skill    map[string]int64
	gauges   map[string]float64
}

type EndpointStat struct {
	Count          int64   `json:"count"`
	ErrorCount     int64   `json:"error_count"`
	TotalMillis    int64   `json:"total_millis"`
	MaxMillis      int64   `json:"max_millis"`
	AverageMillis  float64 `json:"average_millis"`
	LastStatusCode int     `json:"last_status_code"`
}

type Snapshot struct {
	GeneratedAt string                  `json:"generated_at"`
	Endpoints   map[string]EndpointStat `json:"endpoints"`
	Tiers       map[string]int64        `json:"tiers"`
	GateRejects map[string]int64        `json:"gate_rejects"`
	Outcomes    map[string]int64        `json:"outcomes"`
	Skills      map[string]int64        `json:"skills"`
	Gauges      map[string]float64      `json:"gauges"`
}

func NewRegistry() *Registry {
	return &Registry{
		endpoint: map[string]*EndpointStat{},
		tier:     map[string]int64{},
		gate:     map[string]int64{},
		outcome:  map[string]int64{},
		skill:    map[string]int64{},
		gauges:   map[string]float64{},
	}
}

func (r *Registry) Observe(path string, status int, d time.Duration) {
	millis := d.Milliseconds()
	r.mu.Lock()
	defer r.mu.Unlock()
	stat, ok := r.endpoint[path]
	if !ok {
		stat = &EndpointStat{}
		r.endpoint[path] = stat
	}
	stat.Count++
	if status >= 400 {
		stat.ErrorCount++
	}
	stat.TotalMillis += millis
	if millis > stat.MaxMillis {
		stat.MaxMillis = millis
	}
	stat.LastStatusCode = status
	stat.AverageMillis = float64(stat.TotalMillis) / float64(stat.Count)
}

func (r *Registry) IncTier(tier string) { r.inc(r.tier, tier) }

// IncGateReject counts a rejection attributed to one named gate.
func (r *Registry) IncGateReject(gate string) { r.inc(r.gate, gate) }

func (r *Registry) IncOutcome(outcome string) { r.inc(r.outcome, outcome) }

func (r *Registry) IncSkill(skill string) { r.inc(r.skill, skill) }

func (r *Registry) SetGauge(name string, value float64) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
}

func (r *Registry) inc(m map[string]int64, key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	r.mu.Lock()
	m[key]++
	r.mu.Unlock()
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Endpoints:   map[string]EndpointStat{},
		Tiers:       copyCounts(r.tier),
		GateRejects: copyCounts(r.gate),
		Outcomes:    copyCounts(r.outcome),
		Skills:      copyCounts(r.skill),
		Gauges:      map[string]float64{},
	}
	for k, v := range r.endpoint {
		snap.Endpoints[k] = *v
	}
	for k, v := range r.gauges {
		snap.Gauges[k] = v
	}
	return snap
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Handler serves the JSON snapshot.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteJSON(w, 200, r.Snapshot())
	}
}

// PrometheusHandler serves the counters in exposition text format.
func (r *Registry) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		snap := r.Snapshot()
		var b strings.Builder
		writeCounter(&b, "a2a_admissions_total", "outcome", snap.Outcomes)
		writeCounter(&b, "a2a_tier_total", "tier", snap.Tiers)
		writeCounter(&b, "a2a_gate_rejects_total", "gate", snap.GateRejects)
		writeCounter(&b, "a2a_skill_total", "skill", snap.Skills)
		for _, name := range sortedKeys(snap.Gauges) {
			fmt.Fprintf(&b, "a2a_gauge{name=%q} %g\n", name, snap.Gauges[name])
		}
		for _, path := range sortedEndpointKeys(snap.Endpoints) {
			stat := snap.Endpoints[path]
			fmt.Fprintf(&b, "a2a_http_requests_total{path=%q} %d\n", path, stat.Count)
			fmt.Fprintf(&b, "a2a_http_errors_total{path=%q} %d\n", path, stat.ErrorCount)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(b.String()))
	}
}

func writeCounter(b *strings.Builder, metric, label string, counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s{%s=%q} %d\n", metric, label, k, counts[k])
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedEndpointKeys(m map[string]EndpointStat) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

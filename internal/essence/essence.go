// Package essence condenses recent local observations into the payload the
// agent hands to the Hivemind each synchronization cycle.
package essence

import (
	"math"
	"sort"
	"time"

	"git.home.luguber.info/inful/hiveagent/internal/store"
)

// ContentType is the media type of an encoded Essence.
const ContentType = "application/json"

// Summary aggregates the observations of one kind.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Essence is the document delivered to the Hivemind.
type Essence struct {
	NodeID        string              `json:"node_id"`
	Hostname      string              `json:"hostname"`
	AgentVersion  string              `json:"agent_version"`
	GeneratedAt   time.Time           `json:"generated_at"`
	WindowSeconds int64               `json:"window_seconds"`
	Observations  []store.Observation `json:"observations"`
	Summary       map[string]Summary  `json:"summary"`
}

// Summarize groups observations by kind.
func Summarize(obs []store.Observation) map[string]Summary {
	out := make(map[string]Summary)
	sums := make(map[string]float64)
	for _, o := range obs {
		s, ok := out[o.Kind]
		if !ok {
			s = Summary{Min: math.Inf(1), Max: math.Inf(-1)}
		}
		s.Count++
		s.Min = math.Min(s.Min, o.Value)
		s.Max = math.Max(s.Max, o.Value)
		sums[o.Kind] += o.Value
		out[o.Kind] = s
	}
	for kind, s := range out {
		s.Mean = sums[kind] / float64(s.Count)
		out[kind] = s
	}
	return out
}

// Kinds returns the summarized kinds in sorted order.
func (e Essence) Kinds() []string {
	kinds := make([]string, 0, len(e.Summary))
	for k := range e.Summary {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

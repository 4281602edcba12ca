package cost

import "sync"

// SurfaceUsage accumulates token usage and cost for one surface.
type SurfaceUsage struct {
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Tracker tracks per-surface and total call costs. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	surfaces map[string]*SurfaceUsage
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{surfaces: make(map[string]*SurfaceUsage)}
}

// Record adds one call's usage for a surface.
func (t *Tracker) Record(surface string, input, output int64, usd float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	su, ok := t.surfaces[surface]
	if !ok {
		su = &SurfaceUsage{}
		t.surfaces[surface] = su
	}
	su.Calls++
	su.InputTokens += input
	su.OutputTokens += output
	su.CostUSD += usd
}

// Total returns the cost across all surfaces.
func (t *Tracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, su := range t.surfaces {
		total += su.CostUSD
	}
	return total
}

// BySurface returns a copy of the usage recorded per surface.
func (t *Tracker) BySurface() map[string]SurfaceUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]SurfaceUsage, len(t.surfaces))
	for name, su := range t.surfaces {
		out[name] = *su
	}
	return out
}

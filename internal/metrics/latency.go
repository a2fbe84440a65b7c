package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"bookshelf/internal/httpx"
)

// DefaultRelativeAccuracy gives quantile estimates within 1%.
const DefaultRelativeAccuracy = 0.01

// LatencyTracker keeps one DDSketch per operation. Values are milliseconds.
type LatencyTracker struct {
	mu               sync.Mutex
	sketches         map[string]*ddsketch.DDSketch
	relativeAccuracy float64
}

func NewLatencyTracker(relativeAccuracy float64) *LatencyTracker {
	return &LatencyTracker{
		sketches:         make(map[string]*ddsketch.DDSketch),
		relativeAccuracy: relativeAccuracy,
	}
}

// Record adds one observation for operation.
func (lt *LatencyTracker) Record(operation string, d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, ok := lt.sketches[operation]
	if !ok {
		var err error
		sketch, err = ddsketch.LogUnboundedDenseDDSketch(lt.relativeAccuracy)
		if err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(DefaultRelativeAccuracy)
		}
		lt.sketches[operation] = sketch
	}
	sketch.Add(float64(d.Microseconds()) / 1000.0)
}

type Stats struct {
	Operation string  `json:"operation"`
	Count     int64   `json:"count"`
	P50       float64 `json:"p50_ms"`
	P90       float64 `json:"p90_ms"`
	P99       float64 `json:"p99_ms"`
	Max       float64 `json:"max_ms"`
}

// Snapshot returns stats for every operation, sorted by name.
func (lt *LatencyTracker) Snapshot() []Stats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	out := make([]Stats, 0, len(lt.sketches))
	for op, sketch := range lt.sketches {
		s := Stats{Operation: op, Count: int64(sketch.GetCount())}
		if s.Count > 0 {
			s.P50, _ = sketch.GetValueAtQuantile(0.50)
			s.P90, _ = sketch.GetValueAtQuantile(0.90)
			s.P99, _ = sketch.GetValueAtQuantile(0.99)
			s.Max, _ = sketch.GetMaxValue()
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// Handler serves GET /debug/latency.
func (lt *LatencyTracker) Handler(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"routes": lt.Snapshot()})
}

package mapping

import (
	"maps"
	"slices"
	"time"

	"github.com/vk/gridmapper/internal/arch"
)

// Metadata records run statistics. Field names follow the keys downstream
// tools expect (placement_struct_time and so on).
type Metadata struct {
	RunID                string        `json:"run_id"`
	Seed                 uint64        `json:"seed"`
	PlacementStructTime  time.Duration `json:"placement_struct_time"`
	PlacementStructBytes uint64        `json:"placement_struct_bytes"`
	PlacementTime        time.Duration `json:"placement_time"`
	PlacementBytes       uint64        `json:"placement_bytes"`
	PlacementObjective   float64       `json:"placement_objective"`
	RoutingTime          time.Duration `json:"routing_time"`
	RoutingIterations    int           `json:"routing_iterations"`
	// LinkHistogram maps a routed channel length to the number of channels
	// routed at that length.
	LinkHistogram map[int]int `json:"link_histogram"`
}

func newMetadata() Metadata {
	return Metadata{LinkHistogram: map[int]int{}}
}

// Histogram computes the link-length histogram of a set of routes.
func Histogram(g *arch.Graph, routes []*Route) map[int]int {
	h := make(map[int]int)
	for _, r := range routes {
		if r == nil {
			continue
		}
		h[r.Length(g)]++
	}
	return h
}

// HistogramLengths returns the histogram keys in ascending order.
func HistogramLengths(h map[int]int) []int {
	return slices.Sorted(maps.Keys(h))
}

package route

import (
	"fmt"
	"strings"

	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/mapping"
)

// Result is the outcome of one routing run.
type Result struct {
	Converged  bool                 `json:"converged"`
	Iterations int                  `json:"iterations"`
	Routes     []*mapping.Route     `json:"-"`
	Congested  []mapperr.Congestion `json:"congested,omitempty"`
	Checks     []CheckResult        `json:"checks"`
	Histogram  map[int]int          `json:"histogram"`
	Stats      Stats                `json:"stats"`
}

// Stats summarises the routed links.
type Stats struct {
	Channels int `json:"channels"`
	// LinksUsed counts tree links over all channels.
	LinksUsed int `json:"links_used"`
	// AverageLength is the mean routed length per channel.
	AverageLength float64 `json:"average_length"`
	// MaxLength is the longest routed length of any channel.
	MaxLength int `json:"max_length"`
}

func computeStats(m *mapping.Map, routes []*mapping.Route) Stats {
	s := Stats{Channels: len(routes)}
	total := 0
	for _, r := range routes {
		if r == nil {
			continue
		}
		s.LinksUsed += len(r.Links)
		n := r.Length(m.Arch)
		total += n
		s.MaxLength = max(s.MaxLength, n)
	}
	if s.Channels > 0 {
		s.AverageLength = float64(total) / float64(s.Channels)
	}
	return s
}

// Passed reports whether every check passed.
func (r *Result) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return len(r.Checks) > 0
}

// Summary renders the check outcomes, link statistics and link-length
// histogram as a text block.
func (r *Result) Summary() string {
	var b strings.Builder
	b.WriteString("Routing Summary\n---------------\n")
	for _, c := range r.Checks {
		status := "passed"
		if !c.Passed {
			status = "failed"
		}
		fmt.Fprintf(&b, "%-20s%s\n", c.Name+":", status)
	}
	fmt.Fprintf(&b, "Number of communication channels: %d\n", r.Stats.Channels)
	fmt.Fprintf(&b, "Total global routing links used: %d\n", r.Stats.LinksUsed)
	fmt.Fprintf(&b, "Average Link Length: %.2f\n", r.Stats.AverageLength)
	fmt.Fprintf(&b, "Maximum Link Distance: %d\n", r.Stats.MaxLength)
	b.WriteString("Link Histogram:\n")
	for _, length := range mapping.HistogramLengths(r.Histogram) {
		fmt.Fprintf(&b, "  %d => %d\n", length, r.Histogram[length])
	}
	return b.String()
}

func (r *Result) summaryAttrs() []any {
	attrs := []any{"converged", r.Converged, "iterations", r.Iterations}
	for _, c := range r.Checks {
		status := "passed"
		if !c.Passed {
			status = "failed"
		}
		attrs = append(attrs, c.Name, status)
	}
	return append(attrs,
		"channels", r.Stats.Channels,
		"links_used", r.Stats.LinksUsed,
		"average_length", r.Stats.AverageLength,
		"max_length", r.Stats.MaxLength,
	)
}

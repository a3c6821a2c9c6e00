package mapping

import (
	"slices"

	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/taskgraph"
)

// Route is the routed form of one channel.
type Route struct {
	Channel taskgraph.ChannelID
	// Links is the set of links the channel occupies, in the order they were
	// added to its routing tree. Each link consumes one unit of capacity no
	// matter how many sinks share it.
	Links []arch.LinkID
	// Paths holds, per sink in channel order, the ordered links from the
	// source's resource to that sink's resource.
	Paths [][]arch.LinkID
}

// Clone returns a deep copy.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	c := &Route{Channel: r.Channel, Links: slices.Clone(r.Links), Paths: make([][]arch.LinkID, len(r.Paths))}
	for i, p := range r.Paths {
		c.Paths[i] = slices.Clone(p)
	}
	return c
}

// Length is the sum of the lengths of the links in the routing tree.
func (r *Route) Length(g *arch.Graph) int {
	total := 0
	for _, l := range r.Links {
		total += g.Link(l).Length
	}
	return total
}

// Hops returns the resources visited by the path to one sink, starting with
// the source's resource.
func (r *Route) Hops(g *arch.Graph, sink int) []arch.ResourceID {
	path := r.Paths[sink]
	if len(path) == 0 {
		return nil
	}
	hops := make([]arch.ResourceID, 0, len(path)+1)
	hops = append(hops, g.Link(path[0]).Source)
	for _, l := range path {
		hops = append(hops, g.Link(l).Dest)
	}
	return hops
}

// Intermediates returns the set of resources the tree passes through,
// excluding the endpoints, in first-visit order.
func (r *Route) Intermediates(g *arch.Graph, endpoints []arch.ResourceID) []arch.ResourceID {
	var out []arch.ResourceID
	seen := make(map[arch.ResourceID]bool, len(r.Links))
	for _, e := range endpoints {
		seen[e] = true
	}
	for _, l := range r.Links {
		for _, res := range []arch.ResourceID{g.Link(l).Source, g.Link(l).Dest} {
			if !seen[res] {
				seen[res] = true
				out = append(out, res)
			}
		}
	}
	return out
}

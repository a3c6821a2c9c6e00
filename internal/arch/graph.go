package arch

import (
	"slices"
	"sort"
)

// Graph is a frozen architecture. All methods are safe for concurrent use
// because nothing mutates a Graph after Build.
type Graph struct {
	name      string
	metric    Metric
	resources []*Resource
	links     []*Link
	byName    map[string]ResourceID
	byClass   map[string][]ResourceID
	out       [][]LinkID
	in        [][]LinkID
}

// Name returns the architecture name.
func (g *Graph) Name() string { return g.name }

// Metric returns the configured distance metric.
func (g *Graph) Metric() Metric { return g.metric }

// NumResources returns the number of resources.
func (g *Graph) NumResources() int { return len(g.resources) }

// NumLinks returns the number of directed links.
func (g *Graph) NumLinks() int { return len(g.links) }

// Resource returns the resource with the given ID. It panics on an
// out-of-range ID, like a slice index would.
func (g *Graph) Resource(id ResourceID) *Resource { return g.resources[id] }

// Link returns the link with the given ID.
func (g *Graph) Link(id LinkID) *Link { return g.links[id] }

// HasResource reports whether id names a resource of this graph.
func (g *Graph) HasResource(id ResourceID) bool {
	return id >= 0 && int(id) < len(g.resources)
}

// HasLink reports whether id names a link of this graph.
func (g *Graph) HasLink(id LinkID) bool {
	return id >= 0 && int(id) < len(g.links)
}

// Lookup finds a resource by name.
func (g *Graph) Lookup(name string) (ResourceID, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// OfClass returns the IDs of all resources of a class in ascending order.
// The returned slice must not be modified.
func (g *Graph) OfClass(class string) []ResourceID {
	return g.byClass[class]
}

// Classes returns the sorted set of resource classes present.
func (g *Graph) Classes() []string {
	classes := make([]string, 0, len(g.byClass))
	for c := range g.byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

// Out returns the links leaving a resource.
func (g *Graph) Out(id ResourceID) []LinkID { return g.out[id] }

// In returns the links entering a resource.
func (g *Graph) In(id ResourceID) []LinkID { return g.in[id] }

// LinkBetween returns the first link from src to dst, if any.
func (g *Graph) LinkBetween(src, dst ResourceID) (LinkID, bool) {
	idx := slices.IndexFunc(g.out[src], func(l LinkID) bool { return g.links[l].Dest == dst })
	if idx < 0 {
		return -1, false
	}
	return g.out[src][idx], true
}

package arch

import (
	"errors"
	"fmt"
	"maps"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// LinkSpec describes one connection to add to a Builder.
type LinkSpec struct {
	From          string
	To            string
	Capacity      int
	Length        int
	Cost          float64
	Class         string
	Bidirectional bool
}

// Builder accumulates resources and links and produces a frozen Graph.
// A Builder is not safe for concurrent use.
type Builder struct {
	name      string
	metric    Metric
	resources []*Resource
	links     []*Link
	byName    map[string]ResourceID
	linkNames map[string]struct{}
}

// NewBuilder creates an empty builder for an architecture with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:      name,
		byName:    make(map[string]ResourceID),
		linkNames: make(map[string]struct{}),
	}
}

// SetMetric selects the distance metric the built Graph reports.
func (b *Builder) SetMetric(m Metric) *Builder {
	b.metric = m
	return b
}

// AddResource adds a resource and returns its ID. Capacity defaults to 1.
// The ID field of r is ignored.
func (b *Builder) AddResource(r Resource) (ResourceID, error) {
	if r.Name == "" {
		return None, errors.New("resource name cannot be empty")
	}
	if _, exists := b.byName[r.Name]; exists {
		return None, fmt.Errorf("duplicate resource name %q", r.Name)
	}
	if r.Class == "" {
		return None, fmt.Errorf("resource %q has no class", r.Name)
	}
	if r.Capacity == 0 {
		r.Capacity = 1
	}
	if r.Capacity < 0 {
		return None, fmt.Errorf("resource %q: capacity must be >= 1, got %d", r.Name, r.Capacity)
	}
	if r.Cost < 0 {
		return None, fmt.Errorf("resource %q: cost must be >= 0, got %g", r.Name, r.Cost)
	}
	if r.Coord != nil {
		c := *r.Coord
		r.Coord = &c
	}
	r.Attributes = maps.Clone(r.Attributes)

	r.ID = ResourceID(len(b.resources))
	b.resources = append(b.resources, &r)
	b.byName[r.Name] = r.ID
	return r.ID, nil
}

// AddLink connects two existing resources. A bidirectional spec adds two
// independent directed links, each with the full capacity.
func (b *Builder) AddLink(spec LinkSpec) ([]LinkID, error) {
	src, ok := b.byName[spec.From]
	if !ok {
		return nil, fmt.Errorf("link source resource %q not found", spec.From)
	}
	dst, ok := b.byName[spec.To]
	if !ok {
		return nil, fmt.Errorf("link destination resource %q not found", spec.To)
	}
	if src == dst {
		return nil, fmt.Errorf("self-referential link on resource %q", spec.From)
	}
	if spec.Capacity == 0 {
		spec.Capacity = 1
	}
	if spec.Capacity < 0 {
		return nil, fmt.Errorf("link %s->%s: capacity must be >= 1, got %d", spec.From, spec.To, spec.Capacity)
	}
	if spec.Length == 0 {
		spec.Length = 1
	}
	if spec.Length < 0 {
		return nil, fmt.Errorf("link %s->%s: length must be >= 1, got %d", spec.From, spec.To, spec.Length)
	}
	if spec.Cost == 0 {
		spec.Cost = float64(spec.Length)
	}
	if spec.Cost < 0 {
		return nil, fmt.Errorf("link %s->%s: cost must be > 0, got %g", spec.From, spec.To, spec.Cost)
	}
	if spec.Class == "" {
		spec.Class = DefaultLinkClass
	}

	ids := []LinkID{b.addDirected(src, dst, spec)}
	if spec.Bidirectional {
		ids = append(ids, b.addDirected(dst, src, spec))
	}
	return ids, nil
}

func (b *Builder) addDirected(src, dst ResourceID, spec LinkSpec) LinkID {
	base := fmt.Sprintf("%s->%s", b.resources[src].Name, b.resources[dst].Name)
	name := base
	// Parallel links between the same pair get a numeric suffix.
	for i := 1; ; i++ {
		if _, taken := b.linkNames[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s#%d", base, i)
	}
	b.linkNames[name] = struct{}{}

	l := &Link{
		ID:       LinkID(len(b.links)),
		Name:     name,
		Source:   src,
		Dest:     dst,
		Capacity: spec.Capacity,
		Length:   spec.Length,
		Cost:     spec.Cost,
		Class:    spec.Class,
	}
	b.links = append(b.links, l)
	return l.ID
}

// Build validates the accumulated topology and freezes it. The Builder must
// not be used afterwards.
func (b *Builder) Build() (*Graph, error) {
	if len(b.resources) == 0 {
		return nil, fmt.Errorf("architecture %q has no resources", b.name)
	}
	switch b.metric {
	case MetricAuto, MetricManhattan, MetricGraph:
	default:
		return nil, fmt.Errorf("architecture %q: unknown distance metric %q", b.name, b.metric)
	}

	g := &Graph{
		name:      b.name,
		metric:    b.metric,
		resources: b.resources,
		links:     b.links,
		byName:    b.byName,
		byClass:   make(map[string][]ResourceID),
		out:       make([][]LinkID, len(b.resources)),
		in:        make([][]LinkID, len(b.resources)),
	}
	for _, r := range b.resources {
		g.byClass[r.Class] = append(g.byClass[r.Class], r.ID)
	}
	for _, l := range b.links {
		g.out[l.Source] = append(g.out[l.Source], l.ID)
		g.in[l.Dest] = append(g.in[l.Dest], l.ID)
	}

	if err := g.checkRoutableConnected(); err != nil {
		return nil, fmt.Errorf("architecture %q: %w", b.name, err)
	}
	return g, nil
}

// checkRoutableConnected verifies that the resources usable as routing hops
// form one weakly connected component.
func (g *Graph) checkRoutableConnected() error {
	ug := simple.NewUndirectedGraph()
	routable := 0
	for _, r := range g.resources {
		if r.Routable {
			ug.AddNode(simple.Node(int64(r.ID)))
			routable++
		}
	}
	if routable <= 1 {
		return nil
	}
	for _, l := range g.links {
		if !g.resources[l.Source].Routable || !g.resources[l.Dest].Routable {
			continue
		}
		if ug.HasEdgeBetween(int64(l.Source), int64(l.Dest)) {
			continue
		}
		ug.SetEdge(simple.Edge{F: simple.Node(int64(l.Source)), T: simple.Node(int64(l.Dest))})
	}
	components := topo.ConnectedComponents(ug)
	if len(components) > 1 {
		return fmt.Errorf("routable resources form %d disconnected components", len(components))
	}
	return nil
}

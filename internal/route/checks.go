package route

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/mapping"
	"github.com/vk/gridmapper/internal/taskgraph"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Names of the post-routing checks, in the order they run.
const (
	CheckPlacement    = "Placement Check"
	CheckCongestion   = "Congestion Check"
	CheckPort         = "Port Check"
	CheckConnectivity = "Graph Connectivity"
	CheckArchitecture = "Architecture Check"
	CheckResource     = "Resource Check"
)

// CheckResult is the outcome of one post-routing check.
type CheckResult struct {
	Name      string   `json:"name"`
	Passed    bool     `json:"passed"`
	Offenders []string `json:"offenders,omitempty"`
}

type checkFunc func(m *mapping.Map, routes []*mapping.Route) []string

var checks = []struct {
	name string
	fn   checkFunc
}{
	{CheckPlacement, checkPlacement},
	{CheckCongestion, checkCongestion},
	{CheckPort, checkPorts},
	{CheckConnectivity, checkConnectivity},
	{CheckArchitecture, checkArchitecture},
	{CheckResource, checkResources},
}

// Check runs every post-routing check against the Map's current routing.
// The error is a *mapperr.ConsistencyError naming the failed checks, or nil.
func Check(m *mapping.Map) ([]CheckResult, error) {
	routes := m.Routes()
	results := make([]CheckResult, 0, len(checks))
	var failed []string
	var errs error
	for _, c := range checks {
		offenders := c.fn(m, routes)
		results = append(results, CheckResult{Name: c.name, Passed: len(offenders) == 0, Offenders: offenders})
		if len(offenders) > 0 {
			failed = append(failed, c.name)
			errs = multierr.Append(errs, fmt.Errorf("%s: %s", c.name, strings.Join(offenders, "; ")))
		}
	}
	if errs != nil {
		return results, &mapperr.ConsistencyError{Failed: failed, Err: errs}
	}
	return results, nil
}

func checkPlacement(m *mapping.Map, _ []*mapping.Route) []string {
	if err := m.CheckPlacement(); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// checkCongestion recounts occupancy from the routes themselves.
func checkCongestion(m *mapping.Map, routes []*mapping.Route) []string {
	g := m.Arch
	linkOcc := make(map[arch.LinkID]int)
	resOcc := make(map[arch.ResourceID]int)
	for _, r := range routes {
		if r == nil {
			continue
		}
		for _, l := range r.Links {
			if g.HasLink(l) {
				linkOcc[l]++
			}
		}
		for _, res := range validIntermediates(m, r) {
			resOcc[res]++
		}
	}

	var out []string
	for _, l := range sortedKeys(linkOcc) {
		if link := g.Link(l); linkOcc[l] > link.Capacity {
			out = append(out, fmt.Sprintf("link %s carries %d channels, capacity %d", link.Name, linkOcc[l], link.Capacity))
		}
	}
	for _, id := range sortedKeys(resOcc) {
		if res := g.Resource(id); resOcc[id] > res.Capacity {
			out = append(out, fmt.Sprintf("resource %s carries %d channels, capacity %d", res.Name, resOcc[id], res.Capacity))
		}
	}
	return out
}

// checkPorts verifies every channel is routed and every sink path starts
// at the source's resource and ends at the sink's.
func checkPorts(m *mapping.Map, routes []*mapping.Route) []string {
	g := m.Arch
	var out []string
	for _, c := range m.Tasks.Channels() {
		r := routes[c.ID]
		if r == nil {
			out = append(out, fmt.Sprintf("channel %s is not routed", c.Name))
			continue
		}
		if len(r.Paths) != len(c.Sinks) {
			out = append(out, fmt.Sprintf("channel %s has %d paths for %d sinks", c.Name, len(r.Paths), len(c.Sinks)))
			continue
		}
		src := m.Location(c.Source)
		for i, p := range r.Paths {
			sink := m.Tasks.Task(c.Sinks[i])
			switch {
			case len(p) == 0:
				out = append(out, fmt.Sprintf("channel %s: path to %s is empty", c.Name, sink.Name))
			case !g.HasLink(p[0]) || !g.HasLink(p[len(p)-1]):
				out = append(out, fmt.Sprintf("channel %s: path to %s uses unknown links", c.Name, sink.Name))
			case g.Link(p[0]).Source != src:
				out = append(out, fmt.Sprintf("channel %s: path to %s leaves from %s", c.Name, sink.Name, g.Resource(g.Link(p[0]).Source).Name))
			case g.Link(p[len(p)-1]).Dest != m.Location(sink.ID):
				out = append(out, fmt.Sprintf("channel %s: path to %s arrives at %s", c.Name, sink.Name, g.Resource(g.Link(p[len(p)-1]).Dest).Name))
			}
		}
	}
	return out
}

// checkConnectivity verifies the links of each routing tree connect the
// source's resource to every sink's resource.
func checkConnectivity(m *mapping.Map, routes []*mapping.Route) []string {
	g := m.Arch
	var out []string
	for _, c := range m.Tasks.Channels() {
		r := routes[c.ID]
		if r == nil {
			continue
		}
		tree := simple.NewDirectedGraph()
		for _, l := range r.Links {
			if !g.HasLink(l) {
				continue
			}
			link := g.Link(l)
			from, to := simple.Node(link.Source), simple.Node(link.Dest)
			if tree.Node(from.ID()) == nil {
				tree.AddNode(from)
			}
			if tree.Node(to.ID()) == nil {
				tree.AddNode(to)
			}
			tree.SetEdge(tree.NewEdge(from, to))
		}
		src := tree.Node(int64(m.Location(c.Source)))
		for _, s := range c.Sinks {
			dst := tree.Node(int64(m.Location(s)))
			if src == nil || dst == nil || !topo.PathExistsIn(tree, src, dst) {
				out = append(out, fmt.Sprintf("channel %s: %s is not reachable from %s",
					c.Name, m.Tasks.Task(s).Name, m.Tasks.Task(c.Source).Name))
			}
		}
	}
	return out
}

// checkArchitecture verifies every link exists, is of a class the channel
// allows, and that consecutive links of a path meet at a resource.
func checkArchitecture(m *mapping.Map, routes []*mapping.Route) []string {
	g := m.Arch
	var out []string
	for _, c := range m.Tasks.Channels() {
		r := routes[c.ID]
		if r == nil {
			continue
		}
		for _, l := range r.Links {
			if !g.HasLink(l) {
				out = append(out, fmt.Sprintf("channel %s uses unknown link %d", c.Name, l))
				continue
			}
			if link := g.Link(l); !c.AllowsLinkClass(link.Class) {
				out = append(out, fmt.Sprintf("channel %s uses link %s of class %s", c.Name, link.Name, link.Class))
			}
		}
		for i, p := range r.Paths {
			for j := 1; j < len(p); j++ {
				if !g.HasLink(p[j-1]) || !g.HasLink(p[j]) {
					continue
				}
				if g.Link(p[j-1]).Dest != g.Link(p[j]).Source {
					out = append(out, fmt.Sprintf("channel %s: path to %s breaks between %s and %s",
						c.Name, sinkName(m, c, i), g.Link(p[j-1]).Name, g.Link(p[j]).Name))
				}
			}
		}
	}
	return out
}

// checkResources verifies that a routing tree is exactly the union of its
// paths and only relays through routable resources.
func checkResources(m *mapping.Map, routes []*mapping.Route) []string {
	g := m.Arch
	var out []string
	for _, c := range m.Tasks.Channels() {
		r := routes[c.ID]
		if r == nil {
			continue
		}
		inTree := make(map[arch.LinkID]bool, len(r.Links))
		for _, l := range r.Links {
			if inTree[l] {
				out = append(out, fmt.Sprintf("channel %s lists link %d twice", c.Name, l))
			}
			inTree[l] = true
		}
		used := make(map[arch.LinkID]bool, len(r.Links))
		for _, p := range r.Paths {
			for _, l := range p {
				used[l] = true
				if !inTree[l] {
					out = append(out, fmt.Sprintf("channel %s: path link %d is missing from the tree", c.Name, l))
				}
			}
		}
		for _, l := range r.Links {
			if !used[l] {
				out = append(out, fmt.Sprintf("channel %s: tree link %d is on no path", c.Name, l))
			}
		}
		for _, res := range validIntermediates(m, r) {
			if !g.Resource(res).Routable {
				out = append(out, fmt.Sprintf("channel %s relays through non-routable %s", c.Name, g.Resource(res).Name))
			}
		}
	}
	return out
}

func validIntermediates(m *mapping.Map, r *mapping.Route) []arch.ResourceID {
	c := m.Tasks.Channel(r.Channel)
	valid := &mapping.Route{Channel: r.Channel}
	for _, l := range r.Links {
		if m.Arch.HasLink(l) {
			valid.Links = append(valid.Links, l)
		}
	}
	endpoints := []arch.ResourceID{m.Location(c.Source)}
	for _, s := range c.Sinks {
		endpoints = append(endpoints, m.Location(s))
	}
	return valid.Intermediates(m.Arch, endpoints)
}

func sinkName(m *mapping.Map, c *taskgraph.Channel, i int) string {
	if i >= len(c.Sinks) {
		return fmt.Sprintf("sink #%d", i)
	}
	return m.Tasks.Task(c.Sinks[i]).Name
}

func sortedKeys[K ~int, V any](in map[K]V) []K {
	keys := make([]K, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

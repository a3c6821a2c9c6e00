package mapping

// Report is a name-keyed snapshot of a Map, suitable for JSON output.
type Report struct {
	Architecture string                `json:"architecture"`
	TaskGraph    string                `json:"taskgraph"`
	Placement    map[string]string     `json:"placement"`
	Routes       map[string][][]string `json:"routes,omitempty"`
	RoutingValid bool                  `json:"routing_valid"`
	Metadata     Metadata              `json:"metadata"`
}

// Report builds a Report from the current state of the Map.
func (m *Map) Report() Report {
	r := Report{
		Architecture: m.Arch.Name(),
		TaskGraph:    m.Tasks.Name(),
		Placement:    make(map[string]string, len(m.placement)),
		RoutingValid: m.routingValid,
		Metadata:     m.Metadata,
	}
	for i, res := range m.placement {
		name := ""
		if m.Arch.HasResource(res) {
			name = m.Arch.Resource(res).Name
		}
		r.Placement[m.Tasks.Tasks()[i].Name] = name
	}
	if m.IsRouted() && len(m.routes) > 0 {
		r.Routes = make(map[string][][]string, len(m.routes))
		for _, route := range m.routes {
			paths := make([][]string, len(route.Paths))
			for i, p := range route.Paths {
				for _, l := range p {
					paths[i] = append(paths[i], m.Arch.Link(l).Name)
				}
			}
			r.Routes[m.Tasks.Channel(route.Channel).Name] = paths
		}
	}
	return r
}

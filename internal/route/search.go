package route

import (
	"container/heap"
	"fmt"
	"math"
	"slices"

	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/mapping"
	"github.com/vk/gridmapper/internal/taskgraph"
)

// router holds the negotiated-congestion state of one Route call.
type router struct {
	g   *arch.Graph
	tg  *taskgraph.Graph
	loc []arch.ResourceID

	linkOcc  []int
	resOcc   []int
	linkHist []float64
	resHist  []float64
	pres     float64

	routes []*mapping.Route
	costs  []float64
}

func newRouter(m *mapping.Map, pres float64) *router {
	r := &router{
		g:        m.Arch,
		tg:       m.Tasks,
		loc:      m.Placement(),
		linkOcc:  make([]int, m.Arch.NumLinks()),
		resOcc:   make([]int, m.Arch.NumResources()),
		linkHist: make([]float64, m.Arch.NumLinks()),
		resHist:  make([]float64, m.Arch.NumResources()),
		pres:     pres,
		routes:   make([]*mapping.Route, m.Tasks.NumChannels()),
		costs:    make([]float64, m.Tasks.NumChannels()),
	}
	for i := range r.linkHist {
		r.linkHist[i] = 1
	}
	for i := range r.resHist {
		r.resHist[i] = 1
	}
	return r
}

// endpoints returns the placed resources of a channel's source and sinks.
func (r *router) endpoints(c *taskgraph.Channel) []arch.ResourceID {
	out := make([]arch.ResourceID, 0, len(c.Sinks)+1)
	out = append(out, r.loc[c.Source])
	for _, s := range c.Sinks {
		out = append(out, r.loc[s])
	}
	return out
}

// commit adds (sign 1) or removes (sign -1) a route's usage.
func (r *router) commit(route *mapping.Route, sign int) {
	for _, l := range route.Links {
		r.linkOcc[l] += sign
	}
	c := r.tg.Channel(route.Channel)
	for _, res := range route.Intermediates(r.g, r.endpoints(c)) {
		r.resOcc[res] += sign
	}
}

// costView prices links and resources for one search. own, when set, is the
// channel's previous route, whose usage is discounted so a batched search
// does not compete with itself.
type costView struct {
	r        *router
	ownLinks map[arch.LinkID]bool
	ownRes   map[arch.ResourceID]bool
}

func (r *router) view(own *mapping.Route) *costView {
	v := &costView{r: r}
	if own == nil {
		return v
	}
	v.ownLinks = make(map[arch.LinkID]bool, len(own.Links))
	for _, l := range own.Links {
		v.ownLinks[l] = true
	}
	v.ownRes = make(map[arch.ResourceID]bool)
	for _, res := range own.Intermediates(r.g, r.endpoints(r.tg.Channel(own.Channel))) {
		v.ownRes[res] = true
	}
	return v
}

func (v *costView) link(id arch.LinkID) float64 {
	l := v.r.g.Link(id)
	occ := v.r.linkOcc[id]
	if v.ownLinks[id] {
		occ--
	}
	over := max(0, occ+1-l.Capacity)
	return l.Cost * (1 + v.r.pres*float64(over)) * v.r.linkHist[id]
}

func (v *costView) resource(id arch.ResourceID) float64 {
	res := v.r.g.Resource(id)
	occ := v.r.resOcc[id]
	if v.ownRes[id] {
		occ--
	}
	over := max(0, occ+1-res.Capacity)
	return res.Cost + (1+v.r.pres*float64(over))*v.r.resHist[id] - 1
}

// search builds the routing tree of one channel. Sinks are connected in
// ascending task order; each search starts from every resource already in
// the tree at cost zero, and ties are broken by resource ID.
func (r *router) search(c *taskgraph.Channel, v *costView) (*mapping.Route, float64, error) {
	src := r.loc[c.Source]
	route := &mapping.Route{Channel: c.ID, Paths: make([][]arch.LinkID, len(c.Sinks))}
	tree := map[arch.ResourceID][]arch.LinkID{src: nil}
	members := []arch.ResourceID{src}

	order := make([]int, len(c.Sinks))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return int(c.Sinks[a]) - int(c.Sinks[b]) })

	n := r.g.NumResources()
	dist := make([]float64, n)
	via := make([]arch.LinkID, n)
	total := 0.0

	for _, i := range order {
		dst := r.loc[c.Sinks[i]]
		if p, ok := tree[dst]; ok {
			route.Paths[i] = slices.Clone(p)
			continue
		}

		for j := range dist {
			dist[j] = math.Inf(1)
			via[j] = -1
		}
		q := &searchQueue{}
		for _, m := range members {
			dist[m] = 0
			heap.Push(q, searchItem{id: m})
		}
		found := false
		for q.Len() > 0 {
			cur := heap.Pop(q).(searchItem)
			if cur.cost > dist[cur.id] {
				continue
			}
			if cur.id == dst {
				found = true
				break
			}
			if cur.id != src && !r.g.Resource(cur.id).Routable {
				continue
			}
			for _, lid := range r.g.Out(cur.id) {
				l := r.g.Link(lid)
				if !c.AllowsLinkClass(l.Class) {
					continue
				}
				if _, in := tree[l.Dest]; in {
					continue
				}
				step := v.link(lid)
				if l.Dest != dst {
					if !r.g.Resource(l.Dest).Routable {
						continue
					}
					step += v.resource(l.Dest)
				}
				if nd := cur.cost + step; nd < dist[l.Dest] {
					dist[l.Dest] = nd
					via[l.Dest] = lid
					heap.Push(q, searchItem{id: l.Dest, cost: nd})
				}
			}
		}
		if !found {
			err := fmt.Errorf("channel %q: no path from %q to %q", c.Name, r.g.Resource(src).Name, r.g.Resource(dst).Name)
			return nil, 0, &mapperr.ConsistencyError{Failed: []string{CheckConnectivity}, Err: err}
		}

		var links []arch.LinkID
		for at := dst; ; {
			if _, in := tree[at]; in {
				break
			}
			lid := via[at]
			links = append(links, lid)
			at = r.g.Link(lid).Source
		}
		slices.Reverse(links)

		prefix := slices.Clone(tree[r.g.Link(links[0]).Source])
		for _, lid := range links {
			prefix = append(prefix, lid)
			d := r.g.Link(lid).Dest
			tree[d] = slices.Clone(prefix)
			members = append(members, d)
			route.Links = append(route.Links, lid)
		}
		route.Paths[i] = slices.Clone(prefix)
		total += dist[dst]
	}
	return route, total, nil
}

type searchItem struct {
	id   arch.ResourceID
	cost float64
}

type searchQueue []searchItem

func (q searchQueue) Len() int { return len(q) }
func (q searchQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].id < q[j].id
}
func (q searchQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *searchQueue) Push(x any) { *q = append(*q, x.(searchItem)) }
func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

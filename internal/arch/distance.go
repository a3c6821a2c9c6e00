package arch

import (
	"container/heap"
	"fmt"
	"math"
)

// Metric names the distance function used between placement sites.
type Metric string

const (
	// MetricAuto picks Manhattan when every site has a coordinate and falls
	// back to graph distance otherwise.
	MetricAuto Metric = ""
	// MetricManhattan uses resource coordinates.
	MetricManhattan Metric = "manhattan"
	// MetricGraph uses the cheapest link path, hopping only through routable
	// resources.
	MetricGraph Metric = "graph"
)

// DistanceTable holds the pairwise distances between a set of sites.
type DistanceTable struct {
	metric   Metric
	sites    []ResourceID
	index    []int // resource ID -> site index, -1 when not a site
	dist     []float64
	diameter float64
}

// Distances computes the table over every resource whose class is in
// classes. Unreachable pairs get +Inf and are ignored by Diameter.
func (g *Graph) Distances(classes []string) (*DistanceTable, error) {
	t := &DistanceTable{index: make([]int, len(g.resources))}
	for i := range t.index {
		t.index[i] = -1
	}
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		if seen[c] {
			continue
		}
		seen[c] = true
		t.sites = append(t.sites, g.byClass[c]...)
	}
	for i, r := range t.sites {
		t.index[r] = i
	}

	metric := g.metric
	if metric == MetricAuto {
		metric = MetricManhattan
		for _, r := range t.sites {
			if g.resources[r].Coord == nil {
				metric = MetricGraph
				break
			}
		}
	}
	t.metric = metric

	n := len(t.sites)
	t.dist = make([]float64, n*n)
	switch metric {
	case MetricManhattan:
		for i, a := range t.sites {
			ca := g.resources[a].Coord
			if ca == nil {
				return nil, fmt.Errorf("manhattan metric: resource %q has no coordinate", g.resources[a].Name)
			}
			for j, b := range t.sites {
				t.dist[i*n+j] = float64(Manhattan(*ca, *g.resources[b].Coord))
			}
		}
	case MetricGraph:
		for i, a := range t.sites {
			row := g.shortestFrom(a)
			for j, b := range t.sites {
				t.dist[i*n+j] = row[b]
			}
		}
	}

	for _, d := range t.dist {
		if !math.IsInf(d, 1) && d > t.diameter {
			t.diameter = d
		}
	}
	return t, nil
}

// Metric returns the metric actually used to fill the table.
func (t *DistanceTable) Metric() Metric { return t.metric }

// Sites returns the resources covered by the table, in site order.
func (t *DistanceTable) Sites() []ResourceID { return t.sites }

// Index returns the site index of a resource, or -1.
func (t *DistanceTable) Index(r ResourceID) int {
	if r < 0 || int(r) >= len(t.index) {
		return -1
	}
	return t.index[r]
}

// Between returns the distance between two resources, +Inf when either is
// not a site or the pair is disconnected.
func (t *DistanceTable) Between(a, b ResourceID) float64 {
	i, j := t.Index(a), t.Index(b)
	if i < 0 || j < 0 {
		return math.Inf(1)
	}
	return t.dist[i*len(t.sites)+j]
}

// At returns the distance between two site indices.
func (t *DistanceTable) At(i, j int) float64 { return t.dist[i*len(t.sites)+j] }

// Diameter is the largest finite distance in the table, at least 1.
func (t *DistanceTable) Diameter() float64 {
	if t.diameter < 1 {
		return 1
	}
	return t.diameter
}

// shortestFrom runs Dijkstra from src over link costs. Only the source and
// routable resources may be expanded, so non-routable resources are reached
// but never relayed through.
func (g *Graph) shortestFrom(src ResourceID) []float64 {
	dist := make([]float64, len(g.resources))
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[src] = 0
	pq := &distQueue{{id: src}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(distItem)
		if cur.cost > dist[cur.id] {
			continue
		}
		if cur.id != src && !g.resources[cur.id].Routable {
			continue
		}
		for _, lid := range g.out[cur.id] {
			l := g.links[lid]
			if nd := cur.cost + l.Cost; nd < dist[l.Dest] {
				dist[l.Dest] = nd
				heap.Push(pq, distItem{id: l.Dest, cost: nd})
			}
		}
	}
	return dist
}

type distItem struct {
	id   ResourceID
	cost float64
}

type distQueue []distItem

func (q distQueue) Len() int { return len(q) }
func (q distQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].id < q[j].id
}
func (q distQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *distQueue) Push(x any) { *q = append(*q, x.(distItem)) }
func (q *distQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

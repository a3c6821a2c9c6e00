package place

import (
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/vk/gridmapper/internal/taskgraph"
)

// MoveKind distinguishes the two legal placement moves.
type MoveKind uint8

const (
	// Relocate moves a task onto a free site.
	Relocate MoveKind = iota
	// Swap exchanges the sites of two movable tasks of the same class.
	Swap
)

func (k MoveKind) String() string {
	if k == Swap {
		return "swap"
	}
	return "relocate"
}

// Move is a proposed change to the placement. Target is the destination site
// index of Task; for a Swap it is the current site of Other.
type Move struct {
	Kind   MoveKind
	Task   taskgraph.TaskID
	Other  taskgraph.TaskID
	Target int
}

// MoveGenerator proposes random legal moves whose destination lies within
// limit of the moved task's current site. It returns false when the draw
// produced no legal move; the caller may simply retry.
type MoveGenerator interface {
	Next(p *Problem, limit float64, rng *rand.Rand) (Move, bool)
}

// SearchMoveGenerator scans the task's class on every draw.
type SearchMoveGenerator struct {
	buf []int
}

// NewSearchMoveGenerator returns a generator with no precomputed state.
func NewSearchMoveGenerator() *SearchMoveGenerator { return &SearchMoveGenerator{} }

// Next implements MoveGenerator.
func (g *SearchMoveGenerator) Next(p *Problem, limit float64, rng *rand.Rand) (Move, bool) {
	if len(p.movable) == 0 {
		return Move{}, false
	}
	t := p.movable[rng.IntN(len(p.movable))]
	cur := p.site[t]
	g.buf = g.buf[:0]
	for _, s := range p.classSites[p.taskClass[t]] {
		if s != cur && !p.pinned[s] && p.distance(cur, s) <= limit {
			g.buf = append(g.buf, s)
		}
	}
	if len(g.buf) == 0 {
		return Move{}, false
	}
	return p.moveTo(t, g.buf[rng.IntN(len(g.buf))])
}

// CachedMoveGenerator precomputes, for every site, the other sites of its
// class ordered by distance, leaving out sites held by fixed tasks, so a draw is a binary search plus one random
// index. It draws from the same candidate set as SearchMoveGenerator.
type CachedMoveGenerator struct {
	problem *Problem
	near    [][]int     // site -> same-class sites by ascending distance
	dist    [][]float64 // parallel to near
}

// NewCachedMoveGenerator returns a generator that builds its cache on the
// first draw against a Problem.
func NewCachedMoveGenerator() *CachedMoveGenerator { return &CachedMoveGenerator{} }

// Next implements MoveGenerator.
func (g *CachedMoveGenerator) Next(p *Problem, limit float64, rng *rand.Rand) (Move, bool) {
	if len(p.movable) == 0 {
		return Move{}, false
	}
	if g.problem != p {
		g.build(p)
	}
	t := p.movable[rng.IntN(len(p.movable))]
	cur := p.site[t]
	dist := g.dist[cur]
	n := sort.Search(len(dist), func(i int) bool { return dist[i] > limit })
	if n == 0 {
		return Move{}, false
	}
	return p.moveTo(t, g.near[cur][rng.IntN(n)])
}

func (g *CachedMoveGenerator) build(p *Problem) {
	g.problem = p
	g.near = make([][]int, len(p.occupant))
	g.dist = make([][]float64, len(p.occupant))
	for _, sites := range p.classSites {
		for _, s := range sites {
			near := make([]int, 0, len(sites)-1)
			for _, o := range sites {
				if o != s && !p.pinned[o] {
					near = append(near, o)
				}
			}
			slices.SortStableFunc(near, func(a, b int) int {
				da, db := p.distance(s, a), p.distance(s, b)
				switch {
				case da < db:
					return -1
				case da > db:
					return 1
				}
				return a - b
			})
			dist := make([]float64, len(near))
			for i, o := range near {
				dist[i] = p.distance(s, o)
			}
			g.near[s] = near
			g.dist[s] = dist
		}
	}
}

// moveTo turns a destination site into a move for task t. Both generators
// leave pinned sites out of their candidates, so the fixed case only guards
// against a Problem whose pins changed under a cached generator.
func (p *Problem) moveTo(t, s int) (Move, bool) {
	occ := p.occupant[s]
	switch {
	case occ < 0:
		return Move{Kind: Relocate, Task: taskgraph.TaskID(t), Other: -1, Target: s}, true
	case p.fixed[occ]:
		return Move{}, false
	default:
		return Move{Kind: Swap, Task: taskgraph.TaskID(t), Other: taskgraph.TaskID(occ), Target: s}, true
	}
}

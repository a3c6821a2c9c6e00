package place

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/taskgraph"
)

// Problem is the annealer's working representation of a Map: tasks and
// sites are plain indices, and every channel is reduced to its endpoints and
// weight so a move's cost delta only touches the channels of the moved tasks.
type Problem struct {
	Tasks *taskgraph.Graph
	Arch  *arch.Graph
	Dist  *arch.DistanceTable

	site       []int // task -> site index
	occupant   []int // site index -> task, -1 when free
	fixed      []bool
	pinned     []bool // site index -> held by a fixed task
	taskClass  []int
	classSites [][]int // class index -> site indices
	movable    []int

	channels []channel
	adj      [][]int // task -> channel indices

	penalty   float64
	objective float64

	// stamp/epoch deduplicate channels shared by both tasks of a swap.
	stamp []int
	epoch int
}

type channel struct {
	src    int
	sinks  []int
	weight float64
}

// NewProblem checks class capacity and builds the working representation.
// It fails with a *mapperr.CapacityError before any placement is attempted
// when a class is oversubscribed or a fixed task cannot be honoured.
func NewProblem(tg *taskgraph.Graph, rg *arch.Graph) (*Problem, error) {
	classes := tg.Classes()
	demand := tg.ClassDemand()
	for _, c := range classes {
		if have := len(rg.OfClass(c)); demand[c] > have {
			return nil, &mapperr.CapacityError{Class: c, Tasks: demand[c], Resources: have}
		}
	}

	dist, err := rg.Distances(classes)
	if err != nil {
		return nil, fmt.Errorf("computing site distances: %w", err)
	}

	nsites := len(dist.Sites())
	p := &Problem{
		Tasks:      tg,
		Arch:       rg,
		Dist:       dist,
		site:       make([]int, tg.NumTasks()),
		occupant:   make([]int, nsites),
		fixed:      make([]bool, tg.NumTasks()),
		pinned:     make([]bool, nsites),
		taskClass:  make([]int, tg.NumTasks()),
		classSites: make([][]int, len(classes)),
		channels:   make([]channel, tg.NumChannels()),
		adj:        make([][]int, tg.NumTasks()),
		stamp:      make([]int, tg.NumChannels()),
		penalty:    dist.Diameter()*float64(nsites) + 1,
	}
	classIndex := make(map[string]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
		for _, r := range rg.OfClass(c) {
			p.classSites[i] = append(p.classSites[i], dist.Index(r))
		}
	}
	for i := range p.occupant {
		p.occupant[i] = -1
	}
	for i := range p.site {
		p.site[i] = -1
	}

	pinned := make(map[int]string)
	for _, t := range tg.Tasks() {
		p.taskClass[t.ID] = classIndex[t.Class]
		if !t.IsFixed() {
			p.movable = append(p.movable, int(t.ID))
			continue
		}
		r, ok := rg.Lookup(t.Fixed)
		if !ok {
			return nil, &mapperr.CapacityError{Class: t.Class, Detail: fmt.Sprintf("fixed task %q names unknown resource %q", t.Name, t.Fixed)}
		}
		if got := rg.Resource(r).Class; got != t.Class {
			return nil, &mapperr.CapacityError{Class: t.Class, Detail: fmt.Sprintf("fixed task %q pinned to %q of class %q", t.Name, t.Fixed, got)}
		}
		s := dist.Index(r)
		if other, taken := pinned[s]; taken {
			return nil, &mapperr.CapacityError{Class: t.Class, Detail: fmt.Sprintf("tasks %q and %q are both pinned to %q", other, t.Name, t.Fixed)}
		}
		pinned[s] = t.Name
		p.fixed[t.ID] = true
		p.pinned[s] = true
	}

	for _, c := range tg.Channels() {
		ch := channel{src: int(c.Source), weight: c.Weight}
		for _, s := range c.Sinks {
			ch.sinks = append(ch.sinks, int(s))
		}
		p.channels[c.ID] = ch
	}
	for t := range p.adj {
		for _, c := range tg.ChannelsOf(taskgraph.TaskID(t)) {
			p.adj[t] = append(p.adj[t], int(c))
		}
	}
	return p, nil
}

// NumMovable returns the number of tasks the annealer may move.
func (p *Problem) NumMovable() int { return len(p.movable) }

// NumChannels returns the number of channels in the objective.
func (p *Problem) NumChannels() int { return len(p.channels) }

// Site returns the site index of a task.
func (p *Problem) Site(t int) int { return p.site[t] }

// Occupant returns the task on a site, or -1.
func (p *Problem) Occupant(s int) int { return p.occupant[s] }

// IsFixed reports whether a task is pinned.
func (p *Problem) IsFixed(t int) bool { return p.fixed[t] }

// HasMoves reports whether some movable task has a legal destination within
// limit of its current site.
func (p *Problem) HasMoves(limit float64) bool {
	for _, t := range p.movable {
		cur := p.site[t]
		for _, s := range p.classSites[p.taskClass[t]] {
			if s != cur && !p.pinned[s] && p.distance(cur, s) <= limit {
				return true
			}
		}
	}
	return false
}

// Objective returns the incrementally maintained objective.
func (p *Problem) Objective() float64 { return p.objective }

// Initialize places fixed tasks on their resources and scatters the rest over
// the free sites of their class in an order drawn from rng.
func (p *Problem) Initialize(rng *rand.Rand) {
	for i := range p.occupant {
		p.occupant[i] = -1
	}
	for _, t := range p.Tasks.Tasks() {
		if !t.IsFixed() {
			continue
		}
		r, _ := p.Arch.Lookup(t.Fixed)
		p.put(int(t.ID), p.Dist.Index(r))
	}

	free := make([][]int, len(p.classSites))
	for c, sites := range p.classSites {
		for _, s := range sites {
			if p.occupant[s] < 0 {
				free[c] = append(free[c], s)
			}
		}
		rng.Shuffle(len(free[c]), func(i, j int) { free[c][i], free[c][j] = free[c][j], free[c][i] })
	}
	for _, t := range p.movable {
		c := p.taskClass[t]
		p.put(t, free[c][0])
		free[c] = free[c][1:]
	}
	p.objective = p.TotalCost()
}

// Load installs a placement given as one resource per task. The placement
// must already be valid for the Map.
func (p *Problem) Load(locs []arch.ResourceID) error {
	for i := range p.occupant {
		p.occupant[i] = -1
	}
	for t, r := range locs {
		s := p.Dist.Index(r)
		if s < 0 {
			return fmt.Errorf("task %q is on resource %d which is not a placement site", p.Tasks.Task(taskgraph.TaskID(t)).Name, r)
		}
		p.put(t, s)
	}
	p.objective = p.TotalCost()
	return nil
}

// Resources returns the placement as one resource per task.
func (p *Problem) Resources() []arch.ResourceID {
	out := make([]arch.ResourceID, len(p.site))
	sites := p.Dist.Sites()
	for t, s := range p.site {
		out[t] = sites[s]
	}
	return out
}

// Snapshot copies the task to site assignment into dst and returns it.
func (p *Problem) Snapshot(dst []int) []int {
	return append(dst[:0], p.site...)
}

// Restore reinstalls an assignment taken with Snapshot.
func (p *Problem) Restore(snap []int) {
	for i := range p.occupant {
		p.occupant[i] = -1
	}
	for t, s := range snap {
		p.put(t, s)
	}
	p.objective = p.TotalCost()
}

func (p *Problem) put(t, s int) {
	p.site[t] = s
	p.occupant[s] = t
}

// distance between two sites; unreachable pairs cost a finite penalty so
// deltas never turn into NaN.
func (p *Problem) distance(a, b int) float64 {
	d := p.Dist.At(a, b)
	if math.IsInf(d, 1) {
		return p.penalty
	}
	return d
}

func (p *Problem) channelCost(c int) float64 {
	ch := &p.channels[c]
	src := p.site[ch.src]
	total := 0.0
	for _, s := range ch.sinks {
		total += p.distance(src, p.site[s])
	}
	return ch.weight * total
}

// TotalCost recomputes the objective from scratch.
func (p *Problem) TotalCost() float64 {
	total := 0.0
	for c := range p.channels {
		total += p.channelCost(c)
	}
	return total
}

// Resync replaces the running objective with a full recomputation, removing
// floating point drift accumulated over many deltas.
func (p *Problem) Resync() { p.objective = p.TotalCost() }

// undo records what Apply changed.
type undo struct {
	task, other         int
	taskSite, otherSite int
}

// Apply performs a move, updates the objective and returns the delta along
// with the record Revert needs.
func (p *Problem) Apply(m Move) (float64, undo) {
	task := int(m.Task)
	u := undo{task: task, other: -1, taskSite: p.site[task], otherSite: m.Target}
	if m.Kind == Swap {
		u.other = int(m.Other)
	}

	p.epoch++
	affected := p.touch(task, nil)
	if u.other >= 0 {
		affected = p.touch(u.other, affected)
	}

	before := 0.0
	for _, c := range affected {
		before += p.channelCost(c)
	}
	p.move(u.task, u.other, u.taskSite, u.otherSite)
	after := 0.0
	for _, c := range affected {
		after += p.channelCost(c)
	}
	delta := after - before
	p.objective += delta
	return delta, u
}

// Revert undoes the move recorded in u and restores the objective.
func (p *Problem) Revert(u undo, delta float64) {
	p.move(u.task, u.other, u.otherSite, u.taskSite)
	p.objective -= delta
}

// move places task on to; when other >= 0 it takes task's old site from.
func (p *Problem) move(task, other, from, to int) {
	if other >= 0 {
		p.site[other] = from
		p.occupant[from] = other
	} else {
		p.occupant[from] = -1
	}
	p.site[task] = to
	p.occupant[to] = task
}

func (p *Problem) touch(t int, acc []int) []int {
	for _, c := range p.adj[t] {
		if p.stamp[c] == p.epoch {
			continue
		}
		p.stamp[c] = p.epoch
		acc = append(acc, c)
	}
	return acc
}

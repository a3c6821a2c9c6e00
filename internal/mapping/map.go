// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package mapping holds the Map, the mutable result that binds a task graph
// to an architecture.
//
// A Map owns three things:
//
//   - the placement, one resource per task, injective and class compatible;
//   - the routing, one Route per channel;
//   - the Metadata record that the engines fill with timings, allocation
//     counters, the final objective and the routed link-length histogram.
//
// The graphs themselves are shared and never modified through a Map.
package mapping

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/taskgraph"
)

// Map binds a task graph to an architecture.
type Map struct {
	Arch     *arch.Graph
	Tasks    *taskgraph.Graph
	Metadata Metadata

	placement    []arch.ResourceID
	routes       []*Route
	routingValid bool

	mu   sync.Mutex
	busy bool
}

// New creates an unplaced, unrouted Map.
func New(tg *taskgraph.Graph, rg *arch.Graph) *Map {
	m := &Map{
		Arch:      rg,
		Tasks:     tg,
		placement: make([]arch.ResourceID, tg.NumTasks()),
		routes:    make([]*Route, tg.NumChannels()),
		Metadata:  newMetadata(),
	}
	m.Metadata.RunID = uuid.New().String()
	for i := range m.placement {
		m.placement[i] = arch.None
	}
	return m
}

// Acquire marks the Map as in use by one engine run. The returned function
// releases it. A second concurrent Acquire fails with ErrMapBusy.
func (m *Map) Acquire() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return nil, mapperr.ErrMapBusy
	}
	m.busy = true
	return func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}, nil
}

// Location returns the resource a task is placed on, or arch.None.
func (m *Map) Location(t taskgraph.TaskID) arch.ResourceID { return m.placement[t] }

// Placement returns a copy of the task to resource assignment.
func (m *Map) Placement() []arch.ResourceID { return slices.Clone(m.placement) }

// IsPlaced reports whether every task has a resource.
func (m *Map) IsPlaced() bool {
	return !slices.Contains(m.placement, arch.None)
}

// SetPlacement replaces the placement after validating it. Any routing is
// discarded because it no longer matches.
func (m *Map) SetPlacement(locs []arch.ResourceID) error {
	if len(locs) != m.Tasks.NumTasks() {
		return fmt.Errorf("placement has %d entries for %d tasks", len(locs), m.Tasks.NumTasks())
	}
	if err := m.validatePlacement(locs); err != nil {
		return err
	}
	copy(m.placement, locs)
	m.ClearRouting()
	return nil
}

// CheckPlacement validates the current placement.
func (m *Map) CheckPlacement() error { return m.validatePlacement(m.placement) }

func (m *Map) validatePlacement(locs []arch.ResourceID) error {
	owner := make(map[arch.ResourceID]taskgraph.TaskID, len(locs))
	for i, r := range locs {
		task := m.Tasks.Task(taskgraph.TaskID(i))
		if r == arch.None {
			return fmt.Errorf("task %q is not placed", task.Name)
		}
		if !m.Arch.HasResource(r) {
			return fmt.Errorf("task %q placed on unknown resource %d", task.Name, r)
		}
		res := m.Arch.Resource(r)
		if res.Class != task.Class {
			return fmt.Errorf("task %q of class %q placed on %q of class %q", task.Name, task.Class, res.Name, res.Class)
		}
		if task.IsFixed() && res.Name != task.Fixed {
			return fmt.Errorf("fixed task %q placed on %q, expected %q", task.Name, res.Name, task.Fixed)
		}
		if prev, taken := owner[r]; taken {
			return fmt.Errorf("tasks %q and %q share resource %q", m.Tasks.Task(prev).Name, task.Name, res.Name)
		}
		owner[r] = taskgraph.TaskID(i)
	}
	return nil
}

// Route returns the route of a channel, nil when unrouted.
func (m *Map) Route(c taskgraph.ChannelID) *Route { return m.routes[c] }

// Routes returns the per-channel routes in channel order.
func (m *Map) Routes() []*Route { return slices.Clone(m.routes) }

// SetRouting stores a full routing. valid records whether every
// post-routing check passed.
func (m *Map) SetRouting(routes []*Route, valid bool) error {
	if len(routes) != m.Tasks.NumChannels() {
		return fmt.Errorf("routing has %d entries for %d channels", len(routes), m.Tasks.NumChannels())
	}
	copy(m.routes, routes)
	m.routingValid = valid
	return nil
}

// ClearRouting drops every route.
func (m *Map) ClearRouting() {
	clear(m.routes)
	m.routingValid = false
	m.Metadata.LinkHistogram = map[int]int{}
}

// RoutingValid reports whether the stored routing passed all checks and may
// be consumed downstream.
func (m *Map) RoutingValid() bool { return m.routingValid }

// IsRouted reports whether every channel has a route.
func (m *Map) IsRouted() bool {
	return !slices.Contains(m.routes, nil)
}

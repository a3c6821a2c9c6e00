// Package taskgraph models the application being mapped: tasks that need a
// resource of some class, and channels that carry data between them.
package taskgraph

import (
	"errors"
	"fmt"
	"slices"
)

// TaskID is the dense index of a task inside its Graph.
type TaskID int

// ChannelID is the dense index of a channel inside its Graph.
type ChannelID int

// Task is a node of the application graph.
type Task struct {
	ID    TaskID
	Name  string
	Class string
	// Fixed names the resource the task is pinned to, empty when movable.
	Fixed string
}

// IsFixed reports whether the task is pre-placed.
func (t *Task) IsFixed() bool { return t.Fixed != "" }

// Channel is a directed communication edge from one source to one or more
// sinks.
type Channel struct {
	ID     ChannelID
	Name   string
	Source TaskID
	Sinks  []TaskID
	// Weight scales the channel's contribution to the placement objective.
	Weight float64
	// LinkClasses restricts the link classes a route may use. Empty means any.
	LinkClasses []string
}

// AllowsLinkClass reports whether a route for this channel may use a link of
// the given class.
func (c *Channel) AllowsLinkClass(class string) bool {
	return len(c.LinkClasses) == 0 || slices.Contains(c.LinkClasses, class)
}

// ChannelSpec describes a channel by task names.
type ChannelSpec struct {
	Name        string
	Source      string
	Sinks       []string
	Weight      float64
	LinkClasses []string
}

// Graph is a frozen task graph.
type Graph struct {
	name     string
	tasks    []*Task
	channels []*Channel
	byName   map[string]TaskID
	adjacent [][]ChannelID
}

// Builder accumulates tasks and channels.
type Builder struct {
	name        string
	tasks       []*Task
	channels    []*Channel
	byName      map[string]TaskID
	channelName map[string]struct{}
}

// NewBuilder creates an empty task graph builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:        name,
		byName:      make(map[string]TaskID),
		channelName: make(map[string]struct{}),
	}
}

// AddTask adds a task and returns its ID.
func (b *Builder) AddTask(name, class, fixed string) (TaskID, error) {
	if name == "" {
		return -1, errors.New("task name cannot be empty")
	}
	if class == "" {
		return -1, fmt.Errorf("task %q has no class", name)
	}
	if _, exists := b.byName[name]; exists {
		return -1, fmt.Errorf("duplicate task name %q", name)
	}
	t := &Task{ID: TaskID(len(b.tasks)), Name: name, Class: class, Fixed: fixed}
	b.tasks = append(b.tasks, t)
	b.byName[name] = t.ID
	return t.ID, nil
}

// AddChannel adds a channel between existing tasks. Weight defaults to 1.
func (b *Builder) AddChannel(spec ChannelSpec) (ChannelID, error) {
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("channel%d", len(b.channels))
	}
	if _, exists := b.channelName[spec.Name]; exists {
		return -1, fmt.Errorf("duplicate channel name %q", spec.Name)
	}
	src, ok := b.byName[spec.Source]
	if !ok {
		return -1, fmt.Errorf("channel %q: source task %q not found", spec.Name, spec.Source)
	}
	if len(spec.Sinks) == 0 {
		return -1, fmt.Errorf("channel %q has no sinks", spec.Name)
	}
	sinks := make([]TaskID, 0, len(spec.Sinks))
	for _, s := range spec.Sinks {
		id, ok := b.byName[s]
		if !ok {
			return -1, fmt.Errorf("channel %q: sink task %q not found", spec.Name, s)
		}
		if id == src {
			return -1, fmt.Errorf("channel %q: task %q cannot send to itself", spec.Name, s)
		}
		if slices.Contains(sinks, id) {
			return -1, fmt.Errorf("channel %q: sink %q listed twice", spec.Name, s)
		}
		sinks = append(sinks, id)
	}
	if spec.Weight == 0 {
		spec.Weight = 1
	}
	if spec.Weight < 0 {
		return -1, fmt.Errorf("channel %q: weight must be > 0, got %g", spec.Name, spec.Weight)
	}

	c := &Channel{
		ID:          ChannelID(len(b.channels)),
		Name:        spec.Name,
		Source:      src,
		Sinks:       sinks,
		Weight:      spec.Weight,
		LinkClasses: slices.Clone(spec.LinkClasses),
	}
	b.channels = append(b.channels, c)
	b.channelName[spec.Name] = struct{}{}
	return c.ID, nil
}

// Build freezes the task graph.
func (b *Builder) Build() (*Graph, error) {
	if len(b.tasks) == 0 {
		return nil, fmt.Errorf("task graph %q has no tasks", b.name)
	}
	g := &Graph{
		name:     b.name,
		tasks:    b.tasks,
		channels: b.channels,
		byName:   b.byName,
		adjacent: make([][]ChannelID, len(b.tasks)),
	}
	for _, c := range b.channels {
		g.adjacent[c.Source] = append(g.adjacent[c.Source], c.ID)
		for _, s := range c.Sinks {
			g.adjacent[s] = append(g.adjacent[s], c.ID)
		}
	}
	return g, nil
}

// Name returns the task graph name.
func (g *Graph) Name() string { return g.name }

// NumTasks returns the number of tasks.
func (g *Graph) NumTasks() int { return len(g.tasks) }

// NumChannels returns the number of channels.
func (g *Graph) NumChannels() int { return len(g.channels) }

// Task returns a task by ID.
func (g *Graph) Task(id TaskID) *Task { return g.tasks[id] }

// Channel returns a channel by ID.
func (g *Graph) Channel(id ChannelID) *Channel { return g.channels[id] }

// Tasks returns all tasks in ID order. The slice must not be modified.
func (g *Graph) Tasks() []*Task { return g.tasks }

// Channels returns all channels in ID order. The slice must not be modified.
func (g *Graph) Channels() []*Channel { return g.channels }

// Lookup finds a task by name.
func (g *Graph) Lookup(name string) (TaskID, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// ChannelsOf returns the channels a task sends on or receives from, in
// ascending ID order.
func (g *Graph) ChannelsOf(id TaskID) []ChannelID { return g.adjacent[id] }

// ClassDemand counts tasks per required class.
func (g *Graph) ClassDemand() map[string]int {
	demand := make(map[string]int)
	for _, t := range g.tasks {
		demand[t.Class]++
	}
	return demand
}

// Classes returns the sorted set of classes the tasks require.
func (g *Graph) Classes() []string {
	demand := g.ClassDemand()
	classes := make([]string, 0, len(demand))
	for c := range demand {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	return classes
}

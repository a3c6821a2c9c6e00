package arch

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ResourceID is the dense index of a resource inside its Graph.
type ResourceID int

// LinkID is the dense index of a link inside its Graph.
type LinkID int

// None marks an absent resource, e.g. an unplaced task.
const None ResourceID = -1

// Well known resource classes. The class set is open; these are the names
// the mesh helper and the HCL loader use by default.
const (
	ClassTile   = "tile"
	ClassMemory = "memory"
	ClassPort   = "port"
	ClassIO     = "io"

	// DefaultLinkClass is assigned to links declared without a class.
	DefaultLinkClass = "link"
)

// Coord is an optional physical position used by the Manhattan metric.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Manhattan returns the hop distance between two coordinates.
func Manhattan(a, b Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Resource is a single architecture element.
type Resource struct {
	ID       ResourceID
	Name     string
	Class    string
	Capacity int
	// Routable resources may appear as intermediate hops of a route.
	Routable bool
	// Cost is the base cost of passing through the resource while routing.
	Cost       float64
	Coord      *Coord
	Attributes map[string]cty.Value
}

// Link is a directed connection between two resources.
type Link struct {
	ID       LinkID
	Name     string
	Source   ResourceID
	Dest     ResourceID
	Capacity int
	Length   int
	Cost     float64
	Class    string
}

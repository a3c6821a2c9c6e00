package arch

import "fmt"

// MeshSpec describes a rectangular grid of identical resources joined by
// nearest-neighbour links in both directions.
type MeshSpec struct {
	Rows int
	Cols int
	// Class of every grid resource. Defaults to ClassTile.
	Class string
	// Prefix of resource names, "<prefix>_<row>_<col>". Defaults to Class.
	Prefix       string
	Capacity     int
	LinkCapacity int
	LinkLength   int
	LinkClass    string
	// OriginX and OriginY offset the coordinates of the grid.
	OriginX int
	OriginY int
}

// MeshName returns the resource name the mesh helper assigns to a cell.
func MeshName(prefix string, row, col int) string {
	return fmt.Sprintf("%s_%d_%d", prefix, row, col)
}

// AddMesh adds a Rows x Cols grid of routable resources with coordinates
// (X = col, Y = row) and bidirectional links between orthogonal neighbours.
func (b *Builder) AddMesh(spec MeshSpec) error {
	if spec.Rows <= 0 || spec.Cols <= 0 {
		return fmt.Errorf("mesh dimensions must be positive, got %dx%d", spec.Rows, spec.Cols)
	}
	if spec.Class == "" {
		spec.Class = ClassTile
	}
	if spec.Prefix == "" {
		spec.Prefix = spec.Class
	}

	for row := 0; row < spec.Rows; row++ {
		for col := 0; col < spec.Cols; col++ {
			_, err := b.AddResource(Resource{
				Name:     MeshName(spec.Prefix, row, col),
				Class:    spec.Class,
				Capacity: spec.Capacity,
				Routable: true,
				Coord:    &Coord{X: spec.OriginX + col, Y: spec.OriginY + row},
			})
			if err != nil {
				return fmt.Errorf("mesh: %w", err)
			}
		}
	}

	connect := func(r1, c1, r2, c2 int) error {
		_, err := b.AddLink(LinkSpec{
			From:          MeshName(spec.Prefix, r1, c1),
			To:            MeshName(spec.Prefix, r2, c2),
			Capacity:      spec.LinkCapacity,
			Length:        spec.LinkLength,
			Class:         spec.LinkClass,
			Bidirectional: true,
		})
		return err
	}
	for row := 0; row < spec.Rows; row++ {
		for col := 0; col < spec.Cols; col++ {
			if col+1 < spec.Cols {
				if err := connect(row, col, row, col+1); err != nil {
					return fmt.Errorf("mesh: %w", err)
				}
			}
			if row+1 < spec.Rows {
				if err := connect(row, col, row+1, col); err != nil {
					return fmt.Errorf("mesh: %w", err)
				}
			}
		}
	}
	return nil
}

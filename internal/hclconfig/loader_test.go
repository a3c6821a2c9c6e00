package hclconfig

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/place"
	"github.com/vk/gridmapper/internal/route"
	"github.com/vk/gridmapper/internal/testutil"
)

const archHCL = `
architecture "asap4" {
  distance = "manhattan"
  mesh {
    rows          = 4
    cols          = 4
    class         = "tile"
    link_capacity = 2
    link_class    = "circuit"
  }
  resource "mem0" {
    class      = "memory"
    x          = -1
    y          = 0
    attributes = { size_kb = 64 }
  }
  link {
    from          = "mem0"
    to            = "tile_0_0"
    capacity      = 1
    length        = 1
    bidirectional = true
  }
}
`

const graphHCL = `
taskgraph "app" {
  task "a" { class = "tile" }
  task "b" { class = "tile" }
  task "in" {
    class = "memory"
    fixed = "mem0"
  }
  channel "c0" {
    source       = "in"
    sinks        = ["a"]
    weight       = 2
    link_classes = ["link", "circuit"]
  }
  channel "c1" {
    source = "a"
    sinks  = ["b"]
  }
}
`

const optionsHCL = `
placement {
  seed                = 7
  move_attempts       = 2000
  initial_temperature = 1.5
  cooler              = "fixed"
  cooler_alpha        = 0.9
  max_duration        = "30s"
}

routing {
  max_iterations = 12
  present_growth = 2
  batched        = true
  workers        = 2
}
`

func TestLoad_FullProblem(t *testing.T) {
	root := testutil.WriteFiles(t, map[string]string{
		"arch.hcl":        archHCL,
		"app/graph.hcl":   graphHCL,
		"app/options.hcl": optionsHCL,
		"app/README.md":   "not hcl",
	})

	p, err := Load(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "app", "graph.hcl"),
		filepath.Join(root, "app", "options.hcl"),
		filepath.Join(root, "arch.hcl"),
	}, p.Files)

	assert.Equal(t, "asap4", p.Arch.Name())
	assert.Equal(t, arch.MetricManhattan, p.Arch.Metric())
	assert.Equal(t, 17, p.Arch.NumResources())
	assert.Equal(t, 50, p.Arch.NumLinks())

	memID, ok := p.Arch.Lookup("mem0")
	require.True(t, ok)
	mem := p.Arch.Resource(memID)
	assert.False(t, mem.Routable)
	assert.Equal(t, &arch.Coord{X: -1, Y: 0}, mem.Coord)
	size, _ := mem.Attributes["size_kb"].AsBigFloat().Int64()
	assert.Equal(t, int64(64), size)

	tileID, _ := p.Arch.Lookup("tile_0_0")
	l, ok := p.Arch.LinkBetween(tileID+1, tileID)
	require.True(t, ok)
	assert.Equal(t, "circuit", p.Arch.Link(l).Class)
	assert.Equal(t, 2, p.Arch.Link(l).Capacity)

	assert.Equal(t, "app", p.Tasks.Name())
	assert.Equal(t, 3, p.Tasks.NumTasks())
	inID, _ := p.Tasks.Lookup("in")
	assert.Equal(t, "mem0", p.Tasks.Task(inID).Fixed)
	assert.Equal(t, 2.0, p.Tasks.Channel(0).Weight)
	assert.Equal(t, 1.0, p.Tasks.Channel(1).Weight)

	opts, err := p.Placement.Options()
	require.NoError(t, err)
	cfg := place.NewConfig(opts...)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(7), *cfg.Seed)
	assert.Equal(t, 2000, cfg.MoveAttempts)
	assert.Equal(t, 1.5, cfg.InitialTemperature)
	assert.Equal(t, place.FixedCooler{Alpha: 0.9}, cfg.Cooler)
	assert.Equal(t, place.DefaultDoner{MaxDuration: 30 * time.Second}, cfg.Doner)

	rcfg := route.NewConfig(p.Routing.Options()...)
	assert.Equal(t, 12, rcfg.MaxIterations)
	assert.Equal(t, 2.0, rcfg.PresentGrowth)
	assert.True(t, rcfg.Batched)
	assert.Equal(t, 2, rcfg.Workers)
}

func TestLoad_SingleFilePath(t *testing.T) {
	root := testutil.WriteFiles(t, map[string]string{"all.hcl": archHCL + graphHCL})

	p, err := Load(context.Background(), filepath.Join(root, "all.hcl"), filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Len(t, p.Files, 1)

	opts, err := p.Placement.Options()
	require.NoError(t, err)
	assert.Empty(t, opts)
	assert.Empty(t, p.Routing.Options())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "no files",
			files:   map[string]string{"x.txt": "hello"},
			wantErr: "no .hcl files found",
		},
		{
			name:    "syntax error",
			files:   map[string]string{"a.hcl": "architecture {"},
			wantErr: "failed to parse HCL file",
		},
		{
			name:    "unknown attribute",
			files:   map[string]string{"a.hcl": archHCL + graphHCL + `routing { speed = 3 }`},
			wantErr: "failed to decode HCL file",
		},
		{
			name:    "missing architecture",
			files:   map[string]string{"g.hcl": graphHCL},
			wantErr: "expected exactly one architecture block, found 0",
		},
		{
			name:    "two task graphs",
			files:   map[string]string{"a.hcl": archHCL, "g.hcl": graphHCL, "h.hcl": `taskgraph "other" {}`},
			wantErr: "expected exactly one taskgraph block, found 2",
		},
		{
			name:    "duplicate placement",
			files:   map[string]string{"a.hcl": archHCL + graphHCL + "placement {}\n", "b.hcl": "placement {}\n"},
			wantErr: "duplicate placement block",
		},
		{
			name: "half a coordinate",
			files: map[string]string{"a.hcl": graphHCL + `
architecture "x" {
  resource "mem0" {
    class = "memory"
    x     = 1
  }
}`},
			wantErr: "x and y must be set together",
		},
		{
			name: "attributes not an object",
			files: map[string]string{"a.hcl": graphHCL + `
architecture "x" {
  resource "mem0" {
    class      = "memory"
    attributes = "big"
  }
}`},
			wantErr: "attributes must be an object",
		},
		{
			name: "link to unknown resource",
			files: map[string]string{"a.hcl": graphHCL + `
architecture "x" {
  mesh {
    rows = 1
    cols = 2
  }
  link {
    from = "tile_0_0"
    to   = "nowhere"
  }
}`},
			wantErr: `link destination resource "nowhere" not found`,
		},
		{
			name: "unknown sink",
			files: map[string]string{"a.hcl": archHCL + `
taskgraph "app" {
  task "a" { class = "tile" }
  channel "c" {
    source = "a"
    sinks  = ["ghost"]
  }
}`},
			wantErr: `sink task "ghost" not found`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := testutil.WriteFiles(t, tc.files)
			_, err := Load(context.Background(), root)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestPlacementSettings_Options(t *testing.T) {
	str := func(s string) *string { return &s }
	f64 := func(f float64) *float64 { return &f }
	i := func(n int) *int { return &n }

	t.Run("strategies", func(t *testing.T) {
		opts, err := PlacementSettings{
			MoveGenerator:  str("search"),
			WarmRatio:      f64(0.9),
			Cooler:         str("deviation"),
			CoolerLambda:   f64(0.5),
			LimiterRatio:   f64(0.3),
			Doner:          str("deviation"),
			DoneEpsilon:    f64(0.01),
			MaxTicks:       i(40),
			MaxMoveRetries: i(4),
			MaxWarmTicks:   i(8),
		}.Options()
		require.NoError(t, err)
		cfg := place.NewConfig(opts...)
		assert.IsType(t, &place.SearchMoveGenerator{}, cfg.MoveGenerator)
		assert.Equal(t, place.DefaultWarmer{TargetRatio: 0.9}, cfg.Warmer)
		assert.Equal(t, place.DeviationCooler{Lambda: 0.5}, cfg.Cooler)
		assert.Equal(t, place.DefaultLimiter{TargetRatio: 0.3}, cfg.Limiter)
		assert.Equal(t, place.DeviationDoner{Tolerance: 0.01, MaxTicks: 40}, cfg.Doner)
		assert.Equal(t, 4, cfg.MaxMoveRetries)
		assert.Equal(t, 8, cfg.MaxWarmTicks)
	})

	for name, s := range map[string]PlacementSettings{
		"placement.move_generator": {MoveGenerator: str("greedy")},
		"placement.cooler":         {Cooler: str("lukewarm")},
		"placement.doner":          {Doner: str("never")},
		"placement.max_duration":   {MaxDuration: str("soon")},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Options()
			var cerr *mapperr.ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, name, cerr.Field)
		})
	}
}

func TestLoad_EnvVariables(t *testing.T) {
	t.Setenv("MAPPER_SEED", "21")
	t.Setenv("MAPPER_ITERATIONS", "8")
	root := testutil.WriteFiles(t, map[string]string{
		"p.hcl": archHCL + graphHCL + `
placement {
  seed = env.MAPPER_SEED
}
routing {
  max_iterations = env.MAPPER_ITERATIONS
}
`,
	})

	p, err := Load(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, p.Placement.Seed)
	assert.Equal(t, uint64(21), *p.Placement.Seed)
	require.NotNil(t, p.Routing.MaxIterations)
	assert.Equal(t, 8, *p.Routing.MaxIterations)
}

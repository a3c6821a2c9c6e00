package observe

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/gridmapper/internal/ctxlog"
	"github.com/vk/gridmapper/internal/testutil"
)

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, nil, b}
	ctx := context.Background()

	m.PlacementTick(ctx, TickReport{Tick: 1})
	m.RoutingPass(ctx, PassReport{Iteration: 2})

	assert.Len(t, a.Ticks, 1)
	assert.Len(t, b.Ticks, 1)
	assert.Equal(t, 2, b.Passes[0].Iteration)
}

func TestAcceptanceRatio(t *testing.T) {
	assert.Equal(t, 0.0, TickReport{}.AcceptanceRatio())
	assert.Equal(t, 0.25, TickReport{Moves: 8, Accepted: 2}.AcceptanceRatio())
}

func TestLogObserver(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	LogObserver{}.PlacementTick(ctx, TickReport{Phase: PhaseAnneal, Tick: 3, Moves: 4, Accepted: 1})
	LogObserver{}.RoutingPass(ctx, PassReport{Iteration: 5, CongestedLinks: 2})

	out := buf.String()
	assert.Contains(t, out, "Placement tick.")
	assert.Contains(t, out, "acceptance=0.25")
	assert.Contains(t, out, "congested_links=2")
}

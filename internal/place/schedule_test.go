package place

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stateWithRatio(accepted, moves int) *SAState {
	return &SAState{Temperature: 10, Limit: 4, MaxLimit: 8, TickMoves: moves, TickAccepted: accepted}
}

func TestDefaultWarmer(t *testing.T) {
	s := stateWithRatio(50, 100)
	assert.False(t, DefaultWarmer{}.Warm(s))
	assert.Equal(t, 20.0, s.Temperature)

	s = stateWithRatio(97, 100)
	assert.True(t, DefaultWarmer{}.Warm(s))
	assert.Equal(t, 10.0, s.Temperature)

	s = stateWithRatio(50, 100)
	assert.True(t, DefaultWarmer{TargetRatio: 0.5}.Warm(s))
	assert.False(t, DefaultWarmer{TargetRatio: 0.9, Multiplier: 3}.Warm(s))
	assert.Equal(t, 30.0, s.Temperature)
}

func TestDefaultCooler(t *testing.T) {
	cases := []struct {
		accepted int
		want     float64
	}{
		{accepted: 99, want: 5},
		{accepted: 90, want: 9},
		{accepted: 50, want: 9.5},
		{accepted: 10, want: 8},
	}
	for _, tc := range cases {
		s := stateWithRatio(tc.accepted, 100)
		DefaultCooler{}.Cool(s)
		assert.InDelta(t, tc.want, s.Temperature, 1e-12, "accepted %d", tc.accepted)
	}
}

func TestFixedCooler(t *testing.T) {
	s := stateWithRatio(0, 100)
	FixedCooler{Alpha: 0.5}.Cool(s)
	assert.Equal(t, 5.0, s.Temperature)
	FixedCooler{}.Cool(s)
	assert.InDelta(t, 5*DefaultFixedAlpha, s.Temperature, 1e-12)
}

func TestDeviationCooler(t *testing.T) {
	s := stateWithRatio(0, 100)
	s.Temperature, s.Deviation = 1, 10
	DeviationCooler{Lambda: 1}.Cool(s)
	assert.InDelta(t, math.Exp(-0.1), s.Temperature, 1e-12)

	// A flat tick or a huge step is bounded to halving.
	s.Temperature, s.Deviation = 1, 0
	DeviationCooler{}.Cool(s)
	assert.Equal(t, 0.5, s.Temperature)
	s.Temperature, s.Deviation = 100, 1
	DeviationCooler{}.Cool(s)
	assert.Equal(t, 50.0, s.Temperature)
}

func TestDefaultLimiter(t *testing.T) {
	s := stateWithRatio(44, 100)
	DefaultLimiter{}.Limit(s)
	assert.InDelta(t, 4, s.Limit, 1e-12)

	s = stateWithRatio(100, 100)
	DefaultLimiter{}.Limit(s)
	assert.InDelta(t, 4*1.56, s.Limit, 1e-12)

	s = stateWithRatio(100, 100)
	s.Limit = 7
	DefaultLimiter{}.Limit(s)
	assert.Equal(t, 8.0, s.Limit, "clamped to the diameter")

	s = stateWithRatio(0, 100)
	s.Limit = 1.2
	DefaultLimiter{}.Limit(s)
	assert.Equal(t, 1.0, s.Limit, "clamped to one")
}

func TestSchedule_TickWithoutMoves(t *testing.T) {
	s := stateWithRatio(0, 0)
	assert.True(t, DefaultWarmer{}.Warm(s))
	assert.Equal(t, 10.0, s.Temperature)

	s.Limit = 3
	DefaultLimiter{}.Limit(s)
	assert.Equal(t, 6.0, s.Limit)
	DefaultLimiter{}.Limit(s)
	assert.Equal(t, 8.0, s.Limit)
}

func TestDefaultDoner(t *testing.T) {
	cases := []struct {
		name  string
		doner DefaultDoner
		state SAState
		want  bool
	}{
		{name: "hot", state: SAState{Temperature: 1, Objective: 10, NumChannels: 5}, want: false},
		{name: "cold", state: SAState{Temperature: 0.001, Objective: 10, NumChannels: 5}, want: true},
		{name: "zero objective", state: SAState{Temperature: 100, Objective: 0, NumChannels: 5}, want: true},
		{name: "tick budget", doner: DefaultDoner{MaxTicks: 3}, state: SAState{Temperature: 1, Objective: 10, Ticks: 3}, want: true},
		{name: "time budget", doner: DefaultDoner{MaxDuration: time.Second}, state: SAState{Temperature: 1, Objective: 10, Elapsed: 2 * time.Second}, want: true},
		{name: "custom epsilon", doner: DefaultDoner{Epsilon: 1}, state: SAState{Temperature: 1, Objective: 10, NumChannels: 5}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.doner.Done(&tc.state))
		})
	}
}

func TestDeviationDoner(t *testing.T) {
	d := DeviationDoner{Tolerance: 0.1, MaxTicks: 10}
	assert.False(t, d.Done(&SAState{Ticks: 0}))
	assert.True(t, d.Done(&SAState{Ticks: 2, Deviation: 0.05}))
	assert.False(t, d.Done(&SAState{Ticks: 2, Deviation: 1}))
	assert.True(t, d.Done(&SAState{Ticks: 10, Deviation: 1}))
}

func TestSAState_AcceptanceRatio(t *testing.T) {
	assert.Equal(t, 0.0, (&SAState{}).AcceptanceRatio())
	assert.Equal(t, 0.25, stateWithRatio(25, 100).AcceptanceRatio())
}

package place

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// SAState is the complete annealing state between ticks. It serializes to
// JSON so a run can be saved and resumed; RandState is the binary snapshot of
// the PCG generator, so a resumed run continues the same random sequence.
type SAState struct {
	Seed          uint64        `json:"seed"`
	Temperature   float64       `json:"temperature"`
	Limit         float64       `json:"limit"`
	MaxLimit      float64       `json:"max_limit"`
	Objective     float64       `json:"objective"`
	BestObjective float64       `json:"best_objective"`
	Deviation     float64       `json:"deviation"`
	NumChannels   int           `json:"num_channels"`
	Warmed        bool          `json:"warmed"`
	WarmTicks     int           `json:"warm_ticks"`
	Ticks         int           `json:"ticks"`
	// TickMoves counts the generated moves of the last tick. Attempts that
	// found no legal move are counted in Stalls instead.
	TickMoves     int           `json:"tick_moves"`
	TickAccepted  int           `json:"tick_accepted"`
	TotalMoves    int64         `json:"total_moves"`
	TotalAccepted int64         `json:"total_accepted"`
	Stalls        int64         `json:"stalls"`
	Elapsed       time.Duration `json:"elapsed"`
	RandState     []byte        `json:"rand_state"`
}

// AcceptanceRatio is the fraction of generated moves accepted in the last
// tick. Stalled attempts are not moves.
func (s *SAState) AcceptanceRatio() float64 {
	if s.TickMoves == 0 {
		return 0
	}
	return float64(s.TickAccepted) / float64(s.TickMoves)
}

// Clone returns a deep copy.
func (s *SAState) Clone() *SAState {
	c := *s
	c.RandState = slices.Clone(s.RandState)
	return &c
}

func (s *SAState) saveRand(src *rand.PCG) error {
	b, err := src.MarshalBinary()
	if err != nil {
		return fmt.Errorf("snapshotting random state: %w", err)
	}
	s.RandState = b
	return nil
}

func (s *SAState) loadRand() (*rand.PCG, error) {
	src := rand.NewPCG(s.Seed, s.Seed)
	if len(s.RandState) == 0 {
		return src, nil
	}
	if err := src.UnmarshalBinary(s.RandState); err != nil {
		return nil, fmt.Errorf("restoring random state: %w", err)
	}
	return src, nil
}

package game

import "github.com/mo-shahab/pong3d/server/paddle"

// Scores are indexed by seat
type Scores struct {
	Green int
	Red   int
}

func (s *Scores) Add(seat paddle.Seat) {
	if seat == paddle.SeatGreen {
		s.Green++
	} else {
		s.Red++
	}
}

func (s Scores) Of(seat paddle.Seat) int {
	if seat == paddle.SeatGreen {
		return s.Green
	}
	return s.Red
}

// StepResult reports what happened during one physics step
type StepResult struct {
	// Scorer is set when a goal was scored this step
	Scorer   paddle.Seat
	Scored   bool
	Returned []paddle.Seat // paddles that returned the ball, in evaluation order
}

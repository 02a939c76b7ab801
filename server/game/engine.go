package game

import (
	"math"

	"github.com/mo-shahab/pong3d/server/arena"
	"github.com/mo-shahab/pong3d/server/ball"
	"github.com/mo-shahab/pong3d/server/geom"
	"github.com/mo-shahab/pong3d/server/paddle"
)

// Collision constants
const (
	Restitution  = 1.1
	LateralGainX = 10.0
	LateralGainY = 5.0
	MaxBallSpeed = 30.0
)

// Engine owns the authoritative simulation. Only the host (or a single-player
// session) steps it.
type Engine struct {
	Arena  arena.Arena
	Ball   *ball.Ball
	Green  *paddle.Paddle
	Red    *paddle.Paddle
	Scores Scores
	// WinScore ends the match when a seat reaches it, 0 plays forever.
	// A guest adopts the host's value from snapshots.
	WinScore int

	rng ball.Rand
}

// NewEngine wires the entities together. rng drives serves only.
func NewEngine(a arena.Arena, b *ball.Ball, green, red *paddle.Paddle, rng ball.Rand) *Engine {
	return &Engine{
		Arena: a,
		Ball:  b,
		Green: green,
		Red:   red,
		rng:   rng,
	}
}

// Paddle returns the paddle sitting at seat
func (e *Engine) Paddle(seat paddle.Seat) *paddle.Paddle {
	if seat == paddle.SeatGreen {
		return e.Green
	}
	return e.Red
}

// Winner reports the seat that reached WinScore, if any
func (e *Engine) Winner() (paddle.Seat, bool) {
	if e.WinScore <= 0 {
		return "", false
	}
	switch {
	case e.Scores.Green >= e.WinScore:
		return paddle.SeatGreen, true
	case e.Scores.Red >= e.WinScore:
		return paddle.SeatRed, true
	}
	return "", false
}

// Serve resets the ball to the origin with a fresh random velocity
func (e *Engine) Serve() {
	e.Ball.Reset(e.rng)
}

// Step advances the simulation by dt seconds
func (e *Engine) Step(dt float64) StepResult {
	var res StepResult

	e.Ball.Integrate(dt)
	e.collideWalls()

	for _, p := range []*paddle.Paddle{e.Green, e.Red} {
		if e.collidePaddle(p) {
			res.Returned = append(res.Returned, p.Seat)
		}
	}

	if seat, ok := e.checkGoal(); ok {
		e.Scores.Add(seat)
		e.Serve()
		res.Scored = true
		res.Scorer = seat
	}

	return res
}

// collideWalls reflects the ball off the x and y walls
func (e *Engine) collideWalls() {
	half := e.Arena.HalfExtents()
	b := e.Ball

	b.Position.X, b.Velocity.X = reflect(b.Position.X, b.Velocity.X, half.X-b.Radius)
	b.Position.Y, b.Velocity.Y = reflect(b.Position.Y, b.Velocity.Y, half.Y-b.Radius)
}

// reflect clamps pos into [-limit, limit] and points vel back inside when the
// boundary was reached
func reflect(pos, vel, limit float64) (float64, float64) {
	switch {
	case pos >= limit:
		return limit, -math.Abs(vel)
	case pos <= -limit:
		return -limit, math.Abs(vel)
	}
	return pos, vel
}

// collidePaddle resolves a ball/paddle overlap and reports whether it happened
func (e *Engine) collidePaddle(p *paddle.Paddle) bool {
	b := e.Ball
	if !b.Bounds().Overlaps(p.Box()) {
		return false
	}

	offset := b.Position.Sub(p.Position)
	offX := offset.X / p.Half.X
	offY := offset.Y / p.Half.Y

	// eject away from the defended side
	side := p.Side()
	b.Velocity.Z = -side * math.Abs(b.Velocity.Z) * Restitution
	b.Velocity.X += offX * LateralGainX
	b.Velocity.Y += offY * LateralGainY
	b.Velocity = geom.ClampLen(b.Velocity, MaxBallSpeed)

	b.Position.Z = p.FlushZ(b.Radius)
	return true
}

// checkGoal returns the seat that scored when the ball left the arena on z
func (e *Engine) checkGoal() (paddle.Seat, bool) {
	limit := e.Arena.Depth() / 2
	z := e.Ball.Position.Z

	switch {
	case z > limit:
		return paddle.SeatRed, true
	case z < -limit:
		return paddle.SeatGreen, true
	}
	return "", false
}

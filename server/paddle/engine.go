package paddle

import (
	"math"
	"time"

	"github.com/mo-shahab/pong3d/server/ball"
	"github.com/mo-shahab/pong3d/server/geom"
)

// ai constants
const (
	aiDampening   = 0.7
	aiDeadband    = 1.0
	aiLookahead   = 0.5 // seconds of linear prediction
	aiCaptureHalf = 5.0
	aiJitter      = 1.0
	smoothingGain = 10.0
)

// Context is what a controller may look at during one tick
type Context struct {
	Now  time.Time
	Ball *ball.Ball
}

// Controller moves exactly one paddle per tick
type Controller interface {
	Advance(dt float64, ctx Context)
}

// Rand is the jitter source for the AI
type Rand interface {
	Float64() float64
}

// RemoteSource exposes the opponent's reported positions
type RemoteSource interface {
	// Latest is the most recently received position
	Latest() (geom.Vec3, bool)
	// At is the buffered position to show at local time now
	At(now time.Time) (geom.Vec3, bool)
}

// Local applies keyboard intents at a fixed speed
type Local struct {
	paddle *Paddle
	input  IntentSource
}

func NewLocal(p *Paddle, input IntentSource) *Local {
	if input == nil {
		input = Still{}
	}
	return &Local{paddle: p, input: input}
}

func (c *Local) Advance(dt float64, _ Context) {
	p := c.paddle
	in := c.input.Intents()
	step := p.Speed * dt

	if in.Left {
		p.Position.X -= step
	}
	if in.Right {
		p.Position.X += step
	}
	if in.Up {
		p.Position.Y += step
	}
	if in.Down {
		p.Position.Y -= step
	}
	// forward is toward the center of the table for either seat
	if in.Forward {
		p.Position.Z -= step * p.Side()
	}
	if in.Backward {
		p.Position.Z += step * p.Side()
	}

	p.Position = p.Reach().ClampPoint(p.Position)
}

// Intents returns the intents applied on the last tick
func (c *Local) Intents() Intents {
	return c.input.Intents()
}

// AI tracks the ball on x/y and re-centers its depth when a ball is incoming
type AI struct {
	paddle *Paddle
	rng    Rand
}

func NewAI(p *Paddle, rng Rand) *AI {
	return &AI{paddle: p, rng: rng}
}

func (c *AI) Advance(dt float64, ctx Context) {
	if ctx.Ball == nil {
		return
	}
	p := c.paddle
	b := ctx.Ball

	p.Position.X += c.track(b.Position.X-p.Position.X, dt)
	p.Position.Y += c.track(b.Position.Y-p.Position.Y, dt)

	side := p.Side()
	incoming := b.Velocity.Z*side > 0 && b.Position.Z*side > 0
	if incoming {
		predicted := b.Position.Z + b.Velocity.Z*aiLookahead
		home := p.Home()
		if math.Abs(predicted-home) < aiCaptureHalf {
			p.Position.Z = home + (c.rng.Float64()-0.5)*2*aiJitter
		}
	}

	p.ClampPlanar()
}

func (c *AI) track(diff, dt float64) float64 {
	if math.Abs(diff) <= aiDeadband {
		return 0
	}
	move := math.Min(c.paddle.AISpeed*dt, math.Abs(diff))
	return math.Copysign(move, diff) * aiDampening
}

// Follower eases toward the latest reported position with exponential smoothing
type Follower struct {
	paddle *Paddle
	source RemoteSource
}

func NewFollower(p *Paddle, src RemoteSource) *Follower {
	return &Follower{paddle: p, source: src}
}

func (c *Follower) Advance(dt float64, _ Context) {
	target, ok := c.source.Latest()
	if !ok {
		return
	}
	k := math.Min(1, dt*smoothingGain)
	c.paddle.Position = geom.Lerp(c.paddle.Position, target, k)
}

// Replica places the paddle at the buffered, time-interpolated remote position.
// This is the same technique the guest uses for the ball.
type Replica struct {
	paddle *Paddle
	source RemoteSource
}

func NewReplica(p *Paddle, src RemoteSource) *Replica {
	return &Replica{paddle: p, source: src}
}

func (c *Replica) Advance(_ float64, ctx Context) {
	pos, ok := c.source.At(ctx.Now)
	if !ok {
		return
	}
	c.paddle.Position = pos
}

package ball

import (
	"math"

	"github.com/mo-shahab/pong3d/server/geom"
)

// serve constants
const (
	ServeSpeed    = 15.0
	ServeMaxAngle = math.Pi / 8 // +-22.5 degrees around the z axis
	ServeMaxDy    = 2.5
)

// Rand is the random source used for serves. *rand.Rand from
// golang.org/x/exp/rand satisfies it; tests pass a seeded one.
type Rand interface {
	Float64() float64
}

// ServeVelocity samples a fresh serve. Draw order is angle, z direction, then y.
func ServeVelocity(rng Rand) geom.Vec3 {
	angle := (rng.Float64() - 0.5) * 2 * ServeMaxAngle

	dir := -1.0
	if rng.Float64() > 0.5 {
		dir = 1.0
	}

	return geom.Vec3{
		X: math.Sin(angle) * ServeSpeed,
		Y: (rng.Float64() - 0.5) * 2 * ServeMaxDy,
		Z: math.Cos(angle) * ServeSpeed * dir,
	}
}

// Reset puts the ball back at the origin with a new serve
func (b *Ball) Reset(rng Rand) {
	b.Position = geom.Vec3{}
	b.Velocity = ServeVelocity(rng)
}

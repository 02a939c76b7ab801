package ball

import "github.com/mo-shahab/pong3d/server/geom"

const DefaultRadius = 0.5

type Ball struct {
	Position geom.Vec3
	Velocity geom.Vec3
	Radius   float64
}

func New() *Ball {
	return &Ball{Radius: DefaultRadius}
}

// Bounds approximates the ball sphere by the box that encloses it
func (b *Ball) Bounds() geom.AABB {
	return geom.Box(b.Position, geom.V(b.Radius, b.Radius, b.Radius))
}

// Integrate advances the position by velocity*dt
func (b *Ball) Integrate(dt float64) {
	b.Position = b.Position.Add(b.Velocity.Scale(dt))
}

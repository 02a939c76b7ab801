package arena

import "github.com/mo-shahab/pong3d/server/geom"

const (
	DefaultWidth  = 40.0
	DefaultHeight = 30.0
	DefaultDepth  = 60.0
)

// Arena is the fixed simulation box centered on the origin.
// z is the scoring axis, x and y are walled.
type Arena struct {
	width, height, depth float64
}

func New(width, height, depth float64) Arena {
	return Arena{width: width, height: height, depth: depth}
}

func Default() Arena {
	return New(DefaultWidth, DefaultHeight, DefaultDepth)
}

func (a Arena) Width() float64  { return a.width }
func (a Arena) Height() float64 { return a.height }
func (a Arena) Depth() float64  { return a.depth }

// HalfExtents returns (width/2, height/2, depth/2)
func (a Arena) HalfExtents() geom.Vec3 {
	return geom.V(a.width/2, a.height/2, a.depth/2)
}

func (a Arena) Bounds() geom.AABB {
	return geom.Box(geom.Vec3{}, a.HalfExtents())
}

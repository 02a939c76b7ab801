package geom

import "math"

// Vec3 is a position or velocity in arena units
type Vec3 struct {
	X, Y, Z float64
}

func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) LenSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.LenSq())
}

// Lerp blends a and b by t, returning a exactly at t=0 and b exactly at t=1.
// t is not clamped.
func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{
		lerp(a.X, b.X, t),
		lerp(a.Y, b.Y, t),
		lerp(a.Z, b.Z, t),
	}
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// ClampLen rescales v uniformly so its length does not exceed max
func ClampLen(v Vec3, max float64) Vec3 {
	l := v.Len()
	if l <= max || l == 0 {
		return v
	}
	return v.Scale(max / l)
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

package geom

// AABB is an axis-aligned box given by its min and max corners
type AABB struct {
	Min, Max Vec3
}

// Box builds an AABB from a center and half-extents
func Box(center, half Vec3) AABB {
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

// Overlaps reports whether two boxes intersect, touching faces included
func (a AABB) Overlaps(b AABB) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// ClampPoint clamps each axis of p into the box
func (a AABB) ClampPoint(p Vec3) Vec3 {
	return Vec3{
		Clamp(p.X, a.Min.X, a.Max.X),
		Clamp(p.Y, a.Min.Y, a.Max.Y),
		Clamp(p.Z, a.Min.Z, a.Max.Z),
	}
}

func (a AABB) Contains(p Vec3) bool {
	return p.X >= a.Min.X && p.X <= a.Max.X &&
		p.Y >= a.Min.Y && p.Y <= a.Max.Y &&
		p.Z >= a.Min.Z && p.Z <= a.Max.Z
}

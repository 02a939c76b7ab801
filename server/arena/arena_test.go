package arena

import (
	"testing"

	"github.com/mo-shahab/pong3d/server/geom"
)

func TestDefaultArena(t *testing.T) {
	a := Default()
	if got, want := a.HalfExtents(), geom.V(20, 15, 30); got != want {
		t.Fatalf("HalfExtents = %v, want %v", got, want)
	}
	if !a.Bounds().Contains(geom.Vec3{}) {
		t.Fatalf("origin should be inside the arena")
	}
}

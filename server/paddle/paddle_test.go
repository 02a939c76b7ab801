package paddle

import (
	"math"
	"testing"
	"time"

	"github.com/mo-shahab/pong3d/server/ball"
	"github.com/mo-shahab/pong3d/server/geom"
)

type heldKeys Intents

func (h heldKeys) Intents() Intents { return Intents(h) }

type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

type stubSource struct {
	latest geom.Vec3
	at     geom.Vec3
	ok     bool
}

func (s stubSource) Latest() (geom.Vec3, bool) { return s.latest, s.ok }
func (s stubSource) At(time.Time) (geom.Vec3, bool) { return s.at, s.ok }

func TestNewPaddleHome(t *testing.T) {
	green := New(SeatGreen, RoleLocal)
	red := New(SeatRed, RoleAI)

	if green.Position.Z != 25 || red.Position.Z != -25 {
		t.Fatalf("unexpected home depths: green %f red %f", green.Position.Z, red.Position.Z)
	}
	if got := green.FlushZ(0.5); got != 24 {
		t.Fatalf("green flush z = %f, want 24", got)
	}
	if got := red.FlushZ(0.5); got != -24 {
		t.Fatalf("red flush z = %f, want -24", got)
	}
}

func TestLocalMovesAndClamps(t *testing.T) {
	p := New(SeatGreen, RoleLocal)
	c := NewLocal(p, heldKeys{Right: true, Up: true})

	c.Advance(0.1, Context{})
	if math.Abs(p.Position.X-2) > 1e-9 || math.Abs(p.Position.Y-2) > 1e-9 {
		t.Fatalf("expected (2,2), got %v", p.Position)
	}

	for i := 0; i < 100; i++ {
		c.Advance(0.1, Context{})
	}
	if p.Position.X != 15 || p.Position.Y != 10 {
		t.Fatalf("expected clamp at (15,10), got %v", p.Position)
	}
}

func TestLocalDepthStaysOnOwnSide(t *testing.T) {
	tests := []struct {
		seat  Seat
		keys  Intents
		wantZ float64
	}{
		{SeatGreen, Intents{Forward: true}, 20},
		{SeatGreen, Intents{Backward: true}, 30},
		{SeatRed, Intents{Forward: true}, -20},
		{SeatRed, Intents{Backward: true}, -30},
	}

	for _, tt := range tests {
		p := New(tt.seat, RoleLocal)
		c := NewLocal(p, heldKeys(tt.keys))
		for i := 0; i < 50; i++ {
			c.Advance(0.1, Context{})
		}
		if p.Position.Z != tt.wantZ {
			t.Errorf("%s %+v: z = %f, want %f", tt.seat, tt.keys, p.Position.Z, tt.wantZ)
		}
	}
}

func TestAIDeadband(t *testing.T) {
	p := New(SeatRed, RoleAI)
	b := ball.New()
	b.Position = geom.V(0.9, -0.9, 0)

	NewAI(p, constRand(0.5)).Advance(0.016, Context{Ball: b})

	if p.Position.X != 0 || p.Position.Y != 0 {
		t.Fatalf("AI moved inside deadband: %v", p.Position)
	}
}

func TestAITracksWithDampening(t *testing.T) {
	p := New(SeatRed, RoleAI)
	b := ball.New()
	b.Position = geom.V(10, 0, 0)

	NewAI(p, constRand(0.5)).Advance(0.1, Context{Ball: b})

	want := AISpeed * 0.1 * 0.7
	if math.Abs(p.Position.X-want) > 1e-9 {
		t.Fatalf("x = %f, want %f", p.Position.X, want)
	}
}

func TestAIRecentersOnIncomingBall(t *testing.T) {
	p := New(SeatRed, RoleAI)
	p.Position.Z = -22
	b := ball.New()
	b.Position = geom.V(0, 0, -15)
	b.Velocity = geom.V(0, 0, -15)

	NewAI(p, constRand(1.0)).Advance(0.016, Context{Ball: b})

	if math.Abs(p.Position.Z-(-24)) > 1e-9 {
		t.Fatalf("z = %f, want -24", p.Position.Z)
	}

	// moving away: no re-centering
	p.Position.Z = -22
	b.Velocity = geom.V(0, 0, 15)
	NewAI(p, constRand(1.0)).Advance(0.016, Context{Ball: b})
	if p.Position.Z != -22 {
		t.Fatalf("AI re-centered on outgoing ball: %f", p.Position.Z)
	}
}

func TestFollowerSmoothing(t *testing.T) {
	p := New(SeatRed, RoleRemote)
	src := stubSource{latest: geom.V(10, 0, -25), ok: true}

	NewFollower(p, src).Advance(0.05, Context{})
	if math.Abs(p.Position.X-5) > 1e-9 {
		t.Fatalf("x = %f, want 5", p.Position.X)
	}

	NewFollower(p, src).Advance(1, Context{})
	if p.Position.X != 10 {
		t.Fatalf("factor should saturate at 1, x = %f", p.Position.X)
	}
}

func TestReplicaUsesBufferedPosition(t *testing.T) {
	p := New(SeatRed, RoleRemote)
	NewReplica(p, stubSource{at: geom.V(3, 2, -24), ok: true}).Advance(0.016, Context{Now: time.Now()})
	if p.Position != geom.V(3, 2, -24) {
		t.Fatalf("unexpected position %v", p.Position)
	}

	NewReplica(p, stubSource{}).Advance(0.016, Context{Now: time.Now()})
	if p.Position != geom.V(3, 2, -24) {
		t.Fatalf("empty source must leave paddle untouched, got %v", p.Position)
	}
}

func TestIntentBitsRoundTrip(t *testing.T) {
	in := Intents{Up: true, Left: true, Backward: true}
	if got := IntentsFromBits(in.Bits()); got != in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

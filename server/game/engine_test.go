package game

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/mo-shahab/pong3d/server/arena"
	"github.com/mo-shahab/pong3d/server/ball"
	"github.com/mo-shahab/pong3d/server/geom"
	"github.com/mo-shahab/pong3d/server/paddle"
)

func newTestEngine(seed uint64) *Engine {
	return NewEngine(
		arena.Default(),
		ball.New(),
		paddle.New(paddle.SeatGreen, paddle.RoleLocal),
		paddle.New(paddle.SeatRed, paddle.RoleAI),
		rand.New(rand.NewSource(seed)),
	)
}

func TestWallCollisionReflects(t *testing.T) {
	tests := []struct {
		name string
		pos  geom.Vec3
		vel  geom.Vec3
	}{
		{"right wall", geom.V(19.4, 0, 0), geom.V(12, 0, 1)},
		{"left wall", geom.V(-19.4, 0, 0), geom.V(-7, 0, 1)},
		{"ceiling", geom.V(0, 14.4, 0), geom.V(0, 9, 1)},
		{"floor", geom.V(0, -14.4, 0), geom.V(0, -3, 1)},
		{"corner", geom.V(19.4, 14.4, 0), geom.V(20, 20, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(1)
			e.Ball.Position = tt.pos
			e.Ball.Velocity = tt.vel

			e.Step(0.1)

			got := e.Ball.Velocity
			if tt.vel.X != 0 && got.X != -tt.vel.X {
				t.Errorf("vx = %f, want %f", got.X, -tt.vel.X)
			}
			if tt.vel.Y != 0 && got.Y != -tt.vel.Y {
				t.Errorf("vy = %f, want %f", got.Y, -tt.vel.Y)
			}

			half := e.Arena.HalfExtents()
			r := e.Ball.Radius
			if math.Abs(e.Ball.Position.X) > half.X-r || math.Abs(e.Ball.Position.Y) > half.Y-r {
				t.Errorf("ball left the walls: %v", e.Ball.Position)
			}
		})
	}
}

func TestWallSweepNeverPenetrates(t *testing.T) {
	e := newTestEngine(3)
	e.Green.Position.X = 100 // keep paddles out of the way
	e.Red.Position.X = 100

	half := e.Arena.HalfExtents()
	r := e.Ball.Radius
	rng := rand.New(rand.NewSource(99))

	for i := 0; i < 2000; i++ {
		e.Ball.Position = geom.V(0, 0, 0)
		e.Ball.Velocity = geom.V((rng.Float64()-0.5)*60, (rng.Float64()-0.5)*60, 0)
		for j := 0; j < 30; j++ {
			before := e.Ball.Velocity
			e.Step(1.0 / 60)
			after := e.Ball.Velocity
			if math.Abs(after.X) != math.Abs(before.X) || math.Abs(after.Y) != math.Abs(before.Y) {
				t.Fatalf("wall bounce changed speed: %v -> %v", before, after)
			}
			if math.Abs(e.Ball.Position.X) > half.X-r || math.Abs(e.Ball.Position.Y) > half.Y-r {
				t.Fatalf("ball escaped walls: %v", e.Ball.Position)
			}
		}
	}
}

func TestPaddleReturnAmplifiesAndSteers(t *testing.T) {
	e := newTestEngine(1)
	e.Ball.Position = geom.V(2, 1.5, 23.9)
	e.Ball.Velocity = geom.V(0, 0, 10)

	res := e.Step(0.01)

	if len(res.Returned) != 1 || res.Returned[0] != paddle.SeatGreen {
		t.Fatalf("expected a green return, got %+v", res.Returned)
	}

	v := e.Ball.Velocity
	if math.Abs(v.Z-(-11)) > 1e-9 {
		t.Errorf("vz = %f, want -11", v.Z)
	}
	// offset 2/4 and 1.5/3 of the paddle half extents
	if math.Abs(v.X-5) > 1e-9 || math.Abs(v.Y-2.5) > 1e-9 {
		t.Errorf("lateral steering wrong: %v", v)
	}
	if e.Ball.Position.Z != e.Green.FlushZ(e.Ball.Radius) {
		t.Errorf("ball not flush with paddle: z=%f", e.Ball.Position.Z)
	}
}

func TestPaddleReturnClampsSpeed(t *testing.T) {
	for _, seat := range []paddle.Seat{paddle.SeatGreen, paddle.SeatRed} {
		e := newTestEngine(1)
		p := e.Paddle(seat)
		side := p.Side()

		e.Ball.Position = geom.V(3.9, 2.9, p.Position.Z-side*1.1)
		e.Ball.Velocity = geom.V(20, 10, side*28)

		res := e.Step(0.01)
		if len(res.Returned) == 0 {
			t.Fatalf("%s: expected a return", seat)
		}

		v := e.Ball.Velocity
		if v.Len() > MaxBallSpeed+1e-9 {
			t.Errorf("%s: speed %f above max", seat, v.Len())
		}
		if v.Z*side >= 0 {
			t.Errorf("%s: vz %f does not eject away from the defender", seat, v.Z)
		}
	}
}

func TestPaddleReturnDoesNotDoubleTrigger(t *testing.T) {
	e := newTestEngine(1)
	e.Ball.Position = geom.V(0, 0, 23.9)
	e.Ball.Velocity = geom.V(0, 0, 10)

	if res := e.Step(0.01); len(res.Returned) != 1 {
		t.Fatalf("expected first return")
	}
	vz := e.Ball.Velocity.Z
	if res := e.Step(1.0 / 60); len(res.Returned) != 0 {
		t.Fatalf("ball re-triggered the paddle")
	}
	if e.Ball.Velocity.Z != vz {
		t.Fatalf("vz changed without a collision")
	}
}

func TestGoalScenario(t *testing.T) {
	e := newTestEngine(11)
	e.Ball.Position = geom.V(0, 0, 29)
	e.Ball.Velocity = geom.V(0, 0, 5)

	res := e.Step(0.5)

	if !res.Scored || res.Scorer != paddle.SeatRed {
		t.Fatalf("expected red to score, got %+v", res)
	}
	if e.Scores != (Scores{Red: 1}) {
		t.Fatalf("unexpected scores %+v", e.Scores)
	}
	if e.Ball.Position != (geom.Vec3{}) {
		t.Fatalf("ball not reset: %v", e.Ball.Position)
	}

	want := ball.ServeVelocity(rand.New(rand.NewSource(11)))
	if e.Ball.Velocity != want {
		t.Fatalf("serve %v does not match seeded serve %v", e.Ball.Velocity, want)
	}
}

func TestGoalCountsOncePerCrossing(t *testing.T) {
	e := newTestEngine(5)
	e.Ball.Position = geom.V(0, 0, -29.9)
	e.Ball.Velocity = geom.V(0, 0, -20)

	e.Step(0.1)
	if e.Scores != (Scores{Green: 1}) {
		t.Fatalf("unexpected scores after crossing: %+v", e.Scores)
	}

	// the next step starts from the origin, so no second goal
	e.Step(0.001)
	if e.Scores != (Scores{Green: 1}) {
		t.Fatalf("goal counted twice: %+v", e.Scores)
	}
}

func TestStepIsDeterministic(t *testing.T) {
	run := func() (geom.Vec3, Scores) {
		e := newTestEngine(2024)
		e.Serve()
		for i := 0; i < 5000; i++ {
			e.Step(1.0 / 60)
		}
		return e.Ball.Position, e.Scores
	}

	p1, s1 := run()
	p2, s2 := run()
	if p1 != p2 || s1 != s2 {
		t.Fatalf("runs diverged: %v %+v vs %v %+v", p1, s1, p2, s2)
	}
}

func TestWinnerNeedsWinScore(t *testing.T) {
	e := newTestEngine(1)
	e.Scores = Scores{Green: 9, Red: 3}
	if _, ok := e.Winner(); ok {
		t.Fatal("a match without a win score has no winner")
	}

	e.WinScore = 9
	if seat, ok := e.Winner(); !ok || seat != paddle.SeatGreen {
		t.Fatalf("winner = %v, %v", seat, ok)
	}
	e.WinScore = 10
	if _, ok := e.Winner(); ok {
		t.Fatal("nobody reached 10")
	}
}

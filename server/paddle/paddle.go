package paddle

import "github.com/mo-shahab/pong3d/server/geom"

// Seat is the color label a player sits under. Green defends +z, red defends -z.
type Seat string

const (
	SeatGreen Seat = "green"
	SeatRed   Seat = "red"
)

func (s Seat) Valid() bool {
	return s == SeatGreen || s == SeatRed
}

// Opponent returns the other seat
func (s Seat) Opponent() Seat {
	if s == SeatGreen {
		return SeatRed
	}
	return SeatGreen
}

// Side is +1 for the seat defending +z and -1 otherwise
func (s Seat) Side() float64 {
	if s == SeatGreen {
		return 1
	}
	return -1
}

// Role selects which controller moves a paddle
type Role uint8

const (
	RoleLocal Role = iota
	RoleAI
	RoleRemote
)

func (r Role) String() string {
	switch r {
	case RoleLocal:
		return "local"
	case RoleAI:
		return "ai"
	case RoleRemote:
		return "remote"
	}
	return "unknown"
}

// paddle constants
const (
	Width     = 8.0
	Height    = 6.0
	Depth     = 1.0
	HomeDepth = 25.0
	Speed     = 20.0
	AISpeed   = 15.0
)

// DefaultBounds is the movement box. Its z range is relative to the paddle's home depth.
var DefaultBounds = geom.AABB{
	Min: geom.V(-15, -10, -5),
	Max: geom.V(15, 10, 5),
}

type Paddle struct {
	Position geom.Vec3
	Half     geom.Vec3
	Bounds   geom.AABB
	Seat     Seat
	Role     Role
	Speed    float64
	AISpeed  float64
}

// New places a paddle at its seat's home depth
func New(seat Seat, role Role) *Paddle {
	p := &Paddle{
		Half:    geom.V(Width/2, Height/2, Depth/2),
		Bounds:  DefaultBounds,
		Seat:    seat,
		Role:    role,
		Speed:   Speed,
		AISpeed: AISpeed,
	}
	p.Position = geom.V(0, 0, p.Home())
	return p
}

func (p *Paddle) Side() float64 {
	return p.Seat.Side()
}

// Home is the z the paddle rests at
func (p *Paddle) Home() float64 {
	return HomeDepth * p.Side()
}

func (p *Paddle) Box() geom.AABB {
	return geom.Box(p.Position, p.Half)
}

// Reach is the absolute box the paddle center may occupy: the x/y movement
// bounds and the z band on this side of the table.
func (p *Paddle) Reach() geom.AABB {
	home := p.Home()
	return geom.AABB{
		Min: geom.V(p.Bounds.Min.X, p.Bounds.Min.Y, home+p.Bounds.Min.Z),
		Max: geom.V(p.Bounds.Max.X, p.Bounds.Max.Y, home+p.Bounds.Max.Z),
	}
}

// ClampPlanar clamps x and y into the movement bounds and leaves z alone
func (p *Paddle) ClampPlanar() {
	p.Position.X = geom.Clamp(p.Position.X, p.Bounds.Min.X, p.Bounds.Max.X)
	p.Position.Y = geom.Clamp(p.Position.Y, p.Bounds.Min.Y, p.Bounds.Max.Y)
}

// FlushZ is where a ball of the given radius sits when resting against the
// face that looks toward the center of the table.
func (p *Paddle) FlushZ(radius float64) float64 {
	return p.Position.Z - p.Side()*(p.Half.Z+radius)
}

package wire

import (
	"time"

	"github.com/mo-shahab/pong3d/server/geom"
	"github.com/mo-shahab/pong3d/server/paddle"
)

// Snapshot is the authoritative state the host publishes to the gameState key
type Snapshot struct {
	BallPosition geom.Vec3
	BallVelocity geom.Vec3
	Green        geom.Vec3
	Red          geom.Vec3
	GreenScore   int
	RedScore     int
	Timestamp    time.Time
	// WinScore is the host's score limit, 0 for an endless match
	WinScore int
}

// InputSample is what each peer publishes to inputs/{id}. Position is the
// sender's own claim and is not validated here.
type InputSample struct {
	Seat      paddle.Seat
	Intents   paddle.Intents
	Position  geom.Vec3
	Timestamp time.Time
}

// stamps travel as unix microseconds
func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us)
}

package session

import (
	"time"

	"github.com/mo-shahab/pong3d/server/game"
	"github.com/mo-shahab/pong3d/server/geom"
	"github.com/mo-shahab/pong3d/server/netsync"
	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/room"
)

// State is where a session is in its life. Disconnected and Ended are terminal.
type State uint8

const (
	StateLobby State = iota
	StateActive
	StateDisconnected
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateEnded
}

// View is everything a renderer needs for one frame
type View struct {
	State  State
	Role   netsync.Role
	Seat   paddle.Seat
	Code   string
	Ball   geom.Vec3
	Green  geom.Vec3
	Red    geom.Vec3
	Scores game.Scores
	Winner paddle.Seat
	Reason string
	Paused bool
	// Players is the last roster seen; empty offline
	Players []room.Player
}

// Renderer draws a frame. It is called from the frame loop and must not block.
type Renderer interface {
	Render(View)
}

type eventKind uint8

const (
	eventRoster eventKind = iota
	eventSnapshot
	eventInput
)

// event is a room notification parked in the inbox until the next frame
type event struct {
	kind     eventKind
	roster   room.Roster
	update   room.Update
	received time.Time
}

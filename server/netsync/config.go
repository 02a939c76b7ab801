// Package netsync keeps a guest's view of the game in step with the host.
//
// The host runs physics and publishes snapshots to the room; the guest
// buffers them and renders the ball a fixed delay in the past, interpolating
// between the two snapshots that bracket the render time. Both peers publish
// their own paddle as input samples, which the other side replays through a
// RemoteFeed.
package netsync

import (
	"errors"
	"time"

	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/room"
)

var ErrUnknownSeat = errors.New("netsync: unknown seat")

// timing defaults
const (
	PublishRate        = 30
	PublishInterval    = time.Second / PublishRate
	InterpolationDelay = 100 * time.Millisecond
	HistoryWindow      = time.Second
	InboxSize          = 256
)

// Config holds the sync timings
type Config struct {
	PublishInterval    time.Duration
	InterpolationDelay time.Duration
	HistoryWindow      time.Duration
	InputPolicy        Policy
}

func DefaultConfig() Config {
	return Config{
		PublishInterval:    PublishInterval,
		InterpolationDelay: InterpolationDelay,
		HistoryWindow:      HistoryWindow,
		InputPolicy:        PolicyClamp,
	}
}

// Role is this peer's authority over the session
type Role uint8

const (
	RoleOffline Role = iota
	RoleHost
	RoleGuest
)

func (r Role) String() string {
	switch r {
	case RoleOffline:
		return "offline"
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	}
	return "unknown"
}

// RoleFor maps a seat label to a role: green hosts, red is the guest
func RoleFor(seat paddle.Seat) (Role, error) {
	switch seat {
	case paddle.SeatGreen:
		return RoleHost, nil
	case paddle.SeatRed:
		return RoleGuest, nil
	}
	return RoleOffline, ErrUnknownSeat
}

// Assign decides the role of player self once the roster is full. ok is
// false while the room is still waiting for its second player.
func Assign(r room.Roster, self string) (role Role, me room.Player, ok bool) {
	if len(r.Players) < room.MaxPlayers {
		return RoleOffline, room.Player{}, false
	}
	me, found := r.Find(self)
	if !found {
		return RoleOffline, room.Player{}, false
	}
	role, err := RoleFor(me.Seat)
	if err != nil {
		return RoleOffline, room.Player{}, false
	}
	return role, me, true
}

// Opponent returns the other player in a full roster
func Opponent(r room.Roster, self string) (room.Player, bool) {
	for _, p := range r.Players {
		if p.ID != self {
			return p, true
		}
	}
	return room.Player{}, false
}

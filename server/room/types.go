package room

import (
	"context"
	"errors"
	"time"

	"github.com/mo-shahab/pong3d/server/paddle"
)

var (
	ErrRoomNotFound = errors.New("room: not found")
	ErrRoomFull     = errors.New("room: full")
	ErrNotInRoom    = errors.New("room: not in a room")
	ErrRoomClosed   = errors.New("room: closed")
)

// well known keys
const (
	KeyGameState   = "gameState"
	keyInputPrefix = "inputs/"
)

// MaxPlayers is the seat count of every room
const MaxPlayers = 2

// InputKey is the key a player publishes its input samples under
func InputKey(playerID string) string {
	return keyInputPrefix + playerID
}

// Player is one roster entry
type Player struct {
	ID            string
	Name          string
	Seat          paddle.Seat
	Ready         bool
	Connected     bool
	LastHeartbeat time.Time
}

// Roster is the membership of a room as seen by watchers. Closed is set once
// the room has been torn down and no further rosters follow.
type Roster struct {
	Code    string
	Host    string
	Created time.Time
	Players []Player
	Closed  bool
	Reason  string
}

// Find returns the player with the given id
// Ready reports whether the room is full and every player in it is ready
func (r Roster) Ready() bool {
	if len(r.Players) < MaxPlayers {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (r Roster) Find(id string) (Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Update is a value as stored by the service, stamped with the service clock
type Update struct {
	Key   string
	Value []byte
	Stamp time.Time
}

// Service is what a peer needs from a realtime room backend. Callbacks run
// on service goroutines; they must not block.
type Service interface {
	PlayerID() string
	CreateRoom(ctx context.Context) (string, error)
	JoinRoom(ctx context.Context, code string) error
	Publish(key string, value []byte) error
	// Subscribe delivers the current value, if any, and then every write to key.
	Subscribe(key string, fn func(Update)) (unsubscribe func(), err error)
	// WatchRoster delivers the current roster and then every membership change.
	WatchRoster(fn func(Roster)) (unsubscribe func(), err error)
	SetReady(ready bool) error
	// OnDisconnect arms presence: an abrupt loss of this peer marks it disconnected
	// in the roster. Call it before publishing.
	OnDisconnect() error
	Heartbeat() error
	Leave() error
}

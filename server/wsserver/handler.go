package wsserver

import (
	"errors"
	"log/slog"

	"github.com/mo-shahab/pong3d/server/client"
	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/room"
	"github.com/mo-shahab/pong3d/server/wire"
)

// rosterKey tracks the roster watch next to the key subscriptions
const rosterKey = "\x00roster"

var errNoPlayer = errors.New("wsserver: frame without player id")

// handleMessage processes one incoming frame
func (wsh *WebSocketHandler) handleMessage(c *client.Client, f wire.Frame) {
	switch f.Type {
	case wire.FrameCreate:
		wsh.handleRoomCreateRequest(c, f)
	case wire.FrameJoin:
		wsh.handleRoomJoinRequest(c, f)
	case wire.FrameLeave:
		wsh.handleLeave(c, f)
	case wire.FramePublish, wire.FrameSubscribe, wire.FrameUnsubscribe,
		wire.FrameReady, wire.FrameHeartbeat, wire.FramePresence:
		wsh.handleRoomFrame(c, f)
	default:
		slog.Debug("unknown frame type", slog.String("client", c.ID), slog.String("type", f.Type.String()))
	}
}

// handleRoomCreateRequest opens a room with the sender as host
func (wsh *WebSocketHandler) handleRoomCreateRequest(c *client.Client, f wire.Frame) {
	if f.Player == "" {
		wsh.sendError(c, f.ID, errNoPlayer)
		return
	}

	code, err := wsh.RoomManager.CreateRoom(room.Player{ID: f.Player, Name: f.Name})
	if err != nil {
		wsh.sendError(c, f.ID, err)
		return
	}

	c.Seat(code, f.Player)
	wsh.send(c, wire.Frame{Type: wire.FrameCreated, ID: f.ID, Code: code, Seat: string(paddle.SeatGreen)})
	wsh.watchRoster(c, code)
	wsh.startWaitingRoom(code)
}

// handleRoomJoinRequest seats the sender in an existing room
func (wsh *WebSocketHandler) handleRoomJoinRequest(c *client.Client, f wire.Frame) {
	if f.Player == "" {
		wsh.sendError(c, f.ID, errNoPlayer)
		return
	}

	seat, err := wsh.RoomManager.JoinRoom(f.Code, room.Player{ID: f.Player, Name: f.Name})
	if err != nil {
		slog.Debug("join failed", slog.String("client", c.ID), slog.String("code", f.Code), slog.Any("error", err))
		wsh.sendError(c, f.ID, err)
		return
	}

	c.Seat(f.Code, f.Player)
	wsh.send(c, wire.Frame{Type: wire.FrameJoined, ID: f.ID, Code: f.Code, Seat: string(seat)})
	wsh.watchRoster(c, f.Code)
}

func (wsh *WebSocketHandler) handleLeave(c *client.Client, f wire.Frame) {
	code, playerID := c.Membership()
	if code == "" {
		wsh.sendError(c, f.ID, room.ErrNotInRoom)
		return
	}
	c.Reset()
	if err := wsh.RoomManager.Leave(code, playerID); err != nil {
		slog.Debug("leave failed", slog.String("code", code), slog.Any("error", err))
	}
}

// handleRoomFrame handles the frames that act on the sender's current room
func (wsh *WebSocketHandler) handleRoomFrame(c *client.Client, f wire.Frame) {
	code, playerID := c.Membership()
	if code == "" {
		wsh.sendError(c, f.ID, room.ErrNotInRoom)
		return
	}

	var err error
	switch f.Type {
	case wire.FramePublish:
		_, err = wsh.RoomManager.Publish(code, f.Key, f.Value)
	case wire.FrameSubscribe:
		var unsub func()
		key := f.Key
		unsub, err = wsh.RoomManager.Subscribe(code, key, func(u room.Update) {
			wsh.send(c, wire.Frame{Type: wire.FrameUpdate, Key: u.Key, Value: u.Value, Stamp: u.Stamp})
		})
		if err == nil {
			c.Track(key, unsub)
		}
	case wire.FrameUnsubscribe:
		c.Untrack(f.Key)
	case wire.FrameReady:
		err = wsh.RoomManager.SetReady(code, playerID, f.Ready)
	case wire.FrameHeartbeat:
		err = wsh.RoomManager.Heartbeat(code, playerID)
	case wire.FramePresence:
		err = wsh.RoomManager.ArmPresence(code, playerID)
	}

	if err != nil {
		slog.Debug("room frame failed", slog.String("type", f.Type.String()), slog.String("code", code), slog.Any("error", err))
		wsh.sendError(c, f.ID, err)
	}
}

// watchRoster forwards roster changes of code to c
func (wsh *WebSocketHandler) watchRoster(c *client.Client, code string) {
	unsub, err := wsh.RoomManager.WatchRoster(code, func(r room.Roster) {
		if r.Closed {
			wsh.send(c, wire.Frame{Type: wire.FrameClosed, Code: r.Code, Error: r.Reason})
			return
		}
		wsh.send(c, rosterFrame(r))
	})
	if err != nil {
		wsh.sendError(c, 0, err)
		return
	}
	c.Track(rosterKey, unsub)
}

func rosterFrame(r room.Roster) wire.Frame {
	f := wire.Frame{
		Type:    wire.FrameRoster,
		Code:    r.Code,
		Player:  r.Host,
		Stamp:   r.Created,
		Members: make([]wire.Member, 0, len(r.Players)),
	}
	for _, p := range r.Players {
		f.Members = append(f.Members, wire.Member{
			ID:        p.ID,
			Name:      p.Name,
			Seat:      string(p.Seat),
			Ready:     p.Ready,
			Connected: p.Connected,
			Heartbeat: p.LastHeartbeat,
		})
	}
	return f
}

// Package wsclient implements room.Service against the websocket room server.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/room"
	"github.com/mo-shahab/pong3d/server/wire"
)

var ErrConnectionLost = errors.New("wsclient: connection lost")

// sentinels the server reports by message
var remoteErrors = []error{room.ErrRoomNotFound, room.ErrRoomFull, room.ErrNotInRoom, room.ErrRoomClosed}

type Client struct {
	conn *websocket.Conn
	id   string
	name string

	writeMu sync.Mutex

	mu        sync.Mutex
	code      string
	seat      paddle.Seat
	nextReq   uint64
	pending   map[uint64]chan wire.Frame
	subs      map[string]map[int]func(room.Update)
	last      map[string]room.Update
	rosterFns map[int]func(room.Roster)
	roster    *room.Roster
	nextSub   int

	done chan struct{}
	err  error
}

// Dial connects to the room server at url, e.g. ws://localhost:8080/ws
func Dial(ctx context.Context, url, name string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial %s: %w", url, err)
	}

	c := &Client{
		conn:      conn,
		id:        uuid.NewString(),
		name:      name,
		pending:   make(map[uint64]chan wire.Frame),
		subs:      make(map[string]map[int]func(room.Update)),
		last:      make(map[string]room.Update),
		rosterFns: make(map[int]func(room.Roster)),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) PlayerID() string { return c.id }

// Seat is the seat the server assigned on create or join
func (c *Client) Seat() paddle.Seat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seat
}

// Done is closed when the connection is gone
func (c *Client) Done() <-chan struct{} { return c.done }

// Err is the read error that ended the connection, if any
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close drops the connection. Presence marks the player disconnected if armed.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	reply, err := c.request(ctx, wire.Frame{Type: wire.FrameCreate, Player: c.id, Name: c.name})
	if err != nil {
		return "", err
	}
	return reply.Code, nil
}

func (c *Client) JoinRoom(ctx context.Context, code string) error {
	_, err := c.request(ctx, wire.Frame{Type: wire.FrameJoin, Code: code, Player: c.id, Name: c.name})
	return err
}

func (c *Client) inRoom() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.code == "" {
		return room.ErrNotInRoom
	}
	return nil
}

func (c *Client) Publish(key string, value []byte) error {
	if err := c.inRoom(); err != nil {
		return err
	}
	return c.write(wire.Frame{Type: wire.FramePublish, Key: key, Value: value})
}

func (c *Client) Subscribe(key string, fn func(room.Update)) (func(), error) {
	if err := c.inRoom(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	fns, subscribed := c.subs[key]
	if !subscribed {
		fns = make(map[int]func(room.Update))
		c.subs[key] = fns
	}
	fns[id] = fn
	current, haveCurrent := c.last[key]
	c.mu.Unlock()

	if !subscribed {
		if err := c.write(wire.Frame{Type: wire.FrameSubscribe, Key: key}); err != nil {
			c.unsubscribe(key, id)
			return nil, err
		}
	} else if haveCurrent {
		fn(current)
	}

	var once sync.Once
	return func() { once.Do(func() { c.unsubscribe(key, id) }) }, nil
}

func (c *Client) unsubscribe(key string, id int) {
	c.mu.Lock()
	fns := c.subs[key]
	delete(fns, id)
	last := len(fns) == 0
	if last {
		delete(c.subs, key)
		delete(c.last, key)
	}
	inRoom := c.code != ""
	c.mu.Unlock()

	if last && inRoom {
		if err := c.write(wire.Frame{Type: wire.FrameUnsubscribe, Key: key}); err != nil {
			slog.Debug("unsubscribe not sent", slog.String("key", key), slog.Any("error", err))
		}
	}
}

func (c *Client) WatchRoster(fn func(room.Roster)) (func(), error) {
	if err := c.inRoom(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.rosterFns[id] = fn
	current := c.roster
	c.mu.Unlock()

	if current != nil {
		fn(*current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.rosterFns, id)
			c.mu.Unlock()
		})
	}, nil
}

func (c *Client) SetReady(ready bool) error {
	if err := c.inRoom(); err != nil {
		return err
	}
	return c.write(wire.Frame{Type: wire.FrameReady, Ready: ready})
}

func (c *Client) OnDisconnect() error {
	if err := c.inRoom(); err != nil {
		return err
	}
	return c.write(wire.Frame{Type: wire.FramePresence})
}

func (c *Client) Heartbeat() error {
	if err := c.inRoom(); err != nil {
		return err
	}
	return c.write(wire.Frame{Type: wire.FrameHeartbeat})
}

func (c *Client) Leave() error {
	if err := c.inRoom(); err != nil {
		return err
	}
	c.mu.Lock()
	c.code = ""
	c.subs = make(map[string]map[int]func(room.Update))
	c.last = make(map[string]room.Update)
	c.rosterFns = make(map[int]func(room.Roster))
	c.roster = nil
	c.mu.Unlock()
	return c.write(wire.Frame{Type: wire.FrameLeave})
}

func (c *Client) write(f wire.Frame) error {
	select {
	case <-c.done:
		return ErrConnectionLost
	default:
	}

	b, err := wire.MarshalFrame(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("wsclient: write %s: %w", f.Type, err)
	}
	return nil
}

// request sends f and waits for the reply carrying the same id
func (c *Client) request(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	reply := make(chan wire.Frame, 1)

	c.mu.Lock()
	c.nextReq++
	f.ID = c.nextReq
	c.pending[f.ID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	if err := c.write(f); err != nil {
		return wire.Frame{}, err
	}

	select {
	case r := <-reply:
		if r.Type == wire.FrameError {
			return wire.Frame{}, remoteError(r.Error)
		}
		return r, nil
	case <-c.done:
		return wire.Frame{}, ErrConnectionLost
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	}
}

func remoteError(msg string) error {
	for _, sentinel := range remoteErrors {
		if strings.HasPrefix(msg, sentinel.Error()) {
			return fmt.Errorf("%w%s", sentinel, strings.TrimPrefix(msg, sentinel.Error()))
		}
	}
	return errors.New(msg)
}

func (c *Client) readLoop() {
	defer c.lost()

	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}

		f, err := wire.UnmarshalFrame(p)
		if err != nil {
			slog.Debug("dropping malformed frame", slog.Any("error", err))
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f wire.Frame) {
	switch f.Type {
	case wire.FrameCreated, wire.FrameJoined, wire.FrameError:
		c.mu.Lock()
		reply, ok := c.pending[f.ID]
		// entered before the roster frame that follows is dispatched
		if ok && f.Type != wire.FrameError {
			c.code = f.Code
			c.seat = paddle.Seat(f.Seat)
		}
		c.mu.Unlock()
		if ok {
			reply <- f
		} else if f.Type == wire.FrameError {
			slog.Debug("room server error", slog.String("error", f.Error))
		}

	case wire.FrameUpdate:
		u := room.Update{Key: f.Key, Value: f.Value, Stamp: f.Stamp}
		c.mu.Lock()
		fns, ok := c.subs[f.Key]
		var targets []func(room.Update)
		if ok {
			c.last[f.Key] = u
			for _, fn := range fns {
				targets = append(targets, fn)
			}
		}
		c.mu.Unlock()
		for _, fn := range targets {
			fn(u)
		}

	case wire.FrameRoster:
		c.publishRoster(rosterFromFrame(f))

	case wire.FrameClosed:
		c.publishRoster(room.Roster{Code: f.Code, Closed: true, Reason: f.Error})
	}
}

func (c *Client) publishRoster(r room.Roster) {
	c.mu.Lock()
	if c.code == "" || (r.Code != "" && r.Code != c.code) {
		c.mu.Unlock()
		return
	}
	c.roster = &r
	targets := make([]func(room.Roster), 0, len(c.rosterFns))
	for _, fn := range c.rosterFns {
		targets = append(targets, fn)
	}
	c.mu.Unlock()

	for _, fn := range targets {
		fn(r)
	}
}

// lost tells roster watchers the room is gone for this peer
func (c *Client) lost() {
	close(c.done)
	c.publishRoster(room.Roster{Closed: true, Reason: "connection lost"})
}

func rosterFromFrame(f wire.Frame) room.Roster {
	r := room.Roster{
		Code:    f.Code,
		Host:    f.Player,
		Created: f.Stamp,
		Players: make([]room.Player, 0, len(f.Members)),
	}
	for _, m := range f.Members {
		r.Players = append(r.Players, room.Player{
			ID:            m.ID,
			Name:          m.Name,
			Seat:          paddle.Seat(m.Seat),
			Ready:         m.Ready,
			Connected:     m.Connected,
			LastHeartbeat: m.Heartbeat,
		})
	}
	return r
}

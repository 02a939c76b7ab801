package room

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mo-shahab/pong3d/server/clock"
	"github.com/mo-shahab/pong3d/server/paddle"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 32
)

// Rand draws room codes. *rand.Rand from golang.org/x/exp/rand satisfies it.
type Rand interface {
	Intn(n int) int
}

type subscription struct {
	key string
	fn  func(Update)
}

// Room is one game room. Callbacks registered on it are delivered in write
// order, one at a time, and must not call back into the same room.
type Room struct {
	Code    string
	Host    string
	Created time.Time

	deliver sync.Mutex // held while callbacks run
	mu      sync.Mutex
	players map[string]*Player
	order   []string
	armed   map[string]bool
	values  map[string]Update
	subs    map[int]subscription
	rosters map[int]func(Roster)
	nextSub int
	closed  bool
	reason  string
}

// newRoom returns a room with host already seated green, so the room is never
// visible to a joiner without its host
func newRoom(code string, host Player, now time.Time) *Room {
	host.Seat = paddle.SeatGreen
	host.Connected = true
	host.LastHeartbeat = now
	return &Room{
		Code:    code,
		Host:    host.ID,
		Created: now,
		players: map[string]*Player{host.ID: &host},
		order:   []string{host.ID},
		armed:   make(map[string]bool),
		values:  make(map[string]Update),
		subs:    make(map[int]subscription),
		rosters: make(map[int]func(Roster)),
	}
}

// Manager holds every live room in memory
type Manager struct {
	Rooms map[string]*Room
	Mu    sync.Mutex

	rng   Rand
	clock clock.Provider

	// HeartbeatTimeout is how stale an armed player's heartbeat may get
	// before the sweeper marks it disconnected
	HeartbeatTimeout time.Duration
}

func NewManager(clk clock.Provider, rng Rand) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Manager{
		Rooms:            make(map[string]*Room),
		rng:              rng,
		clock:            clk,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
	}
}

// generateCode must be called with Mu held
func (rm *Manager) generateCode() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		b := make([]byte, codeLength)
		for j := range b {
			b[j] = codeAlphabet[rm.rng.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := rm.Rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("room: no free code after %d attempts", codeAttempts)
}

// CreateRoom opens a room with host seated green and returns its code
func (rm *Manager) CreateRoom(host Player) (string, error) {
	now := rm.clock.Now()

	rm.Mu.Lock()
	code, err := rm.generateCode()
	if err != nil {
		rm.Mu.Unlock()
		return "", err
	}
	rm.Rooms[code] = newRoom(code, host, now)
	rm.Mu.Unlock()

	slog.Info("room created", slog.String("code", code), slog.String("host", host.ID))
	return code, nil
}

// JoinRoom seats p in the free seat of the room. A player already in the
// roster is marked connected again and keeps its seat.
func (rm *Manager) JoinRoom(code string, p Player) (paddle.Seat, error) {
	r, ok := rm.GetRoom(code)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}

	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	now := rm.clock.Now()
	if existing, ok := r.players[p.ID]; ok {
		existing.Connected = true
		existing.LastHeartbeat = now
		seat := existing.Seat
		roster, fns := r.rosterLocked(), r.rosterFnsLocked()
		r.mu.Unlock()
		notifyRoster(fns, roster)
		return seat, nil
	}
	if len(r.players) >= MaxPlayers {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrRoomFull, code)
	}

	p.Seat = r.freeSeatLocked()
	p.Connected = true
	p.LastHeartbeat = now
	r.players[p.ID] = &p
	r.order = append(r.order, p.ID)
	roster, fns := r.rosterLocked(), r.rosterFnsLocked()
	r.mu.Unlock()

	notifyRoster(fns, roster)
	slog.Info("player joined", slog.String("code", code), slog.String("player", p.ID), slog.String("seat", string(p.Seat)))
	return p.Seat, nil
}

func (rm *Manager) GetRoom(code string) (*Room, bool) {
	rm.Mu.Lock()
	defer rm.Mu.Unlock()

	r, exists := rm.Rooms[code]
	return r, exists
}

// Len is the number of open rooms
func (rm *Manager) Len() int {
	rm.Mu.Lock()
	defer rm.Mu.Unlock()
	return len(rm.Rooms)
}

// Publish stores value under key (last write wins) and notifies subscribers
func (rm *Manager) Publish(code, key string, value []byte) (Update, error) {
	r, ok := rm.GetRoom(code)
	if !ok {
		return Update{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return r.publish(key, value, rm.clock.Now())
}

func (rm *Manager) Subscribe(code, key string, fn func(Update)) (func(), error) {
	r, ok := rm.GetRoom(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return r.subscribe(key, fn)
}

func (rm *Manager) WatchRoster(code string, fn func(Roster)) (func(), error) {
	r, ok := rm.GetRoom(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return r.watchRoster(fn)
}

// Roster returns the current membership of a room
func (rm *Manager) Roster(code string) (Roster, error) {
	r, ok := rm.GetRoom(code)
	if !ok {
		return Roster{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked(), nil
}

func (rm *Manager) SetReady(code, playerID string, ready bool) error {
	return rm.updatePlayer(code, playerID, func(p *Player) bool {
		if p.Ready == ready {
			return false
		}
		p.Ready = ready
		return true
	})
}

func (rm *Manager) Heartbeat(code, playerID string) error {
	now := rm.clock.Now()
	return rm.updatePlayer(code, playerID, func(p *Player) bool {
		p.LastHeartbeat = now
		if !p.Connected {
			p.Connected = true
			return true
		}
		return false
	})
}

// ArmPresence registers that an abrupt loss of playerID marks it disconnected
func (rm *Manager) ArmPresence(code, playerID string) error {
	r, ok := rm.GetRoom(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[playerID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
	}
	r.armed[playerID] = true
	return nil
}

// Drop handles an abrupt loss of playerID's connection. Unarmed players are left as they were.
func (rm *Manager) Drop(code, playerID string) {
	r, ok := rm.GetRoom(code)
	if !ok {
		return
	}
	r.mu.Lock()
	armed := r.armed[playerID]
	r.mu.Unlock()
	if !armed {
		return
	}

	_ = rm.updatePlayer(code, playerID, func(p *Player) bool {
		if !p.Connected {
			return false
		}
		p.Connected = false
		return true
	})
	slog.Info("player dropped", slog.String("code", code), slog.String("player", playerID))
}

// Leave removes playerID and its input key. The last player out removes the room.
func (rm *Manager) Leave(code, playerID string) error {
	r, ok := rm.GetRoom(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}

	r.deliver.Lock()
	r.mu.Lock()
	if _, ok := r.players[playerID]; !ok {
		r.mu.Unlock()
		r.deliver.Unlock()
		return fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
	}
	delete(r.players, playerID)
	delete(r.armed, playerID)
	delete(r.values, InputKey(playerID))
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	empty := len(r.players) == 0
	roster, fns := r.rosterLocked(), r.rosterFnsLocked()
	r.mu.Unlock()
	if !empty {
		notifyRoster(fns, roster)
	}
	r.deliver.Unlock()

	slog.Info("player left", slog.String("code", code), slog.String("player", playerID))
	if empty {
		rm.Close(code, "empty")
	}
	return nil
}

// Close tears a room down. Roster watchers receive a final closed roster.
func (rm *Manager) Close(code, reason string) {
	rm.Mu.Lock()
	r, exists := rm.Rooms[code]
	delete(rm.Rooms, code)
	rm.Mu.Unlock()
	if !exists {
		return
	}

	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	r.closed = true
	r.reason = reason
	roster, fns := r.rosterLocked(), r.rosterFnsLocked()
	r.subs = make(map[int]subscription)
	r.rosters = make(map[int]func(Roster))
	r.mu.Unlock()

	notifyRoster(fns, roster)
	slog.Info("room closed", slog.String("code", code), slog.String("reason", reason))
}

func (rm *Manager) updatePlayer(code, playerID string, fn func(*Player) bool) error {
	r, ok := rm.GetRoom(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}

	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	p, ok := r.players[playerID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
	}
	changed := fn(p)
	roster, fns := r.rosterLocked(), r.rosterFnsLocked()
	r.mu.Unlock()

	if changed {
		notifyRoster(fns, roster)
	}
	return nil
}

func (r *Room) freeSeatLocked() paddle.Seat {
	for _, p := range r.players {
		return p.Seat.Opponent()
	}
	return paddle.SeatGreen
}

func (r *Room) publish(key string, value []byte, now time.Time) (Update, error) {
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Update{}, fmt.Errorf("%w: %s", ErrRoomClosed, r.Code)
	}
	u := Update{Key: key, Value: append([]byte(nil), value...), Stamp: now}
	r.values[key] = u
	var fns []func(Update)
	for _, s := range r.subs {
		if s.key == key {
			fns = append(fns, s.fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
	return u, nil
}

func (r *Room) subscribe(key string, fn func(Update)) (func(), error) {
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRoomClosed, r.Code)
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = subscription{key: key, fn: fn}
	current, ok := r.values[key]
	r.mu.Unlock()

	if ok {
		fn(current)
	}
	return r.unsubscriber(id), nil
}

func (r *Room) watchRoster(fn func(Roster)) (func(), error) {
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRoomClosed, r.Code)
	}
	id := r.nextSub
	r.nextSub++
	r.rosters[id] = fn
	roster := r.rosterLocked()
	r.mu.Unlock()

	fn(roster)
	return r.unsubscriber(id), nil
}

func (r *Room) unsubscriber(id int) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// waits out a delivery in progress, so fn never runs after this returns
			r.deliver.Lock()
			defer r.deliver.Unlock()
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
			delete(r.rosters, id)
		})
	}
}

func (r *Room) rosterLocked() Roster {
	roster := Roster{
		Code:    r.Code,
		Host:    r.Host,
		Created: r.Created,
		Closed:  r.closed,
		Reason:  r.reason,
		Players: make([]Player, 0, len(r.order)),
	}
	for _, id := range r.order {
		roster.Players = append(roster.Players, *r.players[id])
	}
	return roster
}

func (r *Room) rosterFnsLocked() []func(Roster) {
	fns := make([]func(Roster), 0, len(r.rosters))
	for _, fn := range r.rosters {
		fns = append(fns, fn)
	}
	return fns
}

func notifyRoster(fns []func(Roster), roster Roster) {
	for _, fn := range fns {
		fn(roster)
	}
}

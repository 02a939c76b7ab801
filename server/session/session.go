// Package session runs the per-peer frame loop: it drains room notifications,
// moves the paddles, steps physics when this peer is authoritative and hands
// the result to the replicator and the renderer.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"

	"github.com/mo-shahab/pong3d/server/arena"
	"github.com/mo-shahab/pong3d/server/ball"
	"github.com/mo-shahab/pong3d/server/clock"
	"github.com/mo-shahab/pong3d/server/game"
	"github.com/mo-shahab/pong3d/server/netsync"
	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/room"
	"github.com/mo-shahab/pong3d/server/wire"
)

const (
	TickRate = time.Second / 60
	// MaxFrameDelta caps dt after a stalled frame
	MaxFrameDelta = 0.1
)

type Options struct {
	// Service is the room the session plays in. nil plays offline against the AI.
	Service room.Service
	Code    string

	Input    paddle.IntentSource
	Codec    wire.Codec
	Sync     netsync.Config
	Clock    clock.Provider
	Rand     ball.Rand
	Renderer Renderer
	TickRate time.Duration

	// WinScore ends the match when a seat reaches it. 0 plays forever.
	WinScore int
	// Smoothed drives the remote paddle by exponential smoothing of the latest
	// sample instead of the interpolation buffer.
	Smoothed bool
}

// Session is one peer's view of a match
type Session struct {
	opts   Options
	engine *game.Engine
	inbox  *netsync.Inbox[event]

	// owned by the frame loop
	replicator  netsync.Replicator
	controllers []paddle.Controller
	feed        *netsync.RemoteFeed
	seat        paddle.Seat
	opponent    string
	lastFrame   time.Time

	mu      sync.RWMutex
	state   State
	reason  string
	winner  paddle.Seat
	players []room.Player
	view    View
	unsubs  []func()
	closing bool
	paused  bool

	stopChan  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	closeOnce sync.Once
}

// New builds a session. Offline sessions start Active with the ball served.
// Online sessions take their role once the roster holds both players and wait
// in the lobby until both are ready.
func New(opts Options) (*Session, error) {
	if opts.Codec == nil {
		opts.Codec = wire.Protobuf{}
	}
	if opts.Sync == (netsync.Config{}) {
		opts.Sync = netsync.DefaultConfig()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	if opts.TickRate <= 0 {
		opts.TickRate = TickRate
	}
	if opts.Input == nil {
		opts.Input = paddle.Still{}
	}

	green := paddle.New(paddle.SeatGreen, paddle.RoleLocal)
	red := paddle.New(paddle.SeatRed, paddle.RoleAI)

	s := &Session{
		opts:     opts,
		engine:   game.NewEngine(arena.Default(), ball.New(), green, red, opts.Rand),
		inbox:    netsync.NewInbox[event](netsync.InboxSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.engine.WinScore = opts.WinScore

	if opts.Service == nil {
		s.seat = paddle.SeatGreen
		s.replicator = netsync.Offline{}
		s.controllers = []paddle.Controller{
			paddle.NewLocal(green, opts.Input),
			paddle.NewAI(red, opts.Rand),
		}
		s.engine.Serve()
		s.state = StateActive
		s.refreshView()
		return s, nil
	}

	unsub, err := opts.Service.WatchRoster(func(r room.Roster) {
		s.inbox.Push(event{kind: eventRoster, roster: r, received: s.opts.Clock.Now()})
	})
	if err != nil {
		return nil, fmt.Errorf("watch roster: %w", err)
	}
	s.track(unsub)
	if err := opts.Service.SetReady(true); err != nil {
		slog.Debug("ready failed", slog.Any("error", err))
	}
	s.refreshView()
	return s, nil
}

// State is safe to call from any goroutine
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// View returns a copy of the last rendered frame
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Players = append([]room.Player(nil), s.view.Players...)
	return v
}

// TogglePause stops or resumes an offline match and reports whether it is now
// paused. Online matches cannot be paused.
func (s *Session) TogglePause() bool {
	if s.opts.Service != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	return s.paused
}

func (s *Session) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// Engine exposes the simulation. Only the frame loop may touch it while running.
func (s *Session) Engine() *game.Engine {
	return s.engine
}

// Dropped counts room notifications lost to a full inbox
func (s *Session) Dropped() uint64 {
	return s.inbox.Dropped()
}

// Run drives Tick from a ticker and sends heartbeats until the session reaches
// a terminal state, ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) State {
	s.running.Store(true)
	defer close(s.done)

	ticker := time.NewTicker(s.opts.TickRate)
	defer ticker.Stop()

	var beat <-chan time.Time
	if s.opts.Service != nil {
		hb := time.NewTicker(room.HeartbeatInterval)
		defer hb.Stop()
		beat = hb.C
	}

	for {
		select {
		case <-ctx.Done():
			return s.State()
		case <-s.stopChan:
			return s.State()
		case <-ticker.C:
			if st := s.Tick(s.opts.Clock.Now()); st.Terminal() {
				return st
			}
		case <-beat:
			if err := s.opts.Service.Heartbeat(); err != nil {
				slog.Debug("heartbeat failed", slog.Any("error", err))
			}
		}
	}
}

// Tick runs one frame at local time now
func (s *Session) Tick(now time.Time) State {
	dt := 0.0
	if !s.lastFrame.IsZero() {
		dt = now.Sub(s.lastFrame).Seconds()
		if dt > MaxFrameDelta {
			dt = MaxFrameDelta
		}
	}
	s.lastFrame = now

	s.inbox.Drain(s.handle)

	if s.State() == StateActive && !s.Paused() {
		s.step(now, dt)
	}

	s.refreshView()
	if s.opts.Renderer != nil {
		s.opts.Renderer.Render(s.View())
	}
	return s.State()
}

func (s *Session) step(now time.Time, dt float64) {
	ctx := paddle.Context{Now: now, Ball: s.engine.Ball}
	for _, c := range s.controllers {
		c.Advance(dt, ctx)
	}

	if s.replicator.Simulates() {
		res := s.engine.Step(dt)
		if res.Scored {
			slog.Info("goal",
				slog.String("scorer", string(res.Scorer)),
				slog.Int("green", s.engine.Scores.Green),
				slog.Int("red", s.engine.Scores.Red))
		}
	}

	s.replicator.Frame(now, s.engine)
	if s.feed != nil {
		s.feed.Prune(now)
	}

	if seat, ok := s.engine.Winner(); ok {
		s.replicator.Flush(now, s.engine)
		s.mu.Lock()
		s.winner = seat
		s.mu.Unlock()
		s.transition(StateEnded, "match won by "+string(seat))
	}
}

func (s *Session) handle(ev event) {
	if s.State().Terminal() {
		return
	}

	switch ev.kind {
	case eventRoster:
		s.handleRoster(ev.roster)
	case eventSnapshot:
		if s.replicator != nil {
			s.replicator.IngestSnapshot(ev.update, ev.received, s.engine)
		}
	case eventInput:
		if s.feed != nil {
			s.feed.Ingest(ev.update, ev.received)
		}
	}
}

func (s *Session) handleRoster(r room.Roster) {
	s.mu.Lock()
	s.players = append([]room.Player(nil), r.Players...)
	s.mu.Unlock()

	if r.Closed {
		reason := r.Reason
		if reason == "" {
			reason = "room closed"
		}
		s.transition(StateDisconnected, reason)
		return
	}

	if s.opponent != "" {
		opp, found := r.Find(s.opponent)
		switch {
		case !found:
			s.transition(StateDisconnected, "opponent left")
			return
		case !opp.Connected:
			s.transition(StateDisconnected, "opponent disconnected")
			return
		}
	}

	if s.State() != StateLobby {
		return
	}
	if s.replicator == nil && !s.assign(r) {
		return
	}
	if r.Ready() {
		s.start()
	}
}

// assign takes the role once both players are present and wires the
// controllers, replicator and subscriptions for it. Nothing is served or
// published until start.
func (s *Session) assign(r room.Roster) bool {
	svc := s.opts.Service
	self := svc.PlayerID()

	role, me, ok := netsync.Assign(r, self)
	if !ok {
		return false
	}
	opp, _ := netsync.Opponent(r, self)

	s.seat = me.Seat
	s.opponent = opp.ID

	local := s.engine.Paddle(me.Seat)
	remote := s.engine.Paddle(me.Seat.Opponent())
	local.Role = paddle.RoleLocal
	remote.Role = paddle.RoleRemote

	s.feed = netsync.NewRemoteFeed(remote, s.opts.Sync)
	var follow paddle.Controller = paddle.NewReplica(remote, s.feed)
	if s.opts.Smoothed {
		follow = paddle.NewFollower(remote, s.feed)
	}
	s.controllers = []paddle.Controller{paddle.NewLocal(local, s.opts.Input), follow}

	// presence is armed before the first publish
	if err := svc.OnDisconnect(); err != nil {
		s.transition(StateDisconnected, "presence: "+err.Error())
		return false
	}

	out := netsync.Outbox{
		Codec:     s.opts.Codec,
		Publisher: svc,
		PlayerID:  self,
		Paddle:    local,
		Input:     s.opts.Input,
	}

	switch role {
	case netsync.RoleHost:
		s.replicator = netsync.NewHost(out, s.opts.Sync)
	case netsync.RoleGuest:
		s.replicator = netsync.NewGuest(out, s.opts.Sync)
		if err := s.subscribe(room.KeyGameState, eventSnapshot); err != nil {
			s.transition(StateDisconnected, err.Error())
			return false
		}
	}

	if err := s.subscribe(room.InputKey(opp.ID), eventInput); err != nil {
		s.transition(StateDisconnected, err.Error())
		return false
	}

	slog.Info("role assigned",
		slog.String("role", role.String()),
		slog.String("seat", string(me.Seat)),
		slog.String("opponent", opp.Name))
	return true
}

// start begins play once every player is ready. The host serves the first ball.
func (s *Session) start() {
	if s.replicator.Simulates() {
		s.engine.Serve()
	}
	slog.Info("match started",
		slog.String("role", s.replicator.Role().String()),
		slog.String("seat", string(s.seat)))
	s.transition(StateActive, "")
}

func (s *Session) subscribe(key string, kind eventKind) error {
	unsub, err := s.opts.Service.Subscribe(key, func(u room.Update) {
		s.inbox.Push(event{kind: kind, update: u, received: s.opts.Clock.Now()})
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", key, err)
	}
	s.track(unsub)
	return nil
}

// track keeps unsub for teardown, or runs it at once when teardown already began
func (s *Session) track(unsub func()) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		unsub()
		return
	}
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()
}

func (s *Session) transition(to State, reason string) {
	s.mu.Lock()
	from := s.state
	if from == to || from.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.reason = reason
	s.mu.Unlock()

	slog.Info("session state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("reason", reason))
}

func (s *Session) refreshView() {
	role := netsync.RoleOffline
	if s.replicator != nil {
		role = s.replicator.Role()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = View{
		State:   s.state,
		Role:    role,
		Seat:    s.seat,
		Code:    s.opts.Code,
		Ball:    s.engine.Ball.Position,
		Green:   s.engine.Green.Position,
		Red:     s.engine.Red.Position,
		Scores:  s.engine.Scores,
		Winner:  s.winner,
		Reason:  s.reason,
		Paused:  s.paused,
		Players: s.players,
	}
}

// Close tears the session down: listeners are unsubscribed first, then the
// frame loop and its timers stop, then the room is left. Safe to call twice.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		unsubs := s.unsubs
		s.unsubs = nil
		s.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}

		close(s.stopChan)
		if s.running.Load() {
			<-s.done
		}

		if s.opts.Service == nil {
			return
		}
		err = s.opts.Service.Leave()
		if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrNotInRoom) {
			err = nil
		}
	})
	return err
}

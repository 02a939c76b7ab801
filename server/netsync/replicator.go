package netsync

import (
	"log/slog"
	"time"

	"github.com/mo-shahab/pong3d/server/game"
	"github.com/mo-shahab/pong3d/server/geom"
	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/room"
	"github.com/mo-shahab/pong3d/server/wire"
)

// Publisher is the write half of a room service
type Publisher interface {
	Publish(key string, value []byte) error
}

// Replicator is the per-role sync strategy the session picks at construction
type Replicator interface {
	Role() Role
	// Simulates reports whether this peer steps the physics
	Simulates() bool
	// IngestSnapshot handles a gameState update drained from the inbox
	IngestSnapshot(u room.Update, received time.Time, e *game.Engine)
	// Frame runs once per frame after the paddles moved and physics stepped
	Frame(now time.Time, e *game.Engine)
	// Flush publishes authoritative state now, ignoring the cadence
	Flush(now time.Time, e *game.Engine)
}

// Cadence fires at most once per interval of wall-clock time
type Cadence struct {
	interval time.Duration
	last     time.Time
}

func NewCadence(interval time.Duration) *Cadence {
	return &Cadence{interval: interval}
}

// Due reports whether a send is due at now and, if so, records it as sent
func (c *Cadence) Due(now time.Time) bool {
	if !c.last.IsZero() && now.Sub(c.last) < c.interval {
		return false
	}
	c.last = now
	return true
}

// Outbox publishes this peer's own paddle as input samples
type Outbox struct {
	Codec     wire.Codec
	Publisher Publisher
	PlayerID  string
	Paddle    *paddle.Paddle
	Input     paddle.IntentSource
}

func (o Outbox) publishInput(now time.Time) {
	intents := paddle.Intents{}
	if o.Input != nil {
		intents = o.Input.Intents()
	}
	b, err := o.Codec.EncodeInput(wire.InputSample{
		Seat:      o.Paddle.Seat,
		Intents:   intents,
		Position:  o.Paddle.Position,
		Timestamp: now,
	})
	if err == nil {
		err = o.Publisher.Publish(room.InputKey(o.PlayerID), b)
	}
	if err != nil {
		slog.Debug("input publish failed", slog.Any("error", err))
	}
}

// Offline is single player: physics runs locally and nothing is published
type Offline struct{}

func (Offline) Role() Role { return RoleOffline }
func (Offline) Simulates() bool { return true }
func (Offline) IngestSnapshot(room.Update, time.Time, *game.Engine) {}
func (Offline) Frame(time.Time, *game.Engine) {}
func (Offline) Flush(time.Time, *game.Engine) {}

// Host owns the ball and scores and publishes them on the cadence
type Host struct {
	out     Outbox
	cadence *Cadence
}

func NewHost(out Outbox, cfg Config) *Host {
	return &Host{out: out, cadence: NewCadence(cfg.PublishInterval)}
}

func (h *Host) Role() Role { return RoleHost }
func (h *Host) Simulates() bool { return true }

// IngestSnapshot ignores gameState writes; the host is their only author
func (h *Host) IngestSnapshot(room.Update, time.Time, *game.Engine) {}

func (h *Host) Frame(now time.Time, e *game.Engine) {
	if !h.cadence.Due(now) {
		return
	}
	h.publish(now, e)
}

// Flush is used for the final state of a match, which must not wait for the cadence
func (h *Host) Flush(now time.Time, e *game.Engine) {
	h.publish(now, e)
}

func (h *Host) publish(now time.Time, e *game.Engine) {
	b, err := h.out.Codec.EncodeSnapshot(SnapshotOf(e, now))
	if err == nil {
		err = h.out.Publisher.Publish(room.KeyGameState, b)
	}
	if err != nil {
		slog.Debug("snapshot publish failed", slog.Any("error", err))
	}
	h.out.publishInput(now)
}

// SnapshotOf captures the authoritative state of e
func SnapshotOf(e *game.Engine, now time.Time) wire.Snapshot {
	return wire.Snapshot{
		BallPosition: e.Ball.Position,
		BallVelocity: e.Ball.Velocity,
		Green:        e.Green.Position,
		Red:          e.Red.Position,
		GreenScore:   e.Scores.Green,
		RedScore:     e.Scores.Red,
		Timestamp:    now,
		WinScore:     e.WinScore,
	}
}

// Guest renders the host's ball from a delayed snapshot buffer
type Guest struct {
	out     Outbox
	cadence *Cadence
	delay   time.Duration
	buf     *Buffer[wire.Snapshot]
}

func NewGuest(out Outbox, cfg Config) *Guest {
	return &Guest{
		out:     out,
		cadence: NewCadence(cfg.PublishInterval),
		delay:   cfg.InterpolationDelay,
		buf:     NewBuffer[wire.Snapshot](cfg.HistoryWindow),
	}
}

func (g *Guest) Role() Role { return RoleGuest }
func (g *Guest) Simulates() bool { return false }

// IngestSnapshot buffers a snapshot and applies its scores at once
func (g *Guest) IngestSnapshot(u room.Update, received time.Time, e *game.Engine) {
	s, err := wire.DecodeSnapshot(u.Value)
	if err != nil {
		slog.Debug("dropping snapshot", slog.Any("error", err))
		return
	}

	stamp := u.Stamp
	if stamp.IsZero() {
		stamp = s.Timestamp
	}
	g.buf.Add(stamp, received, s)
	g.buf.Prune(received)

	e.Scores = game.Scores{Green: s.GreenScore, Red: s.RedScore}
	e.WinScore = s.WinScore
}

// Frame moves the ball to its interpolated position and publishes own input
func (g *Guest) Frame(now time.Time, e *game.Engine) {
	g.buf.Prune(now)
	if s, ok := At(g.buf, now.Add(-g.delay), lerpBall); ok {
		e.Ball.Position = s.BallPosition
		e.Ball.Velocity = s.BallVelocity
	}

	if g.cadence.Due(now) {
		g.out.publishInput(now)
	}
}

// Flush does nothing; the guest has no authoritative state
func (g *Guest) Flush(time.Time, *game.Engine) {}

// Buffered is the number of snapshots currently held
func (g *Guest) Buffered() int {
	return g.buf.Len()
}

// lerpBall interpolates the ball position and adopts the later velocity
func lerpBall(from, to wire.Snapshot, alpha float64) wire.Snapshot {
	out := to
	out.BallPosition = geom.Lerp(from.BallPosition, to.BallPosition, alpha)
	return out
}

package netsync

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mo-shahab/pong3d/server/geom"
	"github.com/mo-shahab/pong3d/server/paddle"
	"github.com/mo-shahab/pong3d/server/room"
	"github.com/mo-shahab/pong3d/server/wire"
)

// Policy says how much a peer's self-reported paddle position is trusted
type Policy uint8

const (
	// PolicyTrust takes the reported position as is
	PolicyTrust Policy = iota
	// PolicyClamp clamps it into the paddle's reach
	PolicyClamp
	// PolicyStrict also caps the per-axis displacement at paddle speed times elapsed time
	PolicyStrict
)

func (p Policy) String() string {
	switch p {
	case PolicyTrust:
		return "trust"
	case PolicyClamp:
		return "clamp"
	case PolicyStrict:
		return "strict"
	}
	return "unknown"
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "trust":
		return PolicyTrust, nil
	case "", "clamp":
		return PolicyClamp, nil
	case "strict":
		return PolicyStrict, nil
	}
	return PolicyClamp, fmt.Errorf("netsync: unknown input policy %q", s)
}

// RemoteFeed buffers the opponent's input samples and serves them to the
// paddle controllers as a paddle.RemoteSource. Owned by the frame loop.
type RemoteFeed struct {
	paddle *paddle.Paddle
	policy Policy
	delay  time.Duration

	buf       *Buffer[geom.Vec3]
	latest    geom.Vec3
	lastStamp time.Time
	intents   paddle.Intents
	have      bool
}

// NewRemoteFeed builds a feed for the remote paddle p
func NewRemoteFeed(p *paddle.Paddle, cfg Config) *RemoteFeed {
	return &RemoteFeed{
		paddle: p,
		policy: cfg.InputPolicy,
		delay:  cfg.InterpolationDelay,
		buf:    NewBuffer[geom.Vec3](cfg.HistoryWindow),
	}
}

// Ingest decodes an inputs/{id} update. Malformed values are dropped.
func (f *RemoteFeed) Ingest(u room.Update, received time.Time) bool {
	in, err := wire.DecodeInput(u.Value)
	if err != nil {
		slog.Debug("dropping input sample", slog.String("key", u.Key), slog.Any("error", err))
		return false
	}
	if in.Seat != "" && in.Seat != f.paddle.Seat {
		slog.Debug("dropping input sample for wrong seat", slog.String("seat", string(in.Seat)))
		return false
	}

	stamp := u.Stamp
	if stamp.IsZero() {
		stamp = in.Timestamp
	}
	if stamp.IsZero() {
		stamp = received
	}
	return f.Accept(in, stamp, received)
}

// Accept validates in under the feed's policy and buffers it
func (f *RemoteFeed) Accept(in wire.InputSample, stamp, received time.Time) bool {
	pos := in.Position

	switch f.policy {
	case PolicyClamp:
		pos = f.paddle.Reach().ClampPoint(pos)
	case PolicyStrict:
		if f.have && stamp.Before(f.lastStamp) {
			return false
		}
		pos = f.paddle.Reach().ClampPoint(pos)
		if f.have {
			step := f.paddle.Speed * stamp.Sub(f.lastStamp).Seconds()
			pos = geom.Vec3{
				X: capStep(f.latest.X, pos.X, step),
				Y: capStep(f.latest.Y, pos.Y, step),
				Z: capStep(f.latest.Z, pos.Z, step),
			}
		}
	}

	if f.have && stamp.Before(f.lastStamp) {
		// late arrival: buffer it but keep the newer latest
		f.buf.Add(stamp, received, pos)
		return true
	}

	f.buf.Add(stamp, received, pos)
	f.latest = pos
	f.lastStamp = stamp
	f.intents = in.Intents
	f.have = true
	return true
}

func capStep(from, to, max float64) float64 {
	d := to - from
	if math.Abs(d) <= max {
		return to
	}
	return from + math.Copysign(max, d)
}

// Prune forgets samples received more than the history window before now
func (f *RemoteFeed) Prune(now time.Time) {
	f.buf.Prune(now)
}

// Latest is the newest accepted position
func (f *RemoteFeed) Latest() (geom.Vec3, bool) {
	return f.latest, f.have
}

// At is the buffered position for local time now, sampled one interpolation delay in the past
func (f *RemoteFeed) At(now time.Time) (geom.Vec3, bool) {
	return At(f.buf, now.Add(-f.delay), geom.Lerp)
}

// Intents are the flags carried by the newest sample
func (f *RemoteFeed) Intents() paddle.Intents {
	return f.intents
}

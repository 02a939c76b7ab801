package room

import (
	"context"
	"log/slog"
	"time"
)

// presence timings
const (
	HeartbeatInterval       = 5 * time.Second
	DefaultHeartbeatTimeout = 3 * HeartbeatInterval
)

// Sweep marks armed players whose last heartbeat is older than the timeout
// as disconnected and returns how many it marked.
func (rm *Manager) Sweep(now time.Time) int {
	rm.Mu.Lock()
	rooms := make([]*Room, 0, len(rm.Rooms))
	for _, r := range rm.Rooms {
		rooms = append(rooms, r)
	}
	rm.Mu.Unlock()

	marked := 0
	for _, r := range rooms {
		r.mu.Lock()
		var stale []string
		for id, p := range r.players {
			if r.armed[id] && p.Connected && now.Sub(p.LastHeartbeat) > rm.HeartbeatTimeout {
				stale = append(stale, id)
			}
		}
		r.mu.Unlock()

		for _, id := range stale {
			err := rm.updatePlayer(r.Code, id, func(p *Player) bool {
				if !p.Connected {
					return false
				}
				p.Connected = false
				return true
			})
			if err == nil {
				marked++
				slog.Info("heartbeat expired", slog.String("code", r.Code), slog.String("player", id))
			}
		}
	}
	return marked
}

// RunSweeper sweeps on every tick until ctx is done
func (rm *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.Sweep(rm.clock.Now())
		}
	}
}

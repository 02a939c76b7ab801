package wsserver

import (
	"context"
	"log/slog"
	"time"
)

func (wsh *WebSocketHandler) startWaitingRoom(code string) {
	if wsh.LobbyTimeout <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsh.LobbyTimeout)
	waitingRoom := &WaitingRoomState{
		Code:     code,
		TimeLeft: wsh.LobbyTimeout,
		IsActive: true,
		Ctx:      ctx,
		Cancel:   cancel,
	}

	wsh.Mu.Lock()
	wsh.WaitingRooms[code] = waitingRoom
	wsh.Mu.Unlock()

	go wsh.runWaitingRoom(waitingRoom)
	slog.Debug("started waiting room", slog.String("code", code), slog.Duration("timeout", wsh.LobbyTimeout))
}

func (wsh *WebSocketHandler) runWaitingRoom(waitingRoom *WaitingRoomState) {
	tick := wsh.WaitingRoomTick
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	defer wsh.endWaitingRoom(waitingRoom)

	for {
		select {
		case <-waitingRoom.Ctx.Done():
			if waitingRoom.Ctx.Err() != context.DeadlineExceeded {
				return
			}
			if wsh.playersIn(waitingRoom.Code) >= MinPlayersToStart {
				return
			}
			slog.Info("waiting room timed out", slog.String("code", waitingRoom.Code))
			wsh.RoomManager.Close(waitingRoom.Code, "lobby timeout")
			return

		case <-ticker.C:
			if deadline, ok := waitingRoom.Ctx.Deadline(); ok {
				waitingRoom.Mu.Lock()
				waitingRoom.TimeLeft = time.Until(deadline)
				waitingRoom.Mu.Unlock()
			}

			n := wsh.playersIn(waitingRoom.Code)
			if n < 0 {
				return
			}
			if n >= MinPlayersToStart {
				slog.Debug("waiting room filled", slog.String("code", waitingRoom.Code))
				return
			}
		}
	}
}

// playersIn returns the roster size of code, or -1 when the room is gone
func (wsh *WebSocketHandler) playersIn(code string) int {
	roster, err := wsh.RoomManager.Roster(code)
	if err != nil {
		return -1
	}
	return len(roster.Players)
}

func (wsh *WebSocketHandler) endWaitingRoom(waitingRoom *WaitingRoomState) {
	waitingRoom.Mu.Lock()
	waitingRoom.IsActive = false
	waitingRoom.Mu.Unlock()
	waitingRoom.Cancel()

	wsh.Mu.Lock()
	if wsh.WaitingRooms[waitingRoom.Code] == waitingRoom {
		delete(wsh.WaitingRooms, waitingRoom.Code)
	}
	wsh.Mu.Unlock()
}

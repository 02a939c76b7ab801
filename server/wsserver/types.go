package wsserver

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mo-shahab/pong3d/server/client"
	"github.com/mo-shahab/pong3d/server/room"
)

type WebSocketHandler struct {
	Upgrader     websocket.Upgrader
	Mu           sync.Mutex
	Connections  map[string]*client.Client
	ConnToId     map[*websocket.Conn]string
	RoomManager  *room.Manager
	WaitingRooms map[string]*WaitingRoomState

	// LobbyTimeout closes rooms that never fill up; zero disables it
	LobbyTimeout time.Duration
	// WaitingRoomTick is how often a waiting room checks its roster
	WaitingRoomTick time.Duration
}

// waiting room status
type WaitingRoomState struct {
	Code     string
	TimeLeft time.Duration
	IsActive bool
	Ctx      context.Context
	Cancel   context.CancelFunc
	Mu       sync.Mutex
}

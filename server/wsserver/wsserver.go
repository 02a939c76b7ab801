package wsserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mo-shahab/pong3d/server/client"
	"github.com/mo-shahab/pong3d/server/room"
	"github.com/mo-shahab/pong3d/server/wire"
)

// waiting room constants
const (
	MinPlayersToStart   = room.MaxPlayers
	WaitingRoomDuration = 90 * time.Second
)

// NewWebSocketHandler serves the rooms held by manager
func NewWebSocketHandler(manager *room.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		Upgrader:        websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		Connections:     make(map[string]*client.Client),
		ConnToId:        make(map[*websocket.Conn]string),
		RoomManager:     manager,
		WaitingRooms:    make(map[string]*WaitingRoomState),
		LobbyTimeout:    WaitingRoomDuration,
		WaitingRoomTick: time.Second,
	}
}

// ServeHTTP upgrades the connection and handles its frames until it goes away
func (wsh *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsh.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := client.New(conn, uuid.NewString())

	// writer; the only goroutine that writes to conn
	go func() {
		for msg := range c.SendQueue {
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				slog.Debug("binary message write error", slog.String("client", c.ID), slog.Any("error", err))
				wsh.disconnectPlayer(conn)
				return
			}
		}
	}()

	wsh.Mu.Lock()
	wsh.Connections[c.ID] = c
	wsh.ConnToId[conn] = c.ID
	wsh.Mu.Unlock()

	slog.Debug("client connected", slog.String("client", c.ID), slog.String("remote", conn.RemoteAddr().String()))

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			slog.Debug("error reading message", slog.String("client", c.ID), slog.Any("error", err))
			wsh.disconnectPlayer(conn)
			return
		}

		f, err := wire.UnmarshalFrame(p)
		if err != nil {
			slog.Debug("dropping malformed frame", slog.String("client", c.ID), slog.Any("error", err))
			wsh.sendError(c, 0, err)
			continue
		}

		wsh.handleMessage(c, f)
	}
}

// disconnectPlayer handles a connection going away without a leave frame
func (wsh *WebSocketHandler) disconnectPlayer(conn *websocket.Conn) {
	wsh.Mu.Lock()
	clientId, exists := wsh.ConnToId[conn]
	if !exists {
		wsh.Mu.Unlock()
		return
	}
	c := wsh.Connections[clientId]
	delete(wsh.Connections, clientId)
	delete(wsh.ConnToId, conn)
	wsh.Mu.Unlock()

	code, playerID := c.Membership()
	c.Reset()
	if code != "" {
		wsh.RoomManager.Drop(code, playerID)
	}

	c.Close()
	conn.Close()
	slog.Debug("client disconnected", slog.String("client", clientId))
}

// Close stops every waiting room timer
func (wsh *WebSocketHandler) Close() {
	wsh.Mu.Lock()
	defer wsh.Mu.Unlock()
	for code, wr := range wsh.WaitingRooms {
		wr.Cancel()
		delete(wsh.WaitingRooms, code)
	}
}

func (wsh *WebSocketHandler) send(c *client.Client, f wire.Frame) {
	b, err := wire.MarshalFrame(f)
	if err != nil {
		slog.Error("failed to encode frame", slog.String("client", c.ID), slog.Any("error", err))
		return
	}
	c.Enqueue(b)
}

// sendError replies to request id with err
func (wsh *WebSocketHandler) sendError(c *client.Client, id uint64, err error) {
	wsh.send(c, wire.Frame{Type: wire.FrameError, ID: id, Error: err.Error()})
}

package room

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Local is a Service backed directly by a Manager in the same process
type Local struct {
	manager *Manager
	id      string
	name    string

	mu   sync.Mutex
	code string
}

func NewLocal(m *Manager, name string) *Local {
	return &Local{manager: m, id: uuid.NewString(), name: name}
}

func (c *Local) PlayerID() string { return c.id }

// Code is the room this client is in, or empty
func (c *Local) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *Local) CreateRoom(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	code, err := c.manager.CreateRoom(Player{ID: c.id, Name: c.name})
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.code = code
	c.mu.Unlock()
	return code, nil
}

func (c *Local) JoinRoom(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.manager.JoinRoom(code, Player{ID: c.id, Name: c.name}); err != nil {
		return err
	}
	c.mu.Lock()
	c.code = code
	c.mu.Unlock()
	return nil
}

func (c *Local) room() (string, error) {
	code := c.Code()
	if code == "" {
		return "", ErrNotInRoom
	}
	return code, nil
}

func (c *Local) Publish(key string, value []byte) error {
	code, err := c.room()
	if err != nil {
		return err
	}
	_, err = c.manager.Publish(code, key, value)
	return err
}

func (c *Local) Subscribe(key string, fn func(Update)) (func(), error) {
	code, err := c.room()
	if err != nil {
		return nil, err
	}
	return c.manager.Subscribe(code, key, fn)
}

func (c *Local) WatchRoster(fn func(Roster)) (func(), error) {
	code, err := c.room()
	if err != nil {
		return nil, err
	}
	return c.manager.WatchRoster(code, fn)
}

func (c *Local) SetReady(ready bool) error {
	code, err := c.room()
	if err != nil {
		return err
	}
	return c.manager.SetReady(code, c.id, ready)
}

func (c *Local) OnDisconnect() error {
	code, err := c.room()
	if err != nil {
		return err
	}
	return c.manager.ArmPresence(code, c.id)
}

func (c *Local) Heartbeat() error {
	code, err := c.room()
	if err != nil {
		return err
	}
	return c.manager.Heartbeat(code, c.id)
}

func (c *Local) Leave() error {
	code, err := c.room()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.code = ""
	c.mu.Unlock()
	return c.manager.Leave(code, c.id)
}

// Drop simulates the connection vanishing without a Leave
func (c *Local) Drop() {
	c.mu.Lock()
	code := c.code
	c.code = ""
	c.mu.Unlock()
	if code != "" {
		c.manager.Drop(code, c.id)
	}
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/exp/rand"

	"github.com/mo-shahab/pong3d/server/netsync"
	"github.com/mo-shahab/pong3d/server/room"
	"github.com/mo-shahab/pong3d/server/wire"
	"github.com/mo-shahab/pong3d/server/wsserver"
)

// DefaultPath is read when no path is given
const DefaultPath = "config.json"

// Duration reads either a Go duration string ("90s") or integer nanoseconds
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("config: duration %s: want a string or nanoseconds", b)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Configuration struct {
	LogLevel string `json:"logLevel"`
	// LogFile receives logs while the terminal view owns the screen; empty discards them
	LogFile  string `json:"logFile"`

	// serve
	Addr             string   `json:"addr"`
	LobbyTimeout     Duration `json:"lobbyTimeout"`
	HeartbeatTimeout Duration `json:"heartbeatTimeout"`

	// host, join
	Server      string   `json:"server"`
	Name        string   `json:"name"`
	JoinTimeout Duration `json:"joinTimeout"`

	// play
	Codec              string   `json:"codec"`
	InputPolicy        string   `json:"inputPolicy"`
	InterpolationDelay Duration `json:"interpolationDelay"`
	SmoothRemote       bool     `json:"smoothRemote"`
	WinScore           int      `json:"winScore"`
	Seed               uint64   `json:"seed"`
}

func Default() Configuration {
	return Configuration{
		LogLevel:           "info",
		Addr:               ":8080",
		LobbyTimeout:       Duration(wsserver.WaitingRoomDuration),
		HeartbeatTimeout:   Duration(room.DefaultHeartbeatTimeout),
		Server:             "ws://localhost:8080/ws",
		Name:               "player",
		JoinTimeout:        Duration(10 * time.Second),
		Codec:              "protobuf",
		InputPolicy:        "clamp",
		InterpolationDelay: Duration(netsync.InterpolationDelay),
		WinScore:           0,
	}
}

// LoadConfig reads a JSON file over the defaults. A missing file is not an
// error; the defaults are used.
func LoadConfig(path string) (Configuration, error) {
	c := Default()
	if path == "" {
		path = DefaultPath
	}

	cf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("no config file, using defaults", slog.String("path", path))
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}

	if err := json.Unmarshal(cf, &c); err != nil {
		return c, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, c.Validate()
}

// Validate checks the fields that are parsed later on
func (c Configuration) Validate() error {
	if _, err := c.WireCodec(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := netsync.ParsePolicy(c.InputPolicy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.WinScore < 0 {
		return fmt.Errorf("config: winScore %d is negative", c.WinScore)
	}
	return nil
}

func (c Configuration) WireCodec() (wire.Codec, error) {
	return wire.NewCodec(c.Codec)
}

// Sync builds the synchronization settings
func (c Configuration) Sync() (netsync.Config, error) {
	cfg := netsync.DefaultConfig()
	policy, err := netsync.ParsePolicy(c.InputPolicy)
	if err != nil {
		return cfg, err
	}
	cfg.InputPolicy = policy
	if c.InterpolationDelay > 0 {
		cfg.InterpolationDelay = c.InterpolationDelay.Std()
	}
	return cfg, nil
}

// Rand is seeded from Seed, or from the clock when Seed is 0
func (c Configuration) Rand() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewSource(seed))
}

func (c Configuration) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}

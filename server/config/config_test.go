package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mo-shahab/pong3d/server/netsync"
	"github.com/mo-shahab/pong3d/server/wire"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c != Default() {
		t.Fatalf("got %+v, want defaults", c)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"logLevel": "debug",
		"addr": ":9000",
		"lobbyTimeout": "30s",
		"codec": "msgpack",
		"inputPolicy": "strict",
		"interpolationDelay": 150000000,
		"winScore": 7,
		"seed": 42
	}`)

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr != ":9000" || c.WinScore != 7 || c.Seed != 42 {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.LobbyTimeout.Std() != 30*time.Second {
		t.Fatalf("lobby timeout = %v", c.LobbyTimeout.Std())
	}
	// untouched fields keep their defaults
	if c.Name != Default().Name || c.JoinTimeout != Default().JoinTimeout {
		t.Fatalf("defaults lost: %+v", c)
	}
	if c.SlogLevel() != slog.LevelDebug {
		t.Fatalf("level = %v", c.SlogLevel())
	}

	codec, err := c.WireCodec()
	if err != nil || codec.Format() != wire.FormatMsgpack {
		t.Fatalf("codec = %v, %v", codec, err)
	}

	sync, err := c.Sync()
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if sync.InputPolicy != netsync.PolicyStrict || sync.InterpolationDelay != 150*time.Millisecond {
		t.Fatalf("sync = %+v", sync)
	}
	if sync.PublishInterval != netsync.PublishInterval {
		t.Fatalf("publish interval = %v", sync.PublishInterval)
	}
}

func TestBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"addr": `},
		{"bad duration", `{"lobbyTimeout": "soon"}`},
		{"bad codec", `{"codec": "xml"}`},
		{"bad policy", `{"inputPolicy": "lenient"}`},
		{"bad level", `{"logLevel": "loud"}`},
		{"negative win score", `{"winScore": -1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSeededRandIsRepeatable(t *testing.T) {
	c := Default()
	c.Seed = 5
	a, b := c.Rand(), c.Rand()
	for i := 0; i < 3; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %v != %v", i, x, y)
		}
	}
}

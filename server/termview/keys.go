package termview

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/mo-shahab/pong3d/server/clock"
	"github.com/mo-shahab/pong3d/server/paddle"
)

// KeyHold is how long a key counts as held after its last press. Terminals
// report repeats but never releases.
const KeyHold = 150 * time.Millisecond

type intent uint8

const (
	intentUp intent = iota
	intentDown
	intentLeft
	intentRight
	intentForward
	intentBackward
	numIntents
)

var runeIntents = map[rune]intent{
	'w': intentUp,
	's': intentDown,
	'a': intentLeft,
	'd': intentRight,
	'q': intentForward,
	'e': intentBackward,
}

var keyIntents = map[tcell.Key]intent{
	tcell.KeyUp:    intentUp,
	tcell.KeyDown:  intentDown,
	tcell.KeyLeft:  intentLeft,
	tcell.KeyRight: intentRight,
	tcell.KeyPgUp:  intentForward,
	tcell.KeyPgDn:  intentBackward,
}

// Keys turns key presses into paddle intents. It is a paddle.IntentSource.
type Keys struct {
	clock clock.Provider
	hold  time.Duration

	// OnPause is called for the space bar. Set it before polling starts.
	OnPause func()

	mu      sync.Mutex
	pressed [numIntents]time.Time
}

func NewKeys(clk clock.Provider) *Keys {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Keys{clock: clk, hold: KeyHold}
}

// HandleKey records a press and reports whether the key asks to quit
func (k *Keys) HandleKey(ev *tcell.EventKey) (quit bool) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		r := ev.Rune()
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if r == ' ' {
			if k.OnPause != nil {
				k.OnPause()
			}
			return false
		}
		if in, ok := runeIntents[r]; ok {
			k.press(in)
		}
		return false
	}
	if in, ok := keyIntents[ev.Key()]; ok {
		k.press(in)
	}
	return false
}

func (k *Keys) press(in intent) {
	now := k.clock.Now()
	k.mu.Lock()
	k.pressed[in] = now
	// opposite directions cancel each other out
	k.pressed[opposite(in)] = time.Time{}
	k.mu.Unlock()
}

func opposite(in intent) intent {
	if in%2 == 0 {
		return in + 1
	}
	return in - 1
}

func (k *Keys) Intents() paddle.Intents {
	now := k.clock.Now()
	k.mu.Lock()
	defer k.mu.Unlock()

	held := func(in intent) bool {
		t := k.pressed[in]
		return !t.IsZero() && now.Sub(t) < k.hold
	}
	return paddle.Intents{
		Up:       held(intentUp),
		Down:     held(intentDown),
		Left:     held(intentLeft),
		Right:    held(intentRight),
		Forward:  held(intentForward),
		Backward: held(intentBackward),
	}
}

package paddle

// Intents are the discrete movement flags for one tick
type Intents struct {
	Up       bool `msgpack:"u"`
	Down     bool `msgpack:"d"`
	Left     bool `msgpack:"l"`
	Right    bool `msgpack:"r"`
	Forward  bool `msgpack:"f"`
	Backward bool `msgpack:"b"`
}

// IntentSource yields the intents to apply this tick
type IntentSource interface {
	Intents() Intents
}

// Still is an IntentSource that never moves
type Still struct{}

func (Still) Intents() Intents { return Intents{} }

// Bits packs the flags into a byte, up is bit 0
func (in Intents) Bits() uint8 {
	var b uint8
	for i, on := range []bool{in.Up, in.Down, in.Left, in.Right, in.Forward, in.Backward} {
		if on {
			b |= 1 << i
		}
	}
	return b
}

func IntentsFromBits(b uint8) Intents {
	return Intents{
		Up:       b&(1<<0) != 0,
		Down:     b&(1<<1) != 0,
		Left:     b&(1<<2) != 0,
		Right:    b&(1<<3) != 0,
		Forward:  b&(1<<4) != 0,
		Backward: b&(1<<5) != 0,
	}
}

package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mo-shahab/pong3d/server/geom"
	"github.com/mo-shahab/pong3d/server/paddle"
)

// Msgpack encodes payloads as msgpack maps with short keys
type Msgpack struct{}

type msgSnapshot struct {
	BallPos    []float64 `msgpack:"bp"`
	BallVel    []float64 `msgpack:"bv"`
	Green      []float64 `msgpack:"g"`
	Red        []float64 `msgpack:"r"`
	GreenScore int       `msgpack:"gs"`
	RedScore   int       `msgpack:"rs"`
	Stamp      int64     `msgpack:"t"`
	WinScore   int       `msgpack:"w,omitempty"`
}

type msgInput struct {
	Seat     string         `msgpack:"s"`
	Intents  paddle.Intents `msgpack:"i"`
	Position []float64      `msgpack:"p"`
	Stamp    int64          `msgpack:"t"`
}

func (Msgpack) Format() Format { return FormatMsgpack }

func (Msgpack) EncodeSnapshot(s Snapshot) ([]byte, error) {
	body, err := msgpack.Marshal(msgSnapshot{
		BallPos:    vecSlice(s.BallPosition),
		BallVel:    vecSlice(s.BallVelocity),
		Green:      vecSlice(s.Green),
		Red:        vecSlice(s.Red),
		GreenScore: s.GreenScore,
		RedScore:   s.RedScore,
		Stamp:      toMicros(s.Timestamp),
		WinScore:   s.WinScore,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: encode snapshot: %w", err)
	}
	return append([]byte{byte(FormatMsgpack)}, body...), nil
}

func (Msgpack) EncodeInput(in InputSample) ([]byte, error) {
	body, err := msgpack.Marshal(msgInput{
		Seat:     string(in.Seat),
		Intents:  in.Intents,
		Position: vecSlice(in.Position),
		Stamp:    toMicros(in.Timestamp),
	})
	if err != nil {
		return nil, fmt.Errorf("wire: encode input: %w", err)
	}
	return append([]byte{byte(FormatMsgpack)}, body...), nil
}

func (Msgpack) decodeSnapshot(b []byte) (Snapshot, error) {
	var m msgSnapshot
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.BallPos == nil || m.Stamp == 0 {
		return Snapshot{}, fmt.Errorf("%w: snapshot missing ball or timestamp", ErrMalformed)
	}

	s := Snapshot{
		GreenScore: m.GreenScore,
		RedScore:   m.RedScore,
		Timestamp:  fromMicros(m.Stamp),
		WinScore:   m.WinScore,
	}
	var err error
	if s.BallPosition, err = sliceVec(m.BallPos); err != nil {
		return Snapshot{}, err
	}
	if s.BallVelocity, err = sliceVec(m.BallVel); err != nil {
		return Snapshot{}, err
	}
	if s.Green, err = sliceVec(m.Green); err != nil {
		return Snapshot{}, err
	}
	if s.Red, err = sliceVec(m.Red); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (Msgpack) decodeInput(b []byte) (InputSample, error) {
	var m msgInput
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return InputSample{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Position == nil {
		return InputSample{}, fmt.Errorf("%w: input missing position", ErrMalformed)
	}
	pos, err := sliceVec(m.Position)
	if err != nil {
		return InputSample{}, err
	}
	return InputSample{
		Seat:      paddle.Seat(m.Seat),
		Intents:   m.Intents,
		Position:  pos,
		Timestamp: fromMicros(m.Stamp),
	}, nil
}

func vecSlice(v geom.Vec3) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// a nil slice is an absent vector and decodes to zero
func sliceVec(s []float64) (geom.Vec3, error) {
	if s == nil {
		return geom.Vec3{}, nil
	}
	if len(s) != 3 {
		return geom.Vec3{}, fmt.Errorf("%w: vector has %d components", ErrMalformed, len(s))
	}
	return geom.V(s[0], s[1], s[2]), nil
}

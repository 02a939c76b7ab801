package wire

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/mo-shahab/pong3d/server/paddle"
)

// Protobuf encodes payloads as the Snapshot and InputSample messages of the wire schema
type Protobuf struct{}

func (Protobuf) Format() Format { return FormatProtobuf }

func (Protobuf) EncodeSnapshot(s Snapshot) ([]byte, error) {
	m := newMsg(snapshotDesc)
	m.setVec3(1, s.BallPosition)
	m.setVec3(2, s.BallVelocity)
	m.setVec3(3, s.Green)
	m.setVec3(4, s.Red)
	m.set(5, protoreflect.ValueOfInt32(int32(s.GreenScore)))
	m.set(6, protoreflect.ValueOfInt32(int32(s.RedScore)))
	m.setStamp(7, s.Timestamp)
	m.set(8, protoreflect.ValueOfInt32(int32(s.WinScore)))
	return withFormat(FormatProtobuf, m)
}

func (Protobuf) EncodeInput(in InputSample) ([]byte, error) {
	m := newMsg(inputDesc)
	m.setString(1, string(in.Seat))
	m.set(2, protoreflect.ValueOfUint32(uint32(in.Intents.Bits())))
	m.setVec3(3, in.Position)
	m.setStamp(4, in.Timestamp)
	return withFormat(FormatProtobuf, m)
}

func withFormat(f Format, m msg) ([]byte, error) {
	body, err := m.marshal()
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", m.Descriptor().Name(), err)
	}
	return append([]byte{byte(f)}, body...), nil
}

func (Protobuf) decodeSnapshot(b []byte) (Snapshot, error) {
	m, err := unmarshalMsg(snapshotDesc, b)
	if err != nil {
		return Snapshot{}, err
	}
	if !m.has(1) || !m.has(7) {
		return Snapshot{}, fmt.Errorf("%w: snapshot missing ball or timestamp", ErrMalformed)
	}
	return Snapshot{
		BallPosition: m.vec3(1),
		BallVelocity: m.vec3(2),
		Green:        m.vec3(3),
		Red:          m.vec3(4),
		GreenScore:   int(m.get(5).Int()),
		RedScore:     int(m.get(6).Int()),
		Timestamp:    m.stamp(7),
		WinScore:     int(m.get(8).Int()),
	}, nil
}

func (Protobuf) decodeInput(b []byte) (InputSample, error) {
	m, err := unmarshalMsg(inputDesc, b)
	if err != nil {
		return InputSample{}, err
	}
	if !m.has(3) {
		return InputSample{}, fmt.Errorf("%w: input missing position", ErrMalformed)
	}
	return InputSample{
		Seat:      paddle.Seat(m.get(1).String()),
		Intents:   paddle.IntentsFromBits(uint8(m.get(2).Uint())),
		Position:  m.vec3(3),
		Timestamp: m.stamp(4),
	}, nil
}

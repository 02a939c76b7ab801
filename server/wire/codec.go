package wire

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed     = errors.New("wire: malformed payload")
	ErrUnknownFormat = errors.New("wire: unknown payload format")
)

// Format is the first byte of every encoded payload
type Format byte

const (
	FormatProtobuf Format = 0x01
	FormatMsgpack  Format = 0x02
)

func (f Format) String() string {
	switch f {
	case FormatProtobuf:
		return "protobuf"
	case FormatMsgpack:
		return "msgpack"
	}
	return fmt.Sprintf("format(%d)", byte(f))
}

// Codec turns snapshots and input samples into payload bytes.
// Encoded payloads carry their format byte so any codec can be decoded by Decode*.
type Codec interface {
	Format() Format
	EncodeSnapshot(s Snapshot) ([]byte, error)
	EncodeInput(in InputSample) ([]byte, error)
}

type decoder interface {
	decodeSnapshot(b []byte) (Snapshot, error)
	decodeInput(b []byte) (InputSample, error)
}

// NewCodec returns the codec registered under name
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "protobuf", "proto":
		return Protobuf{}, nil
	case "msgpack":
		return Msgpack{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

func decoderFor(b []byte) (decoder, []byte, error) {
	if len(b) == 0 {
		return nil, nil, ErrMalformed
	}
	switch Format(b[0]) {
	case FormatProtobuf:
		return Protobuf{}, b[1:], nil
	case FormatMsgpack:
		return Msgpack{}, b[1:], nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFormat, Format(b[0]))
}

// DecodeSnapshot decodes a payload written by any codec
func DecodeSnapshot(b []byte) (Snapshot, error) {
	d, body, err := decoderFor(b)
	if err != nil {
		return Snapshot{}, err
	}
	return d.decodeSnapshot(body)
}

// DecodeInput decodes a payload written by any codec
func DecodeInput(b []byte) (InputSample, error) {
	d, body, err := decoderFor(b)
	if err != nil {
		return InputSample{}, err
	}
	return d.decodeInput(body)
}

package wire

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// FrameType tags a websocket frame exchanged with the room server
type FrameType uint8

const (
	FrameUnknown FrameType = iota
	FrameCreate
	FrameCreated
	FrameJoin
	FrameJoined
	FramePublish
	FrameSubscribe
	FrameUnsubscribe
	FrameUpdate
	FrameRoster
	FrameReady
	FrameHeartbeat
	FramePresence
	FrameLeave
	FrameClosed
	FrameError
)

var frameNames = [...]string{
	FrameUnknown:     "unknown",
	FrameCreate:      "create",
	FrameCreated:     "created",
	FrameJoin:        "join",
	FrameJoined:      "joined",
	FramePublish:     "publish",
	FrameSubscribe:   "subscribe",
	FrameUnsubscribe: "unsubscribe",
	FrameUpdate:      "update",
	FrameRoster:      "roster",
	FrameReady:       "ready",
	FrameHeartbeat:   "heartbeat",
	FramePresence:    "presence",
	FrameLeave:       "leave",
	FrameClosed:      "closed",
	FrameError:       "error",
}

func (t FrameType) String() string {
	if int(t) < len(frameNames) {
		return frameNames[t]
	}
	return fmt.Sprintf("frame(%d)", uint8(t))
}

// Member is one roster entry as carried on the wire
type Member struct {
	ID        string
	Name      string
	Seat      string
	Ready     bool
	Connected bool
	Heartbeat time.Time
}

// Frame is the envelope for every websocket message. Which fields are set
// depends on Type; ID pairs a request with its reply.
type Frame struct {
	Type    FrameType
	ID      uint64
	Code    string
	Player  string
	Name    string
	Seat    string
	Key     string
	Value   []byte
	Stamp   time.Time
	Ready   bool
	Members []Member
	Error   string
}

// MarshalFrame encodes f as the Frame message of the wire schema
func MarshalFrame(f Frame) ([]byte, error) {
	m := newMsg(frameDesc)
	m.set(1, protoreflect.ValueOfUint32(uint32(f.Type)))
	m.set(2, protoreflect.ValueOfUint64(f.ID))
	m.setString(3, f.Code)
	m.setString(4, f.Player)
	m.setString(5, f.Name)
	m.setString(6, f.Seat)
	m.setString(7, f.Key)
	if len(f.Value) > 0 {
		m.set(8, protoreflect.ValueOfBytes(f.Value))
	}
	m.setStamp(9, f.Stamp)
	m.set(10, protoreflect.ValueOfBool(f.Ready))
	if len(f.Members) > 0 {
		list := m.Mutable(m.fd(11)).List()
		for _, mb := range f.Members {
			list.Append(protoreflect.ValueOfMessage(memberMsg(mb).Message))
		}
	}
	m.setString(12, f.Error)

	b, err := m.marshal()
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s frame: %w", f.Type, err)
	}
	return b, nil
}

// UnmarshalFrame decodes a frame written by MarshalFrame. Unknown fields are skipped.
func UnmarshalFrame(b []byte) (Frame, error) {
	m, err := unmarshalMsg(frameDesc, b)
	if err != nil {
		return Frame{}, err
	}

	f := Frame{
		Type:   FrameType(m.get(1).Uint()),
		ID:     m.get(2).Uint(),
		Code:   m.get(3).String(),
		Player: m.get(4).String(),
		Name:   m.get(5).String(),
		Seat:   m.get(6).String(),
		Key:    m.get(7).String(),
		Stamp:  m.stamp(9),
		Ready:  m.get(10).Bool(),
		Error:  m.get(12).String(),
	}
	if m.has(8) {
		f.Value = append([]byte{}, m.get(8).Bytes()...)
	}
	list := m.get(11).List()
	for i := 0; i < list.Len(); i++ {
		f.Members = append(f.Members, memberOf(msg{list.Get(i).Message()}))
	}

	if f.Type == FrameUnknown {
		return Frame{}, fmt.Errorf("%w: frame without type", ErrMalformed)
	}
	return f, nil
}

func memberMsg(mb Member) msg {
	m := newMsg(memberDesc)
	m.setString(1, mb.ID)
	m.setString(2, mb.Name)
	m.setString(3, mb.Seat)
	m.set(4, protoreflect.ValueOfBool(mb.Ready))
	m.set(5, protoreflect.ValueOfBool(mb.Connected))
	m.setStamp(6, mb.Heartbeat)
	return m
}

func memberOf(m msg) Member {
	return Member{
		ID:        m.get(1).String(),
		Name:      m.get(2).String(),
		Seat:      m.get(3).String(),
		Ready:     m.get(4).Bool(),
		Connected: m.get(5).Bool(),
		Heartbeat: m.stamp(6),
	}
}

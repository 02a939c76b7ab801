package wire

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/mo-shahab/pong3d/server/geom"
)

// schema is the protobuf file every payload and frame is encoded against:
//
//	syntax = "proto3";
//	package pong3d;
//
//	message Vec3 { double x = 1; double y = 2; double z = 3; }
//	message Snapshot {
//	  Vec3 ball_position = 1; Vec3 ball_velocity = 2;
//	  Vec3 green = 3; Vec3 red = 4;
//	  int32 green_score = 5; int32 red_score = 6;
//	  sint64 stamp_us = 7; int32 win_score = 8;
//	}
//	message InputSample {
//	  string seat = 1; uint32 intents = 2; Vec3 position = 3; sint64 stamp_us = 4;
//	}
//	message Member {
//	  string id = 1; string name = 2; string seat = 3;
//	  bool ready = 4; bool connected = 5; sint64 heartbeat_us = 6;
//	}
//	message Frame {
//	  uint32 type = 1; uint64 id = 2; string code = 3; string player = 4;
//	  string name = 5; string seat = 6; string key = 7; bytes value = 8;
//	  sint64 stamp_us = 9; bool ready = 10; repeated Member members = 11;
//	  string error = 12;
//	}
var schema = mustSchema()

var (
	vec3Desc     = schema.Messages().ByName("Vec3")
	snapshotDesc = schema.Messages().ByName("Snapshot")
	inputDesc    = schema.Messages().ByName("InputSample")
	memberDesc   = schema.Messages().ByName("Member")
	frameDesc    = schema.Messages().ByName("Frame")
)

type fieldType = descriptorpb.FieldDescriptorProto_Type

const (
	tDouble  = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tUint32  = descriptorpb.FieldDescriptorProto_TYPE_UINT32
	tUint64  = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	tSint64  = descriptorpb.FieldDescriptorProto_TYPE_SINT64
	tBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func mustSchema() protoreflect.FileDescriptor {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("pong3d/wire.proto"),
		Package: proto.String("pong3d"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("Vec3",
				field("x", 1, tDouble),
				field("y", 2, tDouble),
				field("z", 3, tDouble),
			),
			message("Snapshot",
				messageField("ball_position", 1, "Vec3"),
				messageField("ball_velocity", 2, "Vec3"),
				messageField("green", 3, "Vec3"),
				messageField("red", 4, "Vec3"),
				field("green_score", 5, tInt32),
				field("red_score", 6, tInt32),
				field("stamp_us", 7, tSint64),
				field("win_score", 8, tInt32),
			),
			message("InputSample",
				field("seat", 1, tString),
				field("intents", 2, tUint32),
				messageField("position", 3, "Vec3"),
				field("stamp_us", 4, tSint64),
			),
			message("Member",
				field("id", 1, tString),
				field("name", 2, tString),
				field("seat", 3, tString),
				field("ready", 4, tBool),
				field("connected", 5, tBool),
				field("heartbeat_us", 6, tSint64),
			),
			message("Frame",
				field("type", 1, tUint32),
				field("id", 2, tUint64),
				field("code", 3, tString),
				field("player", 4, tString),
				field("name", 5, tString),
				field("seat", 6, tString),
				field("key", 7, tString),
				field("value", 8, tBytes),
				field("stamp_us", 9, tSint64),
				field("ready", 10, tBool),
				repeated(messageField("members", 11, "Member")),
				field("error", 12, tString),
			),
		},
	}

	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		panic(fmt.Sprintf("wire: bad schema: %v", err))
	}
	return fd
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func field(name string, num int32, typ fieldType) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func messageField(name string, num int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := field(name, num, tMessage)
	f.TypeName = proto.String(".pong3d." + typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

// msg is a dynamic message of the schema with field access by number
type msg struct {
	protoreflect.Message
}

func newMsg(d protoreflect.MessageDescriptor) msg {
	return msg{dynamicpb.NewMessage(d)}
}

func (m msg) fd(num protoreflect.FieldNumber) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByNumber(num)
}

func (m msg) has(num protoreflect.FieldNumber) bool {
	return m.Has(m.fd(num))
}

func (m msg) get(num protoreflect.FieldNumber) protoreflect.Value {
	return m.Get(m.fd(num))
}

func (m msg) set(num protoreflect.FieldNumber, v protoreflect.Value) {
	m.Set(m.fd(num), v)
}

func (m msg) setString(num protoreflect.FieldNumber, s string) {
	if s != "" {
		m.set(num, protoreflect.ValueOfString(s))
	}
}

// stamps travel as unix microseconds
func (m msg) setStamp(num protoreflect.FieldNumber, t time.Time) {
	if us := toMicros(t); us != 0 {
		m.set(num, protoreflect.ValueOfInt64(us))
	}
}

func (m msg) stamp(num protoreflect.FieldNumber) time.Time {
	return fromMicros(m.get(num).Int())
}

func (m msg) setVec3(num protoreflect.FieldNumber, v geom.Vec3) {
	inner := newMsg(vec3Desc)
	inner.set(1, protoreflect.ValueOfFloat64(v.X))
	inner.set(2, protoreflect.ValueOfFloat64(v.Y))
	inner.set(3, protoreflect.ValueOfFloat64(v.Z))
	m.set(num, protoreflect.ValueOfMessage(inner.Message))
}

func (m msg) vec3(num protoreflect.FieldNumber) geom.Vec3 {
	inner := msg{m.get(num).Message()}
	return geom.V(inner.get(1).Float(), inner.get(2).Float(), inner.get(3).Float())
}

func (m msg) marshal() ([]byte, error) {
	return proto.Marshal(m.Interface())
}

// unmarshalMsg parses b as a d message. Unknown fields are kept and ignored.
func unmarshalMsg(d protoreflect.MessageDescriptor, b []byte) (msg, error) {
	m := newMsg(d)
	if err := proto.Unmarshal(b, m.Interface()); err != nil {
		return m, fmt.Errorf("%w: %s: %v", ErrMalformed, d.Name(), err)
	}
	return m, nil
}

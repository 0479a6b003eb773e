// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package udf

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// The tests in this file check the hand-written codec against the
// protobuf runtime. The agent.Request schema is declared below as a
// descriptor, covering the members the tests send, and messages are
// passed through dynamicpb.

type fieldType = descriptorpb.FieldDescriptorProto_Type

const (
	typeBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	typeInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	typeDouble = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	typeString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeBytes  = descriptorpb.FieldDescriptorProto_TYPE_BYTES
)

func scalarField(name string, number int32, kind fieldType) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   kind.Enum(),
	}
}

func typedField(name string, number int32, kind fieldType, typeName string) *descriptorpb.FieldDescriptorProto {
	field := scalarField(name, number, kind)
	field.TypeName = proto.String(typeName)
	return field
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return typedField(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, typeName)
}

func repeatedField(field *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	field.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return field
}

func oneofField(field *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	field.OneofIndex = proto.Int32(0)
	return field
}

// addMapField declares map<string, value> name = number on message,
// with the nested entry type protoc would generate.
func addMapField(message *descriptorpb.DescriptorProto, name string, number int32, value fieldType) {
	entry := strings.ToUpper(name[:1]) + name[1:] + "Entry"
	message.NestedType = append(message.NestedType, &descriptorpb.DescriptorProto{
		Name: proto.String(entry),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField("key", 1, typeString),
			scalarField("value", 2, value),
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	})
	message.Field = append(message.Field,
		repeatedField(messageField(name, number, ".agent."+message.GetName()+"."+entry)))
}

func requestDescriptor(t *testing.T) protoreflect.MessageDescriptor {
	t.Helper()

	point := &descriptorpb.DescriptorProto{
		Name: proto.String("Point"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField("time", 1, typeInt64),
			scalarField("name", 2, typeString),
			scalarField("database", 3, typeString),
			scalarField("retentionPolicy", 4, typeString),
			scalarField("group", 5, typeString),
			repeatedField(scalarField("dimensions", 6, typeString)),
		},
	}
	addMapField(point, "tags", 7, typeString)
	addMapField(point, "fieldsDouble", 8, typeDouble)
	addMapField(point, "fieldsInt", 9, typeInt64)
	addMapField(point, "fieldsString", 10, typeString)
	point.Field = append(point.Field, scalarField("byName", 11, typeBool))
	addMapField(point, "fieldsBool", 12, typeBool)

	valueOneof := []*descriptorpb.OneofDescriptorProto{{Name: proto.String("value")}}
	messageOneof := []*descriptorpb.OneofDescriptorProto{{Name: proto.String("message")}}

	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("udf.proto"),
		Package: proto.String("agent"),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("ValueType"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("BOOL"), Number: proto.Int32(0)},
				{Name: proto.String("INT"), Number: proto.Int32(1)},
				{Name: proto.String("DOUBLE"), Number: proto.Int32(2)},
				{Name: proto.String("STRING"), Number: proto.Int32(3)},
				{Name: proto.String("DURATION"), Number: proto.Int32(4)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("InfoRequest")},
			{
				Name:  proto.String("InitRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{repeatedField(messageField("options", 1, ".agent.Option"))},
			},
			{
				Name: proto.String("Option"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("name", 1, typeString),
					repeatedField(messageField("values", 2, ".agent.OptionValue")),
				},
			},
			{
				Name: proto.String("OptionValue"),
				Field: []*descriptorpb.FieldDescriptorProto{
					typedField("type", 1, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".agent.ValueType"),
					oneofField(scalarField("boolValue", 2, typeBool)),
					oneofField(scalarField("intValue", 3, typeInt64)),
					oneofField(scalarField("doubleValue", 4, typeDouble)),
					oneofField(scalarField("stringValue", 5, typeString)),
					oneofField(scalarField("durationValue", 6, typeInt64)),
				},
				OneofDecl: valueOneof,
			},
			{
				Name:  proto.String("KeepaliveRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{scalarField("time", 1, typeInt64)},
			},
			{Name: proto.String("SnapshotRequest")},
			{
				Name:  proto.String("RestoreRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{scalarField("snapshot", 1, typeBytes)},
			},
			point,
			{
				Name: proto.String("Request"),
				Field: []*descriptorpb.FieldDescriptorProto{
					oneofField(messageField("info", 1, ".agent.InfoRequest")),
					oneofField(messageField("init", 2, ".agent.InitRequest")),
					oneofField(messageField("keepalive", 3, ".agent.KeepaliveRequest")),
					oneofField(messageField("snapshot", 4, ".agent.SnapshotRequest")),
					oneofField(messageField("restore", 5, ".agent.RestoreRequest")),
					oneofField(messageField("point", 17, ".agent.Point")),
				},
				OneofDecl: messageOneof,
			},
		},
	}

	descriptor, err := protodesc.NewFile(file, nil)
	if err != nil {
		t.Fatalf("building agent schema: %v", err)
	}
	return descriptor.Messages().ByName("Request")
}

// viaRuntime decodes data with the protobuf runtime and encodes it
// again with deterministic map ordering.
func viaRuntime(t *testing.T, descriptor protoreflect.MessageDescriptor, data []byte) []byte {
	t.Helper()
	message := dynamicpb.NewMessage(descriptor)
	if err := proto.Unmarshal(data, message); err != nil {
		t.Fatalf("proto.Unmarshal: %v", err)
	}
	encoded, err := proto.MarshalOptions{Deterministic: true}.Marshal(message)
	if err != nil {
		t.Fatalf("proto.Marshal: %v", err)
	}
	return encoded
}

func TestRequestEncodingMatchesProtoRuntime(t *testing.T) {
	t.Parallel()
	descriptor := requestDescriptor(t)

	tests := []struct {
		name    string
		request *Request
	}{
		{name: "info", request: &Request{Info: &InfoRequest{}}},
		{name: "snapshot", request: &Request{Snapshot: &SnapshotRequest{}}},
		{name: "keepalive", request: &Request{Keepalive: &KeepaliveRequest{Time: 1700000000}}},
		{name: "restore", request: &Request{Restore: &RestoreRequest{Snapshot: []byte{0, 1, 2}}}},
		{name: "point", request: &Request{Point: samplePoint()}},
		{name: "empty point", request: &Request{Point: &Point{}}},
		{name: "init", request: &Request{Init: &InitRequest{Options: []Option{
			{Name: "field", Values: []OptionValue{StringValue("x"), DoubleValue(3)}},
			{Name: "flags", Values: []OptionValue{BoolValue(false), IntValue(-7), DurationValue(5e9)}},
		}}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			ours, err := MarshalRequest(test.request)
			if err != nil {
				t.Fatalf("MarshalRequest: %v", err)
			}
			runtime := viaRuntime(t, descriptor, ours)
			if !bytes.Equal(ours, runtime) {
				t.Errorf("encoding differs from protobuf runtime:\n ours    % x\n runtime % x", ours, runtime)
			}

			decoded, err := UnmarshalRequest(runtime)
			if err != nil {
				t.Fatalf("UnmarshalRequest: %v", err)
			}
			if !reflect.DeepEqual(decoded, test.request) {
				t.Errorf("decoded: got %+v, want %+v", decoded, test.request)
			}
		})
	}
}

func TestRepeatedMemberMergeMatchesProtoRuntime(t *testing.T) {
	t.Parallel()
	descriptor := requestDescriptor(t)

	var data []byte
	data, _ = AppendRequest(data, &Request{Point: &Point{
		Name:         "a",
		Tags:         map[string]string{"host": "h1"},
		FieldsDouble: map[string]float64{"x": 1},
	}})
	data, _ = AppendRequest(data, &Request{Point: &Point{
		Time:         9,
		FieldsDouble: map[string]float64{"x": 2, "y": 3},
	}})
	data, _ = AppendRequest(data, &Request{Init: &InitRequest{Options: []Option{{Name: "first"}}}})
	data, _ = AppendRequest(data, &Request{Init: &InitRequest{Options: []Option{{Name: "second"}}}})

	ours, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	runtime, err := UnmarshalRequest(viaRuntime(t, descriptor, data))
	if err != nil {
		t.Fatalf("UnmarshalRequest of runtime encoding: %v", err)
	}
	if !reflect.DeepEqual(ours, runtime) {
		t.Errorf("merge differs from protobuf runtime:\n ours    %+v\n runtime %+v", ours.Init, runtime.Init)
	}
	if ours.Init == nil || len(ours.Init.Options) != 2 {
		t.Errorf("init options: got %+v, want first and second", ours.Init)
	}

	var points []byte
	points, _ = AppendRequest(points, &Request{Point: &Point{Name: "a"}})
	points, _ = AppendRequest(points, &Request{Point: &Point{Time: 9}})
	merged, err := UnmarshalRequest(points)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	fromRuntime, err := UnmarshalRequest(viaRuntime(t, descriptor, points))
	if err != nil {
		t.Fatalf("UnmarshalRequest of runtime encoding: %v", err)
	}
	if !reflect.DeepEqual(merged, fromRuntime) || merged.Point.Name != "a" || merged.Point.Time != 9 {
		t.Errorf("merged point: ours %+v, runtime %+v", merged.Point, fromRuntime.Point)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package udf

import (
	"errors"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the Request and Response oneofs. Begin, Point, and
// End are numbered from 16 so that they encode with a two-byte tag,
// leaving the single-byte range for control messages.
const (
	fieldInfo      protowire.Number = 1
	fieldInit      protowire.Number = 2
	fieldKeepalive protowire.Number = 3
	fieldSnapshot  protowire.Number = 4
	fieldRestore   protowire.Number = 5
	fieldError     protowire.Number = 6
	fieldBegin     protowire.Number = 16
	fieldPoint     protowire.Number = 17
	fieldEnd       protowire.Number = 18
)

// errMultipleMembers is returned when a Request or Response has more
// than one oneof member set.
var errMultipleMembers = errors.New("udf: more than one message member set")

// AppendRequest appends the proto encoding of request to dst.
func AppendRequest(dst []byte, request *Request) ([]byte, error) {
	if request.members() > 1 {
		return dst, errMultipleMembers
	}
	switch {
	case request.Info != nil:
		dst = appendMessage(dst, fieldInfo, nil)
	case request.Init != nil:
		dst = appendMessage(dst, fieldInit, request.Init.appendTo(nil))
	case request.Keepalive != nil:
		dst = appendMessage(dst, fieldKeepalive, appendInt64(nil, 1, request.Keepalive.Time))
	case request.Snapshot != nil:
		dst = appendMessage(dst, fieldSnapshot, nil)
	case request.Restore != nil:
		dst = appendMessage(dst, fieldRestore, appendBytesField(nil, 1, request.Restore.Snapshot))
	case request.Begin != nil:
		dst = appendMessage(dst, fieldBegin, request.Begin.appendTo(nil))
	case request.Point != nil:
		dst = appendMessage(dst, fieldPoint, request.Point.appendTo(nil))
	case request.End != nil:
		dst = appendMessage(dst, fieldEnd, request.End.appendTo(nil))
	}
	return dst, nil
}

// AppendResponse appends the proto encoding of response to dst.
func AppendResponse(dst []byte, response *Response) ([]byte, error) {
	if response.members() > 1 {
		return dst, errMultipleMembers
	}
	switch {
	case response.Info != nil:
		dst = appendMessage(dst, fieldInfo, response.Info.appendTo(nil))
	case response.Init != nil:
		dst = appendMessage(dst, fieldInit, appendResult(nil, response.Init.Success, response.Init.Error))
	case response.Keepalive != nil:
		dst = appendMessage(dst, fieldKeepalive, appendInt64(nil, 1, response.Keepalive.Time))
	case response.Snapshot != nil:
		dst = appendMessage(dst, fieldSnapshot, appendBytesField(nil, 1, response.Snapshot.Snapshot))
	case response.Restore != nil:
		dst = appendMessage(dst, fieldRestore, appendResult(nil, response.Restore.Success, response.Restore.Error))
	case response.Error != nil:
		dst = appendMessage(dst, fieldError, appendString(nil, 1, response.Error.Error))
	case response.Begin != nil:
		dst = appendMessage(dst, fieldBegin, response.Begin.appendTo(nil))
	case response.Point != nil:
		dst = appendMessage(dst, fieldPoint, response.Point.appendTo(nil))
	case response.End != nil:
		dst = appendMessage(dst, fieldEnd, response.End.appendTo(nil))
	}
	return dst, nil
}

// MarshalRequest returns the proto encoding of request.
func MarshalRequest(request *Request) ([]byte, error) {
	return AppendRequest(nil, request)
}

// MarshalResponse returns the proto encoding of response.
func MarshalResponse(response *Response) ([]byte, error) {
	return AppendResponse(nil, response)
}

func (info *InfoResponse) appendTo(dst []byte) []byte {
	dst = appendEnum(dst, 1, int32(info.Wants))
	dst = appendEnum(dst, 2, int32(info.Provides))
	for _, name := range sortedKeys(info.Options) {
		var entry []byte
		entry = appendMapKey(entry, name)
		entry = appendMessage(entry, 2, info.Options[name].appendTo(nil))
		dst = appendMessage(dst, 3, entry)
	}
	return dst
}

func (option OptionInfo) appendTo(dst []byte) []byte {
	if len(option.ValueTypes) == 0 {
		return dst
	}
	var packed []byte
	for _, valueType := range option.ValueTypes {
		packed = protowire.AppendVarint(packed, uint64(valueType))
	}
	return appendBytesField(dst, 1, packed)
}

func (init *InitRequest) appendTo(dst []byte) []byte {
	for _, option := range init.Options {
		dst = appendMessage(dst, 1, option.appendTo(nil))
	}
	return dst
}

func (option Option) appendTo(dst []byte) []byte {
	dst = appendString(dst, 1, option.Name)
	for _, value := range option.Values {
		dst = appendMessage(dst, 2, value.appendTo(nil))
	}
	return dst
}

// appendTo always writes the member selected by Type, even when it
// holds the zero value: oneof members carry presence.
func (value OptionValue) appendTo(dst []byte) []byte {
	dst = appendEnum(dst, 1, int32(value.Type))
	switch value.Type {
	case ValueBool:
		dst = protowire.AppendTag(dst, 2, protowire.VarintType)
		dst = protowire.AppendVarint(dst, protowire.EncodeBool(value.BoolValue))
	case ValueInt:
		dst = protowire.AppendTag(dst, 3, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(value.IntValue))
	case ValueDouble:
		dst = protowire.AppendTag(dst, 4, protowire.Fixed64Type)
		dst = protowire.AppendFixed64(dst, math.Float64bits(value.DoubleValue))
	case ValueString:
		dst = protowire.AppendTag(dst, 5, protowire.BytesType)
		dst = protowire.AppendString(dst, value.StringValue)
	case ValueDuration:
		dst = protowire.AppendTag(dst, 6, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(value.DurationValue))
	}
	return dst
}

func (begin *BeginBatch) appendTo(dst []byte) []byte {
	dst = appendString(dst, 1, begin.Name)
	dst = appendString(dst, 2, begin.Group)
	dst = appendStringMap(dst, 3, begin.Tags)
	dst = appendInt64(dst, 4, begin.Size)
	dst = appendBool(dst, 5, begin.ByName)
	return dst
}

func (end *EndBatch) appendTo(dst []byte) []byte {
	dst = appendString(dst, 1, end.Name)
	dst = appendString(dst, 2, end.Group)
	dst = appendInt64(dst, 3, end.Tmax)
	dst = appendStringMap(dst, 4, end.Tags)
	dst = appendBool(dst, 5, end.ByName)
	return dst
}

func (point *Point) appendTo(dst []byte) []byte {
	dst = appendInt64(dst, 1, point.Time)
	dst = appendString(dst, 2, point.Name)
	dst = appendString(dst, 3, point.Database)
	dst = appendString(dst, 4, point.RetentionPolicy)
	dst = appendString(dst, 5, point.Group)
	for _, dimension := range point.Dimensions {
		dst = protowire.AppendTag(dst, 6, protowire.BytesType)
		dst = protowire.AppendString(dst, dimension)
	}
	dst = appendStringMap(dst, 7, point.Tags)
	for _, key := range sortedKeys(point.FieldsDouble) {
		entry := appendMapKey(nil, key)
		entry = protowire.AppendTag(entry, 2, protowire.Fixed64Type)
		entry = protowire.AppendFixed64(entry, math.Float64bits(point.FieldsDouble[key]))
		dst = appendMessage(dst, 8, entry)
	}
	for _, key := range sortedKeys(point.FieldsInt) {
		entry := appendMapKey(nil, key)
		entry = protowire.AppendTag(entry, 2, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(point.FieldsInt[key]))
		dst = appendMessage(dst, 9, entry)
	}
	dst = appendStringMap(dst, 10, point.FieldsString)
	dst = appendBool(dst, 11, point.ByName)
	for _, key := range sortedKeys(point.FieldsBool) {
		entry := appendMapKey(nil, key)
		entry = protowire.AppendTag(entry, 2, protowire.VarintType)
		entry = protowire.AppendVarint(entry, protowire.EncodeBool(point.FieldsBool[key]))
		dst = appendMessage(dst, 12, entry)
	}
	return dst
}

// appendMessage writes a length-delimited embedded message. A nil body
// still produces the tag and a zero length, which is how an empty
// oneof member (InfoRequest, SnapshotRequest) is marked present.
func appendMessage(dst []byte, number protowire.Number, body []byte) []byte {
	dst = protowire.AppendTag(dst, number, protowire.BytesType)
	return protowire.AppendBytes(dst, body)
}

func appendResult(dst []byte, success bool, message string) []byte {
	dst = appendBool(dst, 1, success)
	return appendString(dst, 2, message)
}

// The scalar helpers below skip zero values, matching proto3 implicit
// presence.

func appendString(dst []byte, number protowire.Number, value string) []byte {
	if value == "" {
		return dst
	}
	dst = protowire.AppendTag(dst, number, protowire.BytesType)
	return protowire.AppendString(dst, value)
}

func appendBytesField(dst []byte, number protowire.Number, value []byte) []byte {
	if len(value) == 0 {
		return dst
	}
	dst = protowire.AppendTag(dst, number, protowire.BytesType)
	return protowire.AppendBytes(dst, value)
}

func appendInt64(dst []byte, number protowire.Number, value int64) []byte {
	if value == 0 {
		return dst
	}
	dst = protowire.AppendTag(dst, number, protowire.VarintType)
	return protowire.AppendVarint(dst, uint64(value))
}

func appendEnum(dst []byte, number protowire.Number, value int32) []byte {
	if value == 0 {
		return dst
	}
	dst = protowire.AppendTag(dst, number, protowire.VarintType)
	return protowire.AppendVarint(dst, uint64(int64(value)))
}

func appendBool(dst []byte, number protowire.Number, value bool) []byte {
	if !value {
		return dst
	}
	dst = protowire.AppendTag(dst, number, protowire.VarintType)
	return protowire.AppendVarint(dst, 1)
}

// appendMapKey writes field 1 of a map entry. Map entry keys and
// values are always written, including zero values.
func appendMapKey(dst []byte, key string) []byte {
	dst = protowire.AppendTag(dst, 1, protowire.BytesType)
	return protowire.AppendString(dst, key)
}

func appendStringMap(dst []byte, number protowire.Number, values map[string]string) []byte {
	for _, key := range sortedKeys(values) {
		entry := appendMapKey(nil, key)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendString(entry, values[key])
		dst = appendMessage(dst, number, entry)
	}
	return dst
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

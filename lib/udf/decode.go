// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package udf

import (
	"bytes"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// UnmarshalRequest decodes a Request from its proto encoding. The
// returned Request does not alias data, so callers may reuse data
// for the next frame.
func UnmarshalRequest(data []byte) (*Request, error) {
	number, body, err := oneofMember(data, func(number protowire.Number) bool {
		return (number >= fieldInfo && number <= fieldRestore) || (number >= fieldBegin && number <= fieldEnd)
	})
	if err != nil {
		return nil, fmt.Errorf("request field %d: %w", number, err)
	}
	request := &Request{}
	switch number {
	case fieldInfo:
		request.Info = &InfoRequest{}
	case fieldInit:
		request.Init, err = decodeInitRequest(body)
	case fieldKeepalive:
		var time int64
		time, err = decodeTime(body)
		request.Keepalive = &KeepaliveRequest{Time: time}
	case fieldSnapshot:
		request.Snapshot = &SnapshotRequest{}
	case fieldRestore:
		var snapshot []byte
		snapshot, err = decodeSnapshotBytes(body)
		request.Restore = &RestoreRequest{Snapshot: snapshot}
	case fieldBegin:
		request.Begin, err = decodeBeginBatch(body)
	case fieldPoint:
		request.Point, err = decodePoint(body)
	case fieldEnd:
		request.End, err = decodeEndBatch(body)
	}
	if err != nil {
		return nil, fmt.Errorf("request field %d: %w", number, err)
	}
	return request, nil
}

// UnmarshalResponse decodes a Response from its proto encoding.
func UnmarshalResponse(data []byte) (*Response, error) {
	number, body, err := oneofMember(data, func(number protowire.Number) bool {
		return (number >= fieldInfo && number <= fieldError) || (number >= fieldBegin && number <= fieldEnd)
	})
	if err != nil {
		return nil, fmt.Errorf("response field %d: %w", number, err)
	}
	response := &Response{}
	switch number {
	case fieldInfo:
		response.Info, err = decodeInfoResponse(body)
	case fieldInit:
		var success bool
		var message string
		success, message, err = decodeResult(body)
		response.Init = &InitResponse{Success: success, Error: message}
	case fieldKeepalive:
		var time int64
		time, err = decodeTime(body)
		response.Keepalive = &KeepaliveResponse{Time: time}
	case fieldSnapshot:
		var snapshot []byte
		snapshot, err = decodeSnapshotBytes(body)
		response.Snapshot = &SnapshotResponse{Snapshot: snapshot}
	case fieldRestore:
		var success bool
		var message string
		success, message, err = decodeResult(body)
		response.Restore = &RestoreResponse{Success: success, Error: message}
	case fieldError:
		var message string
		message, err = decodeErrorMessage(body)
		response.Error = &ErrorResponse{Error: message}
	case fieldBegin:
		response.Begin, err = decodeBeginBatch(body)
	case fieldPoint:
		response.Point, err = decodePoint(body)
	case fieldEnd:
		response.End, err = decodeEndBatch(body)
	}
	if err != nil {
		return nil, fmt.Errorf("response field %d: %w", number, err)
	}
	return response, nil
}

// oneofMember scans a message made of one oneof of embedded messages
// and returns the member that is set, with its body. Fields for which
// known reports false are skipped. A later member replaces an earlier
// one. Repeated occurrences of the same member merge, which for an
// embedded message means decoding the concatenation of their bodies.
// A message with no member returns number 0.
func oneofMember(data []byte, known func(protowire.Number) bool) (protowire.Number, []byte, error) {
	var member protowire.Number
	var body []byte
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return member, nil, err
		}
		if !known(number) {
			if err := reader.skip(number, wireType); err != nil {
				return number, nil, err
			}
			continue
		}
		value, err := reader.bytes(wireType)
		if err != nil {
			return number, nil, err
		}
		if number != member {
			member, body = number, value
			continue
		}
		// Force a copy so data is never written through body.
		body = append(body[:len(body):len(body)], value...)
	}
	return member, body, nil
}

func decodeInfoResponse(data []byte) (*InfoResponse, error) {
	info := &InfoResponse{}
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return nil, err
		}
		switch number {
		case 1:
			value, err := reader.varint(wireType)
			if err != nil {
				return nil, err
			}
			info.Wants = EdgeType(int32(value))
		case 2:
			value, err := reader.varint(wireType)
			if err != nil {
				return nil, err
			}
			info.Provides = EdgeType(int32(value))
		case 3:
			entry, err := reader.bytes(wireType)
			if err != nil {
				return nil, err
			}
			name, option, err := decodeOptionInfoEntry(entry)
			if err != nil {
				return nil, fmt.Errorf("options: %w", err)
			}
			if info.Options == nil {
				info.Options = make(map[string]OptionInfo)
			}
			info.Options[name] = option
		default:
			if err := reader.skip(number, wireType); err != nil {
				return nil, err
			}
		}
	}
	return info, nil
}

func decodeOptionInfoEntry(data []byte) (string, OptionInfo, error) {
	var name string
	var option OptionInfo
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return "", OptionInfo{}, err
		}
		switch number {
		case 1:
			name, err = reader.string(wireType)
		case 2:
			var body []byte
			body, err = reader.bytes(wireType)
			if err == nil {
				option, err = decodeOptionInfo(body)
			}
		default:
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return "", OptionInfo{}, err
		}
	}
	return name, option, nil
}

// decodeOptionInfo accepts valueTypes both packed (the proto3 default)
// and unpacked, as proto3 parsers must.
func decodeOptionInfo(data []byte) (OptionInfo, error) {
	var option OptionInfo
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return OptionInfo{}, err
		}
		if number != 1 {
			if err := reader.skip(number, wireType); err != nil {
				return OptionInfo{}, err
			}
			continue
		}
		if wireType == protowire.VarintType {
			value, err := reader.varint(wireType)
			if err != nil {
				return OptionInfo{}, err
			}
			option.ValueTypes = append(option.ValueTypes, ValueType(int32(value)))
			continue
		}
		packed, err := reader.bytes(wireType)
		if err != nil {
			return OptionInfo{}, err
		}
		for len(packed) > 0 {
			value, length := protowire.ConsumeVarint(packed)
			if length < 0 {
				return OptionInfo{}, protowire.ParseError(length)
			}
			option.ValueTypes = append(option.ValueTypes, ValueType(int32(value)))
			packed = packed[length:]
		}
	}
	return option, nil
}

func decodeInitRequest(data []byte) (*InitRequest, error) {
	init := &InitRequest{}
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return nil, err
		}
		if number != 1 {
			if err := reader.skip(number, wireType); err != nil {
				return nil, err
			}
			continue
		}
		body, err := reader.bytes(wireType)
		if err != nil {
			return nil, err
		}
		option, err := decodeOption(body)
		if err != nil {
			return nil, fmt.Errorf("option %d: %w", len(init.Options), err)
		}
		init.Options = append(init.Options, option)
	}
	return init, nil
}

func decodeOption(data []byte) (Option, error) {
	var option Option
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return Option{}, err
		}
		switch number {
		case 1:
			option.Name, err = reader.string(wireType)
		case 2:
			var body []byte
			body, err = reader.bytes(wireType)
			if err == nil {
				var value OptionValue
				value, err = decodeOptionValue(body)
				option.Values = append(option.Values, value)
			}
		default:
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return Option{}, err
		}
	}
	return option, nil
}

// decodeOptionValue sets Type from whichever value member is present,
// so a value whose type field was omitted (BOOL is the zero enum)
// still decodes consistently.
func decodeOptionValue(data []byte) (OptionValue, error) {
	var value OptionValue
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return OptionValue{}, err
		}
		var raw uint64
		switch number {
		case 1:
			raw, err = reader.varint(wireType)
			value.Type = ValueType(int32(raw))
		case 2:
			raw, err = reader.varint(wireType)
			value.Type, value.BoolValue = ValueBool, protowire.DecodeBool(raw)
		case 3:
			raw, err = reader.varint(wireType)
			value.Type, value.IntValue = ValueInt, int64(raw)
		case 4:
			raw, err = reader.fixed64(wireType)
			value.Type, value.DoubleValue = ValueDouble, math.Float64frombits(raw)
		case 5:
			value.Type = ValueString
			value.StringValue, err = reader.string(wireType)
		case 6:
			raw, err = reader.varint(wireType)
			value.Type, value.DurationValue = ValueDuration, int64(raw)
		default:
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return OptionValue{}, err
		}
	}
	return value, nil
}

func decodeBeginBatch(data []byte) (*BeginBatch, error) {
	begin := &BeginBatch{}
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return nil, err
		}
		var raw uint64
		switch number {
		case 1:
			begin.Name, err = reader.string(wireType)
		case 2:
			begin.Group, err = reader.string(wireType)
		case 3:
			begin.Tags, err = reader.stringMapEntry(wireType, begin.Tags)
		case 4:
			raw, err = reader.varint(wireType)
			begin.Size = int64(raw)
		case 5:
			raw, err = reader.varint(wireType)
			begin.ByName = protowire.DecodeBool(raw)
		default:
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return nil, err
		}
	}
	return begin, nil
}

func decodeEndBatch(data []byte) (*EndBatch, error) {
	end := &EndBatch{}
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return nil, err
		}
		var raw uint64
		switch number {
		case 1:
			end.Name, err = reader.string(wireType)
		case 2:
			end.Group, err = reader.string(wireType)
		case 3:
			raw, err = reader.varint(wireType)
			end.Tmax = int64(raw)
		case 4:
			end.Tags, err = reader.stringMapEntry(wireType, end.Tags)
		case 5:
			raw, err = reader.varint(wireType)
			end.ByName = protowire.DecodeBool(raw)
		default:
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return nil, err
		}
	}
	return end, nil
}

func decodePoint(data []byte) (*Point, error) {
	point := &Point{}
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return nil, err
		}
		var raw uint64
		switch number {
		case 1:
			raw, err = reader.varint(wireType)
			point.Time = int64(raw)
		case 2:
			point.Name, err = reader.string(wireType)
		case 3:
			point.Database, err = reader.string(wireType)
		case 4:
			point.RetentionPolicy, err = reader.string(wireType)
		case 5:
			point.Group, err = reader.string(wireType)
		case 6:
			var dimension string
			dimension, err = reader.string(wireType)
			point.Dimensions = append(point.Dimensions, dimension)
		case 7:
			point.Tags, err = reader.stringMapEntry(wireType, point.Tags)
		case 8:
			var key string
			key, raw, err = reader.scalarMapEntry(wireType, protowire.Fixed64Type)
			if err == nil {
				if point.FieldsDouble == nil {
					point.FieldsDouble = make(map[string]float64)
				}
				point.FieldsDouble[key] = math.Float64frombits(raw)
			}
		case 9:
			var key string
			key, raw, err = reader.scalarMapEntry(wireType, protowire.VarintType)
			if err == nil {
				if point.FieldsInt == nil {
					point.FieldsInt = make(map[string]int64)
				}
				point.FieldsInt[key] = int64(raw)
			}
		case 10:
			point.FieldsString, err = reader.stringMapEntry(wireType, point.FieldsString)
		case 11:
			raw, err = reader.varint(wireType)
			point.ByName = protowire.DecodeBool(raw)
		case 12:
			var key string
			key, raw, err = reader.scalarMapEntry(wireType, protowire.VarintType)
			if err == nil {
				if point.FieldsBool == nil {
					point.FieldsBool = make(map[string]bool)
				}
				point.FieldsBool[key] = protowire.DecodeBool(raw)
			}
		default:
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", number, err)
		}
	}
	return point, nil
}

func decodeResult(data []byte) (bool, string, error) {
	var success bool
	var message string
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return false, "", err
		}
		switch number {
		case 1:
			var raw uint64
			raw, err = reader.varint(wireType)
			success = protowire.DecodeBool(raw)
		case 2:
			message, err = reader.string(wireType)
		default:
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return false, "", err
		}
	}
	return success, message, nil
}

func decodeTime(data []byte) (int64, error) {
	var time int64
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return 0, err
		}
		if number == 1 {
			var raw uint64
			raw, err = reader.varint(wireType)
			time = int64(raw)
		} else {
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return 0, err
		}
	}
	return time, nil
}

func decodeSnapshotBytes(data []byte) ([]byte, error) {
	var snapshot []byte
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return nil, err
		}
		if number == 1 {
			var body []byte
			body, err = reader.bytes(wireType)
			snapshot = bytes.Clone(body)
		} else {
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return nil, err
		}
	}
	return snapshot, nil
}

func decodeErrorMessage(data []byte) (string, error) {
	var message string
	reader := fieldReader{data: data}
	for !reader.done() {
		number, wireType, err := reader.next()
		if err != nil {
			return "", err
		}
		if number == 1 {
			message, err = reader.string(wireType)
		} else {
			err = reader.skip(number, wireType)
		}
		if err != nil {
			return "", err
		}
	}
	return message, nil
}

// fieldReader walks the fields of one encoded message. Each accessor
// checks the wire type before consuming so that a field with the
// expected number but the wrong type is an error rather than a
// misparse.
type fieldReader struct {
	data []byte
}

func (reader *fieldReader) done() bool {
	return len(reader.data) == 0
}

func (reader *fieldReader) next() (protowire.Number, protowire.Type, error) {
	number, wireType, length := protowire.ConsumeTag(reader.data)
	if length < 0 {
		return 0, 0, protowire.ParseError(length)
	}
	reader.data = reader.data[length:]
	return number, wireType, nil
}

func (reader *fieldReader) expect(actual, want protowire.Type) error {
	if actual != want {
		return fmt.Errorf("wire type %d, want %d", actual, want)
	}
	return nil
}

func (reader *fieldReader) varint(wireType protowire.Type) (uint64, error) {
	if err := reader.expect(wireType, protowire.VarintType); err != nil {
		return 0, err
	}
	value, length := protowire.ConsumeVarint(reader.data)
	if length < 0 {
		return 0, protowire.ParseError(length)
	}
	reader.data = reader.data[length:]
	return value, nil
}

func (reader *fieldReader) fixed64(wireType protowire.Type) (uint64, error) {
	if err := reader.expect(wireType, protowire.Fixed64Type); err != nil {
		return 0, err
	}
	value, length := protowire.ConsumeFixed64(reader.data)
	if length < 0 {
		return 0, protowire.ParseError(length)
	}
	reader.data = reader.data[length:]
	return value, nil
}

// bytes returns a slice aliasing the input. Callers that retain the
// bytes past the current decode must copy them.
func (reader *fieldReader) bytes(wireType protowire.Type) ([]byte, error) {
	if err := reader.expect(wireType, protowire.BytesType); err != nil {
		return nil, err
	}
	value, length := protowire.ConsumeBytes(reader.data)
	if length < 0 {
		return nil, protowire.ParseError(length)
	}
	reader.data = reader.data[length:]
	return value, nil
}

func (reader *fieldReader) string(wireType protowire.Type) (string, error) {
	value, err := reader.bytes(wireType)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (reader *fieldReader) skip(number protowire.Number, wireType protowire.Type) error {
	length := protowire.ConsumeFieldValue(number, wireType, reader.data)
	if length < 0 {
		return protowire.ParseError(length)
	}
	reader.data = reader.data[length:]
	return nil
}

// stringMapEntry decodes one map<string,string> entry and stores it
// in values, allocating the map on first use.
func (reader *fieldReader) stringMapEntry(wireType protowire.Type, values map[string]string) (map[string]string, error) {
	entry, err := reader.bytes(wireType)
	if err != nil {
		return values, err
	}
	var key, value string
	entryReader := fieldReader{data: entry}
	for !entryReader.done() {
		number, entryType, err := entryReader.next()
		if err != nil {
			return values, err
		}
		switch number {
		case 1:
			key, err = entryReader.string(entryType)
		case 2:
			value, err = entryReader.string(entryType)
		default:
			err = entryReader.skip(number, entryType)
		}
		if err != nil {
			return values, err
		}
	}
	if values == nil {
		values = make(map[string]string)
	}
	values[key] = value
	return values, nil
}

// scalarMapEntry decodes one map<string,scalar> entry whose value has
// the given wire type, returning the raw value bits.
func (reader *fieldReader) scalarMapEntry(wireType, valueType protowire.Type) (string, uint64, error) {
	entry, err := reader.bytes(wireType)
	if err != nil {
		return "", 0, err
	}
	var key string
	var raw uint64
	entryReader := fieldReader{data: entry}
	for !entryReader.done() {
		number, entryType, err := entryReader.next()
		if err != nil {
			return "", 0, err
		}
		switch {
		case number == 1:
			key, err = entryReader.string(entryType)
		case number == 2 && valueType == protowire.Fixed64Type:
			raw, err = entryReader.fixed64(entryType)
		case number == 2:
			raw, err = entryReader.varint(entryType)
		default:
			err = entryReader.skip(number, entryType)
		}
		if err != nil {
			return "", 0, err
		}
	}
	return key, raw, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package udf

import (
	"bytes"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func samplePoint() *Point {
	return &Point{
		Time:            1700000000000000000,
		Name:            "cpu",
		Database:        "telegraf",
		RetentionPolicy: "autogen",
		Group:           "host=a",
		Dimensions:      []string{"host"},
		Tags:            map[string]string{"host": "a", "region": "west"},
		FieldsDouble:    map[string]float64{"usage": 12.5, "zero": 0},
		FieldsInt:       map[string]int64{"count": -3},
		FieldsString:    map[string]string{"state": "ok"},
		FieldsBool:      map[string]bool{"up": true, "down": false},
		ByName:          true,
	}
}

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		request *Request
	}{
		{name: "empty", request: &Request{}},
		{name: "info", request: &Request{Info: &InfoRequest{}}},
		{name: "init without options", request: &Request{Init: &InitRequest{}}},
		{
			name: "init with every value type",
			request: &Request{Init: &InitRequest{Options: []Option{
				{Name: "field", Values: []OptionValue{StringValue("x"), DoubleValue(3.0)}},
				{Name: "flags", Values: []OptionValue{BoolValue(false), BoolValue(true)}},
				{Name: "limits", Values: []OptionValue{IntValue(-7), IntValue(0), DurationValue(5000000000)}},
				{Name: "empty"},
			}}},
		},
		{name: "keepalive", request: &Request{Keepalive: &KeepaliveRequest{Time: 42}}},
		{name: "keepalive zero time", request: &Request{Keepalive: &KeepaliveRequest{}}},
		{name: "snapshot", request: &Request{Snapshot: &SnapshotRequest{}}},
		{name: "restore", request: &Request{Restore: &RestoreRequest{Snapshot: []byte{0x00, 0x01, 0xff}}}},
		{name: "restore empty", request: &Request{Restore: &RestoreRequest{}}},
		{
			name: "begin",
			request: &Request{Begin: &BeginBatch{
				Name: "cpu", Group: "host=a", Tags: map[string]string{"host": "a"}, Size: 10, ByName: true,
			}},
		},
		{name: "point", request: &Request{Point: samplePoint()}},
		{name: "empty point", request: &Request{Point: &Point{}}},
		{
			name: "end",
			request: &Request{End: &EndBatch{
				Name: "cpu", Group: "host=a", Tmax: 99, Tags: map[string]string{"host": "a"},
			}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			encoded, err := MarshalRequest(test.request)
			if err != nil {
				t.Fatalf("MarshalRequest: %v", err)
			}
			decoded, err := UnmarshalRequest(encoded)
			if err != nil {
				t.Fatalf("UnmarshalRequest: %v", err)
			}
			if !reflect.DeepEqual(decoded, test.request) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", decoded, test.request)
			}
			if decoded.Kind() != test.request.Kind() {
				t.Errorf("kind: got %s, want %s", decoded.Kind(), test.request.Kind())
			}
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		response *Response
	}{
		{
			name: "info",
			response: &Response{Info: &InfoResponse{
				Wants:    EdgeStream,
				Provides: EdgeBatch,
				Options: map[string]OptionInfo{
					"field": {ValueTypes: []ValueType{ValueString, ValueDouble}},
					"flag":  {ValueTypes: []ValueType{ValueBool}},
					"none":  {},
				},
			}},
		},
		{name: "init success", response: &Response{Init: &InitResponse{Success: true}}},
		{name: "init failure", response: &Response{Init: &InitResponse{Error: "Missing `field`"}}},
		{name: "keepalive", response: &Response{Keepalive: &KeepaliveResponse{Time: 7}}},
		{name: "snapshot", response: &Response{Snapshot: &SnapshotResponse{Snapshot: []byte("state")}}},
		{name: "restore", response: &Response{Restore: &RestoreResponse{Success: true}}},
		{name: "error", response: &Response{Error: &ErrorResponse{Error: "boom"}}},
		{name: "begin", response: &Response{Begin: &BeginBatch{Name: "b"}}},
		{name: "point", response: &Response{Point: samplePoint()}},
		{name: "end", response: &Response{End: &EndBatch{Tmax: 1}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			encoded, err := MarshalResponse(test.response)
			if err != nil {
				t.Fatalf("MarshalResponse: %v", err)
			}
			decoded, err := UnmarshalResponse(encoded)
			if err != nil {
				t.Fatalf("UnmarshalResponse: %v", err)
			}
			if !reflect.DeepEqual(decoded, test.response) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", decoded, test.response)
			}
		})
	}
}

func TestKnownEncodings(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		request *Request
		want    []byte
	}{
		{name: "empty request", request: &Request{}, want: nil},
		{name: "info request", request: &Request{Info: &InfoRequest{}}, want: []byte{0x0a, 0x00}},
		{name: "keepalive request", request: &Request{Keepalive: &KeepaliveRequest{Time: 5}}, want: []byte{0x1a, 0x02, 0x08, 0x05}},
		{name: "empty point uses two-byte tag", request: &Request{Point: &Point{}}, want: []byte{0x8a, 0x01, 0x00}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := MarshalRequest(test.request)
			if err != nil {
				t.Fatalf("MarshalRequest: %v", err)
			}
			if !bytes.Equal(got, test.want) {
				t.Errorf("encoding: got % x, want % x", got, test.want)
			}
		})
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	t.Parallel()
	first, err := MarshalResponse(&Response{Point: samplePoint()})
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	for attempt := 0; attempt < 20; attempt++ {
		again, err := MarshalResponse(&Response{Point: samplePoint()})
		if err != nil {
			t.Fatalf("MarshalResponse: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("attempt %d produced different bytes", attempt)
		}
	}
}

func TestMultipleMembersRejected(t *testing.T) {
	t.Parallel()
	_, err := MarshalRequest(&Request{Info: &InfoRequest{}, Snapshot: &SnapshotRequest{}})
	if err == nil {
		t.Fatal("expected error for request with two members")
	}
	_, err = MarshalResponse(&Response{Keepalive: &KeepaliveResponse{}, Error: &ErrorResponse{}})
	if err == nil {
		t.Fatal("expected error for response with two members")
	}
}

func TestUnmarshalRequestLastMemberWins(t *testing.T) {
	t.Parallel()
	var data []byte
	data, _ = AppendRequest(data, &Request{Info: &InfoRequest{}})
	data, _ = AppendRequest(data, &Request{Keepalive: &KeepaliveRequest{Time: 9}})

	decoded, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if decoded.Info != nil {
		t.Error("earlier oneof member should have been cleared")
	}
	if decoded.Keepalive == nil || decoded.Keepalive.Time != 9 {
		t.Errorf("keepalive: got %+v, want time 9", decoded.Keepalive)
	}
}

func TestUnmarshalMergesRepeatedMember(t *testing.T) {
	t.Parallel()
	var data []byte
	data, _ = AppendRequest(data, &Request{Point: &Point{
		Name:       "a",
		Dimensions: []string{"host"},
		Tags:       map[string]string{"host": "h1"},
	}})
	data, _ = AppendRequest(data, &Request{Point: &Point{
		Time:       9,
		Dimensions: []string{"region"},
		Tags:       map[string]string{"region": "west"},
	}})

	decoded, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	want := &Point{
		Time:       9,
		Name:       "a",
		Dimensions: []string{"host", "region"},
		Tags:       map[string]string{"host": "h1", "region": "west"},
	}
	if !reflect.DeepEqual(decoded.Point, want) {
		t.Errorf("merged point: got %+v, want %+v", decoded.Point, want)
	}
}

func TestUnmarshalMemberSwitchDiscardsEarlierOccurrences(t *testing.T) {
	t.Parallel()
	var data []byte
	data, _ = AppendRequest(data, &Request{Point: &Point{Name: "a"}})
	data, _ = AppendRequest(data, &Request{Keepalive: &KeepaliveRequest{Time: 1}})
	data, _ = AppendRequest(data, &Request{Point: &Point{Time: 9}})

	decoded, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if decoded.Keepalive != nil {
		t.Error("keepalive should have been replaced")
	}
	if want := (&Point{Time: 9}); !reflect.DeepEqual(decoded.Point, want) {
		t.Errorf("point: got %+v, want %+v", decoded.Point, want)
	}
}

func TestUnmarshalMergeDoesNotWriteInput(t *testing.T) {
	t.Parallel()
	var data []byte
	data, _ = AppendRequest(data, &Request{Point: &Point{Name: "a"}})
	data, _ = AppendRequest(data, &Request{Point: &Point{Time: 9}})
	original := bytes.Clone(data)

	if _, err := UnmarshalRequest(data); err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if !bytes.Equal(data, original) {
		t.Errorf("input modified by decode: % x, want % x", data, original)
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	t.Parallel()
	// A future host might add a top-level member (field 40) and a new
	// point field (field 30). Both must be ignored.
	pointBody := (&Point{Name: "cpu"}).appendTo(nil)
	pointBody = protowire.AppendTag(pointBody, 30, protowire.BytesType)
	pointBody = protowire.AppendString(pointBody, "future")

	var data []byte
	data = protowire.AppendTag(data, 40, protowire.VarintType)
	data = protowire.AppendVarint(data, 1)
	data = appendMessage(data, fieldPoint, pointBody)

	decoded, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if decoded.Point == nil || decoded.Point.Name != "cpu" {
		t.Fatalf("point: got %+v, want name cpu", decoded.Point)
	}
}

func TestUnmarshalRejectsMalformedInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
	}{
		{name: "truncated tag", data: []byte{0x8a}},
		{name: "length past end", data: []byte{0x0a, 0x05, 0x00}},
		{name: "wrong wire type for member", data: []byte{0x08, 0x01}},
		{name: "bad nested field", data: []byte{0x1a, 0x02, 0x09, 0x01}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := UnmarshalRequest(test.data); err == nil {
				t.Errorf("expected error decoding % x", test.data)
			}
		})
	}
}

func TestUnmarshalDoesNotAliasInput(t *testing.T) {
	t.Parallel()
	data, err := MarshalRequest(&Request{Restore: &RestoreRequest{Snapshot: []byte("abc")}})
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	decoded, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	for index := range data {
		data[index] = 0
	}
	if string(decoded.Restore.Snapshot) != "abc" {
		t.Errorf("snapshot changed after input was overwritten: %q", decoded.Restore.Snapshot)
	}
}

func TestOptionInfoAcceptsUnpackedValueTypes(t *testing.T) {
	t.Parallel()
	var body []byte
	body = protowire.AppendTag(body, 1, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(ValueString))
	body = protowire.AppendTag(body, 1, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(ValueDouble))

	option, err := decodeOptionInfo(body)
	if err != nil {
		t.Fatalf("decodeOptionInfo: %v", err)
	}
	want := []ValueType{ValueString, ValueDouble}
	if !reflect.DeepEqual(option.ValueTypes, want) {
		t.Errorf("value types: got %v, want %v", option.ValueTypes, want)
	}
}

func TestInitRequestLookup(t *testing.T) {
	t.Parallel()
	init := &InitRequest{Options: []Option{
		{Name: "a", Values: []OptionValue{IntValue(1)}},
		{Name: "b"},
		{Name: "a", Values: []OptionValue{IntValue(2)}},
	}}
	option, ok := init.Lookup("a")
	if !ok || option.Values[0].IntValue != 1 {
		t.Errorf("Lookup(a): got %+v, %v; want first option", option, ok)
	}
	if _, ok := init.Lookup("missing"); ok {
		t.Error("Lookup(missing) should report false")
	}
}

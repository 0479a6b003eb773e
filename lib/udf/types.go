// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package udf

import "fmt"

// EdgeType is the shape of data flowing into or out of a handler.
type EdgeType int32

const (
	// EdgeStream delivers points one at a time with no batch framing.
	EdgeStream EdgeType = 0

	// EdgeBatch delivers points between BeginBatch and EndBatch.
	EdgeBatch EdgeType = 1
)

func (edge EdgeType) String() string {
	switch edge {
	case EdgeStream:
		return "stream"
	case EdgeBatch:
		return "batch"
	default:
		return fmt.Sprintf("edge(%d)", int32(edge))
	}
}

// ValueType tags the type of an Init option value.
type ValueType int32

const (
	ValueBool     ValueType = 0
	ValueInt      ValueType = 1
	ValueDouble   ValueType = 2
	ValueString   ValueType = 3
	ValueDuration ValueType = 4
)

func (value ValueType) String() string {
	switch value {
	case ValueBool:
		return "bool"
	case ValueInt:
		return "int"
	case ValueDouble:
		return "double"
	case ValueString:
		return "string"
	case ValueDuration:
		return "duration"
	default:
		return fmt.Sprintf("value(%d)", int32(value))
	}
}

// Kind identifies which member of a Request or Response is populated.
type Kind int

const (
	KindNone Kind = iota
	KindInfo
	KindInit
	KindKeepalive
	KindSnapshot
	KindRestore
	KindError
	KindBegin
	KindPoint
	KindEnd
)

func (kind Kind) String() string {
	switch kind {
	case KindNone:
		return "none"
	case KindInfo:
		return "info"
	case KindInit:
		return "init"
	case KindKeepalive:
		return "keepalive"
	case KindSnapshot:
		return "snapshot"
	case KindRestore:
		return "restore"
	case KindError:
		return "error"
	case KindBegin:
		return "begin"
	case KindPoint:
		return "point"
	case KindEnd:
		return "end"
	default:
		return fmt.Sprintf("kind(%d)", int(kind))
	}
}

// Request is one host-to-agent message. At most one member is set; a
// Request with no member set is a valid no-op.
type Request struct {
	Info      *InfoRequest
	Init      *InitRequest
	Keepalive *KeepaliveRequest
	Snapshot  *SnapshotRequest
	Restore   *RestoreRequest
	Begin     *BeginBatch
	Point     *Point
	End       *EndBatch
}

// Kind reports which member is set. If more than one member is set
// (which only a caller constructing a Request by hand can do), the
// first in field order wins.
func (request *Request) Kind() Kind {
	switch {
	case request == nil:
		return KindNone
	case request.Info != nil:
		return KindInfo
	case request.Init != nil:
		return KindInit
	case request.Keepalive != nil:
		return KindKeepalive
	case request.Snapshot != nil:
		return KindSnapshot
	case request.Restore != nil:
		return KindRestore
	case request.Begin != nil:
		return KindBegin
	case request.Point != nil:
		return KindPoint
	case request.End != nil:
		return KindEnd
	default:
		return KindNone
	}
}

func (request *Request) members() int {
	count := 0
	for _, set := range []bool{
		request.Info != nil, request.Init != nil, request.Keepalive != nil,
		request.Snapshot != nil, request.Restore != nil, request.Begin != nil,
		request.Point != nil, request.End != nil,
	} {
		if set {
			count++
		}
	}
	return count
}

// Response is one agent-to-host message. At most one member is set.
type Response struct {
	Info      *InfoResponse
	Init      *InitResponse
	Keepalive *KeepaliveResponse
	Snapshot  *SnapshotResponse
	Restore   *RestoreResponse
	Error     *ErrorResponse
	Begin     *BeginBatch
	Point     *Point
	End       *EndBatch
}

// Kind reports which member is set, with the same first-wins rule as
// [Request.Kind].
func (response *Response) Kind() Kind {
	switch {
	case response == nil:
		return KindNone
	case response.Info != nil:
		return KindInfo
	case response.Init != nil:
		return KindInit
	case response.Keepalive != nil:
		return KindKeepalive
	case response.Snapshot != nil:
		return KindSnapshot
	case response.Restore != nil:
		return KindRestore
	case response.Error != nil:
		return KindError
	case response.Begin != nil:
		return KindBegin
	case response.Point != nil:
		return KindPoint
	case response.End != nil:
		return KindEnd
	default:
		return KindNone
	}
}

func (response *Response) members() int {
	count := 0
	for _, set := range []bool{
		response.Info != nil, response.Init != nil, response.Keepalive != nil,
		response.Snapshot != nil, response.Restore != nil, response.Error != nil,
		response.Begin != nil, response.Point != nil, response.End != nil,
	} {
		if set {
			count++
		}
	}
	return count
}

// InfoRequest asks the handler to describe itself. It has no fields.
type InfoRequest struct{}

// InfoResponse declares the edge types a handler consumes and produces
// and the Init options it accepts. The host validates Init options
// against Options before sending them; the agent does not.
type InfoResponse struct {
	Wants    EdgeType
	Provides EdgeType
	Options  map[string]OptionInfo
}

// OptionInfo lists the value types an option expects, in order.
type OptionInfo struct {
	ValueTypes []ValueType
}

// InitRequest carries the options from the host's task definition.
type InitRequest struct {
	Options []Option
}

// Lookup returns the first option with the given name.
func (request *InitRequest) Lookup(name string) (Option, bool) {
	for _, option := range request.Options {
		if option.Name == name {
			return option, true
		}
	}
	return Option{}, false
}

// Option is one named option with its ordered values.
type Option struct {
	Name   string
	Values []OptionValue
}

// OptionValue is a single typed option value. Type selects which of
// the value fields is meaningful.
type OptionValue struct {
	Type          ValueType
	BoolValue     bool
	IntValue      int64
	DoubleValue   float64
	StringValue   string
	DurationValue int64
}

// BoolValue returns a bool-typed option value.
func BoolValue(value bool) OptionValue {
	return OptionValue{Type: ValueBool, BoolValue: value}
}

// IntValue returns an int-typed option value.
func IntValue(value int64) OptionValue {
	return OptionValue{Type: ValueInt, IntValue: value}
}

// DoubleValue returns a double-typed option value.
func DoubleValue(value float64) OptionValue {
	return OptionValue{Type: ValueDouble, DoubleValue: value}
}

// StringValue returns a string-typed option value.
func StringValue(value string) OptionValue {
	return OptionValue{Type: ValueString, StringValue: value}
}

// DurationValue returns a duration-typed option value. The host
// encodes durations as nanoseconds.
func DurationValue(nanoseconds int64) OptionValue {
	return OptionValue{Type: ValueDuration, DurationValue: nanoseconds}
}

// InitResponse reports whether the handler accepted its options. A
// rejected Init is an ordinary response, not a session error.
type InitResponse struct {
	Success bool
	Error   string
}

// SnapshotRequest asks the handler for its serialized state.
type SnapshotRequest struct{}

// SnapshotResponse carries opaque handler state. The host stores it
// and hands it back in a later RestoreRequest.
type SnapshotResponse struct {
	Snapshot []byte
}

// RestoreRequest supplies state captured by an earlier snapshot.
type RestoreRequest struct {
	Snapshot []byte
}

// RestoreResponse reports whether the handler accepted the state.
type RestoreResponse struct {
	Success bool
	Error   string
}

// KeepaliveRequest carries the host's timestamp in nanoseconds.
type KeepaliveRequest struct {
	Time int64
}

// KeepaliveResponse echoes the request's timestamp.
type KeepaliveResponse struct {
	Time int64
}

// ErrorResponse tells the host why the agent is ending the session.
type ErrorResponse struct {
	Error string
}

// BeginBatch opens a batch in batch-mode tasks.
type BeginBatch struct {
	Name   string
	Group  string
	Tags   map[string]string
	Size   int64
	ByName bool
}

// EndBatch closes a batch. Tmax is the batch's upper time bound in
// nanoseconds.
type EndBatch struct {
	Name   string
	Group  string
	Tmax   int64
	Tags   map[string]string
	ByName bool
}

// Point is a single timestamped record. Fields are split by value type
// to mirror the host's schema.
type Point struct {
	Time            int64
	Name            string
	Database        string
	RetentionPolicy string
	Group           string
	Dimensions      []string
	Tags            map[string]string
	FieldsDouble    map[string]float64
	FieldsInt       map[string]int64
	FieldsString    map[string]string
	FieldsBool      map[string]bool
	ByName          bool
}

// SetDouble sets a double field, allocating the map if needed.
func (point *Point) SetDouble(name string, value float64) {
	if point.FieldsDouble == nil {
		point.FieldsDouble = make(map[string]float64)
	}
	point.FieldsDouble[name] = value
}

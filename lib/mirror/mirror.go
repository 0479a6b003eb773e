// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror is a stream handler that stamps one configured double
// field onto every point and sends the point back.
//
// The host configures it with a single Init option:
//
//	field "<name>" <double>
//
// Every point then gets FieldsDouble[name] set to the value, replacing
// any existing value, and is emitted unchanged otherwise. The handler
// only accepts stream edges; batch boundaries end the session with a
// protocol error. Its state, the field name and value, survives
// snapshot and restore.
package mirror

import (
	"errors"
	"fmt"
	"net"

	"github.com/bureau-foundation/udfagent/lib/agent"
	"github.com/bureau-foundation/udfagent/lib/shutdown"
	"github.com/bureau-foundation/udfagent/lib/snapshot"
	"github.com/bureau-foundation/udfagent/lib/udf"
)

// OptionField is the name of the Init option that selects the field.
const OptionField = "field"

// Init rejection messages, shown to the host verbatim.
const (
	errMissingField   = "Missing `field`"
	errMissingValue   = "Missing parameter for `field`"
	errInvalidTypes   = "Invalid parameter type for `field`"
	errRestoreInvalid = "Invalid snapshot"
)

// state is what Snapshot captures.
type state struct {
	Name  string  `cbor:"name"`
	Value float64 `cbor:"value"`
}

// Handler implements agent.Handler. Create one per session with
// NewHandler.
type Handler struct {
	compression snapshot.Compression
	state       state
}

// NewHandler returns a Handler that writes snapshots with the given
// compression.
func NewHandler(compression snapshot.Compression) *Handler {
	return &Handler{compression: compression}
}

// NewAcceptor returns an Acceptor that serves every connection with a
// fresh Handler.
func NewAcceptor(config agent.Config, compression snapshot.Compression) agent.Acceptor {
	return agent.AcceptorFunc(func(conn net.Conn, token *shutdown.Token) (*agent.Agent, error) {
		return agent.New(conn, NewHandler(compression), token, config), nil
	})
}

func (h *Handler) Info() (*udf.InfoResponse, error) {
	return &udf.InfoResponse{
		Wants:    udf.EdgeStream,
		Provides: udf.EdgeStream,
		Options: map[string]udf.OptionInfo{
			OptionField: {ValueTypes: []udf.ValueType{udf.ValueString, udf.ValueDouble}},
		},
	}, nil
}

func (h *Handler) Init(request *udf.InitRequest) (*udf.InitResponse, error) {
	option, ok := request.Lookup(OptionField)
	if !ok {
		return &udf.InitResponse{Error: errMissingField}, nil
	}
	if len(option.Values) < 2 {
		return &udf.InitResponse{Error: errMissingValue}, nil
	}
	name, value := option.Values[0], option.Values[1]
	if name.Type != udf.ValueString || value.Type != udf.ValueDouble {
		return &udf.InitResponse{Error: errInvalidTypes}, nil
	}
	h.state = state{Name: name.StringValue, Value: value.DoubleValue}
	return &udf.InitResponse{Success: true}, nil
}

func (h *Handler) Snapshot() (*udf.SnapshotResponse, error) {
	blob, err := snapshot.Encode(h.state, h.compression)
	if err != nil {
		return nil, err
	}
	return &udf.SnapshotResponse{Snapshot: blob}, nil
}

// Restore accepts an empty blob as "nothing to restore".
func (h *Handler) Restore(request *udf.RestoreRequest) (*udf.RestoreResponse, error) {
	if len(request.Snapshot) == 0 {
		return &udf.RestoreResponse{Success: true}, nil
	}
	var restored state
	if err := snapshot.Decode(request.Snapshot, &restored); err != nil {
		if errors.Is(err, snapshot.ErrCorrupt) {
			return &udf.RestoreResponse{Error: fmt.Sprintf("%s: %v", errRestoreInvalid, err)}, nil
		}
		return nil, err
	}
	h.state = restored
	return &udf.RestoreResponse{Success: true}, nil
}

func (h *Handler) BeginBatch(*udf.BeginBatch) error {
	return fmt.Errorf("%w: mirror handles stream edges only", agent.ErrProtocol)
}

// Point sets the configured field and emits the point. A full queue
// is reported to the agent, which drops the point.
func (h *Handler) Point(point *udf.Point, sink agent.PointSink) error {
	point.SetDouble(h.state.Name, h.state.Value)
	return sink.Send(point)
}

func (h *Handler) EndBatch(*udf.EndBatch) error {
	return fmt.Errorf("%w: mirror handles stream edges only", agent.ErrProtocol)
}

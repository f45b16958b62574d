// Package envelope decodes the tagged messages the inference service sends
// over the stream connection.
//
// Three shapes are recognized, distinguished by the "type" field:
//
//	{"type":"frame","model_version":...,"schema_version":...,"result":{...}}
//	{"type":"summary","model_version":...,"schema_version":...,"summary":{...}}
//	{"type":"error","detail":"..."}
//
// Text messages carry JSON. Binary messages carry the same structure encoded
// as msgpack. Anything else is not an envelope and decodes to nil.
package envelope

import (
	"github.com/pithecene-io/ripestream/types"
)

// Type is the envelope discriminant.
type Type string

// Envelope types.
const (
	TypeFrame   Type = "frame"
	TypeSummary Type = "summary"
	TypeError   Type = "error"
)

// Envelope is one classified server message. The concrete type is one of
// *Frame, *Summary or *Error.
type Envelope interface {
	Type() Type
	sealed()
}

// Frame carries the analysis of one transmitted frame.
type Frame struct {
	ModelVersion  string
	SchemaVersion string
	Result        types.FrameResult
}

// Summary carries the end-of-session summary.
type Summary struct {
	ModelVersion  string
	SchemaVersion string
	Summary       types.SessionSummary
}

// Error carries a server-reported problem. It does not end the session.
type Error struct {
	Detail string
}

// Type implements Envelope.
func (*Frame) Type() Type { return TypeFrame }

// Type implements Envelope.
func (*Summary) Type() Type { return TypeSummary }

// Type implements Envelope.
func (*Error) Type() Type { return TypeError }

func (*Frame) sealed()   {}
func (*Summary) sealed() {}
func (*Error) sealed()   {}

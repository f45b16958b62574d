package stream

import (
	"errors"

	"github.com/pithecene-io/ripestream/envelope"
)

// Setup-phase errors returned from Start.
var (
	// ErrConnectTimeout means the connection was not ready within the
	// connect timeout.
	ErrConnectTimeout = errors.New("connect timeout")
	// ErrConnectFailed means the transport failed before becoming ready.
	ErrConnectFailed = errors.New("connect failed")
	// ErrConnectCanceled means Stop, Close or the caller's context ended
	// the attempt while it was still connecting.
	ErrConnectCanceled = errors.New("connect canceled")
)

// Steady-state conditions. These are absorbed into the session snapshot
// and reported to observers, never returned from Start or Stop.
var (
	// ErrMalformedPayload matches inbound messages that failed to decode.
	ErrMalformedPayload = envelope.ErrMalformedPayload
	// ErrTransport wraps mid-session socket failures.
	ErrTransport = errors.New("transport error")
	// ErrShutdownTimeout is logged when no summary arrived before the
	// shutdown deadline. The session still ends in stopped.
	ErrShutdownTimeout = errors.New("shutdown timeout")
)

// Connection errors.
var (
	// ErrNotOpen is returned by sends on a connection that is closed.
	ErrNotOpen = errors.New("connection is not open")
	// ErrSendClosed is returned by binary sends after CloseSend.
	ErrSendClosed = errors.New("send side closed")
)

// Last-error details recorded on the session.
const (
	DetailConnectTimeout = "WebSocket connect timeout"
	DetailConnectFailed  = "WebSocket connection failed"
	DetailParseFailed    = "Failed to parse stream message"
	DetailInterrupted    = "Stream connection interrupted"
)

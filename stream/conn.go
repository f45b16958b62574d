package stream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/ripestream/envelope"
)

// Default connection constants.
const (
	DefaultConnectTimeout   = 5000 * time.Millisecond
	DefaultWriteWait        = 5 * time.Second
	DefaultMaxMessageSize   = 4 * 1024 * 1024
	DefaultCloseGracePeriod = time.Second
)

// APIKeyHeader carries the gateway API key on the handshake.
const APIKeyHeader = "X-API-Key"

// Dialer opens WebSocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// ConnConfig configures a Conn.
type ConnConfig struct {
	// Headers are sent during the handshake.
	Headers http.Header
	// APIKey, when set, is sent as X-API-Key.
	APIKey string
	// ConnectTimeout bounds the handshake. Defaults to 5000ms.
	ConnectTimeout time.Duration
	// WriteWait is the write deadline for each message.
	WriteWait time.Duration
	// MaxMessageSize is the read limit for inbound messages.
	MaxMessageSize int64
	// CloseGracePeriod bounds the close frame write.
	CloseGracePeriod time.Duration
	// Dialer overrides the default gorilla dialer.
	Dialer Dialer
}

func (c *ConnConfig) defaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.CloseGracePeriod <= 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: c.ConnectTimeout,
			TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}
}

func (c *ConnConfig) header() http.Header {
	h := c.Headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	if c.APIKey != "" {
		h.Set(APIKeyHeader, c.APIKey)
	}
	return h
}

// Handler receives inbound connection events in transport order.
type Handler interface {
	OnMessage(kind envelope.MessageKind, data []byte)
	// OnError reports a transport failure. OnClose always follows.
	OnError(err error)
	// OnClose reports the end of the connection. Called exactly once.
	OnClose(code int, reason string)
}

// Conn is an open stream connection.
type Conn struct {
	cfg ConnConfig
	ws  *websocket.Conn

	mu         sync.Mutex
	writeMu    sync.Mutex // gorilla/websocket allows one concurrent writer
	closed     bool
	sendClosed bool
	listening  bool
	done       chan struct{}
}

// Open dials url and returns once the connection is ready.
//
// Fails with ErrConnectTimeout when the handshake does not complete within
// the connect timeout, with ErrConnectCanceled when ctx ends first, and
// with ErrConnectFailed for any other transport failure.
func Open(ctx context.Context, url string, cfg ConnConfig) (*Conn, error) {
	cfg.defaults()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	ws, resp, err := cfg.Dialer.DialContext(dialCtx, url, cfg.header())
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %w", ErrConnectCanceled, ctx.Err())
		case isTimeout(err) || dialCtx.Err() != nil:
			return nil, fmt.Errorf("%w after %s", ErrConnectTimeout, cfg.ConnectTimeout)
		case resp != nil:
			return nil, fmt.Errorf("%w: handshake status %d: %w", ErrConnectFailed, resp.StatusCode, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
		}
	}

	ws.SetReadLimit(cfg.MaxMessageSize)
	return &Conn{cfg: cfg, ws: ws, done: make(chan struct{})}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsOpen reports whether the connection can currently send.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// SendBinary writes one binary message.
func (c *Conn) SendBinary(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	sendClosed := c.sendClosed
	c.mu.Unlock()
	if sendClosed {
		return ErrSendClosed
	}
	return c.writeLocked(websocket.BinaryMessage, data)
}

// SendText writes one text message.
func (c *Conn) SendText(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(websocket.TextMessage, []byte(text))
}

// CloseSend writes a final text message. Binary sends issued afterwards
// fail with ErrSendClosed, so nothing follows the final message.
func (c *Conn) CloseSend(final string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.sendClosed = true
	c.mu.Unlock()
	return c.writeLocked(websocket.TextMessage, []byte(final))
}

// writeLocked requires writeMu.
func (c *Conn) writeLocked(messageType int, data []byte) error {
	if !c.IsOpen() {
		return ErrNotOpen
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Listen starts the read loop and delivers events to h. Only the first
// call installs a handler.
func (c *Conn) Listen(h Handler) {
	c.mu.Lock()
	if c.listening {
		c.mu.Unlock()
		return
	}
	c.listening = true
	c.mu.Unlock()

	go c.readLoop(h)
}

// Done is closed when the read loop has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) readLoop(h Handler) {
	defer close(c.done)

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			local := c.closed
			c.closed = true
			c.mu.Unlock()
			_ = c.ws.Close()

			var ce *websocket.CloseError
			switch {
			case local:
				h.OnClose(websocket.CloseNormalClosure, "")
			case errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure:
				h.OnClose(ce.Code, ce.Text)
			default:
				h.OnError(fmt.Errorf("%w: %w", ErrTransport, err))
				h.OnClose(websocket.CloseAbnormalClosure, "")
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			h.OnMessage(envelope.KindText, data)
		case websocket.BinaryMessage:
			h.OnMessage(envelope.KindBinary, data)
		}
	}
}

// Close sends a normal close frame and releases the socket. Closing an
// already closed connection is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// WriteControl and Close may run concurrently with an in-progress write.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.CloseGracePeriod))
	return c.ws.Close()
}

package kommander

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport defaults.
const (
	// defaultHandshakeTimeout bounds the websocket opening handshake.
	defaultHandshakeTimeout = 10 * time.Second

	// defaultWriteTimeout bounds one frame write.
	defaultWriteTimeout = 5 * time.Second

	// closeGracePeriod bounds the close frame write during teardown.
	closeGracePeriod = time.Second

	// deviceOrigin is the Origin header the device expects from a control
	// surface.
	deviceOrigin = "streamDeck"
)

// Websocket close codes used by the manager.
const (
	CloseNormal   = websocket.CloseNormalClosure
	CloseAbnormal = websocket.CloseAbnormalClosure
)

// Dialer opens transports to the device.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// Conn is one open message transport.
//
// ReadMessage is called from a single reader goroutine. WriteMessage and
// Close may be called concurrently with it.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// WebsocketDialer dials the device with gorilla/websocket.
type WebsocketDialer struct {
	// HandshakeTimeout bounds the opening handshake. Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each frame write. Default: 5 seconds.
	WriteTimeout time.Duration

	// ReadLimit caps inbound frame size in bytes. Zero means no limit.
	ReadLimit int64
}

// Ensure WebsocketDialer implements Dialer.
var _ Dialer = (*WebsocketDialer)(nil)

// Dial opens a websocket to url.
func (d *WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	handshake := d.HandshakeTimeout
	if handshake == 0 {
		handshake = defaultHandshakeTimeout
	}
	writeTimeout := d.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = defaultWriteTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake response body carries nothing we need
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, url, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}

	return &wsConn{conn: conn, writeTimeout: writeTimeout}, nil
}

// wsConn adapts *websocket.Conn to Conn.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closed       bool
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrTransportClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close(code int, reason string) error {
	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(code, reason)
	//nolint:errcheck // peer may already be gone; the socket is closed below either way
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// closeCode returns the websocket close code carried by a read error, or
// CloseAbnormal when the connection dropped without a close frame.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CloseAbnormal
}

// deviceHeader returns the handshake headers sent to the device.
func deviceHeader() http.Header {
	h := http.Header{}
	h.Set("Origin", deviceOrigin)
	return h
}

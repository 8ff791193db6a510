package realtime

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the minimal transport surface of one realtime connection
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer performs the transport handshake. The access credential is
// supplied once at handshake time, never re-sent per message.
type Dialer interface {
	Dial(ctx context.Context, url, accessToken string) (Conn, error)
}

// WebsocketDialer dials the event-stream endpoint over a websocket,
// authenticating the upgrade request with a bearer header
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url, accessToken string) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return &wsConn{conn: conn}, nil
}

// wsConn serializes writes; gorilla connections allow one concurrent writer
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	frameConnect = "connect"
	frameAck     = "ack"
	frameError   = "error"

	defaultHandshakeTimeout = 10 * time.Second
)

// Frame is the envelope of every message on the socket.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type connectUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type connectPayload struct {
	Token string      `json:"token"`
	User  connectUser `json:"user"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// WebsocketDialer connects to the messaging backend over a websocket and
// authenticates with a connect frame carrying the realtime credential.
type WebsocketDialer struct {
	URL              string
	Origin           string
	HandshakeTimeout time.Duration
}

func NewWebsocketDialer(rawURL string) *WebsocketDialer {
	return &WebsocketDialer{URL: rawURL, HandshakeTimeout: defaultHandshakeTimeout}
}

func (d *WebsocketDialer) origin() (string, error) {
	if d.Origin != "" {
		return d.Origin, nil
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path, u.RawQuery = "", ""
	return u.String(), nil
}

func (d *WebsocketDialer) Dial(ctx context.Context, id Identity, credential string) (Conn, error) {
	origin, err := d.origin()
	if err != nil {
		return nil, fmt.Errorf("realtime url: %w", err)
	}
	cfg, err := websocket.NewConfig(d.URL, origin)
	if err != nil {
		return nil, fmt.Errorf("realtime config: %w", err)
	}

	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	_ = ws.SetDeadline(time.Now().Add(timeout))

	connID := uuid.NewString()
	if err := handshake(ws, connID, id, credential); err != nil {
		_ = ws.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	_ = ws.SetDeadline(time.Time{})

	if !stop() {
		// ctx fired after the handshake completed and already closed ws
		return nil, ctx.Err()
	}
	return &WSConn{ws: ws, id: id, connID: connID}, nil
}

func handshake(ws *websocket.Conn, connID string, id Identity, credential string) error {
	payload, err := json.Marshal(connectPayload{Token: credential, User: connectUser{ID: id.ID, Name: id.Name}})
	if err != nil {
		return err
	}
	if err := websocket.JSON.Send(ws, Frame{Type: frameConnect, RequestID: connID, Payload: payload}); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	var reply Frame
	if err := websocket.JSON.Receive(ws, &reply); err != nil {
		return fmt.Errorf("await ack: %w", err)
	}
	switch reply.Type {
	case frameAck:
		if reply.RequestID != connID {
			return fmt.Errorf("ack for unexpected request %q", reply.RequestID)
		}
		return nil
	case frameError:
		var ep errorPayload
		_ = json.Unmarshal(reply.Payload, &ep)
		if ep.Message == "" {
			ep.Message = "connect rejected"
		}
		return errors.New(ep.Message)
	default:
		return fmt.Errorf("unexpected frame %q during handshake", reply.Type)
	}
}

// WSConn is an established, authenticated websocket connection.
type WSConn struct {
	ws     *websocket.Conn
	id     Identity
	connID string

	sendMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *WSConn) Identity() Identity { return c.id }

// ID is the client-generated connection id sent in the connect frame.
func (c *WSConn) ID() string { return c.connID }

// Send writes one frame. It is safe for concurrent use.
func (c *WSConn) Send(typ string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return websocket.JSON.Send(c.ws, Frame{Type: typ, RequestID: uuid.NewString(), Payload: raw})
}

// Receive blocks until the next frame arrives.
func (c *WSConn) Receive() (Frame, error) {
	var f Frame
	err := websocket.JSON.Receive(c.ws, &f)
	return f, err
}

func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

var _ Dialer = (*WebsocketDialer)(nil)

// Package ws is the transport collaborator: it speaks gorilla/websocket to
// browsers, decodes structured events, and drives the chat core. The core
// itself never touches raw frames.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Pimiscool14/WebChat/internal/chat"
	"github.com/Pimiscool14/WebChat/internal/friends"
	"github.com/Pimiscool14/WebChat/internal/metrics"
	"github.com/Pimiscool14/WebChat/internal/presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameSize   = 16 * 1024
	sendBufferSize = 256

	// Events a single connection may submit per second, with a small burst.
	rateBurst  = 10
	rateRefill = 100 * time.Millisecond
)

// Client is one authenticated WebSocket connection. It implements
// presence.Conn so the registry can route fan-out events to it.
type Client struct {
	id       string
	identity string
	conn     *websocket.Conn
	send     chan []byte

	registry *presence.Registry
	chat     *chat.Service
	graph    *friends.Graph
	log      zerolog.Logger

	limiter   *rateLimiter
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient wraps an upgraded connection for a verified identity.
func NewClient(conn *websocket.Conn, identity string, registry *presence.Registry, chatSvc *chat.Service, graph *friends.Graph, log zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		registry: registry,
		chat:     chatSvc,
		graph:    graph,
		log:      log.With().Str("identity", identity).Logger(),
		limiter:  newRateLimiter(rateBurst, rateRefill),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the connection instance ID.
func (c *Client) ID() string {
	return c.id
}

// Send pushes an event to the peer. Best-effort: if the send buffer is full,
// the event is dropped and the client reconciles on its next bootstrap.
func (c *Client) Send(event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn().Str("event", event).Msg("send buffer full, dropping event")
	}
}

// Close tears the connection down.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}

// Run binds the identity, delivers the bootstrap snapshot, and pumps the
// connection until it closes. It blocks until the read pump exits.
func (c *Client) Run() {
	c.registry.Bind(c.identity, c)
	metrics.PresentConnections.Set(float64(c.registry.Count()))

	go c.writePump()

	snapshot, err := c.chat.Bootstrap(c.ctx, c.identity)
	if err != nil {
		c.log.Error().Err(err).Msg("bootstrap failed")
		c.Send("error", errorPayload{Op: "bootstrap", Reason: "bootstrap failed"})
	} else {
		c.Send("bootstrap", snapshot)
	}

	c.broadcastPresence("userOnline")
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		if identity := c.registry.Unbind(c); identity != "" {
			metrics.PresentConnections.Set(float64(c.registry.Count()))
			c.broadcastPresence("userOffline")
		}
		c.Close()
		c.log.Info().Msg("connection closed")
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		if !c.limiter.allow() {
			c.Send("error", errorPayload{Op: "rate", Reason: "too many events"})
			continue
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.Send("error", errorPayload{Op: "decode", Reason: "malformed event"})
			continue
		}

		c.dispatch(&ev)
	}
}

// dispatch routes one client event into the core. Domain errors are reported
// back on this connection only; they never abort the loop or any other
// session.
func (c *Client) dispatch(ev *Event) {
	switch ev.Type {
	case "sendMessage":
		var p sendMessagePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			c.Send("error", errorPayload{Op: ev.Type, Reason: "malformed payload"})
			return
		}
		if _, err := c.chat.Send(c.ctx, c.identity, p.Body, p.Kind, p.Target); err != nil {
			c.reportError(ev.Type, err)
		}

	case "deleteMessage":
		var p deleteMessagePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			c.Send("error", errorPayload{Op: ev.Type, Reason: "malformed payload"})
			return
		}
		deleted, err := c.chat.Delete(c.ctx, c.identity, p.ID, p.Target)
		if err != nil {
			c.reportError(ev.Type, err)
			return
		}
		if !deleted {
			// Local no-op acknowledgement; no event reaches anyone else.
			c.Send("error", errorPayload{Op: ev.Type, Reason: "not found or not yours"})
		}

	case "friendRequest":
		var p friendRequestPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			c.Send("error", errorPayload{Op: ev.Type, Reason: "malformed payload"})
			return
		}
		if err := c.graph.Request(c.ctx, c.identity, p.To); err != nil {
			c.reportError(ev.Type, err)
		}

	case "friendRespond":
		var p friendRespondPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			c.Send("error", errorPayload{Op: ev.Type, Reason: "malformed payload"})
			return
		}
		if err := c.graph.Respond(c.ctx, p.From, c.identity, p.Accept); err != nil {
			c.reportError(ev.Type, err)
		}

	case "bootstrap":
		// Re-bootstrap is an idempotent refresh.
		snapshot, err := c.chat.Bootstrap(c.ctx, c.identity)
		if err != nil {
			c.reportError(ev.Type, err)
			return
		}
		c.Send("bootstrap", snapshot)

	case "logout":
		c.Close()

	default:
		c.Send("error", errorPayload{Op: ev.Type, Reason: "unknown event"})
	}
}

// reportError maps a core error to a local error event. Domain rejections are
// expected traffic; only store failures are logged loudly.
func (c *Client) reportError(op string, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthorized),
		errors.Is(err, chat.ErrInvalid),
		errors.Is(err, friends.ErrRejected),
		errors.Is(err, friends.ErrNotFound):
		c.Send("error", errorPayload{Op: op, Reason: err.Error()})
	default:
		c.log.Error().Err(err).Str("op", op).Msg("operation failed")
		c.Send("error", errorPayload{Op: op, Reason: "internal error"})
	}
}

// broadcastPresence tells every present connection, this one included, that
// the identity came or went. Sending to self keeps a UI that renders its own
// presence from these events consistent with what everyone else sees.
// Best-effort, like all fan-out.
func (c *Client) broadcastPresence(event string) {
	c.registry.Each(func(identity string, conn presence.Conn) {
		conn.Send(event, presencePayload{Identity: c.identity})
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func encodeEvent(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Event{Type: event, Payload: raw})
}

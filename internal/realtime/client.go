package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait   = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.

	// How many malformed or unknown frames a connection may send before it
	// is treated as unrecoverable and force-closed.
	maxProtocolErrors = 8

	// Slack on top of the configured content bound for the JSON envelope.
	frameOverhead = 512

	sendBufferSize = 256
)

// Client is a live authenticated connection: the middleman between one
// websocket and the registry/router. Its read pump processes the
// connection's events strictly in arrival order.
type Client struct {
	ID       string
	UserID   int
	Username string

	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	registry *Registry
	router   *Router

	// topics the connection has joined; owned by the registry, mutated
	// only under its lock.
	topics map[string]struct{}

	closeOnce sync.Once
	createdAt time.Time
}

func newClient(id string, userID int, username string, conn *websocket.Conn, registry *Registry, router *Router) *Client {
	return &Client{
		ID:        id,
		UserID:    userID,
		Username:  username,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		registry:  registry,
		router:    router,
		topics:    make(map[string]struct{}),
		createdAt: time.Now(),
	}
}

// readPump pumps events from the websocket into the router. On any exit
// the connection leaves the registry and every topic channel before the
// transport closes, so no membership dangles.
func (c *Client) readPump() {
	defer func() {
		c.registry.Remove(c.ID)
		c.shutdown()
		log.Printf("ws closed [%s] after %s", c.ID, time.Since(c.createdAt).Round(time.Millisecond))
	}()

	c.conn.SetReadLimit(int64(c.router.maxContentBytes) + frameOverhead)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	protocolErrors := 0
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read [%s]: %v", c.ID, err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			protocolErrors++
			c.enqueue(errorFrame("Malformed frame"))
			if protocolErrors > maxProtocolErrors {
				break
			}
			continue
		}

		if !c.dispatch(ev) {
			protocolErrors++
			if protocolErrors > maxProtocolErrors {
				break
			}
		}
	}
}

// dispatch runs one decoded event to completion. Returns false for
// unknown event kinds, which count against the protocol-error tolerance.
// Errors inside a single event are reported to this connection only and
// never close it.
func (c *Client) dispatch(ev ClientEvent) bool {
	switch ev.Type {
	case EventPing:
		c.enqueue(pongFrame())

	case EventJoinTopic:
		if ev.Topic == "" {
			c.enqueue(errorFrame("Missing topic"))
			return true
		}
		c.registry.JoinTopic(c, ev.Topic)

	case EventLeaveTopic:
		if ev.Topic == "" {
			c.enqueue(errorFrame("Missing topic"))
			return true
		}
		c.registry.LeaveTopic(c, ev.Topic)

	case EventSendMessage:
		c.enqueue(c.router.Route(context.Background(), c, ev))

	default:
		c.enqueue(errorFrame("Unknown event type"))
		return false
	}
	return true
}

// writePump pumps frames from the send buffer to the websocket and keeps
// the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued frames in the same write to save syscalls.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// enqueue hands a frame to the write pump without blocking. Delivery is
// best-effort: a consumer too slow to drain its buffer loses the frame and
// the connection is scheduled for close.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		log.Printf("ws send buffer full [%s], closing", c.ID)
		c.shutdown()
	}
}

// shutdown tears down the transport exactly once. Registry cleanup happens
// in readPump's defer, which this unblocks.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

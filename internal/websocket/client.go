package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one subscriber to the change feed. A client with a non-empty
// entity set only receives events for those entities.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	send     chan []byte
	entities map[string]bool
}

// NewClient creates a Client tied to the given hub and connection. With no
// entities the client receives every event.
func NewClient(hub *Hub, conn *ws.Conn, entities ...string) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if len(entities) > 0 {
		c.entities = make(map[string]bool, len(entities))
		for _, e := range entities {
			c.entities[e] = true
		}
	}
	return c
}

func (c *Client) wants(entity string) bool {
	return c.entities == nil || c.entities[entity]
}

// Run registers the client and serves it until the connection or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)

	// The feed is one-way; CloseRead discards inbound frames and cancels
	// the returned context when the peer goes away.
	<-c.conn.CloseRead(ctx).Done()
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}

package socket

import (
	"context"
	"net/http"
	"time"

	"sharedpad/broadcast"
	"sharedpad/config"
	"sharedpad/internal/document/model"
	"sharedpad/internal/document/service"
	"sharedpad/pkg/logger"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The page is served from the same origin; other origins are gated by CORS on the REST routes.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one WebSocket connection attached to a bus subscription.
type Client struct {
	Conn      *websocket.Conn
	Service   *service.DocumentService
	Sub       *broadcast.Subscription
	Heartbeat time.Duration
	cancel    context.CancelFunc
}

// ServeWs upgrades the request and streams document updates over it. Text
// frames of type UPDATE sent by the client are saved like POST /content.
func ServeWs(svc *service.DocumentService, heartbeat time.Duration, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}
	if heartbeat <= 0 {
		heartbeat = config.Default().HeartbeatInterval
	}

	// The request context ends when this handler returns, so the
	// subscription gets its own lifetime tied to the pumps.
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := svc.Subscribe(ctx)
	if err != nil {
		cancel()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server is shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	// A Client ties this connection to its subscription. Cancelling its
	// context is what removes it from the bus.
	client := &Client{
		Conn:      conn,
		Service:   svc,
		Sub:       sub,
		Heartbeat: heartbeat,
		cancel:    cancel,
	}
	logger.Sugar.Infow("WebSocket client connected", "subscription", sub.ID(), "remote", r.RemoteAddr)

	// One goroutine drains the subscription onto the socket, the other reads
	// client frames and notices when the connection goes away.
	go client.writePump()
	go client.readPump()
}

func (c *Client) pongWait() time.Duration {
	return 2 * c.Heartbeat
}

func (c *Client) readPump() {
	defer func() {
		// When the read loop ends (tab closed, read deadline missed) the
		// subscription is cancelled, which closes its inbox and stops writePump.
		c.cancel()
		c.Conn.Close()
		logger.Sugar.Infow("WebSocket client disconnected", "subscription", c.Sub.ID())
	}()

	// Every pong answers one of writePump's pings and pushes the deadline out.
	// A client that stops answering is dropped after pongWait.
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			return
		}

		// Frames go through the same strict decoding as POST /content, so a
		// malformed frame is dropped here and never reaches the store.
		var msg model.Message
		if err := model.DecodeStrict(raw, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		switch msg.Type {
		case model.UpdateType:
			if msg.Text == nil {
				logger.Sugar.Warnf("Ignoring UPDATE without text from %s", c.Sub.ID())
				continue
			}
			// Save stores the text and publishes it to every subscriber, this one included.
			c.Service.Save(*msg.Text)
		default:
			logger.Sugar.Warnf("Ignoring message of unknown type %q from %s", msg.Type, c.Sub.ID())
		}
	}
}

func (c *Client) writePump() {
	// Ping every Heartbeat to keep the connection alive and detect if it has dropped.
	ticker := time.NewTicker(c.Heartbeat)
	defer func() {
		ticker.Stop()
		// Closing the socket also unblocks readPump, which then unsubscribes.
		c.Conn.Close()
	}()

	for {
		select {
		case text, ok := <-c.Sub.C():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Unsubscribed or the bus shut down.
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.Conn.WriteJSON(model.NewUpdateMessage(text)); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}

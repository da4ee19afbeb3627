package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
	"github.com/OCharnyshevich/jrblx-server/internal/server/render"
	"github.com/OCharnyshevich/jrblx-server/internal/server/scene"
	"github.com/OCharnyshevich/jrblx-server/internal/server/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// frameStride thins the 60 Hz simulation down to 20 frames per second
	// on the wire; the client interpolates between them.
	frameStride = 3
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage is one inbound message from the play client.
type clientMessage struct {
	Type   string `json:"type"` // "chat", "key", "spawn", "generate"
	Text   string `json:"text,omitempty"`
	Key    string `json:"key,omitempty"`
	Down   bool   `json:"down,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Color  string `json:"color,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// serverMessage is one outbound message to the play client.
type serverMessage struct {
	Type         string                `json:"type"` // "welcome", "frame", "chat", "error"
	Session      string                `json:"session,omitempty"`
	Frame        *render.Frame         `json:"frame,omitempty"`
	Announcement *session.Announcement `json:"announcement,omitempty"`
	Chat         *session.ChatRecord   `json:"chat,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// Client bridges one WebSocket connection and its session. It is the
// session's renderer: frames are thinned, serialized and sent down the
// socket, dropped rather than blocked on when the peer lags.
type Client struct {
	log  *logrus.Entry
	conn *websocket.Conn
	sess *session.Session
	send chan serverMessage

	frames uint64 // touched only by the tick goroutine
}

func newClient(conn *websocket.Conn, log *logrus.Logger) *Client {
	return &Client{
		log:  logrus.NewEntry(log),
		conn: conn,
		send: make(chan serverMessage, 256),
	}
}

// Submit implements render.Renderer.
func (c *Client) Submit(fr render.Frame) {
	c.frames++
	if c.frames%frameStride != 0 {
		return
	}
	msg := serverMessage{Type: "frame", Frame: &fr}
	if ann, ok := c.sess.Announcement(); ok {
		msg.Announcement = &ann
	}
	select {
	case c.send <- msg:
	default:
		// Peer is not draining; skip the frame, a fresher one follows.
	}
}

// refuse sends a terminal error and closes the socket without ever starting
// a session loop.
func (c *Client) refuse(reason string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteJSON(serverMessage{Type: "error", Error: reason})
	_ = c.conn.Close()
	if c.sess != nil {
		c.sess.Close()
	}
}

// forwardChat copies the session's chat echo stream into the send queue.
func (c *Client) forwardChat() {
	for {
		select {
		case <-c.sess.Done():
			return
		case rec := <-c.sess.Chat():
			select {
			case c.send <- serverMessage{Type: "chat", Chat: &rec}:
			default:
			}
		}
	}
}

// readPump consumes client messages until the socket or the session dies.
func (c *Client) readPump() {
	defer func() {
		c.sess.Close()
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Debug("close websocket")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("read websocket")
			}
			return
		}
		c.handle(msg)
		if c.sess.Closed() {
			return
		}
	}
}

func (c *Client) handle(msg clientMessage) {
	switch msg.Type {
	case "chat":
		c.sess.OnCommand(msg.Text)
	case "key":
		if k, ok := keyOf(msg.Key); ok {
			c.sess.OnKey(k, msg.Down)
		}
	case "spawn":
		kind := entity.Kind(msg.Kind)
		if !kind.Known() {
			c.sendError("unknown kind " + msg.Kind)
			return
		}
		if _, err := scene.Spawn(c.sess.Store(), kind, msg.Color); err != nil {
			c.sendError(err.Error())
		}
	case "generate":
		// Generation blocks on an external service; never stall the read
		// loop for it.
		go func(prompt string) {
			if err := c.sess.GenerateScene(prompt); err != nil {
				c.sendError("generation failed")
			}
		}(msg.Prompt)
	default:
		c.log.WithField("type", msg.Type).Debug("unknown client message")
	}
}

func (c *Client) sendError(text string) {
	select {
	case c.send <- serverMessage{Type: "error", Error: text}:
	default:
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Debug("close websocket in writePump")
		}
	}()

	for {
		select {
		case <-c.sess.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("write websocket")
				c.sess.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.sess.Close()
				return
			}
		}
	}
}

func keyOf(name string) (session.Key, bool) {
	switch k := session.Key(name); k {
	case session.KeyForward, session.KeyBackward, session.KeyLeft,
		session.KeyRight, session.KeyJump, session.KeyDescend:
		return k, true
	default:
		return "", false
	}
}

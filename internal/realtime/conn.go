package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neexbeast/destinasi/internal/auth"
	"github.com/neexbeast/destinasi/internal/wishlist"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Sessions is the identity provider surface a connection needs.
type Sessions interface {
	GetCurrentSession(ctx context.Context, accessToken string) (*auth.Session, error)
	OnSessionChange(fn func(auth.Event)) (unsubscribe func())
}

// Server upgrades requests to sync connections.
type Server struct {
	hub      *Hub
	sessions Sessions
	store    wishlist.Store
	timeout  time.Duration
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, sessions Sessions, store wishlist.Store, timeout time.Duration, log *slog.Logger) *Server {
	return &Server{
		hub:      hub,
		sessions: sessions,
		store:    store,
		timeout:  timeout,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP runs one connection until the client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &Conn{
		ws:    ws,
		hub:   s.hub,
		auth:  s.sessions,
		ctrl:  wishlist.NewController(s.store, s.timeout, s.log),
		log:   s.log,
		ctx:   ctx,
		send:  make(chan []byte, sendBuffer),
		nudge: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	unsubSnapshot := c.ctrl.OnChange(c.pushSnapshot)
	unsubSession := s.sessions.OnSessionChange(c.onSessionEvent)
	s.hub.add(c)

	go c.writePump()
	go c.reconcileLoop()
	c.pushSnapshot(c.ctrl.Snapshot())

	c.readPump()

	unsubSession()
	s.hub.remove(c, c.currentUser())
	c.close()
	cancel()
	c.wait()
	unsubSnapshot()
}

// Conn is one browser context.
type Conn struct {
	ws   *websocket.Conn
	hub  *Hub
	auth Sessions
	ctrl *wishlist.Controller
	log  *slog.Logger
	ctx  context.Context

	send  chan []byte
	nudge chan struct{}
	done  chan struct{}
	once  sync.Once

	mu        sync.Mutex
	sessionID string
	userID    string
	closed    bool
	inflight  sync.WaitGroup
}

func (c *Conn) currentUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// spawn runs fn in a goroutine unless the connection is shutting down.
func (c *Conn) spawn(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		fn()
	}()
}

func (c *Conn) wait() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.inflight.Wait()
}

func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) requestReconcile() {
	select {
	case c.nudge <- struct{}{}:
	default:
	}
}

func (c *Conn) enqueue(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		c.log.Error("encoding sync message", "type", msg.Type, "err", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.log.Warn("sync client too slow, disconnecting", "user_id", c.currentUser())
		c.close()
	}
}

func (c *Conn) pushSnapshot(s wishlist.Snapshot) {
	c.enqueue(NewMessage(TypeMembership, s))
}

func (c *Conn) sendError(err error) {
	c.enqueue(NewMessage(TypeError, errorPayload(err)))
}

func (c *Conn) badRequest(msg string) {
	c.enqueue(NewMessage(TypeError, ErrorPayload{Kind: KindBadRequest, Message: msg}))
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("sync read failed", "err", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.badRequest("malformed message")
			continue
		}
		c.handle(msg)
	}
}

func (c *Conn) handle(msg ClientMessage) {
	switch msg.Type {
	case TypePing:
		c.enqueue(NewMessage(TypePong, nil))
	case TypeAuth:
		c.authenticate(msg.Token)
	case TypeRefresh:
		c.requestReconcile()
	case TypeToggle:
		if msg.DestinationID == "" {
			c.badRequest("destination_id is required")
			return
		}
		id := msg.DestinationID
		c.spawn(func() {
			res, err := c.ctrl.Toggle(c.ctx, id)
			if err != nil {
				c.sendError(err)
				return
			}
			c.enqueue(NewMessage(TypeToggleResult, res))
		})
	default:
		c.badRequest("unknown message type " + string(msg.Type))
	}
}

// authenticate binds the connection to the session behind token and loads
// its membership. An invalid token signs the connection out.
func (c *Conn) authenticate(token string) {
	sess, err := c.auth.GetCurrentSession(c.ctx, token)
	if err != nil {
		c.log.Warn("checking sync session", "err", err)
		c.sendError(err)
		return
	}

	c.mu.Lock()
	prev := c.userID
	if sess == nil {
		c.sessionID, c.userID = "", ""
	} else {
		c.sessionID, c.userID = sess.ID, sess.UserID
	}
	c.mu.Unlock()

	if sess == nil {
		c.hub.bind(c, prev, "")
		c.ctrl.OnAuthTransition(c.ctx, wishlist.SignedOut, "")
		c.sendError(&wishlist.Error{Kind: wishlist.KindAuthRequired, Op: "auth", Err: wishlist.ErrAuthRequired})
		return
	}

	c.hub.bind(c, prev, sess.UserID)
	if err := c.ctrl.OnAuthTransition(c.ctx, wishlist.SignedIn, sess.UserID); err != nil {
		c.sendError(err)
	}
}

// onSessionEvent reacts to transitions of the connection's own session.
func (c *Conn) onSessionEvent(ev auth.Event) {
	c.mu.Lock()
	mine := ev.SessionID != "" && ev.SessionID == c.sessionID
	userID := c.userID
	if mine && ev.Type == auth.EventSignedOut {
		c.sessionID, c.userID = "", ""
	}
	c.mu.Unlock()
	if !mine {
		return
	}

	switch ev.Type {
	case auth.EventSignedOut:
		c.hub.bind(c, userID, "")
		c.ctrl.OnAuthTransition(c.ctx, wishlist.SignedOut, "")
	case auth.EventTokenRefreshed:
		c.requestReconcile()
	}
}

func (c *Conn) reconcileLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.nudge:
			if err := c.ctrl.Reconcile(c.ctx); err != nil {
				c.sendError(err)
			}
		}
	}
}

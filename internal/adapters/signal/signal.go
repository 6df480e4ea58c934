// Package signal exposes the conference signaling surface over
// websockets: colibri-class request/response frames plus conference
// change events fanned out to subscribed connections.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/app"
	"github.com/vbridge-io/vbridge/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type SignalWSController struct {
	Bridge     *app.Bridge
	Policy     app.Policy
	Limiter    *RequestRateLimiter
	ReadLimit  int64
	PingPeriod time.Duration

	mu    sync.RWMutex
	conns map[string]*WsSignalConn
}

func NewSignalWSController(bridge *app.Bridge, policy app.Policy, limiter *RequestRateLimiter) *SignalWSController {
	return &SignalWSController{
		Bridge:  bridge,
		Policy:  policy,
		Limiter: limiter,
		conns:   make(map[string]*WsSignalConn),
	}
}

type WsSignalConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
	subs   map[domain.ConferenceID]struct{}
}

func (c *WsSignalConn) ID() string { return c.id }

func (c *WsSignalConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Subscribe marks the connection as interested in one conference's
// change events.
func (c *WsSignalConn) Subscribe(id domain.ConferenceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[id] = struct{}{}
}

func (c *WsSignalConn) SubscribedTo(id domain.ConferenceID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[id]
	return ok
}

func (ctl *SignalWSController) register(c *WsSignalConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.conns[c.id] = c
}

func (ctl *SignalWSController) unregister(c *WsSignalConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	delete(ctl.conns, c.id)
}

// subscribers returns a snapshot of the connections subscribed to one
// conference.
func (ctl *SignalWSController) subscribers(id domain.ConferenceID) []*WsSignalConn {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	out := make([]*WsSignalConn, 0, len(ctl.conns))
	for _, c := range ctl.conns {
		if c.SubscribedTo(id) {
			out = append(out, c)
		}
	}
	return out
}

// ConferenceModified implements app.Notifier: every connection
// subscribed to the conference receives a modified event. A subscriber
// whose queue is full is handled per the backpressure policy.
func (ctl *SignalWSController) ConferenceModified(id domain.ConferenceID) {
	ctl.broadcastEvent(id, eventDoc{ColibriClass: classConferenceModifiedEvent, ConferenceID: string(id)})
}

// ConferenceExpired implements app.Notifier.
func (ctl *SignalWSController) ConferenceExpired(id domain.ConferenceID) {
	ctl.broadcastEvent(id, eventDoc{ColibriClass: classConferenceExpiredEvent, ConferenceID: string(id)})
}

func (ctl *SignalWSController) broadcastEvent(id domain.ConferenceID, ev eventDoc) {
	for _, sub := range ctl.subscribers(id) {
		if err := ctl.sendJSON(sub, ev); err == nil {
			continue
		}
		switch ctl.Policy.OnBackpressure(id, sub.ID()) {
		case app.Disconnect:
			log.Warn().Str("module", "signal").Str("conn", sub.ID()).Str("conf", string(id)).Msg("slow subscriber dropped")
			ctl.unregister(sub)
			sub.Close()
		case app.DropEvent, app.NoAction:
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleColibri upgrades the request and runs the connection's read and
// write pumps until the context or the peer closes the socket.
func (ctl *SignalWSController) HandleColibri(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan []byte, 32),
		subs: make(map[domain.ConferenceID]struct{}),
	}
	ctl.register(conn)
	log.Info().Str("module", "signal").Str("sid", sid).Str("conn", conn.id).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	}()
}

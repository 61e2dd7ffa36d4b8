// Package signal is the WebSocket delivery fabric: connections subscribe to
// room topics, send signaling messages to /app/signaling/<code>, and receive
// unicast deliveries addressed to their member identity.
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

	"github.com/dkeye/Call/internal/app"
	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
	ErrNoSession    = errors.New("recipient has no live session")
)

// MemberKey is the gin context key under which the identity middleware
// stores the authenticated domain.MemberID.
const MemberKey = "member_id"

// Handler consumes identity-stamped signaling messages.
type Handler interface {
	Handle(ctx context.Context, code domain.RoomCode, msg domain.SignalingMessage)
}

// RoomReader lets the fabric check who may listen on a room topic.
type RoomReader interface {
	FindByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
	RateLimit  float64
	RateBurst  int
}

func (o *Options) withDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
}

// SignalWSController owns every signaling connection and implements
// core.Fabric over them. Router must be set before connections arrive.
type SignalWSController struct {
	Registry *app.Registry
	Policy   app.Policy
	Rooms    RoomReader
	Router   Handler

	limiter  *MemberRateLimiter
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(reg *app.Registry, policy app.Policy, rooms RoomReader, opts Options) *SignalWSController {
	opts.withDefaults()
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	return &SignalWSController{
		Registry: reg,
		Policy:   policy,
		Rooms:    rooms,
		limiter:  NewMemberRateLimiter(opts.RateLimit, opts.RateBurst),
		opts:     opts,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{SubprotocolJSON, SubprotocolMsgpack},
			CheckOrigin:  func(r *http.Request) bool { return true },
		},
	}
}

var _ core.Fabric = (*SignalWSController)(nil)

type WsSignalConn struct {
	conn  *websocket.Conn
	send  chan core.Frame
	codec Codec

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
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

func (c *WsSignalConn) Codec() Codec { return c.codec }

// HandleSignal upgrades an authenticated request and starts its pumps.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	member, ok := c.Get(MemberKey)
	id, isID := member.(domain.MemberID)
	if !ok || !isID || id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn:  ws,
		send:  make(chan core.Frame, ctl.opts.SendBuffer),
		codec: CodecFor(ws.Subprotocol()),
	}
	sid := core.SessionID(uuid.NewString())
	sess := core.NewMemberSession(id, conn)

	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.BindSignal(sid, sess, cancel)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Int64("member", int64(id)).
		Str("codec", conn.codec.Name()).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, sess, conn)
}

// Sessions reports how many connections are live.
func (ctl *SignalWSController) Sessions() int { return ctl.Registry.Count() }

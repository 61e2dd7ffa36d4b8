package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(c.codec.MessageType(), data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, sess core.MemberSession, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Registry.Cancel(sid)
		ctl.Registry.Unbind(sid)
		if len(ctl.Registry.SessionsOf(sess.Member())) == 0 {
			ctl.limiter.Forget(sess.Member())
		}
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
			ctl.handleFrame(ctx, sid, sess, c, data)
		}
	}
}

func (ctl *SignalWSController) handleFrame(ctx context.Context, sid core.SessionID, sess core.MemberSession, c *WsSignalConn, data []byte) {
	// every inbound frame spends a token, undecodable ones included
	if !ctl.limiter.Allow(sess.Member()) {
		log.Warn().Str("module", "signal").Int64("member", int64(sess.Member())).Msg("rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}
	var f clientFrame
	if err := c.codec.Decode(data, &f); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad frame")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch f.Op {
	case "send":
		ctl.handleSend(ctx, sess, c, f)
	case "subscribe":
		ctl.handleSubscribe(ctx, sid, sess, c, f)
	case "unsubscribe":
		ctl.handleUnsubscribe(sid, c, f)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("op", f.Op).Msg("unknown op")
		ctl.sendError(c, "unknown_op")
	}
}

// sendFrame writes directly to one connection, bypassing topic routing.
func (ctl *SignalWSController) sendFrame(c *WsSignalConn, f serverFrame) {
	b, err := c.codec.Encode(f)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendFrame encode")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, text string) {
	ctl.sendFrame(c, serverFrame{Destination: core.UserPrefix + core.QueueErrors, Payload: text})
}

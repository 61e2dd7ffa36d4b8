package signal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
)

// handleSubscribe lets a connection listen on a room topic. Only the room's
// creator and guest may subscribe; anything else gets an error frame.
func (ctl *SignalWSController) handleSubscribe(ctx context.Context, sid core.SessionID, sess core.MemberSession, c *WsSignalConn, f clientFrame) {
	code, ok := core.RoomFromTopic(f.Destination)
	if !ok {
		ctl.sendError(c, "bad_destination")
		return
	}
	room, err := ctl.Rooms.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			ctl.sendError(c, "room not found: "+string(code))
			return
		}
		log.Error().Err(err).Str("module", "signal").Str("room", string(code)).Msg("subscribe lookup")
		ctl.sendError(c, "internal_error")
		return
	}
	if !room.HasParticipant(sess.Member()) {
		log.Warn().Str("module", "signal").Str("room", string(code)).Int64("member", int64(sess.Member())).Msg("subscribe denied")
		ctl.sendError(c, "forbidden")
		return
	}
	topic := core.RoomTopic(room.Code)
	if !ctl.Registry.Subscribe(sid, topic) {
		return
	}
	// The room may have been removed (and its topic dropped) between the
	// lookup and Subscribe; a listener left behind would hear a later room
	// that reuses the code.
	if _, err := ctl.Rooms.FindByCode(ctx, room.Code); err != nil {
		ctl.Registry.Unsubscribe(sid, topic)
		log.Warn().Err(err).Str("module", "signal").Str("room", string(code)).Msg("room gone during subscribe")
		ctl.sendError(c, "room not found: "+string(code))
		return
	}
	ctl.sendFrame(c, serverFrame{Op: "receipt", Destination: topic})
}

func (ctl *SignalWSController) handleUnsubscribe(sid core.SessionID, c *WsSignalConn, f clientFrame) {
	code, ok := core.RoomFromTopic(f.Destination)
	if !ok {
		ctl.sendError(c, "bad_destination")
		return
	}
	topic := core.RoomTopic(code)
	ctl.Registry.Unsubscribe(sid, topic)
	ctl.sendFrame(c, serverFrame{Op: "receipt", Destination: topic})
}

// handleSend hands a message to the router. The sender field is always
// replaced with the connection's identity.
func (ctl *SignalWSController) handleSend(ctx context.Context, sess core.MemberSession, c *WsSignalConn, f clientFrame) {
	code, ok := core.RoomFromAppDestination(f.Destination)
	if !ok {
		ctl.sendError(c, "bad_destination")
		return
	}
	if f.Message == nil {
		ctl.sendError(c, "bad_payload")
		return
	}
	if ctl.Router == nil {
		log.Error().Str("module", "signal").Msg("no router attached")
		return
	}
	msg := *f.Message
	msg.FromID = sess.Member()
	ctl.Router.Handle(ctx, code, msg)
}

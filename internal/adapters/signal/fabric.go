package signal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/app"
	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

// SendToUser delivers payload to every live session of one member under
// /user<destination>.
func (ctl *SignalWSController) SendToUser(ctx context.Context, to domain.MemberID, destination string, payload any) error {
	sessions := ctl.Registry.SessionsOf(to)
	if len(sessions) == 0 {
		log.Debug().Str("module", "signal").Int64("member", int64(to)).Str("dest", destination).Msg("recipient offline")
		return ErrNoSession
	}
	f := serverFrame{Destination: core.UserPrefix + destination, Payload: payload}
	ctl.deliver(sessions, f)
	return nil
}

// Broadcast fans payload out to every subscriber of topic. No subscribers is
// not an error.
func (ctl *SignalWSController) Broadcast(ctx context.Context, topic string, payload any) error {
	subs := ctl.Registry.Subscribers(topic)
	if len(subs) == 0 {
		return nil
	}
	ctl.deliver(subs, serverFrame{Destination: topic, Payload: payload})
	return nil
}

// deliver encodes once per codec and queues the frame on each session.
func (ctl *SignalWSController) deliver(targets []app.SessionSnap, f serverFrame) {
	encoded := make(map[string]core.Frame, 2)
	for _, t := range targets {
		conn := t.Session.Signal()
		codec := JSON
		if wc, ok := conn.(*WsSignalConn); ok {
			codec = wc.Codec()
		}
		b, ok := encoded[codec.Name()]
		if !ok {
			var err error
			b, err = codec.Encode(f)
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("codec", codec.Name()).Msg("encode frame")
				continue
			}
			encoded[codec.Name()] = b
		}
		if err := conn.TrySend(b); err != nil {
			ctl.onSendError(t, err)
		}
	}
}

func (ctl *SignalWSController) onSendError(t app.SessionSnap, err error) {
	if !errors.Is(err, ErrBackpressure) {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(t.SID)).Msg("send skipped")
		return
	}
	switch ctl.Policy.OnBackPressure(t.Session) {
	case app.KickSession:
		log.Warn().Str("module", "signal").Str("sid", string(t.SID)).Msg("slow consumer kicked")
		ctl.Registry.Cancel(t.SID)
		t.Session.Signal().Close()
	case app.DropFrame:
		log.Warn().Str("module", "signal").Str("sid", string(t.SID)).Msg("frame dropped")
	}
}

// Package signaling relays WebRTC call setup traffic inside a room.
//
// Every inbound message re-resolves its room in the directory; the router
// keeps no room state and takes no locks. offer and answer go point-to-point
// to their recipient, connection-state events and leave go to the room topic,
// and leave then destroys the room. Relays are at-least-once: a redelivered
// message is relayed again, nothing is deduplicated.
package signaling

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

// Rooms is the part of the room directory the router reads and tears down.
type Rooms interface {
	FindByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	Remove(ctx context.Context, code domain.RoomCode) (domain.RoomID, error)
}

type Router struct {
	Rooms  Rooms
	Fabric core.Fabric
}

func NewRouter(rooms Rooms, fabric core.Fabric) *Router {
	return &Router{Rooms: rooms, Fabric: fabric}
}

// Handle routes one identity-stamped message addressed to code. It never
// fails towards its caller: a missing room becomes an error on the sender's
// error queue, malformed and unknown messages are logged and dropped.
func (r *Router) Handle(ctx context.Context, code domain.RoomCode, msg domain.SignalingMessage) {
	logger := log.With().
		Str("module", "signaling").
		Str("room", string(code)).
		Str("type", msg.Type).
		Int64("from", int64(msg.FromID)).
		Logger()

	if _, err := r.Rooms.FindByCode(ctx, code); err != nil {
		r.rejectRoom(ctx, &logger, code, msg, err)
		return
	}
	logger.Info().Msg("received")

	kind := msg.Kind()
	switch kind.Delivery() {
	case domain.DeliveryUnicast:
		r.relayUnicast(ctx, &logger, kind, msg)
	case domain.DeliveryBroadcast:
		r.relayBroadcast(ctx, &logger, code, msg)
		if kind == domain.KindLeave {
			r.teardown(ctx, &logger, code)
		}
	case domain.DeliveryDrop:
		logger.Warn().Msg("unrecognized message type, dropped")
	}
}

func (r *Router) rejectRoom(ctx context.Context, logger *zerolog.Logger, code domain.RoomCode, msg domain.SignalingMessage, err error) {
	if !errors.Is(err, core.ErrNotFound) {
		logger.Error().Err(err).Msg("room lookup failed, dropped")
		return
	}
	logger.Error().Msg("room not found")
	if msg.FromID == 0 {
		return
	}
	payload := "room not found: " + string(code)
	if err := r.Fabric.SendToUser(ctx, msg.FromID, core.QueueErrors, payload); err != nil {
		logger.Error().Err(err).Msg("error notification not delivered")
	}
}

// relayUnicast fails closed: without a recipient and a descriptor the
// message is dropped and the sender gets no negative acknowledgement.
func (r *Router) relayUnicast(ctx context.Context, logger *zerolog.Logger, kind domain.Kind, msg domain.SignalingMessage) {
	if !msg.HasDescriptor() {
		logger.Error().Bool("has_to", msg.ToID != nil).Bool("has_sdp", msg.SDP != nil).
			Msgf("invalid %s message: missing recipient or sdp", kind)
		return
	}
	to := *msg.ToID
	logger.Info().Int64("to", int64(to)).Msgf("relaying %s", kind)
	if err := r.Fabric.SendToUser(ctx, to, core.QueueSignaling, msg); err != nil {
		logger.Error().Err(err).Int64("to", int64(to)).Msg("unicast relay failed")
	}
}

func (r *Router) relayBroadcast(ctx context.Context, logger *zerolog.Logger, code domain.RoomCode, msg domain.SignalingMessage) {
	topic := core.RoomTopic(code)
	if msg.Kind() == domain.KindConnectionFailed {
		logger.Warn().Msg("peer connection failed")
	}
	if err := r.Fabric.Broadcast(ctx, topic, msg); err != nil {
		logger.Error().Err(err).Str("topic", topic).Msg("broadcast relay failed")
	}
}

// teardown removes the room after a leave. Losing a race against the other
// participant's leave (or an admin delete) means the room is already gone.
func (r *Router) teardown(ctx context.Context, logger *zerolog.Logger, code domain.RoomCode) {
	_, err := r.Rooms.Remove(ctx, code)
	switch {
	case err == nil:
		logger.Info().Msg("room removed after leave")
	case errors.Is(err, core.ErrNotFound):
		logger.Warn().Msg("room was already removed")
	default:
		logger.Error().Err(err).Msg("room removal failed")
	}
}

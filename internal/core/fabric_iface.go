package core

import (
	"context"
	"strings"

	"github.com/dkeye/Call/internal/domain"
)

// Destinations and address prefixes shared by the router and the fabric.
const (
	AppPrefix           = "/app"
	UserPrefix          = "/user"
	SignalingPath       = "/signaling/"
	TopicSignalingPath  = "/topic/signaling/"
	QueueSignaling      = "/queue/signaling"
	QueueErrors         = "/queue/errors"
	AppSignalingPattern = AppPrefix + SignalingPath
)

//go:generate mockgen -source=fabric_iface.go -destination=mocks/mock_fabric.go -package=mocks

// Fabric is the publish/subscribe transport the router relays through.
type Fabric interface {
	// SendToUser delivers payload to every connection of one identity.
	SendToUser(ctx context.Context, to domain.MemberID, destination string, payload any) error
	// Broadcast fans payload out to every subscriber of topic, sender included.
	Broadcast(ctx context.Context, topic string, payload any) error
}

func RoomTopic(code domain.RoomCode) string { return TopicSignalingPath + string(code) }

// RoomFromTopic extracts the code of a room topic.
func RoomFromTopic(topic string) (domain.RoomCode, bool) {
	return codeAfter(topic, TopicSignalingPath)
}

// RoomFromAppDestination extracts the code of an inbound signaling address.
func RoomFromAppDestination(dest string) (domain.RoomCode, bool) {
	return codeAfter(dest, AppSignalingPattern)
}

func codeAfter(addr, prefix string) (domain.RoomCode, bool) {
	rest, ok := strings.CutPrefix(addr, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return domain.NormalizeRoomCode(rest), true
}

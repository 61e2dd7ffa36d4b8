package domain

// Kind is the closed set of signaling message kinds. Every kind added here
// must be given a Delivery in Kind.Delivery.
type Kind uint8

const (
	KindUnrecognized Kind = iota
	KindOffer
	KindAnswer
	KindConnected
	KindDisconnected
	KindConnectionFailed
	KindLeave
)

var kindNames = map[Kind]string{
	KindOffer:            "offer",
	KindAnswer:           "answer",
	KindConnected:        "connected",
	KindDisconnected:     "disconnected",
	KindConnectionFailed: "connection-failed",
	KindLeave:            "leave",
}

// Kinds lists every recognized kind.
func Kinds() []Kind {
	return []Kind{KindOffer, KindAnswer, KindConnected, KindDisconnected, KindConnectionFailed, KindLeave}
}

func ParseKind(tag string) Kind {
	for k, name := range kindNames {
		if name == tag {
			return k
		}
	}
	return KindUnrecognized
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unrecognized"
}

// Delivery is how the router relays a kind.
type Delivery uint8

const (
	DeliveryDrop Delivery = iota
	DeliveryUnicast
	DeliveryBroadcast
)

func (d Delivery) String() string {
	switch d {
	case DeliveryUnicast:
		return "unicast"
	case DeliveryBroadcast:
		return "broadcast"
	default:
		return "drop"
	}
}

// Delivery has no broadcast fallback: an unlisted kind is dropped.
func (k Kind) Delivery() Delivery {
	switch k {
	case KindOffer, KindAnswer:
		return DeliveryUnicast
	case KindConnected, KindDisconnected, KindConnectionFailed, KindLeave:
		return DeliveryBroadcast
	case KindUnrecognized:
		return DeliveryDrop
	default:
		return DeliveryDrop
	}
}

// SignalingMessage is the flat wire unit relayed between the two participants.
// Nil pointers stay null on the wire so relays are verbatim.
type SignalingMessage struct {
	Type     string    `json:"type" msgpack:"type"`
	RoomCode RoomCode  `json:"roomCode" msgpack:"roomCode"`
	FromID   MemberID  `json:"fromId" msgpack:"fromId"`
	ToID     *MemberID `json:"toId" msgpack:"toId"`
	SDP      *string   `json:"sdp" msgpack:"sdp"`
}

func (m SignalingMessage) Kind() Kind { return ParseKind(m.Type) }

// HasDescriptor reports whether the unicast precondition holds: a recipient
// and a session descriptor are both present.
func (m SignalingMessage) HasDescriptor() bool {
	return m.ToID != nil && m.SDP != nil
}

package signal

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/shamaton/msgpack/v2"

	"github.com/dkeye/Call/internal/domain"
)

// Subprotocols offered on the upgrade; the first one is the default.
const (
	SubprotocolJSON    = "signal.json"
	SubprotocolMsgpack = "signal.msgpack"
)

// Codec frames payloads for one connection.
type Codec interface {
	Name() string
	MessageType() int
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                    { return SubprotocolJSON }
func (jsonCodec) MessageType() int                { return websocket.TextMessage }
func (jsonCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (jsonCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                    { return SubprotocolMsgpack }
func (msgpackCodec) MessageType() int                { return websocket.BinaryMessage }
func (msgpackCodec) Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func (msgpackCodec) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// CodecFor maps a negotiated subprotocol to its codec; no subprotocol means JSON.
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgpack {
		return Msgpack
	}
	return JSON
}

// clientFrame is what a connection sends to the fabric.
type clientFrame struct {
	Op          string                   `json:"op" msgpack:"op"`
	Destination string                   `json:"destination,omitempty" msgpack:"destination"`
	Message     *domain.SignalingMessage `json:"message,omitempty" msgpack:"message"`
}

// serverFrame is what the fabric pushes to a connection. Op is set for
// control replies (pong, receipt), Destination for deliveries.
type serverFrame struct {
	Op          string `json:"op,omitempty" msgpack:"op"`
	Destination string `json:"destination,omitempty" msgpack:"destination"`
	Payload     any    `json:"payload,omitempty" msgpack:"payload"`
}

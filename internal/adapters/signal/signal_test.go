package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shamaton/msgpack/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Call/internal/adapters/store/memory"
	"github.com/dkeye/Call/internal/app"
	"github.com/dkeye/Call/internal/app/signaling"
	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

type harness struct {
	srv   *httptest.Server
	ctl   *SignalWSController
	rooms *app.RoomDirectory
	reg   *app.Registry
	alice *domain.Member
	bob   *domain.Member
	carol *domain.Member
	room  *domain.Room
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	members := app.NewMemberDirectory(memory.NewMemberStore())
	rooms := app.NewRoomDirectory(memory.NewRoomStore(), members)
	reg := app.NewRegistry()
	rooms.OnRemoved(func(code domain.RoomCode) { reg.DropTopic(core.RoomTopic(code)) })

	ctl := NewSignalWSController(reg, app.SimplePolicy{}, rooms, Options{PongWait: 5 * time.Second})
	ctl.Router = signaling.NewRouter(rooms, ctl)

	r := gin.New()
	r.GET("/ws-signaling", func(c *gin.Context) {
		if id, err := domain.ParseMemberID(c.Query("member")); err == nil {
			c.Set(MemberKey, id)
		}
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	h := &harness{srv: srv, ctl: ctl, rooms: rooms, reg: reg}
	var err error
	h.alice, err = members.Register(ctx, "alice")
	require.NoError(t, err)
	h.bob, err = members.Register(ctx, "bob")
	require.NoError(t, err)
	h.carol, err = members.Register(ctx, "carol")
	require.NoError(t, err)
	h.room, err = rooms.CreatePaired(ctx, h.alice.ID, h.bob.ID)
	require.NoError(t, err)
	return h
}

type inbound struct {
	Op          string          `json:"op"`
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload"`
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

// dial connects as member and waits for a pong so the session is bound
// before the test continues.
func (h *harness) dial(t *testing.T, member domain.MemberID, subprotocol string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws-signaling?member=" + strconv.FormatInt(int64(member), 10)
	d := websocket.Dialer{Subprotocols: []string{subprotocol}}
	ws, _, err := d.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	c := &client{t: t, ws: ws}
	if subprotocol == SubprotocolJSON {
		c.send(clientFrame{Op: "ping"})
		assert.Equal(t, "pong", c.read().Op)
	}
	return c
}

func (c *client) send(f clientFrame) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(f))
}

func (c *client) read() inbound {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var in inbound
	require.NoError(c.t, c.ws.ReadJSON(&in))
	return in
}

func (c *client) subscribe(code domain.RoomCode) {
	c.t.Helper()
	c.send(clientFrame{Op: "subscribe", Destination: core.RoomTopic(code)})
	in := c.read()
	require.Equal(c.t, "receipt", in.Op, "payload: %s", in.Payload)
	require.Equal(c.t, core.RoomTopic(code), in.Destination)
}

func (c *client) signal(code domain.RoomCode, msg domain.SignalingMessage) {
	c.t.Helper()
	c.send(clientFrame{Op: "send", Destination: core.AppSignalingPattern + string(code), Message: &msg})
}

func (c *client) expectMessage(dest string) domain.SignalingMessage {
	c.t.Helper()
	in := c.read()
	require.Equal(c.t, dest, in.Destination, "payload: %s", in.Payload)
	var msg domain.SignalingMessage
	require.NoError(c.t, json.Unmarshal(in.Payload, &msg))
	return msg
}

func (c *client) expectError() string {
	c.t.Helper()
	in := c.read()
	require.Equal(c.t, core.UserPrefix+core.QueueErrors, in.Destination)
	var text string
	require.NoError(c.t, json.Unmarshal(in.Payload, &text))
	return text
}

func ptr[T any](v T) *T { return &v }

func TestOfferReachesRecipientOnly(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON)
	bob := h.dial(t, h.bob.ID, SubprotocolJSON)

	alice.signal(h.room.Code, domain.SignalingMessage{Type: "offer", ToID: ptr(h.bob.ID), SDP: ptr("v=0 offer")})

	got := bob.expectMessage(core.UserPrefix + core.QueueSignaling)
	assert.Equal(t, "offer", got.Type)
	assert.Equal(t, h.alice.ID, got.FromID)
	require.NotNil(t, got.SDP)
	assert.Equal(t, "v=0 offer", *got.SDP)

	// alice hears nothing but her own pong
	alice.send(clientFrame{Op: "ping"})
	assert.Equal(t, "pong", alice.read().Op)
}

func TestSenderIdentityIsStamped(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON)
	bob := h.dial(t, h.bob.ID, SubprotocolJSON)

	alice.signal(h.room.Code, domain.SignalingMessage{Type: "answer", FromID: h.carol.ID, ToID: ptr(h.bob.ID), SDP: ptr("")})

	got := bob.expectMessage(core.UserPrefix + core.QueueSignaling)
	assert.Equal(t, h.alice.ID, got.FromID)
}

func TestBroadcastIncludesSender(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON)
	bob := h.dial(t, h.bob.ID, SubprotocolJSON)
	alice.subscribe(h.room.Code)
	bob.subscribe(h.room.Code)

	bob.signal(h.room.Code, domain.SignalingMessage{Type: "connected"})

	topic := core.RoomTopic(h.room.Code)
	for _, c := range []*client{alice, bob} {
		got := c.expectMessage(topic)
		assert.Equal(t, "connected", got.Type)
		assert.Equal(t, h.bob.ID, got.FromID)
	}
}

func TestLeaveBroadcastsThenRemovesRoom(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON)
	bob := h.dial(t, h.bob.ID, SubprotocolJSON)
	alice.subscribe(h.room.Code)
	bob.subscribe(h.room.Code)

	alice.signal(h.room.Code, domain.SignalingMessage{Type: "leave"})

	topic := core.RoomTopic(h.room.Code)
	assert.Equal(t, "leave", bob.expectMessage(topic).Type)
	assert.Equal(t, "leave", alice.expectMessage(topic).Type)

	require.Eventually(t, func() bool {
		_, err := h.rooms.FindByCode(context.Background(), h.room.Code)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, h.reg.Subscribers(topic))

	bob.signal(h.room.Code, domain.SignalingMessage{Type: "leave"})
	assert.Equal(t, "room not found: "+string(h.room.Code), bob.expectError())
}

func TestUnknownRoomReportsToSender(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON)

	alice.signal("zzzzzz", domain.SignalingMessage{Type: "offer", ToID: ptr(h.bob.ID), SDP: ptr("x")})

	assert.Equal(t, "room not found: ZZZZZZ", alice.expectError())
}

func TestSubscribeRequiresParticipant(t *testing.T) {
	h := newHarness(t)
	carol := h.dial(t, h.carol.ID, SubprotocolJSON)

	carol.send(clientFrame{Op: "subscribe", Destination: core.RoomTopic(h.room.Code)})
	assert.Equal(t, "forbidden", carol.expectError())

	carol.send(clientFrame{Op: "subscribe", Destination: "/topic/other"})
	assert.Equal(t, "bad_destination", carol.expectError())

	carol.send(clientFrame{Op: "subscribe", Destination: core.RoomTopic("NOPE00")})
	assert.Equal(t, "room not found: NOPE00", carol.expectError())
}

func TestUnknownOpAndBadDestination(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON)

	alice.send(clientFrame{Op: "dance"})
	assert.Equal(t, "unknown_op", alice.expectError())

	alice.send(clientFrame{Op: "send", Destination: "/app/other/" + string(h.room.Code), Message: &domain.SignalingMessage{Type: "leave"}})
	assert.Equal(t, "bad_destination", alice.expectError())

	alice.send(clientFrame{Op: "send", Destination: core.AppSignalingPattern + string(h.room.Code)})
	assert.Equal(t, "bad_payload", alice.expectError())
}

func TestMsgpackSubprotocol(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON)
	bob := h.dial(t, h.bob.ID, SubprotocolMsgpack)
	assert.Equal(t, SubprotocolMsgpack, bob.ws.Subprotocol())

	ping, err := msgpack.Marshal(clientFrame{Op: "ping"})
	require.NoError(t, err)
	require.NoError(t, bob.ws.WriteMessage(websocket.BinaryMessage, ping))
	readPack := func() (int, []byte) {
		require.NoError(t, bob.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
		mt, data, err := bob.ws.ReadMessage()
		require.NoError(t, err)
		return mt, data
	}
	mt, data := readPack()
	assert.Equal(t, websocket.BinaryMessage, mt)
	var pong struct {
		Op string `msgpack:"op"`
	}
	require.NoError(t, msgpack.Unmarshal(data, &pong))
	assert.Equal(t, "pong", pong.Op)

	alice.signal(h.room.Code, domain.SignalingMessage{Type: "offer", ToID: ptr(h.bob.ID), SDP: ptr("sdp")})

	_, data = readPack()
	var got struct {
		Destination string                  `msgpack:"destination"`
		Payload     domain.SignalingMessage `msgpack:"payload"`
	}
	require.NoError(t, msgpack.Unmarshal(data, &got))
	assert.Equal(t, core.UserPrefix+core.QueueSignaling, got.Destination)
	assert.Equal(t, "offer", got.Payload.Type)
	assert.Equal(t, h.alice.ID, got.Payload.FromID)
}

func TestRejectsAnonymousUpgrade(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws-signaling"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimitedFramesAreRejected(t *testing.T) {
	h := newHarness(t)
	h.ctl.limiter = NewMemberRateLimiter(0.001, 2)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON) // spends one token

	alice.send(clientFrame{Op: "ping"})
	assert.Equal(t, "pong", alice.read().Op)
	alice.send(clientFrame{Op: "ping"})
	assert.Equal(t, "rate_limited", alice.expectError())
}

func TestUndecodableFramesSpendTokens(t *testing.T) {
	h := newHarness(t)
	h.ctl.limiter = NewMemberRateLimiter(0.001, 2)
	alice := h.dial(t, h.alice.ID, SubprotocolJSON) // spends one token

	send := func() {
		require.NoError(t, alice.ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	}
	send()
	assert.Equal(t, "bad_payload", alice.expectError())
	for i := 0; i < 5; i++ {
		send()
		assert.Equal(t, "rate_limited", alice.expectError())
	}
}

// vanishingRooms finds the room once, then reports it gone, as if a leave
// removed it while the subscription was being recorded.
type vanishingRooms struct {
	room  *domain.Room
	calls atomic.Int32
}

func (v *vanishingRooms) FindByCode(_ context.Context, code domain.RoomCode) (*domain.Room, error) {
	if v.calls.Add(1) == 1 && code == v.room.Code {
		cp := *v.room
		return &cp, nil
	}
	return nil, core.ErrRoomNotFound
}

func TestSubscribeToRoomRemovedMidway(t *testing.T) {
	reg := app.NewRegistry()
	rooms := &vanishingRooms{room: &domain.Room{ID: 1, Code: "AB12CD", CreatorID: 1, GuestID: 2, Active: true}}
	ctl := NewSignalWSController(reg, nil, rooms, Options{})

	conn := &WsSignalConn{send: make(chan core.Frame, 4), codec: JSON}
	sess := core.NewMemberSession(1, conn)
	reg.BindSignal("s1", sess, nil)

	topic := core.RoomTopic("AB12CD")
	ctl.handleSubscribe(context.Background(), "s1", sess, conn, clientFrame{Op: "subscribe", Destination: topic})

	assert.Empty(t, reg.Subscribers(topic))
	require.Len(t, conn.send, 1)
	var in inbound
	require.NoError(t, json.Unmarshal(<-conn.send, &in))
	assert.Equal(t, core.UserPrefix+core.QueueErrors, in.Destination)
	assert.JSONEq(t, `"room not found: AB12CD"`, string(in.Payload))
}

type stubConn struct {
	err    error
	sent   atomic.Int32
	closed atomic.Bool
}

func (s *stubConn) TrySend(core.Frame) error {
	if s.err != nil {
		return s.err
	}
	s.sent.Add(1)
	return nil
}
func (s *stubConn) Close() { s.closed.Store(true) }

func TestSendToUserReachesEverySession(t *testing.T) {
	reg := app.NewRegistry()
	ctl := NewSignalWSController(reg, nil, nil, Options{})
	a, b := &stubConn{}, &stubConn{}
	reg.BindSignal("s1", core.NewMemberSession(7, a), nil)
	reg.BindSignal("s2", core.NewMemberSession(7, b), nil)

	require.NoError(t, ctl.SendToUser(context.Background(), 7, core.QueueSignaling, "hi"))
	assert.EqualValues(t, 1, a.sent.Load())
	assert.EqualValues(t, 1, b.sent.Load())

	err := ctl.SendToUser(context.Background(), 8, core.QueueSignaling, "hi")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestBroadcastWithoutSubscribersIsNoop(t *testing.T) {
	ctl := NewSignalWSController(app.NewRegistry(), nil, nil, Options{})
	assert.NoError(t, ctl.Broadcast(context.Background(), core.RoomTopic("ABC123"), "x"))
}

func TestBackpressurePolicy(t *testing.T) {
	tests := []struct {
		name       string
		policy     app.Policy
		wantClosed bool
	}{
		{"kick", app.SimplePolicy{}, true},
		{"drop", app.DropPolicy{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := app.NewRegistry()
			ctl := NewSignalWSController(reg, tt.policy, nil, Options{})
			slow := &stubConn{err: ErrBackpressure}
			var canceled atomic.Bool
			reg.BindSignal("slow", core.NewMemberSession(3, slow), func() { canceled.Store(true) })
			reg.Subscribe("slow", core.RoomTopic("ABC123"))

			require.NoError(t, ctl.Broadcast(context.Background(), core.RoomTopic("ABC123"), "x"))
			assert.Equal(t, tt.wantClosed, slow.closed.Load())
			assert.Equal(t, tt.wantClosed, canceled.Load())
		})
	}
}

func TestWsSignalConnTrySend(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1), codec: JSON}
	require.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), ErrBackpressure)
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/infrastructure/bus"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/presence"
	"employee_chat_server/pkg/constants"
	"employee_chat_server/pkg/errorx"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type stubMessenger struct {
	mu     sync.Mutex
	sent   []request.SendMessageRequest
	opened []model.Conversation
	closed []model.Conversation
	typing []bool
}

func (m *stubMessenger) Send(_ context.Context, _ string, req request.SendMessageRequest) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, req)
	return &model.Message{ID: int64(len(m.sent))}, nil
}

func (m *stubMessenger) Open(_ context.Context, _ string, conv model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, conv)
	return nil
}

func (m *stubMessenger) Close(_ context.Context, _ string, conv model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, conv)
	return nil
}

func (m *stubMessenger) closedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.closed)
}

func (m *stubMessenger) Typing(_ context.Context, _ string, _ model.Conversation, typing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, typing)
}

func (m *stubMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type stubDirectory struct {
	groups map[string][]directory.Group
}

func (d stubDirectory) ListMembers(context.Context, model.Kind, string) ([]string, error) {
	return nil, nil
}

func (d stubDirectory) TeamsOf(_ context.Context, userID string) ([]directory.Group, error) {
	return d.groups[userID], nil
}

func (d stubDirectory) EmployeeDisplay(_ context.Context, userID string) (directory.Employee, error) {
	return directory.Employee{ID: userID, Name: userID}, nil
}

type fixture struct {
	gw       *Gateway
	bus      *bus.LocalBus
	tracker  presence.Tracker
	messages *stubMessenger
	server   *httptest.Server
}

func newFixture(t *testing.T, dir directory.Directory) *fixture {
	t.Helper()
	b := bus.NewLocalBus(64)
	f := &fixture{bus: b, tracker: presence.NewTracker(), messages: &stubMessenger{}}
	f.gw = NewGateway(Deps{Messages: f.messages, Presence: f.tracker, Directory: dir, Bus: b})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = f.gw.Run(ctx) }()

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = f.gw.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		f.gw.Shutdown()
		f.server.Close()
		cancel()
		_ = b.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return f.gw.Hub().HasUser(user) }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func (f *fixture) subscribers(topic string) int {
	f.gw.hub.mu.RLock()
	defer f.gw.hub.mu.RUnlock()
	return len(f.gw.hub.topics[topic])
}

// expect 读取帧直到目的地匹配，跳过其它推送（如在线状态）
func expect(t *testing.T, conn *websocket.Conn, destination string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", destination)
		var fr Frame
		require.NoError(t, json.Unmarshal(raw, &fr))
		if fr.Destination == destination {
			return fr.Payload
		}
	}
}

func publish(t *testing.T, b *bus.LocalBus, env *event.Envelope) {
	t.Helper()
	require.NoError(t, b.Publish(context.Background(), env))
}

func TestPrivateMessageAckAndDelivered(t *testing.T) {
	f := newFixture(t, stubDirectory{})
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	view := &respond.MessageView{ID: 42, SenderID: "alice", ReceiverID: "bob", Kind: model.KindPrivate, Content: "hi", ClientID: "c-1"}
	publish(t, f.bus, event.NewMessageEnvelope(event.TypeMessage, view))

	var got respond.MessageView
	require.NoError(t, json.Unmarshal(expect(t, bob, constants.DestPrivate), &got))
	require.Equal(t, int64(42), got.ID)
	require.Equal(t, "hi", got.Content)

	var ack respond.Ack
	require.NoError(t, json.Unmarshal(expect(t, alice, constants.DestPrivateAck), &ack))
	require.Equal(t, "c-1", ack.ClientID)
	require.Equal(t, int64(42), ack.MessageID)
	require.Equal(t, "bob", ack.ChatID)

	var status respond.StatusUpdate
	require.NoError(t, json.Unmarshal(expect(t, alice, constants.DestPrivate), &status))
	require.Equal(t, respond.StatusDelivered, status.Status)
	require.Equal(t, []string{"42"}, status.MessageIDs)
}

func TestPrivateMessageSeenStatus(t *testing.T) {
	f := newFixture(t, stubDirectory{})
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	view := &respond.MessageView{ID: 7, SenderID: "alice", ReceiverID: "bob", Kind: model.KindPrivate, Seen: true}
	publish(t, f.bus, event.NewMessageEnvelope(event.TypeMessage, view))

	var got respond.MessageView
	require.NoError(t, json.Unmarshal(expect(t, bob, constants.DestPrivate), &got))
	require.True(t, got.Seen)

	expect(t, alice, constants.DestPrivateAck)
	var status respond.StatusUpdate
	require.NoError(t, json.Unmarshal(expect(t, alice, constants.DestPrivate), &status))
	require.Equal(t, respond.StatusSeen, status.Status)
	require.Equal(t, "bob", status.ChatID)
}

func TestGroupMessageTopicAndAck(t *testing.T) {
	team := directory.Group{ID: "t1", Name: "core", Kind: model.KindTeam, Members: []string{"alice", "bob"}}
	f := newFixture(t, stubDirectory{groups: map[string][]directory.Group{
		"alice": {team},
		"bob":   {team},
	}})
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	topic := "/topic/team-t1"
	require.Eventually(t, func() bool { return f.subscribers(topic) == 2 }, 2*time.Second, 10*time.Millisecond)

	view := &respond.MessageView{ID: 9, SenderID: "alice", GroupID: "t1", Kind: model.KindTeam, Content: "standup", ClientID: "g-1"}
	publish(t, f.bus, event.NewMessageEnvelope(event.TypeMessage, view))

	var got respond.MessageView
	require.NoError(t, json.Unmarshal(expect(t, bob, topic), &got))
	require.Equal(t, "standup", got.Content)

	var ack respond.Ack
	require.NoError(t, json.Unmarshal(expect(t, alice, constants.DestGroupAck), &ack))
	require.Equal(t, "g-1", ack.ClientID)
	require.Equal(t, "t1", ack.ChatID)
}

func TestDeletedPrivateGoesToBothSides(t *testing.T) {
	f := newFixture(t, stubDirectory{})
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	view := &respond.MessageView{ID: 42, SenderID: "alice", ReceiverID: "bob", Kind: model.KindPrivate,
		Content: constants.DELETED_CONTENT, Deleted: true}
	publish(t, f.bus, event.NewMessageEnvelope(event.TypeDeleted, view))

	for _, conn := range []*websocket.Conn{alice, bob} {
		var got respond.MessageView
		require.NoError(t, json.Unmarshal(expect(t, conn, constants.DestPrivate), &got))
		require.True(t, got.Deleted)
		require.Equal(t, constants.DELETED_CONTENT, got.Content)
	}
}

func TestDirectEnvelopeToUser(t *testing.T) {
	f := newFixture(t, stubDirectory{})
	bob := f.dial(t, "bob")

	env, err := event.ToUser(event.TypeClear, "bob", constants.DestClearChat, respond.ClearAck{Message: constants.CLEARED_CONTENT, ChatID: "alice", Kind: model.KindPrivate})
	require.NoError(t, err)
	publish(t, f.bus, env)

	var ack respond.ClearAck
	require.NoError(t, json.Unmarshal(expect(t, bob, constants.DestClearChat), &ack))
	require.Equal(t, "alice", ack.ChatID)
}

func TestPresenceTransitions(t *testing.T) {
	f := newFixture(t, stubDirectory{})
	alice := f.dial(t, "alice")

	bob := f.dial(t, "bob")
	var p respond.Presence
	for p.UserID != "bob" {
		require.NoError(t, json.Unmarshal(expect(t, alice, constants.DestPresence), &p))
	}
	require.True(t, p.Online)

	// 第二个设备不改变在线状态
	second := f.dial(t, "bob")
	require.NoError(t, second.Close())
	require.Eventually(t, func() bool { return f.gw.Hub().Sessions() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.True(t, f.tracker.IsOnline("bob"))

	// bob 打开着与 alice 的窗口；第二个设备断开时窗口保持
	conv := model.Conversation{Kind: model.KindPrivate, ID: "alice"}
	f.tracker.OpenChat("bob", conv)
	require.Zero(t, f.messages.closedCount())

	require.NoError(t, bob.Close())
	for {
		require.NoError(t, json.Unmarshal(expect(t, alice, constants.DestPresence), &p))
		if p.UserID == "bob" && !p.Online {
			break
		}
	}
	require.False(t, f.tracker.IsOnline("bob"))

	// 最后一个会话断开时关闭全部窗口
	f.messages.mu.Lock()
	require.Equal(t, []model.Conversation{conv}, f.messages.closed)
	f.messages.mu.Unlock()
}

func TestInboundActions(t *testing.T) {
	f := newFixture(t, stubDirectory{})
	alice := f.dial(t, "alice")

	require.NoError(t, alice.WriteJSON(Inbound{Action: "send", Kind: "private", ReceiverID: "bob", Content: "yo", ClientID: "c"}))
	require.Eventually(t, func() bool { return f.messages.sentCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	f.messages.mu.Lock()
	require.Equal(t, "PRIVATE", f.messages.sent[0].Kind)
	f.messages.mu.Unlock()

	require.NoError(t, alice.WriteJSON(Inbound{Action: "open", Kind: "TEAM", ChatID: "t1"}))
	require.NoError(t, alice.WriteJSON(Inbound{Action: "typing", Kind: "PRIVATE", ChatID: "bob", Typing: true}))
	require.Eventually(t, func() bool {
		f.messages.mu.Lock()
		defer f.messages.mu.Unlock()
		return len(f.messages.opened) == 1 && len(f.messages.typing) == 1
	}, 2*time.Second, 10*time.Millisecond)
	f.messages.mu.Lock()
	require.Equal(t, model.Conversation{Kind: model.KindTeam, ID: "t1"}, f.messages.opened[0])
	f.messages.mu.Unlock()

	require.NoError(t, alice.WriteJSON(Inbound{Action: "send", Kind: "CHANNEL", ReceiverID: "bob", ClientID: "bad"}))
	var perr ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, alice, constants.DestErrors), &perr))
	require.Equal(t, errorx.CodeInvalidParam, perr.Code)
	require.Equal(t, "bad", perr.ClientID)
}

func TestSubscribeRequiresMembership(t *testing.T) {
	team := directory.Group{ID: "t1", Kind: model.KindTeam, Members: []string{"alice"}}
	f := newFixture(t, stubDirectory{groups: map[string][]directory.Group{"alice": {team}}})
	alice := f.dial(t, "alice")
	require.Eventually(t, func() bool { return f.subscribers("/topic/team-t1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(Inbound{Action: "subscribe", Topic: "/topic/team-other"}))
	var perr ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, alice, constants.DestErrors), &perr))
	require.Equal(t, errorx.CodeForbidden, perr.Code)

	require.NoError(t, alice.WriteJSON(Inbound{Action: "unsubscribe", Topic: "/topic/team-t1"}))
	require.Eventually(t, func() bool { return f.subscribers("/topic/team-t1") == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, alice.WriteJSON(Inbound{Action: "subscribe", Topic: "/topic/team-t1"}))
	require.Eventually(t, func() bool { return f.subscribers("/topic/team-t1") == 1 }, 2*time.Second, 10*time.Millisecond)
}

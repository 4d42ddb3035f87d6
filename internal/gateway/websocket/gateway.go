// Package websocket 会话推送网关
// 每个实例订阅投递总线的全部事件，只推送给本机在线的会话；
// 同时负责在线状态（多端登录只在 0→1 / 1→0 时广播）和群主题订阅
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/infrastructure/bus"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/presence"
	"employee_chat_server/pkg/constants"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// directoryTimeout 连接建立时查询所属群的超时
const directoryTimeout = 3 * time.Second

// Messenger 网关上行动作调用的消息业务
type Messenger interface {
	Send(ctx context.Context, sender string, req request.SendMessageRequest) (*model.Message, error)
	Open(ctx context.Context, userID string, conv model.Conversation) error
	Close(ctx context.Context, userID string, conv model.Conversation) error
	Typing(ctx context.Context, userID string, conv model.Conversation, typing bool)
}

// Deps 网关依赖
type Deps struct {
	Messages  Messenger
	Presence  presence.Tracker
	Directory directory.Directory
	Bus       bus.DeliveryBus
}

// Gateway 会话推送网关
type Gateway struct {
	hub       *Hub
	messages  Messenger
	presence  presence.Tracker
	directory directory.Directory
	bus       bus.DeliveryBus
	upgrader  websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// NewGateway 创建网关
func NewGateway(d Deps) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		hub:       NewHub(),
		messages:  d.Messages,
		presence:  d.Presence,
		directory: d.Directory,
		bus:       d.Bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			// 鉴权在 JWT 中间件完成，这里不校验 Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Hub 本机会话表
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Run 订阅投递总线，阻塞直到 ctx 结束或总线关闭
func (g *Gateway) Run(ctx context.Context) error {
	return g.bus.Subscribe(ctx, g.OnDeliveryEvent)
}

// Shutdown 断开全部会话
func (g *Gateway) Shutdown() {
	zap.L().Info("网关关闭，断开本机会话", zap.Int("sessions", g.hub.Sessions()))
	g.cancel()
	g.hub.closeAll()
}

// ServeWS 升级连接并注册会话，userID 由鉴权中间件解析
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(g.ctx)
	c := &Client{
		ID:      uuid.NewString(),
		UserID:  userID,
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, constants.CHANNEL_SIZE),
		ctx:     ctx,
		cancel:  cancel,
		topics:  make(map[string]struct{}),
	}
	g.hub.register(c)
	g.hub.Subscribe(c, constants.DestPresence)
	if g.presence.AddSession(userID, c.ID) {
		g.publishPresence(userID, true)
	}
	zap.L().Info("ws 连接建立", zap.String("user_id", userID), zap.String("session_id", c.ID))

	go c.writePump()
	go g.joinGroups(c)
	go c.readPump()
	return nil
}

// leave 会话断开后的清理
func (g *Gateway) leave(c *Client) {
	c.disconnect()
	if !g.hub.unregister(c) {
		return
	}
	if last, closed := g.presence.RemoveSession(c.UserID, c.ID); last {
		g.closeWindows(c.UserID, closed)
		g.publishPresence(c.UserID, false)
	}
	zap.L().Info("ws 连接断开", zap.String("user_id", c.UserID), zap.String("session_id", c.ID))
}

// closeWindows 用户最后一个会话断开时关闭其全部聊天窗口，离线期间的新消息按未读处理
func (g *Gateway) closeWindows(userID string, convs []model.Conversation) {
	if len(convs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	for _, conv := range convs {
		if err := g.messages.Close(ctx, userID, conv); err != nil {
			zap.L().Warn("关闭聊天窗口失败",
				zap.String("user_id", userID), zap.String("conversation", conv.Key()), zap.Error(err))
		}
	}
}

// joinGroups 订阅用户所属全部团队 / 部门的主题；目录不可用时只是少订阅，不影响私聊
func (g *Gateway) joinGroups(c *Client) {
	ctx, cancel := context.WithTimeout(c.ctx, directoryTimeout)
	defer cancel()
	groups, err := g.directory.TeamsOf(ctx, c.UserID)
	if err != nil {
		zap.L().Warn("查询所属群失败，跳过自动订阅", zap.String("user_id", c.UserID), zap.Error(err))
		return
	}
	for _, grp := range groups {
		for _, topic := range groupTopics(grp.Conversation()) {
			g.hub.Subscribe(c, topic)
		}
	}
}

// mayJoin 显式订阅只允许在线状态主题和本人所属群的主题
func (g *Gateway) mayJoin(ctx context.Context, userID, topic string) bool {
	if topic == constants.DestPresence {
		return true
	}
	if !strings.HasPrefix(topic, "/topic/") {
		return false
	}
	groups, err := g.directory.TeamsOf(ctx, userID)
	if err != nil {
		return false
	}
	for _, grp := range groups {
		for _, t := range groupTopics(grp.Conversation()) {
			if t == topic {
				return true
			}
		}
	}
	return false
}

func (g *Gateway) publishPresence(userID string, online bool) {
	env, err := event.ToTopic(event.TypePresence, constants.DestPresence, respond.Presence{UserID: userID, Online: online})
	if err != nil {
		return
	}
	g.publish(env)
}

func (g *Gateway) publish(env *event.Envelope) {
	ctx, cancel := context.WithTimeout(g.ctx, writeWait)
	defer cancel()
	if err := g.bus.Publish(ctx, env); err != nil {
		zap.L().Warn("网关发布事件失败", zap.String("type", string(env.Type)), zap.Error(err))
	}
}

// OnDeliveryEvent 总线事件入口，每个实例每个事件调用一次
func (g *Gateway) OnDeliveryEvent(env *event.Envelope) {
	if env.IsMessage() {
		if env.Message == nil {
			zap.L().Warn("消息事件缺少消息体", zap.String("id", env.ID))
			return
		}
		g.routeMessage(env)
		return
	}
	switch {
	case env.TargetUser != "":
		g.pushRaw(env.TargetUser, "", env.Destination, env.Payload)
	case env.Topic != "":
		g.pushRaw("", env.Topic, env.Destination, env.Payload)
	default:
		zap.L().Warn("事件没有投递目标", zap.String("id", env.ID), zap.String("type", string(env.Type)))
	}
}

// routeMessage 消息类事件按会话类型路由
func (g *Gateway) routeMessage(env *event.Envelope) {
	v := env.Message
	if v.Kind.IsGroup() {
		topic := model.Conversation{Kind: v.Kind, ID: v.GroupID}.Topic()
		g.push("", topic, topic, v)
		if env.Type == event.TypeMessage {
			g.push(v.SenderID, "", constants.DestGroupAck, ackOf(v, v.GroupID))
		}
		return
	}

	if env.Type != event.TypeMessage {
		// 编辑 / 撤回：收发双方都替换气泡
		g.push(v.SenderID, "", constants.DestPrivate, v)
		if v.ReceiverID != v.SenderID {
			g.push(v.ReceiverID, "", constants.DestPrivate, v)
		}
		return
	}

	ids := []string{strconv.FormatInt(v.ID, 10)}
	if g.hub.HasUser(v.SenderID) {
		g.push(v.SenderID, "", constants.DestPrivateAck, ackOf(v, v.ReceiverID))
		if v.Seen {
			g.push(v.SenderID, "", constants.DestPrivate, respond.StatusUpdate{
				Type: string(event.TypeStatusUpdate), Status: respond.StatusSeen, ChatID: v.ReceiverID, MessageIDs: ids,
			})
		}
	}
	if g.push(v.ReceiverID, "", constants.DestPrivate, v) > 0 && !v.Seen {
		// 发送者可能连在别的实例上，送达状态经总线回传
		env, err := event.ToUser(event.TypeStatusUpdate, v.SenderID, constants.DestPrivate, respond.StatusUpdate{
			Type: string(event.TypeStatusUpdate), Status: respond.StatusDelivered, ChatID: v.ReceiverID, MessageIDs: ids,
		})
		if err == nil {
			// 不在总线分发协程里同步发布，避免本地总线缓冲满时自锁
			go g.publish(env)
		}
	}
}

func ackOf(v *respond.MessageView, chatID string) respond.Ack {
	return respond.Ack{
		ClientID:  v.ClientID,
		MessageID: v.ID,
		Kind:      v.Kind,
		ChatID:    chatID,
		Timestamp: v.Timestamp,
		Seen:      v.Seen,
	}
}

// push 编码后推给用户或主题，返回写入的会话数
func (g *Gateway) push(userID, topic, destination string, payload any) int {
	frame, err := encodeFrame(destination, payload)
	if err != nil {
		zap.L().Error("编码下行帧失败", zap.String("destination", destination), zap.Error(err))
		return 0
	}
	if userID != "" {
		return g.hub.PushToUser(userID, frame)
	}
	return g.hub.PushToTopic(topic, frame)
}

func (g *Gateway) pushRaw(userID, topic, destination string, payload []byte) int {
	if payload == nil {
		payload = []byte("null")
	}
	return g.push(userID, topic, destination, json.RawMessage(payload))
}

package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/message"
	"employee_chat_server/pkg/constants"
	"employee_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	actionTimeout  = 10 * time.Second
)

// 客户端上行动作
const (
	ActionSend        = "send"
	ActionOpen        = "open"
	ActionClose       = "close"
	ActionTyping      = "typing"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Inbound 客户端上行帧
// send 使用 kind/receiverId/groupId/content/clientId；open/close/typing 使用 kind/chatId；
// subscribe/unsubscribe 使用 topic
type Inbound struct {
	Action     string `json:"action"`
	Kind       string `json:"kind"`
	ReceiverID string `json:"receiverId"`
	GroupID    string `json:"groupId"`
	ChatID     string `json:"chatId"`
	Content    string `json:"content"`
	ClientID   string `json:"clientId"`
	Typing     bool   `json:"typing"`
	Topic      string `json:"topic"`
}

// Frame 下行帧
type Frame struct {
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload"`
}

// ErrorPayload 动作失败时推给当前会话的错误
type ErrorPayload struct {
	Action   string `json:"action"`
	ClientID string `json:"clientId,omitempty"`
	Code     int    `json:"code"`
	Msg      string `json:"msg"`
}

// Client 一个 WebSocket 会话，同一用户可以有多个
type Client struct {
	ID     string
	UserID string

	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte
	ctx     context.Context
	cancel  context.CancelFunc

	// 以下字段由 Hub.mu 保护
	topics map[string]struct{}
	closed bool

	closeOnce sync.Once
}

// disconnect 关闭底层连接，读循环随之退出并完成清理
func (c *Client) disconnect() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// readPump 读取上行帧并逐个处理，连接断开时退出
func (c *Client) readPump() {
	defer c.gateway.leave(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("ws 读取失败", zap.String("user_id", c.UserID), zap.Error(err))
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.replyError(in, errorx.Wrap(err, errorx.CodeInvalidParam, "无法解析的消息帧"))
			continue
		}
		if err := c.handle(in); err != nil {
			c.replyError(in, err)
		}
	}
}

// writePump 把下行帧写入连接，并定时发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.disconnect()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Warn("ws 写入失败", zap.String("user_id", c.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle 分派上行动作
func (c *Client) handle(in Inbound) error {
	ctx, cancel := context.WithTimeout(c.ctx, actionTimeout)
	defer cancel()

	switch strings.ToLower(in.Action) {
	case ActionSend:
		req := request.SendMessageRequest{
			Kind:       strings.ToUpper(in.Kind),
			ReceiverID: in.ReceiverID,
			GroupID:    in.GroupID,
			Content:    in.Content,
			ClientID:   in.ClientID,
		}
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			return errorx.Wrap(err, errorx.CodeInvalidParam, "请求参数错误")
		}
		_, err := c.gateway.messages.Send(ctx, c.UserID, req)
		return err
	case ActionOpen, ActionClose, ActionTyping:
		conv, err := message.ParseConversation(in.Kind, in.ChatID)
		if err != nil {
			return err
		}
		switch strings.ToLower(in.Action) {
		case ActionOpen:
			return c.gateway.messages.Open(ctx, c.UserID, conv)
		case ActionClose:
			return c.gateway.messages.Close(ctx, c.UserID, conv)
		}
		c.gateway.messages.Typing(ctx, c.UserID, conv, in.Typing)
		return nil
	case ActionSubscribe:
		if !c.gateway.mayJoin(ctx, c.UserID, in.Topic) {
			return errorx.Newf(errorx.CodeForbidden, "无权订阅 %s", in.Topic)
		}
		c.gateway.hub.Subscribe(c, in.Topic)
		return nil
	case ActionUnsubscribe:
		c.gateway.hub.Unsubscribe(c, in.Topic)
		return nil
	}
	return errorx.Newf(errorx.CodeInvalidParam, "未知动作 %q", in.Action)
}

// replyError 把错误推回当前会话
func (c *Client) replyError(in Inbound, err error) {
	payload := ErrorPayload{Action: in.Action, ClientID: in.ClientID, Code: errorx.GetCode(err), Msg: err.Error()}
	if payload.Code == errorx.CodeServerBusy {
		zap.L().Error("ws 动作处理失败", zap.String("user_id", c.UserID), zap.String("action", in.Action), zap.Error(err))
		payload.Msg = errorx.ErrServerBusy.Msg
	}
	frame, mErr := encodeFrame(constants.DestErrors, payload)
	if mErr != nil {
		return
	}
	c.gateway.hub.mu.RLock()
	defer c.gateway.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// groupTopics 用户所属群的广播主题与正在输入主题
func groupTopics(conv model.Conversation) []string {
	return []string{conv.Topic(), constants.TopicTypingPrefix + conv.ID}
}

func encodeFrame(destination string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Destination: destination, Payload: raw})
}

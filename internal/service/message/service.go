// Package message 消息业务：发送、聊天记录、编辑、删除、置顶，以及会话窗口的打开 / 关闭 / 清空
package message

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/infrastructure/attachment"
	"employee_chat_server/internal/infrastructure/mq"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/presence"
	"employee_chat_server/pkg/errorx"
	"employee_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// Publisher 投递总线的发布端
type Publisher interface {
	Publish(ctx context.Context, env *event.Envelope) error
}

// OverviewScheduler 异步侧边栏刷新
type OverviewScheduler interface {
	Schedule(userIDs ...string)
	ScheduleGroup(kind model.Kind, groupID string)
}

// Membership 群成员查询，由目录服务提供
type Membership interface {
	ListMembers(ctx context.Context, kind model.Kind, groupID string) ([]string, error)
}

// Deps 消息服务依赖
type Deps struct {
	Repos    *repository.Repositories
	Presence presence.Tracker
	Fanout   mq.FanoutChannel
	Bus      Publisher
	Overview OverviewScheduler
	Store    attachment.Store
	Members  Membership
}

// messageService 消息业务逻辑实现
type messageService struct {
	repos    *repository.Repositories
	presence presence.Tracker
	fanout   mq.FanoutChannel
	bus      Publisher
	overview OverviewScheduler
	store    attachment.Store
	members  Membership
}

// NewMessageService 构造函数
func NewMessageService(d Deps) *messageService {
	return &messageService{
		repos:    d.Repos,
		presence: d.Presence,
		fanout:   d.Fanout,
		bus:      d.Bus,
		overview: d.Overview,
		store:    d.Store,
		members:  d.Members,
	}
}

// now 统一的时间基准：UTC，毫秒精度
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// ParseTarget 校验会话类型与接收方：私聊必须有 receiverId，群聊必须有 groupId
func ParseTarget(kind, receiverID, groupID string) (model.Conversation, error) {
	k, err := model.ParseKind(kind)
	if err != nil {
		return model.Conversation{}, errorx.Wrap(err, errorx.CodeInvalidParam, "会话类型非法")
	}
	switch k {
	case model.KindPrivate:
		if strings.TrimSpace(receiverID) == "" {
			return model.Conversation{}, errorx.New(errorx.CodeInvalidParam, "私聊缺少 receiverId")
		}
		return model.Conversation{Kind: k, ID: receiverID}, nil
	case model.KindTeam, model.KindDepartment:
		if strings.TrimSpace(groupID) == "" {
			return model.Conversation{}, errorx.New(errorx.CodeInvalidParam, "群聊缺少 groupId")
		}
		return model.Conversation{Kind: k, ID: groupID}, nil
	}
	return model.Conversation{}, errorx.New(errorx.CodeInvalidParam, "会话类型非法")
}

// ParseConversation 解析 (kind, chatId) 形式的会话引用
func ParseConversation(kind, chatID string) (model.Conversation, error) {
	return ParseTarget(kind, chatID, chatID)
}

// NewMessage 构建发往 conv 的消息骨架（未持久化）
func NewMessage(sender string, conv model.Conversation, content, clientID string) *model.Message {
	m := &model.Message{
		SenderID: sender,
		Kind:     conv.Kind,
		Content:  content,
	}
	m.SetCorrelationID(clientID)
	if conv.Kind.IsGroup() {
		m.GroupID = conv.ID
	} else {
		m.ReceiverID = conv.ID
	}
	return m
}

// checkMember 群会话要求 userID 是当前成员，私聊不查目录
// 目录不可用时成员列表为空，按无权限处理
func (s *messageService) checkMember(ctx context.Context, userID string, conv model.Conversation) error {
	if !conv.Kind.IsGroup() {
		return nil
	}
	members, err := s.members.ListMembers(ctx, conv.Kind, conv.ID)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeDirectoryUnavailable, "查询群成员失败")
	}
	if !slices.Contains(members, userID) {
		return errorx.Newf(errorx.CodeForbidden, "不是 %s 的成员", conv.Key())
	}
	return nil
}

// Authorize 校验用户可以访问消息：私聊限收发双方，群聊限当前成员
func (s *messageService) Authorize(ctx context.Context, userID string, m *model.Message) error {
	if m.Kind.IsGroup() {
		return s.checkMember(ctx, userID, m.Conversation(userID))
	}
	if !m.IsParticipant(userID) {
		return errorx.Newf(errorx.CodeForbidden, "无权访问消息 %d", m.ID)
	}
	return nil
}

// Deliver 持久化消息并交给异步分发通道
// 分发通道拒绝时消息已经落库，返回可重试错误，同时返回已持久化的消息
// 携带 clientId 的重发命中已落库的消息时不再新建，只重新提交分发
func (s *messageService) Deliver(ctx context.Context, m *model.Message) (*model.Message, error) {
	if m.SenderID == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "缺少发送者")
	}
	if strings.TrimSpace(m.Content) == "" && !m.HasAttachment() {
		return nil, errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	if m.Kind == model.KindPrivate && m.ReceiverID == m.SenderID {
		return nil, errorx.New(errorx.CodeInvalidParam, "不能给自己发送私聊消息")
	}
	if err := s.checkMember(ctx, m.SenderID, m.Conversation(m.SenderID)); err != nil {
		return nil, err
	}
	prev, err := s.findResend(m)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		return s.resubmit(ctx, prev)
	}

	m.ID = snowflake.GenerateID()
	m.Timestamp = now()
	if err := s.repos.Message.Create(m); err != nil {
		// 并发重发撞上唯一约束，取回先落库的那条
		if prev, ferr := s.findResend(m); ferr == nil && prev != nil {
			return s.resubmit(ctx, prev)
		}
		return nil, err
	}
	if err := s.submit(ctx, m, mq.ActionSend); err != nil {
		return m, err
	}
	return m, nil
}

// findResend 按 (sender, clientId) 查找已落库的同一条消息，没有时返回 nil, nil
func (s *messageService) findResend(m *model.Message) (*model.Message, error) {
	cid := m.CorrelationID()
	if cid == "" {
		return nil, nil
	}
	prev, err := s.repos.Message.FindByClientID(m.SenderID, cid)
	if errorx.IsNotFound(err) {
		return nil, nil
	}
	return prev, err
}

// resubmit 上次提交可能被拒绝，重新提交分发；客户端按消息 ID 去重
func (s *messageService) resubmit(ctx context.Context, prev *model.Message) (*model.Message, error) {
	zap.L().Info("重发命中已保存的消息",
		zap.Int64("message_id", prev.ID), zap.String("client_id", prev.CorrelationID()))
	if err := s.submit(ctx, prev, mq.ActionSend); err != nil {
		return prev, err
	}
	return prev, nil
}

func (s *messageService) submit(ctx context.Context, m *model.Message, action mq.Action) error {
	ev := mq.FanoutEvent{MessageID: m.ID, Action: action, ConversationKey: m.FanoutKey()}
	if err := s.fanout.Submit(ctx, ev); err != nil {
		zap.L().Warn("提交分发事件失败",
			zap.Int64("message_id", m.ID), zap.String("action", string(action)), zap.Error(err))
		if errorx.IsRetryable(err) {
			return err
		}
		return errorx.Wrap(err, errorx.CodeRetryable, "消息已保存，分发失败，请稍后重试")
	}
	return nil
}

// Send 发送文本消息
func (s *messageService) Send(ctx context.Context, sender string, req request.SendMessageRequest) (*model.Message, error) {
	conv, err := ParseTarget(req.Kind, req.ReceiverID, req.GroupID)
	if err != nil {
		return nil, err
	}
	return s.Deliver(ctx, NewMessage(sender, conv, req.Content, req.ClientID))
}

// Upload 保存附件并发送附件消息（文件 / 图片 / 语音）
func (s *messageService) Upload(ctx context.Context, sender string, req request.UploadMessageRequest,
	filename, contentType string, r io.Reader) (*model.Message, error) {
	conv, err := ParseTarget(req.Kind, req.ReceiverID, req.GroupID)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Save(ctx, filename, contentType, r)
	if err != nil {
		zap.L().Error("保存附件失败", zap.String("user_id", sender), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	m := NewMessage(sender, conv, req.Content, req.ClientID)
	m.FileName = filename
	m.FileType = stored.ContentType
	m.FileSize = stored.Size
	m.AttachmentKey = stored.Key
	m.Duration = req.Duration

	saved, err := s.Deliver(ctx, m)
	if saved == nil || saved.AttachmentKey != stored.Key {
		// 未落库，或重发命中了之前的消息，本次保存的文件无人引用
		_ = s.store.Delete(ctx, stored.Key)
	}
	return saved, err
}

// OpenFile 下载附件；私聊仅收发双方可读，群聊仅当前成员可读
func (s *messageService) OpenFile(ctx context.Context, userID string, id int64) (*model.Message, io.ReadCloser, error) {
	m, err := s.repos.Message.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Authorize(ctx, userID, m); err != nil {
		return nil, nil, err
	}
	if !m.HasAttachment() {
		return nil, nil, errorx.Newf(errorx.CodeNotFound, "消息 %d 没有附件", id)
	}
	rc, err := s.store.Open(ctx, m.AttachmentKey)
	if err != nil {
		return nil, nil, err
	}
	return m, rc, nil
}

// publish 发布失败只记日志，状态已落库
func (s *messageService) publish(ctx context.Context, env *event.Envelope, err error) {
	if err != nil {
		zap.L().Error("构建推送事件失败", zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil {
		zap.L().Warn("发布推送事件失败", zap.String("type", string(env.Type)), zap.Error(err))
	}
}

// scheduleConversation 刷新会话相关用户的侧边栏
func (s *messageService) scheduleConversation(m *model.Message, extra ...string) {
	users := append([]string{m.SenderID}, extra...)
	switch m.Kind {
	case model.KindPrivate:
		users = append(users, m.ReceiverID)
	case model.KindTeam, model.KindDepartment:
		s.overview.ScheduleGroup(m.Kind, m.GroupID)
	}
	s.overview.Schedule(users...)
}

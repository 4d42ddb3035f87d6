package message

import (
	"context"
	"strings"

	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/infrastructure/mq"
	"employee_chat_server/internal/model"
	"employee_chat_server/pkg/constants"
	"employee_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// ownMessage 加载消息并校验操作者为原发送者
func (s *messageService) ownMessage(userID string, id int64) (*model.Message, error) {
	m, err := s.repos.Message.FindByID(id)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, errorx.Newf(errorx.CodeForbidden, "只有发送者可以操作消息 %d", id)
	}
	return m, nil
}

// Edit 编辑消息，只有原发送者可以编辑；编辑结果直接推送，不经过分发通道
func (s *messageService) Edit(ctx context.Context, userID string, id int64, content string) (*respond.MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	m, err := s.ownMessage(userID, id)
	if err != nil {
		return nil, err
	}
	if m.Deleted {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "消息 %d 已撤回，不能编辑", id)
	}
	if err := s.repos.Message.UpdateContent(id, content); err != nil {
		return nil, err
	}
	m.Content = content
	m.Edited = true

	seen, err := s.seen(m, userID)
	if err != nil {
		return nil, err
	}
	view := respond.NewMessageView(m, seen)
	s.publish(ctx, event.NewMessageEnvelope(event.TypeEdited, view), nil)
	s.scheduleConversation(m)
	return view, nil
}

// DeleteForMe 仅对自己隐藏消息，不影响消息本身
func (s *messageService) DeleteForMe(ctx context.Context, userID string, id int64) error {
	m, err := s.repos.Message.FindByID(id)
	if err != nil {
		return err
	}
	if err := s.Authorize(ctx, userID, m); err != nil {
		return err
	}
	if err := s.repos.Hidden.Hide(userID, id, now()); err != nil {
		return err
	}
	env, err := event.ToUser(event.TypeDeleted, userID, constants.DestMessageDeleted, respond.NewMessageView(m, m.Read))
	s.publish(ctx, env, err)
	s.overview.Schedule(userID)
	return nil
}

// DeleteForEveryone 撤回消息：只有原发送者可以撤回，撤回事件经分发通道广播
// 已撤回的消息再次撤回时只重新提交撤回事件，上次提交被拒绝的客户端重试可以补发
func (s *messageService) DeleteForEveryone(ctx context.Context, userID string, id int64) error {
	m, err := s.ownMessage(userID, id)
	if err != nil {
		return err
	}
	if m.Deleted {
		return s.submit(ctx, m, mq.ActionDelete)
	}
	if err := s.repos.Message.SoftDelete(id); err != nil {
		return err
	}
	if m.HasAttachment() {
		if err := s.store.Delete(ctx, m.AttachmentKey); err != nil {
			zap.L().Warn("删除附件失败", zap.Int64("message_id", id), zap.Error(err))
		}
	}
	return s.submit(ctx, m, mq.ActionDelete)
}

// HardDelete 物理删除消息及其已读、隐藏记录，只有原发送者可以执行
func (s *messageService) HardDelete(ctx context.Context, userID string, id int64) error {
	m, err := s.ownMessage(userID, id)
	if err != nil {
		return err
	}
	err = s.repos.TransactionWithHooks(func(tx *repository.Repositories, hooks *repository.CommitHooks) error {
		if err := tx.ReadStatus.DeleteByMessage(id); err != nil {
			return err
		}
		if err := tx.Hidden.DeleteByMessage(id); err != nil {
			return err
		}
		if err := tx.Message.HardDelete(id); err != nil {
			return err
		}
		hooks.AfterCommit(func() {
			if m.HasAttachment() {
				if err := s.store.Delete(ctx, m.AttachmentKey); err != nil {
					zap.L().Warn("删除附件失败", zap.Int64("message_id", id), zap.Error(err))
				}
			}
			gone := *m
			gone.Content = constants.DELETED_CONTENT
			gone.Deleted = true
			gone.AttachmentKey, gone.FileName, gone.FileType, gone.FileSize = "", "", "", 0
			s.publish(ctx, event.NewMessageEnvelope(event.TypeDeleted, respond.NewMessageView(&gone, m.Read)), nil)
			s.scheduleConversation(m)
		})
		return nil
	})
	if err != nil {
		return err
	}
	zap.L().Info("消息已物理删除", zap.Int64("message_id", id), zap.String("user_id", userID))
	return nil
}

// Pin 置顶消息：同一会话最多一条置顶，先取消旧置顶再置顶目标
func (s *messageService) Pin(ctx context.Context, userID string, id int64) (*respond.PinUpdate, error) {
	m, err := s.repos.Message.FindByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, userID, m); err != nil {
		return nil, err
	}
	if m.Deleted {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "消息 %d 已撤回，不能置顶", id)
	}
	conv := m.Conversation(userID)
	at := now()

	var update *respond.PinUpdate
	err = s.repos.TransactionWithHooks(func(tx *repository.Repositories, hooks *repository.CommitHooks) error {
		previous, err := tx.Message.UnpinConversation(userID, conv)
		if err != nil {
			return err
		}
		if err := tx.Message.Pin(id, at); err != nil {
			return err
		}
		m.Pinned = true
		m.PinnedAt = &at
		update = s.pinUpdate(event.TypePinUpdate, m, userID)
		hooks.AfterCommit(func() {
			for _, old := range previous {
				if old == id {
					continue
				}
				s.publishPin(ctx, m, &respond.PinUpdate{
					Type: string(event.TypeUnpinUpdate), Kind: m.Kind, MessageID: old,
				})
			}
			s.publishPin(ctx, m, update)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return update, nil
}

// Unpin 取消置顶
func (s *messageService) Unpin(ctx context.Context, userID string, id int64) (*respond.PinUpdate, error) {
	m, err := s.repos.Message.FindByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, userID, m); err != nil {
		return nil, err
	}
	if err := s.repos.Message.Unpin(id); err != nil {
		return nil, err
	}
	m.Pinned = false
	m.PinnedAt = nil
	update := s.pinUpdate(event.TypeUnpinUpdate, m, userID)
	s.publishPin(ctx, m, update)
	return update, nil
}

func (s *messageService) pinUpdate(t event.Type, m *model.Message, viewer string) *respond.PinUpdate {
	return &respond.PinUpdate{
		Type:      string(t),
		Kind:      m.Kind,
		ChatID:    m.Conversation(viewer).ID,
		MessageID: m.ID,
		Message:   respond.NewMessageView(m, m.Read),
	}
}

// publishPin 私聊推给双方的 /queue/private（chatId 为各自视角的对方），群聊推到群主题
func (s *messageService) publishPin(ctx context.Context, m *model.Message, update *respond.PinUpdate) {
	t := event.Type(update.Type)
	switch m.Kind {
	case model.KindPrivate:
		for _, user := range []string{m.SenderID, m.ReceiverID} {
			u := *update
			u.ChatID = m.Conversation(user).ID
			env, err := event.ToUser(t, user, constants.DestPrivate, u)
			s.publish(ctx, env, err)
		}
	case model.KindTeam, model.KindDepartment:
		u := *update
		u.ChatID = m.GroupID
		conv := model.Conversation{Kind: m.Kind, ID: m.GroupID}
		env, err := event.ToTopic(t, conv.Topic(), u)
		s.publish(ctx, env, err)
	}
}

package message

import (
	"context"

	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/overview"
	"employee_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// Open 打开会话窗口：登记存在性并把未读消息标记为已读
// 私聊通知对方 SEEN；提交后刷新本人侧边栏
func (s *messageService) Open(ctx context.Context, userID string, conv model.Conversation) error {
	if err := s.checkMember(ctx, userID, conv); err != nil {
		return err
	}
	s.presence.OpenChat(userID, conv)

	return s.repos.TransactionWithHooks(func(tx *repository.Repositories, hooks *repository.CommitHooks) error {
		after, err := tx.ClearedChat.GetClearedAt(userID, conv.Key())
		if err != nil {
			return err
		}
		switch conv.Kind {
		case model.KindPrivate:
			ids, err := tx.Message.MarkPrivateRead(userID, conv.ID, after)
			if err != nil {
				return err
			}
			hooks.AfterCommit(func() {
				if len(ids) > 0 {
					env, err := overview.SeenEnvelope(conv.ID, userID, ids)
					s.publish(ctx, env, err)
				}
				s.overview.Schedule(userID, conv.ID)
			})
		case model.KindTeam, model.KindDepartment:
			ids, err := tx.Message.UnreadGroupMessageIDs(userID, conv, after)
			if err != nil {
				return err
			}
			if len(ids) > 0 {
				at := now()
				rows := make([]model.ReadStatus, len(ids))
				for i, id := range ids {
					rows[i] = model.ReadStatus{MessageID: id, UserID: userID, ReadAt: at}
				}
				if err := tx.ReadStatus.CreateBatch(rows); err != nil {
					return err
				}
			}
			hooks.AfterCommit(func() { s.overview.Schedule(userID) })
		}
		return nil
	})
}

// Close 关闭会话窗口
func (s *messageService) Close(_ context.Context, userID string, conv model.Conversation) error {
	s.presence.CloseChat(userID, conv)
	if conv.Kind == model.KindPrivate {
		s.overview.Schedule(userID, conv.ID)
	} else {
		s.overview.Schedule(userID)
	}
	return nil
}

// Clear 清空聊天：只记录边界时间，不删除消息
func (s *messageService) Clear(ctx context.Context, userID string, conv model.Conversation) (*respond.ClearAck, error) {
	if err := s.repos.ClearedChat.Upsert(userID, conv.Key(), now()); err != nil {
		return nil, err
	}
	ack := &respond.ClearAck{Message: constants.CLEARED_CONTENT, Kind: conv.Kind, ChatID: conv.ID}
	env, err := event.ToUser(event.TypeClear, userID, constants.DestClearChat, ack)
	s.publish(ctx, env, err)
	s.overview.Schedule(userID)
	zap.L().Info("清空聊天", zap.String("user_id", userID), zap.String("conversation", conv.Key()))
	return ack, nil
}

// Typing 转发正在输入状态，不落库
func (s *messageService) Typing(ctx context.Context, userID string, conv model.Conversation, typing bool) {
	payload := respond.Typing{SenderID: userID, Kind: conv.Kind, Typing: typing}
	var (
		env *event.Envelope
		err error
	)
	switch conv.Kind {
	case model.KindPrivate:
		payload.ChatID = userID
		env, err = event.ToUser(event.TypeTyping, conv.ID, constants.DestTypingStatus, payload)
	case model.KindTeam, model.KindDepartment:
		payload.ChatID = conv.ID
		env, err = event.ToTopic(event.TypeTyping, constants.TopicTypingPrefix+conv.ID, payload)
	default:
		return
	}
	s.publish(ctx, env, err)
}

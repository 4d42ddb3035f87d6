package message

import (
	"context"
	"time"

	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/model"
	"employee_chat_server/pkg/constants"
)

// History 聊天记录：过滤清空边界之前和本人隐藏的消息，page 从 0 开始，按时间正序返回
func (s *messageService) History(ctx context.Context, userID string, conv model.Conversation, page, size int,
	loc *time.Location) ([]*respond.MessageView, error) {
	if err := s.checkMember(ctx, userID, conv); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = constants.DEFAULT_HISTORY_SIZE
	}
	if page < 0 {
		page = 0
	}
	after, err := s.repos.ClearedChat.GetClearedAt(userID, conv.Key())
	if err != nil {
		return nil, err
	}
	msgs, err := s.repos.Message.ListHistory(userID, conv, after, page, size)
	if err != nil {
		return nil, err
	}

	views := make([]*respond.MessageView, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		seen, err := s.seen(m, userID)
		if err != nil {
			return nil, err
		}
		views = append(views, respond.NewMessageView(m, seen).WithHistory(loc))
	}
	return views, nil
}

// seen 私聊取已读标记；群聊只对本人发出的消息计算"是否有人已读"
func (s *messageService) seen(m *model.Message, viewer string) (bool, error) {
	switch m.Kind {
	case model.KindPrivate:
		return m.Read, nil
	case model.KindTeam, model.KindDepartment:
		if m.SenderID != viewer {
			return false, nil
		}
		n, err := s.repos.ReadStatus.CountByMessage(m.ID)
		return n > 0, err
	}
	return false, nil
}

// Pinned 会话内的置顶消息
func (s *messageService) Pinned(ctx context.Context, userID string, conv model.Conversation) (*respond.PinnedMessage, error) {
	if err := s.checkMember(ctx, userID, conv); err != nil {
		return nil, err
	}
	m, err := s.repos.Message.FindPinned(userID, conv)
	if err != nil {
		return nil, err
	}
	seen, err := s.seen(m, userID)
	if err != nil {
		return nil, err
	}
	return &respond.PinnedMessage{MessageView: respond.NewMessageView(m, seen), MediaKind: m.MediaKind()}, nil
}

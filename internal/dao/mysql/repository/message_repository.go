package repository

import (
	"time"

	"employee_chat_server/internal/model"
	"employee_chat_server/pkg/constants"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// notHidden 排除 viewer 自己隐藏的消息
const notHidden = "NOT EXISTS (SELECT 1 FROM hidden_message h WHERE h.message_id = message.id AND h.user_id = ?)"

// scope 限定到某个会话
// 私聊按两端用户双向匹配，群聊按群 ID + 类型匹配
func (r *messageRepository) scope(viewer string, conv model.Conversation) *gorm.DB {
	q := r.db.Model(&model.Message{}).Where("kind = ?", conv.Kind)
	if conv.Kind.IsGroup() {
		return q.Where("group_id = ?", conv.ID)
	}
	return q.Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
		viewer, conv.ID, conv.ID, viewer)
}

// Create 创建消息
func (r *messageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// FindByID 按 ID 查找消息
func (r *messageRepository) FindByID(id int64) (*model.Message, error) {
	var message model.Message
	if err := r.db.First(&message, "id = ?", id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 id=%d", id)
	}
	return &message, nil
}

// FindByClientID 按 (sender_id, client_id) 查找，客户端重发同一条消息时命中
func (r *messageRepository) FindByClientID(senderID, clientID string) (*model.Message, error) {
	var message model.Message
	err := r.db.Where("sender_id = ? AND client_id = ?", senderID, clientID).First(&message).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询消息 sender=%s client_id=%s", senderID, clientID)
	}
	return &message, nil
}

// UpdateContent 编辑消息
func (r *messageRepository) UpdateContent(id int64, content string) error {
	err := r.db.Model(&model.Message{}).Where("id = ?", id).
		Updates(map[string]any{"content": content, "edited": true}).Error
	return wrapDBErrorf(err, "编辑消息 id=%d", id)
}

// SoftDelete 撤回消息，保留 ID、发送者和时间用于排序
func (r *messageRepository) SoftDelete(id int64) error {
	err := r.db.Model(&model.Message{}).Where("id = ?", id).Updates(map[string]any{
		"content":        constants.DELETED_CONTENT,
		"deleted":        true,
		"file_name":      "",
		"file_type":      "",
		"file_size":      0,
		"attachment_key": "",
		"duration":       0,
		"pinned":         false,
		"pinned_at":      nil,
	}).Error
	return wrapDBErrorf(err, "撤回消息 id=%d", id)
}

// HardDelete 物理删除消息
func (r *messageRepository) HardDelete(id int64) error {
	err := r.db.Where("id = ?", id).Delete(&model.Message{}).Error
	return wrapDBErrorf(err, "删除消息 id=%d", id)
}

// MarkRead 标记单条私聊消息已读
func (r *messageRepository) MarkRead(id int64) error {
	err := r.db.Model(&model.Message{}).Where("id = ?", id).Update("is_read", true).Error
	return wrapDBErrorf(err, "标记已读 id=%d", id)
}

// MarkPrivateRead 批量标记 partner -> user 的未读消息
func (r *messageRepository) MarkPrivateRead(user, partner string, after time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&model.Message{}).
		Where("kind = ? AND sender_id = ? AND receiver_id = ? AND is_read = ? AND timestamp > ?",
			model.KindPrivate, partner, user, false, after).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询未读消息 user=%s partner=%s", user, partner)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.db.Model(&model.Message{}).Where("id IN ?", ids).Update("is_read", true).Error; err != nil {
		return nil, wrapDBErrorf(err, "标记已读 user=%s partner=%s", user, partner)
	}
	return ids, nil
}

// Pin 置顶消息
func (r *messageRepository) Pin(id int64, at time.Time) error {
	err := r.db.Model(&model.Message{}).Where("id = ?", id).
		Updates(map[string]any{"pinned": true, "pinned_at": at}).Error
	return wrapDBErrorf(err, "置顶消息 id=%d", id)
}

// Unpin 取消置顶
func (r *messageRepository) Unpin(id int64) error {
	err := r.db.Model(&model.Message{}).Where("id = ?", id).
		Updates(map[string]any{"pinned": false, "pinned_at": nil}).Error
	return wrapDBErrorf(err, "取消置顶 id=%d", id)
}

// UnpinConversation 取消会话内所有置顶
func (r *messageRepository) UnpinConversation(viewer string, conv model.Conversation) ([]int64, error) {
	var ids []int64
	if err := r.scope(viewer, conv).Where("pinned = ?", true).Pluck("id", &ids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询置顶消息 conv=%s", conv.Key())
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err := r.db.Model(&model.Message{}).Where("id IN ?", ids).
		Updates(map[string]any{"pinned": false, "pinned_at": nil}).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "取消置顶 conv=%s", conv.Key())
	}
	return ids, nil
}

// FindPinned 查找会话置顶消息
func (r *messageRepository) FindPinned(viewer string, conv model.Conversation) (*model.Message, error) {
	var message model.Message
	err := r.scope(viewer, conv).Where("pinned = ?", true).Order("pinned_at DESC").First(&message).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询置顶消息 conv=%s", conv.Key())
	}
	return &message, nil
}

// ListHistory 分页查询聊天记录
// 先按时间倒序取第 page 页，再翻转成正序返回
func (r *messageRepository) ListHistory(viewer string, conv model.Conversation, after time.Time, page, size int) ([]model.Message, error) {
	var messages []model.Message
	err := r.scope(viewer, conv).
		Where("timestamp > ?", after).
		Where(notHidden, viewer).
		Order("timestamp DESC").Order("id DESC").
		Scopes(paginate(page, size)).
		Find(&messages).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询聊天记录 conv=%s", conv.Key())
	}
	reverse(messages)
	return messages, nil
}

// LastMessage 会话最后一条可见消息
func (r *messageRepository) LastMessage(viewer string, conv model.Conversation, after time.Time) (*model.Message, error) {
	var messages []model.Message
	err := r.scope(viewer, conv).
		Where("timestamp > ?", after).
		Where(notHidden, viewer).
		Order("timestamp DESC").Order("id DESC").
		Limit(1).Find(&messages).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询最后一条消息 conv=%s", conv.Key())
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

// CountUnreadPrivate 私聊未读数
func (r *messageRepository) CountUnreadPrivate(user, partner string, after time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Message{}).
		Where("kind = ? AND sender_id = ? AND receiver_id = ? AND is_read = ? AND timestamp > ?",
			model.KindPrivate, partner, user, false, after).
		Where(notHidden, user).
		Count(&count).Error
	if err != nil {
		return 0, wrapDBErrorf(err, "统计私聊未读 user=%s partner=%s", user, partner)
	}
	return count, nil
}

func (r *messageRepository) unreadGroup(user string, conv model.Conversation, after time.Time) *gorm.DB {
	return r.scope(user, conv).
		Where("sender_id <> ? AND timestamp > ?", user, after).
		Where("NOT EXISTS (SELECT 1 FROM read_status rs WHERE rs.message_id = message.id AND rs.user_id = ?)", user).
		Where(notHidden, user)
}

// CountUnreadGroup 群聊未读数，一条集合差查询完成
func (r *messageRepository) CountUnreadGroup(user string, conv model.Conversation, after time.Time) (int64, error) {
	var count int64
	if err := r.unreadGroup(user, conv, after).Count(&count).Error; err != nil {
		return 0, wrapDBErrorf(err, "统计群聊未读 user=%s conv=%s", user, conv.Key())
	}
	return count, nil
}

// UnreadGroupMessageIDs 群聊未读消息 ID
func (r *messageRepository) UnreadGroupMessageIDs(user string, conv model.Conversation, after time.Time) ([]int64, error) {
	var ids []int64
	if err := r.unreadGroup(user, conv, after).Pluck("id", &ids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群聊未读 user=%s conv=%s", user, conv.Key())
	}
	return ids, nil
}

// PrivatePartners 私聊对象列表（双向去重）
func (r *messageRepository) PrivatePartners(user string) ([]string, error) {
	var sentTo, receivedFrom []string
	if err := r.db.Model(&model.Message{}).
		Where("kind = ? AND sender_id = ?", model.KindPrivate, user).
		Distinct().Pluck("receiver_id", &sentTo).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询私聊对象 user=%s", user)
	}
	if err := r.db.Model(&model.Message{}).
		Where("kind = ? AND receiver_id = ?", model.KindPrivate, user).
		Distinct().Pluck("sender_id", &receivedFrom).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询私聊对象 user=%s", user)
	}
	seen := make(map[string]struct{}, len(sentTo)+len(receivedFrom))
	partners := make([]string, 0, len(sentTo)+len(receivedFrom))
	for _, id := range append(sentTo, receivedFrom...) {
		if id == "" || id == user {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		partners = append(partners, id)
	}
	return partners, nil
}

package repository

import (
	"time"

	"employee_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type clearedChatRepository struct {
	db *gorm.DB
}

// NewClearedChatRepository 创建清空边界 Repository
func NewClearedChatRepository(db *gorm.DB) ClearedChatRepository {
	return &clearedChatRepository{db: db}
}

// Upsert 依赖 (user_id, conversation_key) 唯一索引覆盖旧时间
func (r *clearedChatRepository) Upsert(userID, conversationKey string, at time.Time) error {
	row := model.ClearedChat{UserID: userID, ConversationKey: conversationKey, ClearedAt: at}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "conversation_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"cleared_at"}),
	}).Create(&row).Error
	return wrapDBErrorf(err, "清空聊天 user=%s conv=%s", userID, conversationKey)
}

func (r *clearedChatRepository) GetClearedAt(userID, conversationKey string) (time.Time, error) {
	var rows []model.ClearedChat
	err := r.db.Where("user_id = ? AND conversation_key = ?", userID, conversationKey).Limit(1).Find(&rows).Error
	if err != nil {
		return epoch, wrapDBErrorf(err, "查询清空时间 user=%s conv=%s", userID, conversationKey)
	}
	if len(rows) == 0 {
		return epoch, nil
	}
	return rows[0].ClearedAt, nil
}

func (r *clearedChatRepository) MapByUser(userID string) (map[string]time.Time, error) {
	var rows []model.ClearedChat
	if err := r.db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询清空记录 user=%s", userID)
	}
	out := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		out[row.ConversationKey] = row.ClearedAt
	}
	return out, nil
}

// Epoch 没有清空记录时使用的边界
func Epoch() time.Time {
	return epoch
}

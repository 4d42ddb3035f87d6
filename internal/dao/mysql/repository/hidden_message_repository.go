package repository

import (
	"time"

	"employee_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type hiddenMessageRepository struct {
	db *gorm.DB
}

// NewHiddenMessageRepository 创建隐藏标记 Repository
func NewHiddenMessageRepository(db *gorm.DB) HiddenMessageRepository {
	return &hiddenMessageRepository{db: db}
}

func (r *hiddenMessageRepository) Hide(userID string, messageID int64, at time.Time) error {
	row := model.HiddenMessage{UserID: userID, MessageID: messageID, HiddenAt: at}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	return wrapDBErrorf(err, "隐藏消息 user=%s message_id=%d", userID, messageID)
}

func (r *hiddenMessageRepository) DeleteByMessage(messageID int64) error {
	err := r.db.Where("message_id = ?", messageID).Delete(&model.HiddenMessage{}).Error
	return wrapDBErrorf(err, "删除隐藏标记 message_id=%d", messageID)
}

package repository

import (
	"employee_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type readStatusRepository struct {
	db *gorm.DB
}

// NewReadStatusRepository 创建群已读 Repository
func NewReadStatusRepository(db *gorm.DB) ReadStatusRepository {
	return &readStatusRepository{db: db}
}

// CreateBatch 一条 INSERT 写入全部已读行
func (r *readStatusRepository) CreateBatch(rows []model.ReadStatus) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	return wrapDBErrorf(err, "批量写入已读记录 count=%d", len(rows))
}

func (r *readStatusRepository) CountByMessage(messageID int64) (int64, error) {
	var count int64
	if err := r.db.Model(&model.ReadStatus{}).Where("message_id = ?", messageID).Count(&count).Error; err != nil {
		return 0, wrapDBErrorf(err, "统计已读人数 message_id=%d", messageID)
	}
	return count, nil
}

func (r *readStatusRepository) DeleteByMessage(messageID int64) error {
	err := r.db.Where("message_id = ?", messageID).Delete(&model.ReadStatus{}).Error
	return wrapDBErrorf(err, "删除已读记录 message_id=%d", messageID)
}

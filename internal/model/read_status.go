package model

import "time"

// ReadStatus 群消息已读记录
// (message_id, user_id) 唯一，没有记录即未读
type ReadStatus struct {
	ID        uint      `gorm:"primaryKey"`
	MessageID int64     `gorm:"column:message_id;uniqueIndex:uk_message_user,priority:1;not null;comment:消息ID"`
	UserID    string    `gorm:"column:user_id;uniqueIndex:uk_message_user,priority:2;index;type:varchar(64);not null;comment:读者ID"`
	ReadAt    time.Time `gorm:"column:read_at;precision:3;not null;comment:已读时间"`
}

func (ReadStatus) TableName() string {
	return "read_status"
}

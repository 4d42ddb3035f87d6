package repository

import (
	"errors"
	"time"

	"employee_chat_server/pkg/errorx"

	"gorm.io/gorm"
)

// epoch 没有清空记录时的默认边界
var epoch = time.Unix(0, 0).UTC()

// dbCode gorm 错误对应的业务码：记录不存在 -> CodeNotFound，其余 -> CodeDBError
func dbCode(err error) int {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.CodeNotFound
	}
	return errorx.CodeDBError
}

// wrapDBError 包装数据库错误，err 为 nil 时返回 nil
func wrapDBError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errorx.Wrap(err, dbCode(err), msg)
}

// wrapDBErrorf 同 wrapDBError，支持格式化消息
func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errorx.Wrapf(err, dbCode(err), format, args...)
}

// paginate 分页 scope，page 从 0 开始
func paginate(page, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 0 {
			page = 0
		}
		return db.Offset(page * size).Limit(size)
	}
}

// reverse 原地翻转，倒序查询的结果按时间正序返回
func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

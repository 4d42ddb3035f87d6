// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"time"

	"employee_chat_server/internal/model"

	"gorm.io/gorm"
)

// ==================== Repository 接口定义 ====================

// MessageRepository 消息数据访问接口
// viewer 参数表示"从谁的视角"查询，私聊会话由 viewer 与 conv.ID 两端确定
type MessageRepository interface {
	// Create 持久化新消息
	Create(message *model.Message) error
	// FindByID 根据 ID 查找消息
	FindByID(id int64) (*model.Message, error)
	// FindByClientID 按发送者和客户端关联 ID 查找消息，没有时返回 NotFound
	FindByClientID(senderID, clientID string) (*model.Message, error)
	// UpdateContent 编辑消息内容并标记 edited
	UpdateContent(id int64, content string) error
	// SoftDelete 撤回消息：内容替换为占位符，清空附件，标记 deleted
	SoftDelete(id int64) error
	// HardDelete 物理删除消息
	HardDelete(id int64) error
	// MarkRead 将单条私聊消息标记为已读
	MarkRead(id int64) error
	// MarkPrivateRead 将 partner 发给 user 且在 after 之后的未读消息全部标记已读，返回被标记的 ID
	MarkPrivateRead(user, partner string, after time.Time) ([]int64, error)
	// Pin 置顶消息，调用方负责先取消同会话内的其它置顶
	Pin(id int64, at time.Time) error
	// Unpin 取消置顶
	Unpin(id int64) error
	// UnpinConversation 取消会话内所有置顶消息，返回被取消的 ID
	UnpinConversation(viewer string, conv model.Conversation) ([]int64, error)
	// FindPinned 查找会话内置顶消息，没有时返回 NotFound
	FindPinned(viewer string, conv model.Conversation) (*model.Message, error)
	// ListHistory 分页查询聊天记录（page 从 0 开始），结果按时间正序
	// 过滤 after 之前的消息和 viewer 隐藏的消息
	ListHistory(viewer string, conv model.Conversation, after time.Time, page, size int) ([]model.Message, error)
	// LastMessage 会话内 after 之后的最后一条可见消息，没有时返回 nil, nil
	LastMessage(viewer string, conv model.Conversation, after time.Time) (*model.Message, error)
	// CountUnreadPrivate partner 发给 user、after 之后的未读消息数
	CountUnreadPrivate(user, partner string, after time.Time) (int64, error)
	// CountUnreadGroup 群内 after 之后、非 user 发送且没有 user 已读记录的消息数
	CountUnreadGroup(user string, conv model.Conversation, after time.Time) (int64, error)
	// UnreadGroupMessageIDs 同 CountUnreadGroup，返回消息 ID
	UnreadGroupMessageIDs(user string, conv model.Conversation, after time.Time) ([]int64, error)
	// PrivatePartners 与 user 有过私聊往来的所有用户
	PrivatePartners(user string) ([]string, error)
}

// ReadStatusRepository 群消息已读记录数据访问接口
type ReadStatusRepository interface {
	// CreateBatch 批量插入已读记录，已存在的 (message, user) 忽略
	CreateBatch(rows []model.ReadStatus) error
	// CountByMessage 某条消息的已读人数
	CountByMessage(messageID int64) (int64, error)
	// DeleteByMessage 删除消息的全部已读记录（物理删除消息时使用）
	DeleteByMessage(messageID int64) error
}

// ClearedChatRepository 清空聊天边界数据访问接口
type ClearedChatRepository interface {
	// Upsert 写入或覆盖清空时间
	Upsert(userID, conversationKey string, at time.Time) error
	// GetClearedAt 获取清空时间，没有记录时返回 Unix 纪元
	GetClearedAt(userID, conversationKey string) (time.Time, error)
	// MapByUser 用户所有会话的清空时间，key 为会话键
	MapByUser(userID string) (map[string]time.Time, error)
}

// HiddenMessageRepository "仅对我删除"标记数据访问接口
type HiddenMessageRepository interface {
	// Hide 隐藏消息，重复隐藏忽略
	Hide(userID string, messageID int64, at time.Time) error
	// DeleteByMessage 删除消息的全部隐藏标记
	DeleteByMessage(messageID int64) error
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db          *gorm.DB                // GORM 数据库实例
	Message     MessageRepository       // 消息 Repository
	ReadStatus  ReadStatusRepository    // 群已读 Repository
	ClearedChat ClearedChatRepository   // 清空边界 Repository
	Hidden      HiddenMessageRepository // 隐藏标记 Repository
}

// NewRepositories 创建所有 Repository 实例
// 接收 GORM 数据库实例，初始化并返回 Repositories 聚合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Message:     NewMessageRepository(db),
		ReadStatus:  NewReadStatusRepository(db),
		ClearedChat: NewClearedChatRepository(db),
		Hidden:      NewHiddenMessageRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 使用事务 db 创建新的 Repositories 实例
		return fn(NewRepositories(tx))
	})
}

// TransactionWithHooks 同 Transaction，额外提供提交后钩子
// 通过 hooks.AfterCommit 注册的函数只在事务成功提交后按注册顺序执行，回滚时全部丢弃
func (r *Repositories) TransactionWithHooks(fn func(txRepos *Repositories, hooks *CommitHooks) error) error {
	hooks := &CommitHooks{}
	if err := r.Transaction(func(txRepos *Repositories) error {
		return fn(txRepos, hooks)
	}); err != nil {
		return err
	}
	hooks.run()
	return nil
}

// CommitHooks 事务提交后执行的回调队列
type CommitHooks struct {
	fns []func()
}

// AfterCommit 注册提交后回调
func (h *CommitHooks) AfterCommit(fn func()) {
	h.fns = append(h.fns, fn)
}

func (h *CommitHooks) run() {
	for _, fn := range h.fns {
		fn()
	}
}

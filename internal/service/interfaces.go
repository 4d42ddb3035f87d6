// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层与 WebSocket 网关调用
package service

import (
	"context"
	"io"
	"time"

	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/model"
)

// MessageService 消息业务接口
// 处理发送、附件、聊天记录、编辑、删除、置顶以及会话窗口状态
type MessageService interface {
	// Send 发送文本消息，持久化后立即返回，分发异步进行
	Send(ctx context.Context, sender string, req request.SendMessageRequest) (*model.Message, error)
	// Upload 保存附件并发送附件消息
	Upload(ctx context.Context, sender string, req request.UploadMessageRequest, filename, contentType string, r io.Reader) (*model.Message, error)
	// OpenFile 下载附件
	OpenFile(ctx context.Context, userID string, id int64) (*model.Message, io.ReadCloser, error)
	// History 聊天记录（遵守清空边界与仅对我删除）
	History(ctx context.Context, userID string, conv model.Conversation, page, size int, loc *time.Location) ([]*respond.MessageView, error)
	// Pinned 会话当前置顶消息，没有时返回 nil
	Pinned(ctx context.Context, userID string, conv model.Conversation) (*respond.PinnedMessage, error)

	// Edit 编辑消息（仅发送者）
	Edit(ctx context.Context, userID string, id int64, content string) (*respond.MessageView, error)
	// DeleteForMe 仅对自己隐藏
	DeleteForMe(ctx context.Context, userID string, id int64) error
	// DeleteForEveryone 软删除并广播（仅发送者）
	DeleteForEveryone(ctx context.Context, userID string, id int64) error
	// HardDelete 物理删除（仅发送者）
	HardDelete(ctx context.Context, userID string, id int64) error
	// Pin 置顶，同一会话只保留一条
	Pin(ctx context.Context, userID string, id int64) (*respond.PinUpdate, error)
	// Unpin 取消置顶
	Unpin(ctx context.Context, userID string, id int64) (*respond.PinUpdate, error)

	// Open 打开会话窗口并标记已读
	Open(ctx context.Context, userID string, conv model.Conversation) error
	// Close 关闭会话窗口
	Close(ctx context.Context, userID string, conv model.Conversation) error
	// Clear 清空聊天
	Clear(ctx context.Context, userID string, conv model.Conversation) (*respond.ClearAck, error)
	// Typing 正在输入提示
	Typing(ctx context.Context, userID string, conv model.Conversation, typing bool)
}

// ComposeService 回复与转发
type ComposeService interface {
	Reply(ctx context.Context, sender string, req request.ReplyRequest) (*model.Message, error)
	Forward(ctx context.Context, sender string, req request.ForwardRequest) ([]*model.Message, error)
}

// OverviewService 侧边栏查询与目录缓存维护
type OverviewService interface {
	// Get 分页查询侧边栏，page 从 0 开始
	Get(ctx context.Context, userID string, page, size int) (*respond.Overview, error)
	// NotifyTeamUpdate 团队成员变化后重推侧边栏
	NotifyTeamUpdate(ctx context.Context, teamID string) error
	EvictTeam(ctx context.Context, teamID string) error
	EvictEmployee(ctx context.Context, userID string) error
}

package constants

import "time"

const (
	CHANNEL_SIZE  = 100              // 单个连接的推送缓冲大小
	FILE_MAX_SIZE = 20 << 20         // 附件最大 20MB
	REDIS_TIMEOUT = 10 * time.Minute // 目录缓存默认过期时间

	DELETED_CONTENT = "This message was deleted" // 撤回（全员删除）后的占位内容
	CLEARED_CONTENT = "Chat cleared"             // 清空聊天后侧边栏的占位预览

	REPLY_PREVIEW_MAX_RUNES = 120 // 回复预览最多保留的字符数

	DEFAULT_PAGE_SIZE    = 10 // 侧边栏默认分页大小
	DEFAULT_HISTORY_SIZE = 15 // 聊天记录默认分页大小
)

// 推送目的地（客户端按此区分消息种类）
const (
	DestPrivate      = "/queue/private"
	DestPrivateAck   = "/queue/private-ack"
	DestGroupAck     = "/queue/group-ack"
	DestSidebar      = "/queue/sidebar"
	DestClearChat    = "/queue/clearchat"
	DestTypingStatus = "/queue/typing-status"
	DestPresence     = "/topic/presence"
	DestErrors       = "/queue/errors" // ws 动作失败回执

	DestMessageDeleted = "/queue/message-deleted" // 仅对我删除，同步到本人其它设备
	TopicTypingPrefix  = "/topic/typing-status/"  // 群聊正在输入主题前缀
)

// Package presence 记录每个用户当前打开的聊天窗口和在线会话
// 状态只存在于本进程，重启后从空开始
package presence

import (
	"sync"

	"employee_chat_server/internal/model"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Tracker 存在性追踪器
type Tracker interface {
	OpenChat(userID string, conv model.Conversation)
	CloseChat(userID string, conv model.Conversation)
	IsChatWindowOpen(userID string, conv model.Conversation) bool
	// AddSession 返回 true 表示用户由离线变为在线（0→1）
	AddSession(userID, sessionID string) bool
	// RemoveSession 返回 true 表示用户最后一个会话断开（1→0），
	// 此时 closed 为随之关闭的全部聊天窗口
	RemoveSession(userID, sessionID string) (last bool, closed []model.Conversation)
	IsOnline(userID string) bool
}

// entry 单个用户的状态，由自身的锁保护
// dead 表示 entry 已从 map 中移除，持有旧指针的写者需要重新获取
type entry struct {
	mu       sync.Mutex
	open     map[string]model.Conversation
	sessions map[string]struct{}
	dead     bool
}

func (e *entry) empty() bool {
	return len(e.open) == 0 && len(e.sessions) == 0
}

// MemoryTracker 基于分段锁 map 的 Tracker 实现
type MemoryTracker struct {
	users cmap.ConcurrentMap[string, *entry]
}

// NewTracker 创建追踪器
func NewTracker() *MemoryTracker {
	return &MemoryTracker{users: cmap.New[*entry]()}
}

func (t *MemoryTracker) getOrCreate(userID string) *entry {
	return t.users.Upsert(userID, nil, func(exist bool, old *entry, _ *entry) *entry {
		if exist && old != nil {
			return old
		}
		return &entry{
			open:     make(map[string]model.Conversation),
			sessions: make(map[string]struct{}),
		}
	})
}

// mutate 在用户 entry 的锁内执行 fn，entry 被并发回收时重试
func (t *MemoryTracker) mutate(userID string, fn func(e *entry)) {
	for {
		e := t.getOrCreate(userID)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		fn(e)
		e.mu.Unlock()
		t.gc(userID)
		return
	}
}

// gc 回收空 entry，避免断线用户长期占用内存
func (t *MemoryTracker) gc(userID string) {
	t.users.RemoveCb(userID, func(_ string, e *entry, exists bool) bool {
		if !exists || e == nil {
			return false
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.empty() {
			return false
		}
		e.dead = true
		return true
	})
}

// read 只读访问，用户不存在时不创建 entry
func (t *MemoryTracker) read(userID string, fn func(e *entry)) {
	e, ok := t.users.Get(userID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dead {
		fn(e)
	}
}

func (t *MemoryTracker) OpenChat(userID string, conv model.Conversation) {
	t.mutate(userID, func(e *entry) { e.open[conv.Key()] = conv })
}

func (t *MemoryTracker) CloseChat(userID string, conv model.Conversation) {
	t.mutate(userID, func(e *entry) { delete(e.open, conv.Key()) })
}

func (t *MemoryTracker) IsChatWindowOpen(userID string, conv model.Conversation) bool {
	var open bool
	t.read(userID, func(e *entry) { _, open = e.open[conv.Key()] })
	return open
}

func (t *MemoryTracker) AddSession(userID, sessionID string) bool {
	var first bool
	t.mutate(userID, func(e *entry) {
		if _, ok := e.sessions[sessionID]; ok {
			return
		}
		first = len(e.sessions) == 0
		e.sessions[sessionID] = struct{}{}
	})
	return first
}

// RemoveSession 移除会话；最后一个会话断开时同时清空打开的窗口
func (t *MemoryTracker) RemoveSession(userID, sessionID string) (last bool, closed []model.Conversation) {
	t.mutate(userID, func(e *entry) {
		if _, ok := e.sessions[sessionID]; !ok {
			return
		}
		delete(e.sessions, sessionID)
		if len(e.sessions) > 0 {
			return
		}
		last = true
		closed = make([]model.Conversation, 0, len(e.open))
		for _, c := range e.open {
			closed = append(closed, c)
		}
		clear(e.open)
	})
	return last, closed
}

func (t *MemoryTracker) IsOnline(userID string) bool {
	var online bool
	t.read(userID, func(e *entry) { online = len(e.sessions) > 0 })
	return online
}

var _ Tracker = (*MemoryTracker)(nil)

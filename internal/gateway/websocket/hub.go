package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Hub 本机在线会话表
// 按用户与主题两个维度索引同一批 Client；所有发送在读锁内以非阻塞方式写入 Client.send，
// 关闭 send 只发生在写锁内，因此不会向已关闭的通道写入
type Hub struct {
	mu     sync.RWMutex
	users  map[string]map[*Client]struct{}
	topics map[string]map[*Client]struct{}
}

// NewHub 创建会话表
func NewHub() *Hub {
	return &Hub{
		users:  make(map[string]map[*Client]struct{}),
		topics: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[c.UserID] = set
	}
	set[c] = struct{}{}
}

// unregister 移除会话并关闭其发送通道，重复调用返回 false
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	if set, ok := h.users[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}
	for topic := range c.topics {
		h.removeFromTopic(c, topic)
	}
	c.topics = nil
	close(c.send)
	return true
}

// Subscribe 订阅主题，已关闭的会话忽略
func (h *Hub) Subscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Client]struct{})
		h.topics[topic] = set
	}
	set[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

// Unsubscribe 取消订阅
func (h *Hub) Unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	h.removeFromTopic(c, topic)
	delete(c.topics, topic)
}

func (h *Hub) removeFromTopic(c *Client, topic string) {
	if set, ok := h.topics[topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// HasUser 用户是否在本机有会话
func (h *Hub) HasUser(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Sessions 本机会话数
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

// PushToUser 推送给用户在本机的全部会话，返回实际写入的会话数
func (h *Hub) PushToUser(userID string, frame []byte) int {
	h.mu.RLock()
	set := h.users[userID]
	total := len(set)
	slow := h.deliver(set, frame)
	h.mu.RUnlock()
	h.evict(slow)
	return total - len(slow)
}

// PushToTopic 推送给主题的全部订阅者
func (h *Hub) PushToTopic(topic string, frame []byte) int {
	h.mu.RLock()
	set := h.topics[topic]
	total := len(set)
	slow := h.deliver(set, frame)
	h.mu.RUnlock()
	h.evict(slow)
	return total - len(slow)
}

// deliver 非阻塞写入；缓冲已满的慢连接返回给调用方断开
func (h *Hub) deliver(set map[*Client]struct{}, frame []byte) []*Client {
	var slow []*Client
	for c := range set {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}

func (h *Hub) evict(slow []*Client) {
	for _, c := range slow {
		zap.L().Warn("推送缓冲已满，断开慢连接",
			zap.String("user_id", c.UserID), zap.String("session_id", c.ID))
		c.disconnect()
	}
}

// closeAll 关闭全部会话（进程退出时）
func (h *Hub) closeAll() {
	h.mu.RLock()
	all := make([]*Client, 0)
	for _, set := range h.users {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.disconnect()
	}
}

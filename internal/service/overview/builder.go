// Package overview 侧边栏会话列表
// Builder 负责计算，Broadcaster 负责异步推送
package overview

import (
	"context"
	"sort"
	"strconv"
	"time"

	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/presence"
	"employee_chat_server/pkg/constants"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// previewConcurrency 单个用户计算预览时的最大并发查询数
const previewConcurrency = 8

// Publisher 投递总线的发布端
type Publisher interface {
	Publish(ctx context.Context, env *event.Envelope) error
}

// Builder 侧边栏计算
type Builder struct {
	repos     *repository.Repositories
	presence  presence.Tracker
	directory directory.Directory
	bus       Publisher
}

// NewBuilder 创建 Builder
func NewBuilder(repos *repository.Repositories, tracker presence.Tracker, dir directory.Directory, bus Publisher) *Builder {
	return &Builder{repos: repos, presence: tracker, directory: dir, bus: bus}
}

// Build 计算用户的会话列表：群聊与私聊合并后按最后消息时间倒序，再分页
// page 从 0 开始，size <= 0 时使用默认值
func (b *Builder) Build(ctx context.Context, userID string, page, size int) (*respond.Overview, error) {
	if size <= 0 {
		size = constants.DEFAULT_PAGE_SIZE
	}
	if page < 0 {
		page = 0
	}

	var (
		groups   []directory.Group
		partners []string
		cleared  map[string]time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		groups, err = b.directory.TeamsOf(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		partners, err = b.repos.Message.PrivatePartners(userID)
		return err
	})
	g.Go(func() error {
		var err error
		cleared, err = b.repos.ClearedChat.MapByUser(userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]respond.ConversationPreview, len(groups)+len(partners))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(previewConcurrency)
	for i, grp := range groups {
		i, grp := i, grp
		g.Go(func() error {
			p, err := b.groupPreview(userID, grp, cleared)
			if err != nil {
				return err
			}
			items[i] = p
			return nil
		})
	}
	for j, partner := range partners {
		j, partner := j, partner
		g.Go(func() error {
			p, err := b.privatePreview(gctx, userID, partner, cleared)
			if err != nil {
				return err
			}
			items[len(groups)+j] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortPreviews(items)
	return paginate(items, page, size), nil
}

func (b *Builder) groupPreview(userID string, grp directory.Group, cleared map[string]time.Time) (respond.ConversationPreview, error) {
	conv := grp.Conversation()
	after, wasCleared := clearedAt(cleared, conv)

	p := respond.ConversationPreview{
		ChatID:      grp.ID,
		Kind:        grp.Kind,
		Name:        grp.Name,
		MemberCount: len(grp.Members),
	}
	last, err := b.repos.Message.LastMessage(userID, conv, after)
	if err != nil {
		return p, err
	}
	fillLast(&p, last, wasCleared)

	p.UnreadCount, err = b.repos.Message.CountUnreadGroup(userID, conv, after)
	return p, err
}

// privatePreview 窗口已打开时先把未读消息标记为已读，未读数直接为 0
func (b *Builder) privatePreview(ctx context.Context, userID, partner string, cleared map[string]time.Time) (respond.ConversationPreview, error) {
	conv := model.Conversation{Kind: model.KindPrivate, ID: partner}
	after, wasCleared := clearedAt(cleared, conv)

	emp, _ := b.directory.EmployeeDisplay(ctx, partner)
	online := b.presence.IsOnline(partner)
	p := respond.ConversationPreview{
		ChatID:      partner,
		Kind:        model.KindPrivate,
		Name:        emp.Name,
		Online:      &online,
		ProfileLink: emp.ProfileLink,
	}
	if p.Name == "" {
		p.Name = partner
	}

	if b.presence.IsChatWindowOpen(userID, conv) {
		ids, err := b.repos.Message.MarkPrivateRead(userID, partner, after)
		if err != nil {
			return p, err
		}
		b.notifySeen(ctx, partner, userID, ids)
	} else {
		n, err := b.repos.Message.CountUnreadPrivate(userID, partner, after)
		if err != nil {
			return p, err
		}
		p.UnreadCount = n
	}

	last, err := b.repos.Message.LastMessage(userID, conv, after)
	if err != nil {
		return p, err
	}
	fillLast(&p, last, wasCleared)
	return p, nil
}

// notifySeen 通知 sender：reader 已看到这些消息
func (b *Builder) notifySeen(ctx context.Context, sender, reader string, ids []int64) {
	if len(ids) == 0 || b.bus == nil {
		return
	}
	env, err := SeenEnvelope(sender, reader, ids)
	if err != nil {
		return
	}
	if err := b.bus.Publish(ctx, env); err != nil {
		zap.L().Warn("发布已读状态失败", zap.String("user_id", sender), zap.Error(err))
	}
}

// SeenEnvelope 构建推给发送者的 SEEN 状态事件
func SeenEnvelope(sender, reader string, ids []int64) (*event.Envelope, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}
	return event.ToUser(event.TypeStatusUpdate, sender, constants.DestPrivate, respond.StatusUpdate{
		Type:       string(event.TypeStatusUpdate),
		Status:     respond.StatusSeen,
		ChatID:     reader,
		MessageIDs: strIDs,
	})
}

func fillLast(p *respond.ConversationPreview, last *model.Message, wasCleared bool) {
	if last == nil {
		if wasCleared {
			p.LastMessage = constants.CLEARED_CONTENT
		}
		return
	}
	ts := last.Timestamp
	p.LastMessageAt = &ts
	p.LastSenderID = last.SenderID
	p.LastMessageKind = last.MediaKind()
	p.LastMessage = last.Content
	if p.LastMessage == "" && last.FileName != "" {
		p.LastMessage = last.FileName
	}
}

// sortPreviews 按最后消息时间倒序，没有消息的会话排在最后
func sortPreviews(items []respond.ConversationPreview) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].LastMessageAt, items[j].LastMessageAt
		switch {
		case a == nil && b == nil:
			return items[i].ChatID < items[j].ChatID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		}
		return items[i].ChatID < items[j].ChatID
	})
}

func paginate(items []respond.ConversationPreview, page, size int) *respond.Overview {
	out := &respond.Overview{Page: page, Size: size, Total: len(items), Items: []respond.ConversationPreview{}}
	start := page * size
	if start >= len(items) {
		return out
	}
	end := min(start+size, len(items))
	out.Items = items[start:end]
	return out
}

// clearedAt 会话的清空边界，从未清空时为 Unix 纪元
func clearedAt(cleared map[string]time.Time, conv model.Conversation) (time.Time, bool) {
	if at, ok := cleared[conv.Key()]; ok {
		return at, true
	}
	return repository.Epoch(), false
}

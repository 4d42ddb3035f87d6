// Package distribution 分发处理器
// 消费异步分发通道的事件：计算已读 / 送达状态，在事务内写入已读记录，
// 事务提交后把投递事件发布到投递总线，并触发相关用户的侧边栏刷新
package distribution

import (
	"context"
	"time"

	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/infrastructure/mq"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/presence"
	"employee_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// Publisher 投递总线的发布端
type Publisher interface {
	Publish(ctx context.Context, env *event.Envelope) error
}

// OverviewScheduler 异步侧边栏刷新
type OverviewScheduler interface {
	Schedule(userIDs ...string)
	ScheduleGroup(kind model.Kind, groupID string)
}

// Processor 分发处理器
type Processor struct {
	repos     *repository.Repositories
	presence  presence.Tracker
	directory directory.Directory
	bus       Publisher
	overview  OverviewScheduler
}

// NewProcessor 创建分发处理器
func NewProcessor(repos *repository.Repositories, tracker presence.Tracker, dir directory.Directory,
	bus Publisher, overview OverviewScheduler) *Processor {
	return &Processor{repos: repos, presence: tracker, directory: dir, bus: bus, overview: overview}
}

// Handle 实现 mq.Handler
func (p *Processor) Handle(ctx context.Context, ev mq.FanoutEvent) error {
	msg, err := p.repos.Message.FindByID(ev.MessageID)
	if err != nil {
		return err
	}
	if ev.Action == mq.ActionDelete {
		return p.processDelete(ctx, msg)
	}
	return p.ProcessMessage(ctx, msg)
}

// ProcessMessage 处理一条新持久化的消息
func (p *Processor) ProcessMessage(ctx context.Context, msg *model.Message) error {
	switch msg.Kind {
	case model.KindPrivate:
		return p.processPrivate(ctx, msg)
	case model.KindTeam, model.KindDepartment:
		return p.processGroup(ctx, msg)
	}
	return errorx.Newf(errorx.CodeInvalidParam, "消息 %d 的会话类型非法", msg.ID)
}

// processPrivate 接收者正打开与发送者的窗口时立即标记已读
func (p *Processor) processPrivate(ctx context.Context, msg *model.Message) error {
	return p.repos.TransactionWithHooks(func(tx *repository.Repositories, hooks *repository.CommitHooks) error {
		seen := msg.Read || p.presence.IsChatWindowOpen(msg.ReceiverID, model.Conversation{Kind: model.KindPrivate, ID: msg.SenderID})
		if seen && !msg.Read {
			if err := tx.Message.MarkRead(msg.ID); err != nil {
				return err
			}
			msg.Read = true
		}
		view := respond.NewMessageView(msg, seen)
		hooks.AfterCommit(func() {
			p.publish(ctx, event.NewMessageEnvelope(event.TypeMessage, view))
			p.overview.Schedule(msg.SenderID, msg.ReceiverID)
		})
		return nil
	})
}

// processGroup 为窗口打开的成员（不含发送者）批量写入已读记录
func (p *Processor) processGroup(ctx context.Context, msg *model.Message) error {
	members, err := p.directory.ListMembers(ctx, msg.Kind, msg.GroupID)
	if err != nil {
		zap.L().Warn("获取群成员失败，跳过已读标记", zap.Int64("message_id", msg.ID), zap.Error(err))
		members = nil
	}
	conv := model.Conversation{Kind: msg.Kind, ID: msg.GroupID}

	return p.repos.TransactionWithHooks(func(tx *repository.Repositories, hooks *repository.CommitHooks) error {
		now := time.Now().UTC().Truncate(time.Millisecond)
		rows := make([]model.ReadStatus, 0, len(members))
		for _, member := range members {
			if member == msg.SenderID || !p.presence.IsChatWindowOpen(member, conv) {
				continue
			}
			rows = append(rows, model.ReadStatus{MessageID: msg.ID, UserID: member, ReadAt: now})
		}
		if len(rows) > 0 {
			if err := tx.ReadStatus.CreateBatch(rows); err != nil {
				return err
			}
			zap.L().Debug("群消息已读标记", zap.Int64("message_id", msg.ID), zap.Int("count", len(rows)))
		}

		view := respond.NewMessageView(msg, len(rows) > 0)
		hooks.AfterCommit(func() {
			p.publish(ctx, event.NewMessageEnvelope(event.TypeMessage, view))
			if len(members) == 0 {
				// 成员查询失败，交给广播器再查一次
				p.overview.Schedule(msg.SenderID)
				p.overview.ScheduleGroup(msg.Kind, msg.GroupID)
				return
			}
			p.overview.Schedule(append([]string{msg.SenderID}, members...)...)
		})
		return nil
	})
}

// processDelete 撤回只广播占位内容，不做已读标记
func (p *Processor) processDelete(ctx context.Context, msg *model.Message) error {
	view := respond.NewMessageView(msg, msg.Read)
	p.publish(ctx, event.NewMessageEnvelope(event.TypeDeleted, view))
	p.overview.Schedule(msg.SenderID)
	switch msg.Kind {
	case model.KindPrivate:
		p.overview.Schedule(msg.ReceiverID)
	case model.KindTeam, model.KindDepartment:
		p.overview.ScheduleGroup(msg.Kind, msg.GroupID)
	}
	return nil
}

// publish 发布失败只记日志：消息已持久化，客户端拉取聊天记录即可补齐
func (p *Processor) publish(ctx context.Context, env *event.Envelope) {
	if err := p.bus.Publish(ctx, env); err != nil {
		fields := []zap.Field{zap.String("type", string(env.Type)), zap.Error(err)}
		if env.Message != nil {
			fields = append(fields, zap.Int64("message_id", env.Message.ID))
		}
		zap.L().Error("发布投递事件失败", fields...)
	}
}

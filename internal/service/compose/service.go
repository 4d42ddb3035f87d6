// Package compose 回复与转发
// 生成的新消息与普通发送走同一条持久化 + 分发路径
package compose

import (
	"context"
	"database/sql"
	"strings"

	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/infrastructure/attachment"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/message"
	"employee_chat_server/pkg/constants"
	"employee_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// Deliverer 持久化并分发消息
type Deliverer interface {
	Deliver(ctx context.Context, m *model.Message) (*model.Message, error)
	// Authorize 用户是否可以访问该消息
	Authorize(ctx context.Context, userID string, m *model.Message) error
}

// composeService 回复 / 转发业务实现
type composeService struct {
	repos   *repository.Repositories
	deliver Deliverer
	store   attachment.Store
}

// NewComposeService 构造函数
func NewComposeService(repos *repository.Repositories, deliver Deliverer, store attachment.Store) *composeService {
	return &composeService{repos: repos, deliver: deliver, store: store}
}

// Truncate 按字符截断，超出部分以省略号结尾
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// Reply 回复消息，新消息携带原消息的预览
func (c *composeService) Reply(ctx context.Context, sender string, req request.ReplyRequest) (*model.Message, error) {
	conv, err := message.ParseTarget(req.Kind, req.ReceiverID, req.GroupID)
	if err != nil {
		return nil, err
	}
	original, err := c.repos.Message.FindByID(req.OriginalMessageID)
	if err != nil {
		return nil, err
	}
	if err := c.deliver.Authorize(ctx, sender, original); err != nil {
		return nil, err
	}

	m := message.NewMessage(sender, conv, req.Content, req.ClientID)
	m.ReplyToID = sql.NullInt64{Int64: original.ID, Valid: true}
	m.ReplyPreviewSender = original.SenderID
	m.ReplyPreviewKind = original.MediaKind()
	preview := original.Content
	if preview == "" {
		preview = original.FileName
	}
	m.ReplyPreviewContent = Truncate(preview, constants.REPLY_PREVIEW_MAX_RUNES)
	return c.deliver.Deliver(ctx, m)
}

// Forward 转发到多个目标；转发已转发的消息时署名原作者
// 单个目标失败不影响其它目标，返回已成功的消息和第一个错误
func (c *composeService) Forward(ctx context.Context, sender string, req request.ForwardRequest) ([]*model.Message, error) {
	targets := make([]model.Conversation, 0, len(req.Targets))
	for _, t := range req.Targets {
		conv, err := forwardTarget(t)
		if err != nil {
			return nil, err
		}
		targets = append(targets, conv)
	}

	original, err := c.repos.Message.FindByID(req.MessageID)
	if err != nil {
		return nil, err
	}
	if err := c.deliver.Authorize(ctx, sender, original); err != nil {
		return nil, err
	}
	if original.Deleted {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "消息 %d 已撤回，不能转发", original.ID)
	}

	author := original.SenderID
	if original.Forwarded && original.ForwardedFrom != "" {
		author = original.ForwardedFrom
	}

	var (
		out      []*model.Message
		firstErr error
	)
	for _, conv := range targets {
		m := message.NewMessage(sender, conv, original.Content, "")
		m.Forwarded = true
		m.ForwardedFrom = author
		if original.HasAttachment() {
			if err := c.copyAttachment(ctx, original, m); err != nil {
				zap.L().Error("复制转发附件失败", zap.Int64("message_id", original.ID), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		saved, err := c.deliver.Deliver(ctx, m)
		if saved != nil {
			out = append(out, saved)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return out, firstErr
}

// copyAttachment 转发时复制一份附件，撤回原消息不会影响转发出去的副本
func (c *composeService) copyAttachment(ctx context.Context, from, to *model.Message) error {
	rc, err := c.store.Open(ctx, from.AttachmentKey)
	if err != nil {
		return err
	}
	defer rc.Close()
	stored, err := c.store.Save(ctx, from.FileName, from.FileType, rc)
	if err != nil {
		return err
	}
	to.AttachmentKey = stored.Key
	to.FileName = from.FileName
	to.FileType = stored.ContentType
	to.FileSize = stored.Size
	to.Duration = from.Duration
	return nil
}

// forwardTarget 目标未填类型时按字段推断：receiverId 为私聊，groupId 默认团队
func forwardTarget(t request.ForwardTarget) (model.Conversation, error) {
	receiver, group := strings.TrimSpace(t.ReceiverID), strings.TrimSpace(t.GroupID)
	if receiver == "" && group == "" {
		return model.Conversation{}, errorx.New(errorx.CodeInvalidParam, "转发目标缺少 receiverId 或 groupId")
	}
	kind := t.Kind
	if kind == "" {
		if receiver != "" {
			kind = model.KindPrivate.String()
		} else {
			kind = model.KindTeam.String()
		}
	}
	return message.ParseTarget(kind, receiver, group)
}

package compose

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"employee_chat_server/internal/dao/mysql"
	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/infrastructure/attachment"
	"employee_chat_server/internal/model"
	"employee_chat_server/pkg/constants"
	"employee_chat_server/pkg/errorx"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// directDeliverer 只做持久化，分发由其它包测试覆盖
type directDeliverer struct {
	repos *repository.Repositories
	next  atomic.Int64
}

func (d *directDeliverer) Deliver(_ context.Context, m *model.Message) (*model.Message, error) {
	m.ID = 1000 + d.next.Add(1)
	m.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	return m, d.repos.Message.Create(m)
}

// Authorize 群 T 只有 A 一个成员
func (d *directDeliverer) Authorize(_ context.Context, userID string, m *model.Message) error {
	if m.Kind.IsGroup() {
		if m.GroupID == "T" && userID == "A" {
			return nil
		}
		return errorx.New(errorx.CodeForbidden, "not a member")
	}
	if !m.IsParticipant(userID) {
		return errorx.New(errorx.CodeForbidden, "not a participant")
	}
	return nil
}

func newTestService(t *testing.T) (*composeService, *repository.Repositories, attachment.Store) {
	t.Helper()
	repos, err := mysql.OpenSQLite(":memory:", logger.Silent)
	require.NoError(t, err)
	store, err := attachment.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return NewComposeService(repos, &directDeliverer{repos: repos}, store), repos, store
}

func seed(t *testing.T, repos *repository.Repositories, m model.Message) *model.Message {
	t.Helper()
	m.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repos.Message.Create(&m))
	return &m
}

func TestReplyCarriesPreview(t *testing.T) {
	svc, repos, _ := newTestService(t)
	long := strings.Repeat("长", constants.REPLY_PREVIEW_MAX_RUNES+30)
	orig := seed(t, repos, model.Message{ID: 1, SenderID: "B", ReceiverID: "A", Kind: model.KindPrivate, Content: long})

	reply, err := svc.Reply(context.Background(), "A", request.ReplyRequest{
		OriginalMessageID: orig.ID, Kind: "PRIVATE", ReceiverID: "B", Content: "agreed",
	})
	require.NoError(t, err)
	require.True(t, reply.ReplyToID.Valid)
	require.Equal(t, orig.ID, reply.ReplyToID.Int64)
	require.Equal(t, "B", reply.ReplyPreviewSender)
	require.Equal(t, "text", reply.ReplyPreviewKind)
	require.Equal(t, constants.REPLY_PREVIEW_MAX_RUNES+3, len([]rune(reply.ReplyPreviewContent)))
}

func TestReplyToMissingMessage(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Reply(context.Background(), "A", request.ReplyRequest{
		OriginalMessageID: 77, Kind: "PRIVATE", ReceiverID: "B", Content: "?",
	})
	require.True(t, errorx.IsNotFound(err))
}

func TestForwardAttributesOriginalAuthor(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()
	orig := seed(t, repos, model.Message{ID: 1, SenderID: "A", ReceiverID: "B", Kind: model.KindPrivate, Content: "news"})

	first, err := svc.Forward(ctx, "B", request.ForwardRequest{MessageID: orig.ID, Targets: []request.ForwardTarget{{ReceiverID: "C"}}})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.True(t, first[0].Forwarded)
	require.Equal(t, "A", first[0].ForwardedFrom)

	second, err := svc.Forward(ctx, "C", request.ForwardRequest{MessageID: first[0].ID, Targets: []request.ForwardTarget{
		{ReceiverID: "D"},
		{Kind: "DEPARTMENT", GroupID: "D1"},
	}})
	require.NoError(t, err)
	require.Len(t, second, 2)
	for _, m := range second {
		require.Equal(t, "A", m.ForwardedFrom, "forwardedFrom follows the chain to the author")
		require.Equal(t, "C", m.SenderID)
	}
	require.Equal(t, model.KindDepartment, second[1].Kind)
}

func TestForwardValidation(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()
	orig := seed(t, repos, model.Message{ID: 1, SenderID: "A", ReceiverID: "B", Kind: model.KindPrivate, Content: "x"})

	_, err := svc.Forward(ctx, "A", request.ForwardRequest{MessageID: orig.ID, Targets: []request.ForwardTarget{{Kind: "TEAM"}}})
	require.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err))

	_, err = svc.Forward(ctx, "Z", request.ForwardRequest{MessageID: orig.ID, Targets: []request.ForwardTarget{{ReceiverID: "C"}}})
	require.True(t, errorx.IsForbidden(err))

	_, err = svc.Forward(ctx, "A", request.ForwardRequest{MessageID: 404, Targets: []request.ForwardTarget{{ReceiverID: "C"}}})
	require.True(t, errorx.IsNotFound(err))
}

func TestForwardCopiesAttachment(t *testing.T) {
	svc, repos, store := newTestService(t)
	ctx := context.Background()
	stored, err := store.Save(ctx, "report.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	orig := seed(t, repos, model.Message{ID: 1, SenderID: "A", GroupID: "T", Kind: model.KindTeam,
		FileName: "report.pdf", FileType: "application/pdf", FileSize: stored.Size, AttachmentKey: stored.Key})

	out, err := svc.Forward(ctx, "A", request.ForwardRequest{MessageID: orig.ID, Targets: []request.ForwardTarget{{ReceiverID: "B"}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotEqual(t, stored.Key, out[0].AttachmentKey)
	require.Equal(t, "file", out[0].MediaKind())

	require.NoError(t, store.Delete(ctx, stored.Key))
	rc, err := store.Open(ctx, out[0].AttachmentKey)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
}

func TestReplyAndForwardRequireGroupMembership(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()
	orig := seed(t, repos, model.Message{ID: 1, SenderID: "A", GroupID: "T", Kind: model.KindTeam, Content: "roadmap"})

	_, err := svc.Forward(ctx, "Z", request.ForwardRequest{MessageID: orig.ID, Targets: []request.ForwardTarget{{ReceiverID: "C"}}})
	require.True(t, errorx.IsForbidden(err))

	_, err = svc.Reply(ctx, "Z", request.ReplyRequest{OriginalMessageID: orig.ID, Kind: "PRIVATE", ReceiverID: "A", Content: "leak?"})
	require.True(t, errorx.IsForbidden(err))

	reply, err := svc.Reply(ctx, "A", request.ReplyRequest{OriginalMessageID: orig.ID, Kind: "PRIVATE", ReceiverID: "B", Content: "ok"})
	require.NoError(t, err)
	require.Equal(t, orig.ID, reply.ReplyToID.Int64)
}

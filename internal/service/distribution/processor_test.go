package distribution

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"employee_chat_server/internal/dao/mysql"
	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/infrastructure/mq"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/presence"
	"employee_chat_server/pkg/constants"
	"employee_chat_server/pkg/errorx"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingBus struct {
	mu     sync.Mutex
	events []*event.Envelope
}

func (b *recordingBus) Publish(_ context.Context, env *event.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, env)
	return nil
}

func (b *recordingBus) all() []*event.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*event.Envelope(nil), b.events...)
}

type staticDirectory struct {
	members map[string][]string
}

func (d staticDirectory) ListMembers(_ context.Context, _ model.Kind, groupID string) ([]string, error) {
	return d.members[groupID], nil
}

func (d staticDirectory) TeamsOf(context.Context, string) ([]directory.Group, error) {
	return nil, nil
}

func (d staticDirectory) EmployeeDisplay(_ context.Context, id string) (directory.Employee, error) {
	return directory.Employee{ID: id, Name: id}, nil
}

type recordingOverview struct {
	mu     sync.Mutex
	users  []string
	groups []string
}

func (o *recordingOverview) Schedule(userIDs ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.users = append(o.users, userIDs...)
}

func (o *recordingOverview) ScheduleGroup(_ model.Kind, groupID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.groups = append(o.groups, groupID)
}

var nextID atomic.Int64

type fixture struct {
	repos    *repository.Repositories
	tracker  *presence.MemoryTracker
	bus      *recordingBus
	overview *recordingOverview
	proc     *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos, err := mysql.OpenSQLite(":memory:", logger.Silent)
	require.NoError(t, err)
	f := &fixture{
		repos:    repos,
		tracker:  presence.NewTracker(),
		bus:      &recordingBus{},
		overview: &recordingOverview{},
	}
	dir := staticDirectory{members: map[string][]string{"T": {"A", "B", "C"}}}
	f.proc = NewProcessor(repos, f.tracker, dir, f.bus, f.overview)
	return f
}

func (f *fixture) save(t *testing.T, m *model.Message) *model.Message {
	t.Helper()
	m.ID = nextID.Add(1)
	m.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, f.repos.Message.Create(m))
	return m
}

func TestPrivateSeenWhenWindowOpen(t *testing.T) {
	f := newFixture(t)
	f.tracker.OpenChat("B", model.Conversation{Kind: model.KindPrivate, ID: "A"})
	m := &model.Message{SenderID: "A", ReceiverID: "B", Kind: model.KindPrivate, Content: "hi"}
	m.SetCorrelationID("c-1")
	m = f.save(t, m)

	require.NoError(t, f.proc.Handle(context.Background(), mq.FanoutEvent{MessageID: m.ID, Action: mq.ActionSend}))

	stored, err := f.repos.Message.FindByID(m.ID)
	require.NoError(t, err)
	require.True(t, stored.Read)

	events := f.bus.all()
	require.Len(t, events, 1)
	require.Equal(t, event.TypeMessage, events[0].Type)
	require.True(t, events[0].Message.Seen)
	require.Equal(t, "c-1", events[0].Message.ClientID)
	require.ElementsMatch(t, []string{"A", "B"}, f.overview.users)
}

func TestPrivateUnreadWhenWindowClosed(t *testing.T) {
	f := newFixture(t)
	// B 打开的是与别人的窗口
	f.tracker.OpenChat("B", model.Conversation{Kind: model.KindPrivate, ID: "Z"})
	m := f.save(t, &model.Message{SenderID: "A", ReceiverID: "B", Kind: model.KindPrivate, Content: "hi"})

	require.NoError(t, f.proc.Handle(context.Background(), mq.FanoutEvent{MessageID: m.ID, Action: mq.ActionSend}))

	stored, err := f.repos.Message.FindByID(m.ID)
	require.NoError(t, err)
	require.False(t, stored.Read)
	require.False(t, f.bus.all()[0].Message.Seen)
}

func TestGroupReadStatusForOpenMembersOnly(t *testing.T) {
	f := newFixture(t)
	team := model.Conversation{Kind: model.KindTeam, ID: "T"}
	f.tracker.OpenChat("A", team) // 发送者自己打开也不写已读
	f.tracker.OpenChat("B", team)
	m := f.save(t, &model.Message{SenderID: "A", GroupID: "T", Kind: model.KindTeam, Content: "standup"})

	require.NoError(t, f.proc.Handle(context.Background(), mq.FanoutEvent{MessageID: m.ID, Action: mq.ActionSend}))

	n, err := f.repos.ReadStatus.CountByMessage(m.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	unreadC, err := f.repos.Message.CountUnreadGroup("C", team, repository.Epoch())
	require.NoError(t, err)
	require.EqualValues(t, 1, unreadC)
	unreadB, err := f.repos.Message.CountUnreadGroup("B", team, repository.Epoch())
	require.NoError(t, err)
	require.EqualValues(t, 0, unreadB)

	// 成员列表已在处理时取得，直接刷新，不再按群查询
	require.Empty(t, f.overview.groups)
	require.ElementsMatch(t, []string{"A", "A", "B", "C"}, f.overview.users)

	// 重复处理不会产生重复行
	require.NoError(t, f.proc.Handle(context.Background(), mq.FanoutEvent{MessageID: m.ID, Action: mq.ActionSend}))
	n, err = f.repos.ReadStatus.CountByMessage(m.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestDeleteEventCarriesSentinel(t *testing.T) {
	f := newFixture(t)
	m := f.save(t, &model.Message{SenderID: "A", ReceiverID: "B", Kind: model.KindPrivate, Content: "oops"})
	require.NoError(t, f.repos.Message.SoftDelete(m.ID))

	require.NoError(t, f.proc.Handle(context.Background(), mq.FanoutEvent{MessageID: m.ID, Action: mq.ActionDelete}))

	events := f.bus.all()
	require.Len(t, events, 1)
	require.Equal(t, event.TypeDeleted, events[0].Type)
	require.Equal(t, constants.DELETED_CONTENT, events[0].Message.Content)
	require.True(t, events[0].Message.Deleted)
	require.ElementsMatch(t, []string{"A", "B"}, f.overview.users)
}

func TestUnknownMessageIsNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.proc.Handle(context.Background(), mq.FanoutEvent{MessageID: 999, Action: mq.ActionSend})
	require.True(t, errorx.IsNotFound(err))
	require.Empty(t, f.bus.all())
}

func TestGroupWithoutMembersFallsBackToGroupRefresh(t *testing.T) {
	f := newFixture(t)
	m := f.save(t, &model.Message{SenderID: "A", GroupID: "EMPTY", Kind: model.KindTeam, Content: "anyone?"})

	require.NoError(t, f.proc.Handle(context.Background(), mq.FanoutEvent{MessageID: m.ID, Action: mq.ActionSend}))
	require.Equal(t, []string{"EMPTY"}, f.overview.groups)
	require.Equal(t, []string{"A"}, f.overview.users)
}

func TestFailedTransactionPublishesNothing(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, mysql.Migrate(db))
	// 已读表缺失，写已读记录的事务必然失败
	require.NoError(t, db.Migrator().DropTable(&model.ReadStatus{}))

	repos := repository.NewRepositories(db)
	tracker := presence.NewTracker()
	bus := &recordingBus{}
	overview := &recordingOverview{}
	dir := staticDirectory{members: map[string][]string{"T": {"A", "B"}}}
	proc := NewProcessor(repos, tracker, dir, bus, overview)

	tracker.OpenChat("B", model.Conversation{Kind: model.KindTeam, ID: "T"})
	m := &model.Message{ID: nextID.Add(1), SenderID: "A", GroupID: "T", Kind: model.KindTeam, Content: "lost?",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(t, repos.Message.Create(m))

	err = proc.Handle(context.Background(), mq.FanoutEvent{MessageID: m.ID, Action: mq.ActionSend})
	require.Error(t, err)
	require.Equal(t, errorx.CodeDBError, errorx.GetCode(err))
	require.Empty(t, bus.all())
	require.Empty(t, overview.users)
	require.Empty(t, overview.groups)
}

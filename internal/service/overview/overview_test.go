package overview

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/dao/mysql"
	"employee_chat_server/internal/dao/mysql/repository"
	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service/presence"
	"employee_chat_server/pkg/constants"

	"github.com/stretchr/testify/require"
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

func (b *recordingBus) byType(t event.Type) []*event.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*event.Envelope
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type staticDirectory struct {
	groups []directory.Group
}

func (d staticDirectory) ListMembers(_ context.Context, _ model.Kind, groupID string) ([]string, error) {
	for _, g := range d.groups {
		if g.ID == groupID {
			return g.Members, nil
		}
	}
	return nil, nil
}

func (d staticDirectory) TeamsOf(context.Context, string) ([]directory.Group, error) {
	return d.groups, nil
}

func (d staticDirectory) EmployeeDisplay(_ context.Context, id string) (directory.Employee, error) {
	return directory.Employee{ID: id, Name: "Employee " + id, ProfileLink: "/p/" + id}, nil
}

var nextID atomic.Int64

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	repos   *repository.Repositories
	tracker *presence.MemoryTracker
	bus     *recordingBus
	builder *Builder
}

func newFixture(t *testing.T, groups ...directory.Group) *fixture {
	t.Helper()
	repos, err := mysql.OpenSQLite(":memory:", logger.Silent)
	require.NoError(t, err)
	f := &fixture{repos: repos, tracker: presence.NewTracker(), bus: &recordingBus{}}
	f.builder = NewBuilder(repos, f.tracker, staticDirectory{groups: groups}, f.bus)
	return f
}

func (f *fixture) send(t *testing.T, m model.Message, at time.Time) *model.Message {
	t.Helper()
	m.ID = nextID.Add(1)
	m.Timestamp = at
	require.NoError(t, f.repos.Message.Create(&m))
	return &m
}

func private(from, to, content string) model.Message {
	return model.Message{SenderID: from, ReceiverID: to, Kind: model.KindPrivate, Content: content}
}

func team(from, id, content string) model.Message {
	return model.Message{SenderID: from, GroupID: id, Kind: model.KindTeam, Content: content}
}

func TestOverviewOrderingAndPaging(t *testing.T) {
	f := newFixture(t,
		directory.Group{ID: "T1", Name: "Platform", Kind: model.KindTeam, Members: []string{"A", "B", "C"}},
		directory.Group{ID: "T2", Name: "Quiet", Kind: model.KindTeam, Members: []string{"A"}},
	)
	f.send(t, private("B", "A", "old"), base)
	f.send(t, team("C", "T1", "newest"), base.Add(2*time.Minute))
	f.send(t, private("A", "D", "middle"), base.Add(time.Minute))

	ov, err := f.builder.Build(context.Background(), "A", 0, 10)
	require.NoError(t, err)
	require.Equal(t, 4, ov.Total)

	ids := make([]string, len(ov.Items))
	for i, it := range ov.Items {
		ids[i] = it.ChatID
	}
	require.Equal(t, []string{"T1", "D", "B", "T2"}, ids)
	require.Nil(t, ov.Items[3].LastMessageAt)
	require.Equal(t, 3, ov.Items[0].MemberCount)
	require.EqualValues(t, 1, ov.Items[0].UnreadCount)
	require.Equal(t, "Employee D", ov.Items[1].Name)
	require.NotNil(t, ov.Items[1].Online)
	require.EqualValues(t, 1, ov.Items[2].UnreadCount)

	page, err := f.builder.Build(context.Background(), "A", 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "B", page.Items[0].ChatID)

	empty, err := f.builder.Build(context.Background(), "A", 5, 2)
	require.NoError(t, err)
	require.Empty(t, empty.Items)
}

func TestOverviewRespectsClearBoundary(t *testing.T) {
	f := newFixture(t)
	conv := model.Conversation{Kind: model.KindPrivate, ID: "B"}
	f.send(t, private("B", "A", "before"), base.Add(-time.Minute))
	require.NoError(t, f.repos.ClearedChat.Upsert("A", conv.Key(), base))

	ov, err := f.builder.Build(context.Background(), "A", 0, 10)
	require.NoError(t, err)
	require.Len(t, ov.Items, 1)
	require.Equal(t, constants.CLEARED_CONTENT, ov.Items[0].LastMessage)
	require.Nil(t, ov.Items[0].LastMessageAt)
	require.Zero(t, ov.Items[0].UnreadCount)

	f.send(t, private("B", "A", "after"), base.Add(time.Minute))
	ov, err = f.builder.Build(context.Background(), "A", 0, 10)
	require.NoError(t, err)
	require.Equal(t, "after", ov.Items[0].LastMessage)
	require.EqualValues(t, 1, ov.Items[0].UnreadCount)
}

func TestOpenWindowSelfHealsUnread(t *testing.T) {
	f := newFixture(t)
	m := f.send(t, private("B", "A", "ping"), base)
	f.tracker.OpenChat("A", model.Conversation{Kind: model.KindPrivate, ID: "B"})

	ov, err := f.builder.Build(context.Background(), "A", 0, 10)
	require.NoError(t, err)
	require.Zero(t, ov.Items[0].UnreadCount)

	stored, err := f.repos.Message.FindByID(m.ID)
	require.NoError(t, err)
	require.True(t, stored.Read)

	seen := f.bus.byType(event.TypeStatusUpdate)
	require.Len(t, seen, 1)
	require.Equal(t, "B", seen[0].TargetUser)
	var st respond.StatusUpdate
	require.NoError(t, json.Unmarshal(seen[0].Payload, &st))
	require.Equal(t, respond.StatusSeen, st.Status)
	require.Equal(t, "A", st.ChatID)
}

func TestGroupUnreadPerMember(t *testing.T) {
	grp := directory.Group{ID: "T", Name: "T", Kind: model.KindTeam, Members: []string{"A", "B", "C"}}
	f := newFixture(t, grp)
	m := f.send(t, team("A", "T", "hello"), base)
	require.NoError(t, f.repos.ReadStatus.CreateBatch([]model.ReadStatus{{MessageID: m.ID, UserID: "B", ReadAt: base}}))

	forB, err := f.builder.Build(context.Background(), "B", 0, 10)
	require.NoError(t, err)
	require.Zero(t, forB.Items[0].UnreadCount)

	forC, err := f.builder.Build(context.Background(), "C", 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, forC.Items[0].UnreadCount)

	forA, err := f.builder.Build(context.Background(), "A", 0, 10)
	require.NoError(t, err)
	require.Zero(t, forA.Items[0].UnreadCount)
}

func TestBroadcasterPushesSidebar(t *testing.T) {
	grp := directory.Group{ID: "T", Name: "T", Kind: model.KindTeam, Members: []string{"A", "B"}}
	f := newFixture(t, grp)
	f.send(t, team("A", "T", "hello"), base)

	b, err := NewBroadcaster(f.builder, staticDirectory{groups: []directory.Group{grp}}, f.bus,
		config.OverviewConfig{DefaultPageSize: 5, BroadcastWorkers: 2, BroadcastQueue: 10})
	require.NoError(t, err)

	b.Schedule("A", "A", "")
	b.ScheduleGroup(model.KindTeam, "T")
	b.Close(5 * time.Second)

	sidebars := f.bus.byType(event.TypeSidebar)
	targets := map[string]int{}
	for _, e := range sidebars {
		require.Equal(t, constants.DestSidebar, e.Destination)
		targets[e.TargetUser]++
	}
	require.Equal(t, map[string]int{"A": 2, "B": 1}, targets)

	var ov respond.Overview
	require.NoError(t, json.Unmarshal(sidebars[0].Payload, &ov))
	require.Equal(t, 5, ov.Size)
	require.Len(t, ov.Items, 1)
}

func TestScheduleRefreshesEachUserOnce(t *testing.T) {
	f := newFixture(t)
	users := []string{"A", "B", "C", "D", "E", "F"}
	for i, u := range users[1:] {
		f.send(t, private("A", u, "hi"), base.Add(time.Duration(i)*time.Minute))
	}

	b, err := NewBroadcaster(f.builder, staticDirectory{}, f.bus,
		config.OverviewConfig{DefaultPageSize: 10, BroadcastWorkers: 4, BroadcastQueue: 10})
	require.NoError(t, err)

	b.Schedule(users...)
	b.Close(5 * time.Second)

	targets := map[string]int{}
	for _, e := range f.bus.byType(event.TypeSidebar) {
		targets[e.TargetUser]++
	}
	require.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1, "D": 1, "E": 1, "F": 1}, targets)

	for _, e := range f.bus.byType(event.TypeSidebar) {
		if e.TargetUser != "A" {
			continue
		}
		var ov respond.Overview
		require.NoError(t, json.Unmarshal(e.Payload, &ov))
		require.Len(t, ov.Items, 5)
		ids := map[string]bool{}
		for _, it := range ov.Items {
			require.NotEmpty(t, it.ChatID)
			ids[it.ChatID] = true
		}
		require.Len(t, ids, 5)
	}
}

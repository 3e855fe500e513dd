package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/events"
	"github.com/phrazzld/taskmanager/internal/ui"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTasks is a TaskSource backed by a mutable slice.
type fakeTasks struct {
	mu      sync.Mutex
	tasks   []domain.Task
	err     error
	calls   int
	session domain.Session
}

func (f *fakeTasks) List(_ context.Context, s domain.Session) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.session = s
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeTasks) set(tasks []domain.Task, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks, f.err = tasks, err
}

func tasks(codes ...string) []domain.Task {
	out := make([]domain.Task, len(codes))
	for i, c := range codes {
		out[i] = domain.Task{ID: int64(i + 1), Code: c}
	}
	return out
}

func codes(ts []domain.Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Code
	}
	return out
}

var session = domain.Session{UserID: 7, Username: "bob", EmployeeCode: "E002"}

func TestTaskList_ReloadReplacesWholesale(t *testing.T) {
	bus := events.NewBus(discardLogger())
	src := &fakeTasks{tasks: tasks("T1", "T2", "T3")}

	list, err := NewTaskList(context.Background(), bus, src, session, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2", "T3"}, codes(list.Items()))
	assert.Equal(t, session, src.session)

	src.set(tasks("T2", "T4"), nil)
	require.NoError(t, bus.Publish(context.Background(), domain.TaskChanged))

	assert.Equal(t, []string{"T2", "T4"}, codes(list.Items()), "exactly the current items, nothing stale")
	assert.Equal(t, 2, list.Len())
}

func TestTaskList_IgnoresOtherKinds(t *testing.T) {
	bus := events.NewBus(discardLogger())
	src := &fakeTasks{tasks: tasks("T1")}

	_, err := NewTaskList(context.Background(), bus, src, session, discardLogger())
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), domain.UserChanged))
	assert.Equal(t, 1, src.calls)
}

func TestTaskList_ReloadErrorKeepsItems(t *testing.T) {
	bus := events.NewBus(discardLogger())
	src := &fakeTasks{tasks: tasks("T1", "T2")}

	list, err := NewTaskList(context.Background(), bus, src, session, discardLogger())
	require.NoError(t, err)

	var later int
	_, err = bus.Subscribe(domain.TaskChanged, func(context.Context, domain.ChangeKind) error {
		later++
		return nil
	})
	require.NoError(t, err)

	dbDown := errors.New("database is locked")
	src.set(nil, dbDown)
	err = bus.Publish(context.Background(), domain.TaskChanged)

	var dispatchErr *events.HandlerDispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, err, dbDown)
	assert.Equal(t, []string{"T1", "T2"}, codes(list.Items()), "previous items are kept")
	assert.Equal(t, 1, later, "the next handler still runs")

	src.set(tasks("T3"), nil)
	require.NoError(t, bus.Publish(context.Background(), domain.TaskChanged))
	assert.Equal(t, []string{"T3"}, codes(list.Items()))
}

func TestTaskList_InitialLoadError(t *testing.T) {
	bus := events.NewBus(discardLogger())
	src := &fakeTasks{err: errors.New("no table")}

	list, err := NewTaskList(context.Background(), bus, src, session, discardLogger())
	require.Error(t, err)
	assert.Nil(t, list)
	assert.Equal(t, 0, bus.Count(domain.TaskChanged), "no subscription leaks on failure")
}

func TestCollection_Close(t *testing.T) {
	bus := events.NewBus(discardLogger())
	src := &fakeTasks{tasks: tasks("T1")}

	list, err := NewTaskList(context.Background(), bus, src, session, discardLogger())
	require.NoError(t, err)
	require.Equal(t, 1, bus.Count(domain.TaskChanged))

	list.Close()
	list.Close()
	assert.Equal(t, 0, bus.Count(domain.TaskChanged))

	src.set(tasks("T9"), nil)
	require.NoError(t, bus.Publish(context.Background(), domain.TaskChanged))
	assert.Equal(t, []string{"T1"}, codes(list.Items()))
}

func TestCollection_OnReplaced(t *testing.T) {
	bus := events.NewBus(discardLogger())
	src := &fakeTasks{tasks: tasks("T1")}

	list, err := NewTaskList(context.Background(), bus, src, session, discardLogger())
	require.NoError(t, err)

	var got [][]string
	list.OnReplaced(func(items []domain.Task) { got = append(got, codes(items)) })

	src.set(tasks("T1", "T2"), nil)
	require.NoError(t, list.Reload(context.Background()))
	assert.Equal(t, [][]string{{"T1", "T2"}}, got)
}

func TestCollection_ItemsIsACopy(t *testing.T) {
	bus := events.NewBus(discardLogger())
	list, err := NewTaskList(context.Background(), bus, &fakeTasks{tasks: tasks("T1")}, session, discardLogger())
	require.NoError(t, err)

	items := list.Items()
	items[0].Code = "mutated"
	assert.Equal(t, "T1", list.Items()[0].Code)
}

func TestTaskList_UpdatesOnlyOnDispatcher(t *testing.T) {
	bus := events.NewBus(discardLogger())
	q := ui.NewQueue()
	src := &fakeTasks{tasks: tasks("T1", "T2")}

	list, err := NewTaskList(context.Background(), bus, src, session, discardLogger())
	require.NoError(t, err)
	src.set(tasks("T2"), nil)

	// A transport goroutine hands the signal to the dispatcher.
	posted := make(chan struct{})
	go func() {
		q.Post(func() { _ = bus.Publish(context.Background(), domain.TaskChanged) })
		close(posted)
	}()
	<-posted

	assert.Equal(t, []string{"T1", "T2"}, codes(list.Items()), "unchanged until the dispatcher runs")
	q.Drain()
	assert.Equal(t, []string{"T2"}, codes(list.Items()))
}

type fakeUsers struct{ users []domain.User }

func (f *fakeUsers) List(context.Context) ([]domain.User, error) { return f.users, nil }

func TestUserList(t *testing.T) {
	bus := events.NewBus(discardLogger())
	src := &fakeUsers{users: []domain.User{{ID: 1, Username: "admin"}}}

	list, err := NewUserList(context.Background(), bus, src, discardLogger())
	require.NoError(t, err)
	require.Len(t, list.Items(), 1)

	src.users = append(src.users, domain.User{ID: 2, Username: "bob"})
	require.NoError(t, bus.Publish(context.Background(), domain.UserChanged))
	assert.Len(t, list.Items(), 2)
}

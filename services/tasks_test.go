package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow-app/taskflow/database"
)

type taskEnv struct {
	svc           *TaskService
	users         *database.UserStore
	notifications *NotificationService
	hub           *Hub
	watcher       *Client

	alice *database.User
	bob   *database.User
}

func newTaskEnv(t *testing.T) *taskEnv {
	t.Helper()
	db := newServiceDB(t)

	users := database.NewUserStore(db)
	tasks := database.NewTaskStore(db)
	recorder := NewNotificationService(database.NewNotificationStore(db), 100)

	hub := NewHub()
	go hub.Run()
	watcher := testClient(hub, "watcher")

	env := &taskEnv{
		svc:           NewTaskService(db, tasks, users, recorder, hub),
		users:         users,
		notifications: recorder,
		hub:           hub,
		watcher:       watcher,
	}

	env.alice = seedUser(t, users, "Alice", "alice@example.com")
	env.bob = seedUser(t, users, "Bob", "bob@example.com")
	return env
}

func seedUser(t *testing.T, users *database.UserStore, name, email string) *database.User {
	t.Helper()
	u := &database.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: "hash",
		Role:         database.RoleMember,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func (e *taskEnv) feed(t *testing.T) []database.Notification {
	t.Helper()
	got, err := e.notifications.List(context.Background(), 0)
	require.NoError(t, err)
	return got
}

func validInput() TaskInput {
	return TaskInput{
		Title:       "Ship release notes",
		Description: "...",
		DueDate:     "2025-01-01",
	}
}

func TestCreateTaskRecordsAndBroadcasts(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, validInput())
	require.NoError(t, err)
	assert.Equal(t, database.StatusToDo, task.Status)
	assert.Equal(t, database.PriorityMedium, task.Priority)
	assert.EqualValues(t, 1, task.Version)

	feed := env.feed(t)
	require.Len(t, feed, 1)
	assert.Equal(t, database.ActionCreated, feed[0].Action)
	assert.Equal(t, `Alice created new task "Ship release notes"`, feed[0].Message)
	assert.Equal(t, env.alice.ID, feed[0].UserID)
	assert.Equal(t, task.ID, feed[0].TaskID)

	ev := awaitEvent(t, env.watcher)
	assert.Equal(t, "notification", ev.Type)
}

func TestCreateTaskValidation(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)

	input := validInput()
	input.Title = ""
	_, err := env.svc.Create(context.Background(), Actor{ID: env.alice.ID}, input)
	assert.ErrorIs(t, err, ErrValidation)

	input = validInput()
	input.Status = "Blocked"
	_, err = env.svc.Create(context.Background(), Actor{ID: env.alice.ID}, input)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, env.feed(t))
	assertNoEvent(t, env.watcher)
}

func TestUpdateStatusChangeRecordsMoved(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, validInput())
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	input := validInput()
	input.Status = database.StatusInProgress
	updated, err := env.svc.Update(ctx, Actor{ID: env.bob.ID}, task.ID, input, 0)
	require.NoError(t, err)
	assert.Equal(t, database.StatusInProgress, updated.Status)
	assert.EqualValues(t, 2, updated.Version)

	feed := env.feed(t)
	require.Len(t, feed, 2)
	assert.Equal(t, database.ActionMoved, feed[0].Action)
	assert.Equal(t, `Bob moved "Ship release notes" from "To Do" to "In Progress"`, feed[0].Message)
	assert.Equal(t, database.StatusToDo, feed[0].FromStatus)
	assert.Equal(t, database.StatusInProgress, feed[0].ToStatus)

	ev := awaitEvent(t, env.watcher)
	assert.Equal(t, "notification", ev.Type)
}

func TestUpdateStatusChangeSuppressesAssignment(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, validInput())
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	// Both the status and the assignee change; only the move is notified.
	input := validInput()
	input.Status = database.StatusDone
	input.AssignedTo = env.bob.ID
	_, err = env.svc.Update(ctx, Actor{ID: env.alice.ID}, task.ID, input, 0)
	require.NoError(t, err)

	feed := env.feed(t)
	require.Len(t, feed, 2)
	assert.Equal(t, database.ActionMoved, feed[0].Action)
	awaitEvent(t, env.watcher)
	assertNoEvent(t, env.watcher)
}

func TestUpdateAssigneeChangeRecordsAssigned(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, validInput())
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	input := validInput()
	input.AssignedTo = env.bob.ID
	updated, err := env.svc.Update(ctx, Actor{ID: env.alice.ID}, task.ID, input, 0)
	require.NoError(t, err)
	require.NotNil(t, updated.Assignee)
	assert.Equal(t, "Bob", updated.Assignee.Name)

	feed := env.feed(t)
	require.Len(t, feed, 2)
	assert.Equal(t, database.ActionAssigned, feed[0].Action)
	assert.Equal(t, `Alice assigned "Ship release notes" to Bob`, feed[0].Message)
	awaitEvent(t, env.watcher)
}

func TestUpdateUnassignRecordsUnassigned(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	input := validInput()
	input.AssignedTo = env.bob.ID
	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, input)
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	input.AssignedTo = ""
	_, err = env.svc.Update(ctx, Actor{ID: env.alice.ID}, task.ID, input, 0)
	require.NoError(t, err)

	feed := env.feed(t)
	require.Len(t, feed, 2)
	assert.Equal(t, `Alice assigned "Ship release notes" to Unassigned`, feed[0].Message)
}

func TestUpdateNoMeaningfulChangeIsSilent(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, validInput())
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	// Title and description change, status and assignee do not.
	input := validInput()
	input.Title = "Draft the release notes"
	input.Description = "more detail"
	updated, err := env.svc.Update(ctx, Actor{ID: env.alice.ID}, task.ID, input, 0)
	require.NoError(t, err)
	assert.Equal(t, "Draft the release notes", updated.Title)

	require.Len(t, env.feed(t), 1)
	assertNoEvent(t, env.watcher)
}

func TestUpdateMissingTask(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)

	_, err := env.svc.Update(context.Background(), Actor{ID: env.alice.ID}, "no-such-id", validInput(), 0)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Empty(t, env.feed(t))
}

func TestUpdateVersionConflict(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, validInput())
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	input := validInput()
	input.Status = database.StatusInProgress
	_, err = env.svc.Update(ctx, Actor{ID: env.alice.ID}, task.ID, input, 0)
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	// A writer still pinned to version 1 must get a conflict, and no
	// notification may be recorded for the rejected write.
	input.Status = database.StatusDone
	_, err = env.svc.Update(ctx, Actor{ID: env.bob.ID}, task.ID, input, 1)
	assert.ErrorIs(t, err, database.ErrVersionConflict)

	require.Len(t, env.feed(t), 2)
	assertNoEvent(t, env.watcher)
}

func TestDeleteTaskRecordsDeleted(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, validInput())
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	require.NoError(t, env.svc.Delete(ctx, Actor{ID: env.alice.ID}, task.ID))

	feed := env.feed(t)
	require.Len(t, feed, 2)
	assert.Equal(t, database.ActionDeleted, feed[0].Action)
	assert.Equal(t, `Alice deleted task "Ship release notes"`, feed[0].Message)

	_, err = env.svc.Get(ctx, task.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	awaitEvent(t, env.watcher)
}

func TestDeleteMissingTask(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)

	err := env.svc.Delete(context.Background(), Actor{ID: env.alice.ID}, "no-such-id")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Empty(t, env.feed(t))
}

func TestActorFallsBackToSystem(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, validInput())
	require.NoError(t, err)
	awaitEvent(t, env.watcher)

	// The actor's account disappears between authentication and delete.
	require.NoError(t, env.users.Delete(ctx, env.alice.ID))
	require.NoError(t, env.svc.Delete(ctx, Actor{ID: env.alice.ID}, task.ID))

	feed := env.feed(t)
	assert.Equal(t, `System deleted task "Ship release notes"`, feed[0].Message)
}

func TestActorNameHintUsedOnlyWhenRecordGone(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	// The hint never overrides a live account.
	task, err := env.svc.Create(ctx, Actor{ID: env.alice.ID, NameHint: "Mallory"}, validInput())
	require.NoError(t, err)
	assert.Equal(t, `Alice created new task "Ship release notes"`, env.feed(t)[0].Message)
	awaitEvent(t, env.watcher)

	require.NoError(t, env.users.Delete(ctx, env.alice.ID))
	require.NoError(t, env.svc.Delete(ctx, Actor{ID: env.alice.ID, NameHint: "Mallory"}, task.ID))
	assert.Equal(t, `Mallory deleted task "Ship release notes"`, env.feed(t)[0].Message)
}

func TestListResolvesAssignees(t *testing.T) {
	t.Parallel()
	env := newTaskEnv(t)
	ctx := context.Background()

	assigned := validInput()
	assigned.Title = "assigned task"
	assigned.DueDate = "2025-01-02"
	assigned.AssignedTo = env.bob.ID
	_, err := env.svc.Create(ctx, Actor{ID: env.alice.ID}, assigned)
	require.NoError(t, err)

	unassigned := validInput()
	unassigned.Title = "unassigned task"
	unassigned.DueDate = "2025-01-01"
	_, err = env.svc.Create(ctx, Actor{ID: env.alice.ID}, unassigned)
	require.NoError(t, err)

	views, err := env.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "unassigned task", views[0].Title)
	assert.Nil(t, views[0].Assignee)

	assert.Equal(t, "assigned task", views[1].Title)
	require.NotNil(t, views[1].Assignee)
	assert.Equal(t, "Bob", views[1].Assignee.Name)
	assert.Equal(t, "bob@example.com", views[1].Assignee.Email)
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/taskflow-app/taskflow/database"
)

// ErrValidation marks business-rule failures the caller should report as a
// client error.
var ErrValidation = errors.New("validation failed")

// Actor is the user credited with a mutation. ID comes from the verified
// session; NameHint is an untrusted display fallback from the request body,
// used only when the actor's user record no longer exists.
type Actor struct {
	ID       string
	NameHint string
}

// TaskInput is the full replacement field set for a task.
type TaskInput struct {
	Title       string
	Description string
	DueDate     string
	Status      string
	AssignedTo  string
	Priority    string
}

// AssigneeRef is the display form of a task's assignee.
type AssigneeRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TaskView is a task with its assignee resolved for display.
type TaskView struct {
	database.Task
	Assignee *AssigneeRef `json:"assignee,omitempty"`
}

// TaskService orchestrates task mutations: it applies the change to the
// store, records the matching activity in the same transaction, and
// broadcasts it after commit. The order is fixed: persistence, then
// activity, then broadcast. Clients rely on a task existing by the time
// its notification arrives.
type TaskService struct {
	db       *sql.DB
	tasks    *database.TaskStore
	users    *database.UserStore
	recorder *NotificationService
	hub      *Hub
}

func NewTaskService(
	db *sql.DB,
	tasks *database.TaskStore,
	users *database.UserStore,
	recorder *NotificationService,
	hub *Hub,
) *TaskService {
	return &TaskService{db: db, tasks: tasks, users: users, recorder: recorder, hub: hub}
}

// Create persists a new task and unconditionally records and broadcasts a
// "created" activity.
func (s *TaskService) Create(ctx context.Context, actor Actor, input TaskInput) (*TaskView, error) {
	if err := normalizeInput(&input); err != nil {
		return nil, err
	}

	task := &database.Task{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Status:      input.Status,
		AssignedTo:  input.AssignedTo,
		Priority:    input.Priority,
		Version:     1,
	}

	actorName := s.actorName(ctx, actor, "System")
	notification := &database.Notification{
		UserID:    actor.ID,
		UserName:  actorName,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Action:    database.ActionCreated,
		Message:   fmt.Sprintf("%s created new task %q", actorName, task.Title),
	}

	err := database.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.tasks.WithTx(tx).Create(ctx, task); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, notification)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(notification)
	return s.view(ctx, task), nil
}

// Update replaces a task's fields. A status change records a "moved"
// activity; otherwise an assignee change records an "assigned" one; a
// mutation that changes neither records nothing. A status change
// deliberately suppresses the assignment notification for that round.
//
// expectedVersion pins the update to a version the caller has seen; 0 means
// "whatever is current", in which case the version read here still guards
// the write, so a concurrent update surfaces as a conflict instead of being
// silently lost.
func (s *TaskService) Update(ctx context.Context, actor Actor, id string, input TaskInput, expectedVersion int64) (*TaskView, error) {
	if err := normalizeInput(&input); err != nil {
		return nil, err
	}

	old, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion == 0 {
		expectedVersion = old.Version
	} else if expectedVersion != old.Version {
		return nil, database.ErrVersionConflict
	}

	task := &database.Task{
		ID:          id,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Status:      input.Status,
		AssignedTo:  input.AssignedTo,
		Priority:    input.Priority,
	}

	var notification *database.Notification
	if old.Status != task.Status {
		actorName := s.actorName(ctx, actor, "Unknown User")
		notification = &database.Notification{
			UserID:     actor.ID,
			UserName:   actorName,
			TaskID:     id,
			TaskTitle:  old.Title,
			Action:     database.ActionMoved,
			FromStatus: old.Status,
			ToStatus:   task.Status,
			Message: fmt.Sprintf("%s moved %q from %q to %q",
				actorName, old.Title, old.Status, task.Status),
		}
	} else if old.AssignedTo != task.AssignedTo {
		actorName := s.actorName(ctx, actor, "Unknown User")
		assigneeName := s.userName(ctx, task.AssignedTo, "Unassigned")
		notification = &database.Notification{
			UserID:    actor.ID,
			UserName:  actorName,
			TaskID:    id,
			TaskTitle: old.Title,
			Action:    database.ActionAssigned,
			Message:   fmt.Sprintf("%s assigned %q to %s", actorName, old.Title, assigneeName),
		}
	}

	err = database.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.tasks.WithTx(tx).Update(ctx, task, expectedVersion); err != nil {
			return err
		}
		if notification != nil {
			return s.recorder.Record(ctx, tx, notification)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notification != nil {
		s.broadcast(notification)
	}
	return s.view(ctx, task), nil
}

// Delete removes a task and unconditionally records and broadcasts a
// "deleted" activity.
func (s *TaskService) Delete(ctx context.Context, actor Actor, id string) error {
	old, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	actorName := s.actorName(ctx, actor, "System")
	notification := &database.Notification{
		UserID:    actor.ID,
		UserName:  actorName,
		TaskID:    id,
		TaskTitle: old.Title,
		Action:    database.ActionDeleted,
		Message:   fmt.Sprintf("%s deleted task %q", actorName, old.Title),
	}

	err = database.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.tasks.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, notification)
	})
	if err != nil {
		return err
	}

	s.broadcast(notification)
	return nil
}

// Get returns a single task with its assignee resolved.
func (s *TaskService) Get(ctx context.Context, id string) (*TaskView, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, task), nil
}

// List returns all tasks sorted by due date ascending, assignees resolved.
func (s *TaskService) List(ctx context.Context) ([]TaskView, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]database.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		view := TaskView{Task: task}
		if u, ok := byID[task.AssignedTo]; task.AssignedTo != "" && ok {
			view.Assignee = &AssigneeRef{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		views = append(views, view)
	}
	return views, nil
}

// broadcast pushes the recorded notification to the board topic. It runs
// after the transaction committed and never fails the originating request.
func (s *TaskService) broadcast(n *database.Notification) {
	s.hub.Publish(TopicBoard, Event{Type: "notification", Data: n})
}

func (s *TaskService) view(ctx context.Context, task *database.Task) *TaskView {
	view := &TaskView{Task: *task}
	if task.AssignedTo != "" {
		if u, err := s.users.GetByID(ctx, task.AssignedTo); err == nil {
			view.Assignee = &AssigneeRef{ID: u.ID, Name: u.Name, Email: u.Email}
		}
	}
	return view
}

// actorName resolves the acting user's display name from the identity
// store. The request's name hint, then the fallback, cover the case where
// the account was deleted between authentication and the mutation.
func (s *TaskService) actorName(ctx context.Context, actor Actor, fallback string) string {
	if actor.ID != "" {
		if u, err := s.users.GetByID(ctx, actor.ID); err == nil {
			return u.Name
		} else if !errors.Is(err, database.ErrNotFound) {
			logrus.WithError(err).Warn("failed to resolve actor name")
		}
	}
	if actor.NameHint != "" {
		return actor.NameHint
	}
	return fallback
}

func (s *TaskService) userName(ctx context.Context, id, fallback string) string {
	if id == "" {
		return fallback
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return fallback
	}
	return u.Name
}

func normalizeInput(input *TaskInput) error {
	if input.Title == "" || input.Description == "" || input.DueDate == "" {
		return fmt.Errorf("%w: title, description, and dueDate are required", ErrValidation)
	}
	if input.Status == "" {
		input.Status = database.StatusToDo
	}
	if input.Priority == "" {
		input.Priority = database.PriorityMedium
	}
	if !database.ValidStatus(input.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, input.Status)
	}
	if !database.ValidPriority(input.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, input.Priority)
	}
	return nil
}

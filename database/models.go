package database

import "time"

// Task status values. Transitions are unrestricted: any status may be set
// from any other.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

// Task priority values.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Notification actions.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionMoved    = "moved"
	ActionDeleted  = "deleted"
	ActionAssigned = "assigned"
)

// User roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Task is a single board item. Version increments on every successful
// update and backs the conditional write in TaskStore.Update.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"` // ISO date, sorts lexically
	Status      string `json:"status"`
	AssignedTo  string `json:"assignedTo,omitempty"` // user ID, empty = unassigned
	Priority    string `json:"priority"`
	Version     int64  `json:"version"`
}

// Notification is an activity record; only Read ever changes after
// creation, and only from false to true.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	TaskID     string    `json:"taskId"`
	TaskTitle  string    `json:"taskTitle"`
	Action     string    `json:"action"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// ValidStatus reports whether s is one of the known task statuses.
func ValidStatus(s string) bool {
	return s == StatusToDo || s == StatusInProgress || s == StatusDone
}

// ValidPriority reports whether p is one of the known task priorities.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the progress state of a task. Values are persisted as
// integers, so the order must not change.
type TaskStatus int

const (
	StatusNotStarted TaskStatus = iota
	StatusInProgress
	StatusCompleted
)

var statusNames = []string{"Not Started", "In Progress", "Completed"}

// String returns the display name of the status.
func (s TaskStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
	return statusNames[s]
}

// Valid reports whether s is one of the defined statuses.
func (s TaskStatus) Valid() bool {
	return s >= StatusNotStarted && s <= StatusCompleted
}

// ParseTaskStatus accepts either the numeric value ("0".."2") or the display
// name, case-insensitively ("in progress", "in-progress" and "inprogress" all work).
func ParseTaskStatus(s string) (TaskStatus, error) {
	idx, err := parseEnum(s, statusNames)
	if err != nil {
		return 0, ErrInvalidStatus
	}
	return TaskStatus(idx), nil
}

// TaskPriority ranks urgency; lower values are more urgent.
type TaskPriority int

const (
	PriorityHigh TaskPriority = iota
	PriorityMedium
	PriorityLow
)

var priorityNames = []string{"High", "Medium", "Low"}

// String returns the display name of the priority.
func (p TaskPriority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("TaskPriority(%d)", int(p))
	}
	return priorityNames[p]
}

// Valid reports whether p is one of the defined priorities.
func (p TaskPriority) Valid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

// ParseTaskPriority accepts the numeric value or the display name.
func ParseTaskPriority(s string) (TaskPriority, error) {
	idx, err := parseEnum(s, priorityNames)
	if err != nil {
		return 0, ErrInvalidPriority
	}
	return TaskPriority(idx), nil
}

func parseEnum(s string, names []string) (int, error) {
	norm := normalizeEnum(s)
	for i, name := range names {
		if norm == fmt.Sprint(i) || norm == normalizeEnum(name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown value %q", s)
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

const (
	maxTaskCodeLength  = 50
	maxTaskTitleLength = 200
)

// Task is a unit of work tracked by the application. Code is the business
// key used by every mutation; ID is the storage key.
type Task struct {
	ID          int64
	Code        string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority

	// ReporterCode and AssigneeCode hold employee codes.
	ReporterCode string
	AssigneeCode string

	// ReporterName and AssigneeName are resolved from the users table on read
	// and ignored on write.
	ReporterName string
	AssigneeName string

	DueDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask creates a task with creation timestamps set and validates it.
func NewTask(code, title, reporterCode, assigneeCode string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		Code:         strings.TrimSpace(code),
		Title:        strings.TrimSpace(title),
		Status:       StatusNotStarted,
		Priority:     PriorityMedium,
		ReporterCode: reporterCode,
		AssigneeCode: assigneeCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks the task fields and returns the first failure found.
func (t *Task) Validate() error {
	code := strings.TrimSpace(t.Code)
	if code == "" {
		return ErrTaskCodeEmpty
	}
	if len(code) > maxTaskCodeLength {
		return ErrTaskCodeTooLong
	}

	title := strings.TrimSpace(t.Title)
	if title == "" {
		return ErrTaskTitleEmpty
	}
	if len(title) > maxTaskTitleLength {
		return ErrTaskTitleTooLong
	}

	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if !t.Priority.Valid() {
		return ErrInvalidPriority
	}

	if strings.TrimSpace(t.ReporterCode) == "" {
		return ErrReporterRequired
	}
	if strings.TrimSpace(t.AssigneeCode) == "" {
		return ErrAssigneeRequired
	}

	if t.DueDate != nil && !t.CreatedAt.IsZero() && t.DueDate.Before(t.CreatedAt.Truncate(24*time.Hour)) {
		return ErrDueBeforeCreation
	}

	return nil
}

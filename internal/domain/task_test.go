package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	task, err := NewTask(" T1 ", "Write report", "E001", "E002")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.Code != "T1" {
		t.Errorf("Expected trimmed code T1, got %q", task.Code)
	}
	if task.Status != StatusNotStarted {
		t.Errorf("Expected status %v, got %v", StatusNotStarted, task.Status)
	}
	if task.Priority != PriorityMedium {
		t.Errorf("Expected priority %v, got %v", PriorityMedium, task.Priority)
	}
	if task.CreatedAt.IsZero() || !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Error("Expected CreatedAt and UpdatedAt to be set to the same instant")
	}
}

func TestTaskValidate(t *testing.T) {
	created := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	base := Task{
		Code:         "T1",
		Title:        "Title",
		Status:       StatusInProgress,
		Priority:     PriorityHigh,
		ReporterCode: "E001",
		AssigneeCode: "E002",
		CreatedAt:    created,
	}

	sameDay := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	dayBefore := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(t *Task)
		wantErr error
	}{
		{"valid", func(t *Task) {}, nil},
		{"empty code", func(t *Task) { t.Code = " " }, ErrTaskCodeEmpty},
		{"long code", func(t *Task) { t.Code = strings.Repeat("C", 51) }, ErrTaskCodeTooLong},
		{"empty title", func(t *Task) { t.Title = "" }, ErrTaskTitleEmpty},
		{"long title", func(t *Task) { t.Title = strings.Repeat("t", 201) }, ErrTaskTitleTooLong},
		{"status out of range", func(t *Task) { t.Status = 3 }, ErrInvalidStatus},
		{"negative priority", func(t *Task) { t.Priority = -1 }, ErrInvalidPriority},
		{"no reporter", func(t *Task) { t.ReporterCode = "" }, ErrReporterRequired},
		{"no assignee", func(t *Task) { t.AssigneeCode = "" }, ErrAssigneeRequired},
		{"due same day", func(t *Task) { t.DueDate = &sameDay }, nil},
		{"due before creation", func(t *Task) { t.DueDate = &dayBefore }, ErrDueBeforeCreation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base
			tt.mutate(&task)
			if err := task.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		in   string
		want TaskStatus
		ok   bool
	}{
		{"0", StatusNotStarted, true},
		{"in progress", StatusInProgress, true},
		{"In-Progress", StatusInProgress, true},
		{"COMPLETED", StatusCompleted, true},
		{"3", 0, false},
		{"done", 0, false},
	}

	for _, tt := range tests {
		got, err := ParseTaskStatus(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseTaskStatus(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if !tt.ok && err != ErrInvalidStatus {
			t.Errorf("ParseTaskStatus(%q) error = %v, want %v", tt.in, err, ErrInvalidStatus)
		}
	}
}

func TestParseTaskPriority(t *testing.T) {
	if p, err := ParseTaskPriority("low"); err != nil || p != PriorityLow {
		t.Errorf("ParseTaskPriority(low) = %v, %v", p, err)
	}
	if p, err := ParseTaskPriority("0"); err != nil || p != PriorityHigh {
		t.Errorf("ParseTaskPriority(0) = %v, %v", p, err)
	}
	if _, err := ParseTaskPriority("urgent"); err != ErrInvalidPriority {
		t.Errorf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	if StatusCompleted.String() != "Completed" {
		t.Errorf("unexpected %q", StatusCompleted.String())
	}
	if TaskStatus(9).String() != "TaskStatus(9)" {
		t.Errorf("unexpected %q", TaskStatus(9).String())
	}
}

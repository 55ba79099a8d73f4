package store

import (
	"errors"
	"testing"
)

func TestDefaultSeed(t *testing.T) {
	seed, err := ParseSeed(DefaultSeed())
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	cats, tasks := seed.Build(testNow)
	if len(cats) != 4 {
		t.Errorf("categories: got %d, want 4", len(cats))
	}
	if len(tasks) != 9 {
		t.Errorf("tasks: got %d, want 9", len(tasks))
	}

	for _, task := range tasks {
		if task.Completed != (task.CompletedAt != nil) {
			t.Errorf("%q: completed=%v completed_at=%v", task.Title, task.Completed, task.CompletedAt)
		}
		if !task.Priority.Valid() {
			t.Errorf("%q: invalid priority %q", task.Title, task.Priority)
		}
		if task.Recurrence != nil && !task.Recurrence.Pattern.Valid() {
			t.Errorf("%q: invalid pattern %q", task.Title, task.Recurrence.Pattern)
		}
	}
}

func TestSeedBuild(t *testing.T) {
	data := []byte(`{
		"categories": [{"id": 7, "name": "Chores"}],
		"tasks": [
			{"title": "Laundry", "category_id": 7, "due_in_days": 1, "created_days_ago": 2,
			 "subtasks": [{"title": "wash", "completed": true}, {"title": "fold", "completed": true}]},
			{"title": "Done already", "completed_days_ago": 1, "subtasks": [{"title": "step"}]}
		]
	}`)
	seed, err := ParseSeed(data)
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	cats, tasks := seed.Build(testNow)

	if cats[0].Color == "" || cats[0].Icon == "" {
		t.Errorf("category defaults not applied: %+v", cats[0])
	}

	laundry := tasks[0]
	if laundry.Priority != "medium" {
		t.Errorf("default priority: got %q, want medium", laundry.Priority)
	}
	if laundry.DueDate == nil || laundry.DueDate.Day() != 3 || laundry.DueDate.Hour() != 17 {
		t.Errorf("due date: got %v, want Apr 3 17:00", laundry.DueDate)
	}
	if !laundry.Completed {
		t.Error("task with all subtasks done should be completed")
	}

	done := tasks[1]
	if !done.Completed || !done.Subtasks[0].Completed {
		t.Error("completed task should complete its subtasks")
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(testNow.AddDate(0, 0, -1)) {
		t.Errorf("CompletedAt: got %v", done.CompletedAt)
	}
}

func TestParseSeedRejects(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		schemaOK bool
	}{
		{"malformed json", `{"tasks": [`, true},
		{"unknown field", `{"tasks": [{"title": "x", "owner": "me"}]}`, false},
		{"bad priority", `{"tasks": [{"title": "x", "priority": "urgent"}]}`, false},
		{"missing title", `{"tasks": [{"priority": "low"}]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			var seedErr *SeedError
			if got := errors.As(err, &seedErr); got == tt.schemaOK {
				t.Errorf("SeedError: got %v, want %v (%v)", got, !tt.schemaOK, err)
			}
		})
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, TaskInput{Title: "Plain"})

	if task.ID != 1 {
		t.Errorf("ID: got %d, want 1", task.ID)
	}
	if task.Priority != domain.PriorityMedium {
		t.Errorf("Priority: got %q, want medium", task.Priority)
	}
	if !task.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt: got %v, want %v", task.CreatedAt, fixedNow)
	}
	if task.Completed || task.CompletedAt != nil {
		t.Error("new task should be pending")
	}
	if task.Subtasks == nil {
		t.Error("Subtasks should be an empty list, not nil")
	}
}

func TestCreateWithSubtasks(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, TaskInput{
		Title:    "Trip",
		Subtasks: []SubtaskInput{{Title: "Book"}, {Title: "Pack", Completed: true}},
	})
	if len(task.Subtasks) != 2 || task.Subtasks[0].ID != 1 || task.Subtasks[1].ID != 2 {
		t.Errorf("Subtasks: got %+v", task.Subtasks)
	}
	if task.Completed {
		t.Error("task completed with a pending subtask")
	}
}

func TestCreateRecurringGeneratesInstances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := fixedNow.AddDate(0, 0, 1)
	end := due.AddDate(0, 0, 10)
	cat := 4
	if _, err := f.categories.Import(ctx, &domain.Category{ID: cat, Name: "Health"}); err != nil {
		t.Fatal(err)
	}
	parent := f.create(t, TaskInput{
		Title:      "Stretch",
		Priority:   domain.PriorityHigh,
		CategoryID: &cat,
		DueDate:    &due,
		Recurrence: &domain.Recurrence{Pattern: domain.RecurDaily, Frequency: 2, EndDate: &end},
	})

	all, err := f.tasks.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("tasks: got %d, want 5 (parent + 4 instances)", len(all))
	}
	for i, inst := range all[1:] {
		want := due.AddDate(0, 0, 2*(i+1))
		if !inst.DueDate.Equal(want) {
			t.Errorf("instance %d due: got %v, want %v", i, inst.DueDate, want)
		}
		if inst.ParentTaskID == nil || *inst.ParentTaskID != parent.ID {
			t.Errorf("instance %d parent: got %v, want %d", i, inst.ParentTaskID, parent.ID)
		}
		if inst.IsRecurring() || inst.Priority != domain.PriorityHigh || *inst.CategoryID != cat {
			t.Errorf("instance %d fields: %+v", i, inst)
		}
	}
}

func TestCreateRecurringWithoutDueDate(t *testing.T) {
	f := newFixture(t)
	f.create(t, TaskInput{
		Title:      "Someday",
		Recurrence: &domain.Recurrence{Pattern: domain.RecurWeekly, Frequency: 0},
	})
	all, _ := f.tasks.All(context.Background())
	if len(all) != 1 {
		t.Errorf("tasks: got %d, want 1", len(all))
	}
	if all[0].Recurrence.Frequency != 1 {
		t.Errorf("Frequency: got %d, want 1", all[0].Recurrence.Frequency)
	}
}

func TestGenerateRecurringExplicit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := fixedNow
	parent := f.create(t, TaskInput{Title: "Invoice", DueDate: &due})
	parent.Recurrence = &domain.Recurrence{Pattern: domain.RecurMonthly, Frequency: 1}

	got, err := f.tasks.GenerateRecurring(ctx, parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 11 {
		t.Errorf("generated: got %d, want 11", len(got))
	}

	plain := f.create(t, TaskInput{Title: "No recurrence", DueDate: &due})
	got, err = f.tasks.GenerateRecurring(ctx, plain)
	if err != nil || len(got) != 0 {
		t.Errorf("non-recurring: got %d, %v, want 0, nil", len(got), err)
	}
}

func TestToggleComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, TaskInput{Title: "Flip"})

	done, err := f.tasks.ToggleComplete(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !done.Completed || done.CompletedAt == nil || !done.CompletedAt.Equal(fixedNow) {
		t.Errorf("after toggle: completed=%v at=%v", done.Completed, done.CompletedAt)
	}

	undone, err := f.tasks.ToggleComplete(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if undone.Completed || undone.CompletedAt != nil {
		t.Errorf("after second toggle: completed=%v at=%v", undone.Completed, undone.CompletedAt)
	}

	if _, err := f.tasks.ToggleComplete(ctx, 42); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing task: got %v, want not found", err)
	}
}

func TestUpdatePatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := fixedNow.Add(time.Hour)
	if _, err := f.categories.Create(ctx, CategoryInput{Name: "Writing"}); err != nil {
		t.Fatal(err)
	}
	task := f.create(t, TaskInput{
		Title:      "Draft",
		CategoryID: ptr(1),
		DueDate:    &due,
		Recurrence: &domain.Recurrence{Pattern: domain.RecurWeekly, Frequency: 1},
	})

	tests := []struct {
		name  string
		patch TaskPatch
		check func(t *testing.T, got *domain.Task)
	}{
		{
			name:  "title only",
			patch: TaskPatch{Title: ptr("Final")},
			check: func(t *testing.T, got *domain.Task) {
				if got.Title != "Final" || got.CategoryID == nil || got.DueDate == nil {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name:  "clear optional fields",
			patch: TaskPatch{ClearCategory: true, ClearDueDate: true, ClearRecurrence: true},
			check: func(t *testing.T, got *domain.Task) {
				if got.CategoryID != nil || got.DueDate != nil || got.Recurrence != nil {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name:  "priority",
			patch: TaskPatch{Priority: ptr(domain.PriorityLow)},
			check: func(t *testing.T, got *domain.Task) {
				if got.Priority != domain.PriorityLow {
					t.Errorf("Priority: got %q", got.Priority)
				}
			},
		},
		{
			name:  "replace subtasks",
			patch: TaskPatch{Subtasks: []domain.Subtask{{Title: "one", Completed: true}}},
			check: func(t *testing.T, got *domain.Task) {
				if len(got.Subtasks) != 1 || !got.Completed {
					t.Errorf("got completed=%v subtasks=%+v", got.Completed, got.Subtasks)
				}
			},
		},
		{
			name:  "explicit uncomplete cascades",
			patch: TaskPatch{Completed: ptr(false)},
			check: func(t *testing.T, got *domain.Task) {
				if got.Completed || got.CompletedAt != nil || got.Subtasks[0].Completed {
					t.Errorf("got completed=%v subtasks=%+v", got.Completed, got.Subtasks)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.tasks.Update(ctx, task.ID, tt.patch)
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			tt.check(t, got)
		})
	}

	if _, err := f.tasks.Update(ctx, 99, TaskPatch{Title: ptr("x")}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing task: got %v, want not found", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, TaskInput{Title: "a"})
	b := f.create(t, TaskInput{Title: "b"})

	removed, err := f.tasks.Delete(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if removed.ID != a.ID {
		t.Errorf("removed: got %d, want %d", removed.ID, a.ID)
	}

	all, _ := f.tasks.All(ctx)
	if len(all) != 1 || all[0].ID != b.ID {
		t.Errorf("remaining: got %+v", all)
	}
	if _, err := f.tasks.Delete(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: got %v, want not found", err)
	}
}

func TestBulkDeleteSkipsUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, TaskInput{Title: "a"})
	f.create(t, TaskInput{Title: "b"})

	deleted, err := f.tasks.BulkDelete(ctx, []int{a.ID, 999})
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 1 {
		t.Errorf("deleted: got %d, want 1", len(deleted))
	}
	all, _ := f.tasks.All(ctx)
	if len(all) != 1 {
		t.Errorf("remaining: got %d, want 1", len(all))
	}
}

func TestBulkComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, TaskInput{Title: "a", Subtasks: []SubtaskInput{{Title: "s"}}})
	b := f.create(t, TaskInput{Title: "b"})

	updated, err := f.tasks.BulkComplete(ctx, []int{a.ID, b.ID, 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != 2 {
		t.Fatalf("updated: got %d, want 2", len(updated))
	}
	for _, task := range updated {
		if !task.Completed || task.CompletedAt == nil {
			t.Errorf("task %d not completed", task.ID)
		}
	}
	if !updated[0].Subtasks[0].Completed {
		t.Error("subtask not completed with parent")
	}
}

func TestByDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)
	for _, due := range []time.Time{
		day.Add(-time.Minute),
		day,
		day.Add(23*time.Hour + 59*time.Minute),
		day.AddDate(0, 0, 1),
		day.AddDate(0, 0, 3),
	} {
		f.create(t, TaskInput{Title: due.String(), DueDate: ptr(due)})
	}
	f.create(t, TaskInput{Title: "undated"})

	got, err := f.tasks.ByDate(ctx, day.Add(12*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("ByDate: got %d tasks, want 2", len(got))
	}

	got, err = f.tasks.ByDateRange(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("ByDateRange: got %d tasks, want 3", len(got))
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, TaskInput{Title: "a", Priority: domain.PriorityHigh})
	f.create(t, TaskInput{Title: "b", DueDate: ptr(fixedNow.Add(-time.Hour))})
	if _, err := f.tasks.ToggleComplete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	stats, err := f.tasks.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTasks != 2 || stats.CompletedTasks != 1 || stats.OverdueTasks != 1 {
		t.Errorf("got %+v", stats)
	}
	if stats.CompletionRate != 50 {
		t.Errorf("CompletionRate: got %v, want 50", stats.CompletionRate)
	}
}

func TestImportKeepsIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := &domain.Task{ID: 7, Title: "Pinned", Priority: domain.PriorityLow, CreatedAt: fixedNow}
	added, err := f.tasks.Import(ctx, task)
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != 7 {
		t.Errorf("ID: got %d, want 7", added.ID)
	}
	next := f.create(t, TaskInput{Title: "Next"})
	if next.ID != 8 {
		t.Errorf("next ID: got %d, want 8", next.ID)
	}
}

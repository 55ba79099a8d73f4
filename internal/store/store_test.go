package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

var testNow = time.Date(2026, time.April, 2, 9, 30, 0, 0, time.UTC)

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s domain.Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewInMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestTaskRoundTrip(t *testing.T) {
	stores(t, func(t *testing.T, s domain.Store) {
		ctx := context.Background()
		cat := 2
		due := testNow.Add(48 * time.Hour)
		end := testNow.AddDate(0, 2, 0)
		in := &domain.Task{
			Title:      "Write tests",
			Priority:   domain.PriorityHigh,
			CategoryID: &cat,
			DueDate:    &due,
			CreatedAt:  testNow,
			Recurrence: &domain.Recurrence{Pattern: domain.RecurWeekly, Frequency: 2, EndDate: &end},
		}
		in.SetSubtasks([]*domain.Subtask{
			{Title: "unit", Completed: true},
			{Title: "integration"},
		}, testNow)

		added, err := s.AddTask(ctx, in)
		if err != nil {
			t.Fatalf("AddTask: %v", err)
		}
		if added.ID != 1 {
			t.Errorf("ID: got %d, want 1", added.ID)
		}

		got, err := s.GetTask(ctx, added.ID)
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if got.Title != in.Title || got.Priority != in.Priority {
			t.Errorf("fields: got %q/%q", got.Title, got.Priority)
		}
		if got.CategoryID == nil || *got.CategoryID != cat {
			t.Errorf("CategoryID: got %v, want %d", got.CategoryID, cat)
		}
		if got.DueDate == nil || !got.DueDate.Equal(due) {
			t.Errorf("DueDate: got %v, want %v", got.DueDate, due)
		}
		if !got.CreatedAt.Equal(testNow) {
			t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, testNow)
		}
		if got.Recurrence == nil || got.Recurrence.Frequency != 2 || !got.Recurrence.EndDate.Equal(end) {
			t.Errorf("Recurrence: got %+v", got.Recurrence)
		}
		if len(got.Subtasks) != 2 || got.Subtasks[0].Title != "unit" || !got.Subtasks[0].Completed {
			t.Errorf("Subtasks: got %+v", got.Subtasks)
		}
		if got.SubtaskSeq != 2 {
			t.Errorf("SubtaskSeq: got %d, want 2", got.SubtaskSeq)
		}
	})
}

func TestSaveTask(t *testing.T) {
	stores(t, func(t *testing.T, s domain.Store) {
		ctx := context.Background()
		added, err := s.AddTask(ctx, &domain.Task{Title: "a", Priority: domain.PriorityLow, CreatedAt: testNow})
		if err != nil {
			t.Fatal(err)
		}

		added.Title = "b"
		added.SetCompleted(true, testNow)
		added.AddSubtask("child", true, testNow)
		if _, err := s.SaveTask(ctx, added); err != nil {
			t.Fatalf("SaveTask: %v", err)
		}

		got, err := s.GetTask(ctx, added.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "b" || !got.Completed || got.CompletedAt == nil {
			t.Errorf("got %+v", got)
		}
		if len(got.Subtasks) != 1 {
			t.Errorf("Subtasks: got %d, want 1", len(got.Subtasks))
		}

		_, err = s.SaveTask(ctx, &domain.Task{ID: 99, Title: "ghost"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("save missing: got %v, want not found", err)
		}
	})
}

func TestTaskIDsNotReused(t *testing.T) {
	stores(t, func(t *testing.T, s domain.Store) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if _, err := s.AddTask(ctx, &domain.Task{Title: "t", CreatedAt: testNow}); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := s.DeleteTask(ctx, 3); err != nil {
			t.Fatalf("DeleteTask: %v", err)
		}
		added, err := s.AddTask(ctx, &domain.Task{Title: "next", CreatedAt: testNow})
		if err != nil {
			t.Fatal(err)
		}
		if added.ID != 4 {
			t.Errorf("ID after delete: got %d, want 4", added.ID)
		}

		if _, err := s.GetTask(ctx, 3); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("deleted task: got %v, want not found", err)
		}
		if _, err := s.DeleteTask(ctx, 3); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("second delete: got %v, want not found", err)
		}

		tasks, err := s.ListTasks(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := []int{1, 2, 4}
		if len(tasks) != len(want) {
			t.Fatalf("ListTasks: got %d tasks, want %d", len(tasks), len(want))
		}
		for i, task := range tasks {
			if task.ID != want[i] {
				t.Errorf("position %d: got id %d, want %d", i, task.ID, want[i])
			}
		}
	})
}

func TestExplicitIDs(t *testing.T) {
	stores(t, func(t *testing.T, s domain.Store) {
		ctx := context.Background()
		if _, err := s.AddTask(ctx, &domain.Task{ID: 10, Title: "pinned", CreatedAt: testNow}); err != nil {
			t.Fatal(err)
		}
		added, err := s.AddTask(ctx, &domain.Task{Title: "auto", CreatedAt: testNow})
		if err != nil {
			t.Fatal(err)
		}
		if added.ID != 11 {
			t.Errorf("auto id: got %d, want 11", added.ID)
		}
		if _, err := s.AddTask(ctx, &domain.Task{ID: 10, Title: "dup", CreatedAt: testNow}); err == nil {
			t.Error("duplicate id accepted")
		}
	})
}

func TestCategories(t *testing.T) {
	stores(t, func(t *testing.T, s domain.Store) {
		ctx := context.Background()
		work, err := s.AddCategory(ctx, &domain.Category{Name: "Work", Color: "#000000", Icon: "Briefcase"})
		if err != nil {
			t.Fatal(err)
		}
		home, err := s.AddCategory(ctx, &domain.Category{Name: "Home"})
		if err != nil {
			t.Fatal(err)
		}
		if work.ID != 1 || home.ID != 2 {
			t.Errorf("ids: got %d, %d, want 1, 2", work.ID, home.ID)
		}

		work.Name = "Office"
		if _, err := s.SaveCategory(ctx, work); err != nil {
			t.Fatalf("SaveCategory: %v", err)
		}
		got, err := s.GetCategory(ctx, work.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "Office" || got.Icon != "Briefcase" {
			t.Errorf("got %+v", got)
		}

		if _, err := s.DeleteCategory(ctx, home.ID); err != nil {
			t.Fatal(err)
		}
		next, err := s.AddCategory(ctx, &domain.Category{Name: "Garden"})
		if err != nil {
			t.Fatal(err)
		}
		if next.ID != 3 {
			t.Errorf("id after delete: got %d, want 3", next.ID)
		}

		cats, err := s.ListCategories(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(cats) != 2 {
			t.Errorf("ListCategories: got %d, want 2", len(cats))
		}
		if _, err := s.GetCategory(ctx, home.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("deleted category: got %v, want not found", err)
		}
	})
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	added, err := s.AddTask(ctx, &domain.Task{Title: "original", CreatedAt: testNow})
	if err != nil {
		t.Fatal(err)
	}
	added.Title = "mutated"

	got, err := s.GetTask(ctx, added.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "original" {
		t.Errorf("stored task changed through returned pointer: %q", got.Title)
	}

	got.Title = "again"
	list, _ := s.ListTasks(ctx)
	if list[0].Title != "original" {
		t.Errorf("stored task changed through GetTask result: %q", list[0].Title)
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.AddTask(ctx, &domain.Task{Title: "t", CreatedAt: testNow}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.DeleteTask(ctx, 2); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	added, err := reopened.AddTask(ctx, &domain.Task{Title: "after reopen", CreatedAt: testNow})
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != 3 {
		t.Errorf("id after reopen: got %d, want 3", added.ID)
	}
}

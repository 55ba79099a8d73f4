package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

func TestSubtaskLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, TaskInput{Title: "Move"})

	first, err := f.tasks.CreateSubtask(ctx, task.ID, SubtaskInput{Title: "Boxes"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.tasks.CreateSubtask(ctx, task.ID, SubtaskInput{Title: "Truck"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids: got %d, %d, want 1, 2", first.ID, second.ID)
	}

	parent, err := f.tasks.ApplySubtaskChange(ctx, task.ID, first.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if parent.Completed {
		t.Error("parent completed with a pending subtask")
	}

	renamed, err := f.tasks.UpdateSubtask(ctx, task.ID, second.ID, SubtaskPatch{
		Title:     ptr("Rent truck"),
		Completed: ptr(true),
	})
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Title != "Rent truck" || !renamed.Completed {
		t.Errorf("UpdateSubtask: got %+v", renamed)
	}

	got, _ := f.tasks.Get(ctx, task.ID)
	if !got.Completed || got.CompletedAt == nil {
		t.Error("parent should complete once every subtask is done")
	}

	progress, err := f.tasks.Progress(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if progress != (domain.Progress{Completed: 2, Total: 2, Percentage: 100}) {
		t.Errorf("Progress: got %+v", progress)
	}

	if _, err := f.tasks.CreateSubtask(ctx, task.ID, SubtaskInput{Title: "Clean"}); err != nil {
		t.Fatal(err)
	}
	got, _ = f.tasks.Get(ctx, task.ID)
	if got.Completed {
		t.Error("new pending subtask should reopen the parent")
	}

	if _, err := f.tasks.DeleteSubtask(ctx, task.ID, 3); err != nil {
		t.Fatal(err)
	}
	got, _ = f.tasks.Get(ctx, task.ID)
	if !got.Completed {
		t.Error("deleting the only pending subtask should complete the parent")
	}

	fresh, err := f.tasks.CreateSubtask(ctx, task.ID, SubtaskInput{Title: "Keys"})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID != 4 {
		t.Errorf("id after delete: got %d, want 4", fresh.ID)
	}
}

func TestSubtaskNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, TaskInput{Title: "Solo"})

	tests := []struct {
		name string
		call func() error
	}{
		{"list on missing task", func() error {
			_, err := f.tasks.Subtasks(ctx, 99)
			return err
		}},
		{"create on missing task", func() error {
			_, err := f.tasks.CreateSubtask(ctx, 99, SubtaskInput{Title: "x"})
			return err
		}},
		{"update missing subtask", func() error {
			_, err := f.tasks.UpdateSubtask(ctx, task.ID, 5, SubtaskPatch{Completed: ptr(true)})
			return err
		}},
		{"toggle missing subtask", func() error {
			_, err := f.tasks.ApplySubtaskChange(ctx, task.ID, 5, true)
			return err
		}},
		{"delete missing subtask", func() error {
			_, err := f.tasks.DeleteSubtask(ctx, task.ID, 5)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("got %v, want not found", err)
			}
		})
	}
}

func TestReorderSubtasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, TaskInput{
		Title:    "Recipe",
		Subtasks: []SubtaskInput{{Title: "chop"}, {Title: "fry"}, {Title: "serve"}},
	})

	subs, err := f.tasks.ReorderSubtasks(ctx, task.ID, []int{3, 99, 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{3, 1, 2}
	for i, s := range subs {
		if s.ID != want[i] {
			t.Errorf("position %d: got %d, want %d", i, s.ID, want[i])
		}
	}

	listed, _ := f.tasks.Subtasks(ctx, task.ID)
	if listed[0].Title != "serve" {
		t.Errorf("order not persisted: first is %q", listed[0].Title)
	}
}

func TestToggleSubtaskConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, TaskInput{
		Title:    "Pack",
		Subtasks: []SubtaskInput{{Title: "Clothes"}, {Title: "Charger"}},
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.tasks.ToggleSubtask(ctx, task.ID, 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, _ := f.tasks.Get(ctx, task.ID)
	if got.Subtasks[0].Completed {
		t.Error("an even number of toggles should leave the subtask pending")
	}

	parent, err := f.tasks.ToggleSubtask(ctx, task.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !parent.Subtasks[0].Completed || parent.Completed {
		t.Errorf("after one toggle: subtask=%v parent=%v", parent.Subtasks[0].Completed, parent.Completed)
	}

	if _, err := f.tasks.ToggleSubtask(ctx, task.ID, 9); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing subtask: got %v, want not found", err)
	}
}

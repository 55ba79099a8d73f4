package service

import (
	"context"
	"io"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	"git.sr.ht/~jakintosh/taskflow/internal/store"
	"github.com/charmbracelet/log"
)

var fixedNow = time.Date(2026, time.July, 8, 10, 0, 0, 0, time.UTC)

type fixture struct {
	tasks      *TaskService
	categories *CategoryService
	store      *store.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(io.Discard)
	st := store.NewInMemoryStore()
	tasks := NewTaskService(st, logger, WithClock(func() time.Time { return fixedNow }))
	return &fixture{
		tasks:      tasks,
		categories: NewCategoryService(st, tasks, logger),
		store:      st,
	}
}

func (f *fixture) create(t *testing.T, in TaskInput) *domain.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create(%q): %v", in.Title, err)
	}
	return task
}

func ptr[T any](v T) *T {
	return &v
}

package store

import (
	"context"
	"sync"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

type InMemoryStore struct {
	mu         sync.RWMutex
	tasks      []*domain.Task
	categories []*domain.Category
	lastTaskID int
	lastCatID  int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks:      []*domain.Task{},
		categories: []*domain.Category{},
	}
}

func (s *InMemoryStore) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

func (s *InMemoryStore) GetTask(ctx context.Context, id int) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.taskIndex(id); i >= 0 {
		return s.tasks[i].Clone(), nil
	}
	return nil, domain.TaskNotFound(id)
}

func (s *InMemoryStore) AddTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := task.Clone()
	if stored.ID <= 0 {
		stored.ID = s.nextTaskID()
	} else if s.taskIndex(stored.ID) >= 0 {
		return nil, domain.Validation("task %d already exists", stored.ID)
	}
	if stored.ID > s.lastTaskID {
		s.lastTaskID = stored.ID
	}
	if stored.Subtasks == nil {
		stored.Subtasks = []*domain.Subtask{}
	}
	s.tasks = append(s.tasks, stored)
	return stored.Clone(), nil
}

func (s *InMemoryStore) SaveTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taskIndex(task.ID)
	if i < 0 {
		return nil, domain.TaskNotFound(task.ID)
	}
	stored := task.Clone()
	stored.CreatedAt = s.tasks[i].CreatedAt
	s.tasks[i] = stored
	return stored.Clone(), nil
}

func (s *InMemoryStore) DeleteTask(ctx context.Context, id int) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taskIndex(id)
	if i < 0 {
		return nil, domain.TaskNotFound(id)
	}
	removed := s.tasks[i]
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return removed, nil
}

func (s *InMemoryStore) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Category, len(s.categories))
	for i, c := range s.categories {
		cat := *c
		out[i] = &cat
	}
	return out, nil
}

func (s *InMemoryStore) GetCategory(ctx context.Context, id int) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			cat := *c
			return &cat, nil
		}
	}
	return nil, domain.CategoryNotFound(id)
}

func (s *InMemoryStore) AddCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *cat
	if stored.ID <= 0 {
		next := s.lastCatID
		for _, c := range s.categories {
			if c.ID > next {
				next = c.ID
			}
		}
		stored.ID = next + 1
	} else {
		for _, c := range s.categories {
			if c.ID == stored.ID {
				return nil, domain.Validation("category %d already exists", stored.ID)
			}
		}
	}
	if stored.ID > s.lastCatID {
		s.lastCatID = stored.ID
	}
	s.categories = append(s.categories, &stored)
	out := stored
	return &out, nil
}

func (s *InMemoryStore) SaveCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.categories {
		if c.ID == cat.ID {
			stored := *cat
			s.categories[i] = &stored
			out := stored
			return &out, nil
		}
	}
	return nil, domain.CategoryNotFound(cat.ID)
}

func (s *InMemoryStore) DeleteCategory(ctx context.Context, id int) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.categories {
		if c.ID == id {
			removed := c
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return removed, nil
		}
	}
	return nil, domain.CategoryNotFound(id)
}

func (s *InMemoryStore) Close() error {
	return nil
}

func (s *InMemoryStore) taskIndex(id int) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// nextTaskID must be called with the write lock held.
func (s *InMemoryStore) nextTaskID() int {
	next := s.lastTaskID
	for _, t := range s.tasks {
		if t.ID > next {
			next = t.ID
		}
	}
	return next + 1
}

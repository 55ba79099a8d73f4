package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	"github.com/charmbracelet/log"
)

// Option customises a service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title      string             `json:"title"`
	Priority   domain.Priority    `json:"priority"`
	CategoryID *int               `json:"category_id"`
	DueDate    *time.Time         `json:"due_date"`
	Recurrence *domain.Recurrence `json:"recurrence"`
	Subtasks   []SubtaskInput     `json:"subtasks"`
}

type SubtaskInput struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// TaskPatch is a partial update. Nil fields are left untouched; the Clear
// flags null out optional fields. A non-nil Subtasks replaces the list.
type TaskPatch struct {
	Title           *string
	Completed       *bool
	Priority        *domain.Priority
	CategoryID      *int
	ClearCategory   bool
	DueDate         *time.Time
	ClearDueDate    bool
	Recurrence      *domain.Recurrence
	ClearRecurrence bool
	Subtasks        []domain.Subtask
}

type SubtaskPatch struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

// TaskService wraps task-related business logic. Every operation runs under
// one mutex so read-modify-write sequences never interleave.
type TaskService struct {
	mu     sync.Mutex
	store  domain.Store
	logger *log.Logger
	now    func() time.Time
}

func NewTaskService(store domain.Store, logger *log.Logger, opts ...Option) *TaskService {
	o := buildOptions(opts)
	return &TaskService{
		store:  store,
		logger: logger.WithPrefix("tasks"),
		now:    o.now,
	}
}

// Now reports the service clock.
func (s *TaskService) Now() time.Time {
	return s.now()
}

func (s *TaskService) All(ctx context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ListTasks(ctx)
}

func (s *TaskService) Get(ctx context.Context, id int) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetTask(ctx, id)
}

// Create stores a new task. Recurring tasks with a due date immediately
// spawn their instances.
func (s *TaskService) Create(ctx context.Context, input TaskInput) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}
	now := s.now()
	task := &domain.Task{
		Title:      input.Title,
		Priority:   input.Priority,
		CategoryID: input.CategoryID,
		DueDate:    input.DueDate,
		CreatedAt:  now,
		Recurrence: normalizeRecurrence(input.Recurrence),
		Subtasks:   []*domain.Subtask{},
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if len(input.Subtasks) > 0 {
		subs := make([]*domain.Subtask, len(input.Subtasks))
		for i, in := range input.Subtasks {
			subs[i] = &domain.Subtask{Title: in.Title, Completed: in.Completed}
		}
		task.SetSubtasks(subs, now)
	}

	created, err := s.store.AddTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.logger.Debug("task created", "id", created.ID, "title", created.Title)

	if created.IsRecurring() {
		if _, err := s.generate(ctx, created); err != nil {
			return created, err
		}
	}
	return created, nil
}

// Import stores a fully-formed task as-is (used for seeding) and generates
// its recurring instances.
func (s *TaskService) Import(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.Recurrence = normalizeRecurrence(task.Recurrence)
	added, err := s.store.AddTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("import task: %w", err)
	}
	if added.IsRecurring() {
		if _, err := s.generate(ctx, added); err != nil {
			return added, err
		}
	}
	return added, nil
}

func (s *TaskService) Update(ctx context.Context, id int, patch TaskPatch) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(ctx, id, patch)
}

func (s *TaskService) update(ctx context.Context, id int, patch TaskPatch) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, patch.CategoryID); err != nil {
		return nil, err
	}
	applyPatch(task, patch, s.now())
	return s.store.SaveTask(ctx, task)
}

func applyPatch(t *domain.Task, p TaskPatch, now time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearCategory:
		t.CategoryID = nil
	case p.CategoryID != nil:
		id := *p.CategoryID
		t.CategoryID = &id
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		due := *p.DueDate
		t.DueDate = &due
	}
	switch {
	case p.ClearRecurrence:
		t.Recurrence = nil
	case p.Recurrence != nil:
		t.Recurrence = normalizeRecurrence(p.Recurrence)
	}
	if p.Subtasks != nil {
		subs := make([]*domain.Subtask, len(p.Subtasks))
		for i := range p.Subtasks {
			sub := p.Subtasks[i]
			subs[i] = &sub
		}
		t.SetSubtasks(subs, now)
	}
	if p.Completed != nil {
		// An explicit flag on a task with subtasks applies to all of them,
		// keeping the derived state consistent.
		t.CompleteAll(*p.Completed, now)
	}
}

func normalizeRecurrence(r *domain.Recurrence) *domain.Recurrence {
	if r == nil {
		return nil
	}
	c := *r
	if c.Frequency < 1 {
		c.Frequency = 1
	}
	if c.EndDate != nil {
		end := *c.EndDate
		c.EndDate = &end
	}
	return &c
}

func (s *TaskService) Delete(ctx context.Context, id int) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.store.DeleteTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("task deleted", "id", id)
	return removed, nil
}

// BulkDelete removes every existing task in ids and skips unknown ones.
func (s *TaskService) BulkDelete(ctx context.Context, ids []int) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := []*domain.Task{}
	for _, id := range ids {
		removed, err := s.store.DeleteTask(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("bulk delete task %d: %w", id, err)
		}
		deleted = append(deleted, removed)
	}
	s.logger.Debug("bulk delete", "requested", len(ids), "deleted", len(deleted))
	return deleted, nil
}

// BulkComplete marks every existing task in ids completed and skips unknown ones.
func (s *TaskService) BulkComplete(ctx context.Context, ids []int) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := true
	updated := []*domain.Task{}
	for _, id := range ids {
		task, err := s.update(ctx, id, TaskPatch{Completed: &done})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, fmt.Errorf("bulk complete task %d: %w", id, err)
		}
		updated = append(updated, task)
	}
	return updated, nil
}

func (s *TaskService) ToggleComplete(ctx context.Context, id int) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	done := !task.Completed
	return s.update(ctx, id, TaskPatch{Completed: &done})
}

// ByDateRange returns tasks due within [start, end].
func (s *TaskService) ByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	matched := []*domain.Task{}
	for _, t := range all {
		if t.DueWithin(start, end) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// ByDate returns tasks due on day's calendar date, in day's location.
func (s *TaskService) ByDate(ctx context.Context, day time.Time) ([]*domain.Task, error) {
	return s.ByDateRange(ctx, domain.StartOfDay(day), domain.EndOfDay(day))
}

func (s *TaskService) Statistics(ctx context.Context) (domain.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListTasks(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	return domain.ComputeStatistics(all, s.now()), nil
}

// GenerateRecurring persists the instances that follow parent's due date.
func (s *TaskService) GenerateRecurring(ctx context.Context, parent *domain.Task) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generate(ctx, parent)
}

func (s *TaskService) generate(ctx context.Context, parent *domain.Task) ([]*domain.Task, error) {
	generated := []*domain.Task{}
	if parent.DueDate == nil || parent.Recurrence == nil {
		return generated, nil
	}

	now := s.now()
	for _, due := range parent.Recurrence.Occurrences(*parent.DueDate, now) {
		added, err := s.store.AddTask(ctx, domain.NewInstance(parent, due, now))
		if err != nil {
			return generated, fmt.Errorf("generate instance of task %d: %w", parent.ID, err)
		}
		generated = append(generated, added)
	}
	s.logger.Debug("recurring instances generated",
		"parent", parent.ID,
		"pattern", parent.Recurrence.Pattern,
		"count", len(generated),
	)
	return generated, nil
}

// checkCategory rejects references to categories that do not exist. Callers
// hold s.mu, which also guards DetachCategory.
func (s *TaskService) checkCategory(ctx context.Context, id *int) error {
	if id == nil {
		return nil
	}
	if _, err := s.store.GetCategory(ctx, *id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Validation("unknown category %d", *id)
		}
		return err
	}
	return nil
}

// DetachCategory clears every task reference to categoryID, then calls
// remove. Both steps run under the task lock, so no task can pick up the
// category in between, and a failed detach leaves the category in place.
func (s *TaskService) DetachCategory(ctx context.Context, categoryID int, remove func() error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListTasks(ctx)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, t := range all {
		if t.CategoryID == nil || *t.CategoryID != categoryID {
			continue
		}
		t.CategoryID = nil
		if _, err := s.store.SaveTask(ctx, t); err != nil {
			return cleared, fmt.Errorf("detach task %d: %w", t.ID, err)
		}
		cleared++
	}
	return cleared, remove()
}

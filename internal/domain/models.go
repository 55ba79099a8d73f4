package domain

import (
	"math"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the known priorities from highest to lowest.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Subtask struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Task struct {
	ID           int         `json:"id"`
	Title        string      `json:"title"`
	Completed    bool        `json:"completed"`
	Priority     Priority    `json:"priority"`
	CategoryID   *int        `json:"category_id"`
	DueDate      *time.Time  `json:"due_date"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at"`
	Recurrence   *Recurrence `json:"recurrence,omitempty"`
	ParentTaskID *int        `json:"parent_task_id,omitempty"`
	Subtasks     []*Subtask  `json:"subtasks"`

	// SubtaskSeq is the highest subtask id ever handed out for this task.
	SubtaskSeq int `json:"-"`
}

type Category struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

const (
	DefaultCategoryColor = "#5B4FE9"
	DefaultCategoryIcon  = "Tag"
)

// Progress summarises subtask completion for a task.
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Helper methods

func (t *Task) IsRecurring() bool {
	return t.Recurrence != nil
}

func (t *Task) Progress() Progress {
	p := Progress{Total: len(t.Subtasks)}
	for _, s := range t.Subtasks {
		if s.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percentage = int(math.Round(100 * float64(p.Completed) / float64(p.Total)))
	}
	return p
}

// SetCompleted applies a completion flag, stamping CompletedAt on the
// false→true transition and clearing it whenever the task is not completed.
func (t *Task) SetCompleted(done bool, now time.Time) {
	if !done {
		t.CompletedAt = nil
	} else if !t.Completed || t.CompletedAt == nil {
		at := now
		t.CompletedAt = &at
	}
	t.Completed = done
}

// RecomputeCompletion derives the task's completion from its subtasks.
// Tasks without subtasks are left alone. Reports whether anything changed.
func (t *Task) RecomputeCompletion(now time.Time) bool {
	if len(t.Subtasks) == 0 {
		return false
	}
	all := true
	for _, s := range t.Subtasks {
		if !s.Completed {
			all = false
			break
		}
	}
	switch {
	case all && !t.Completed:
		t.SetCompleted(true, now)
		return true
	case !all && t.Completed:
		t.SetCompleted(false, now)
		return true
	}
	return false
}

// CompleteAll marks the task and every subtask with the same flag.
func (t *Task) CompleteAll(done bool, now time.Time) {
	for _, s := range t.Subtasks {
		s.Completed = done
	}
	t.SetCompleted(done, now)
}

func (t *Task) Subtask(id int) (*Subtask, error) {
	for _, s := range t.Subtasks {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, SubtaskNotFound(t.ID, id)
}

// nextSubtaskID returns max(existing, SubtaskSeq)+1 and records it.
func (t *Task) nextSubtaskID() int {
	next := t.SubtaskSeq
	for _, s := range t.Subtasks {
		if s.ID > next {
			next = s.ID
		}
	}
	next++
	t.SubtaskSeq = next
	return next
}

// AddSubtask appends a new subtask and recomputes the parent.
func (t *Task) AddSubtask(title string, done bool, now time.Time) *Subtask {
	sub := &Subtask{
		ID:        t.nextSubtaskID(),
		Title:     title,
		Completed: done,
	}
	t.Subtasks = append(t.Subtasks, sub)
	t.RecomputeCompletion(now)
	return sub
}

// SetSubtasks replaces the subtask list. Entries without an id, or whose id
// collides with an earlier entry, get a fresh one.
func (t *Task) SetSubtasks(subs []*Subtask, now time.Time) {
	t.Subtasks = make([]*Subtask, 0, len(subs))
	for _, s := range subs {
		if s.ID > t.SubtaskSeq {
			t.SubtaskSeq = s.ID
		}
	}
	seen := make(map[int]bool, len(subs))
	for _, s := range subs {
		sub := *s
		if sub.ID <= 0 || seen[sub.ID] {
			sub.ID = t.nextSubtaskID()
		}
		seen[sub.ID] = true
		t.Subtasks = append(t.Subtasks, &sub)
	}
	t.RecomputeCompletion(now)
}

// ApplySubtaskChange flips one subtask and propagates to the parent.
func (t *Task) ApplySubtaskChange(subtaskID int, done bool, now time.Time) error {
	sub, err := t.Subtask(subtaskID)
	if err != nil {
		return err
	}
	sub.Completed = done
	t.RecomputeCompletion(now)
	return nil
}

func (t *Task) RemoveSubtask(id int, now time.Time) (*Subtask, error) {
	for i, s := range t.Subtasks {
		if s.ID == id {
			t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
			t.RecomputeCompletion(now)
			return s, nil
		}
	}
	return nil, SubtaskNotFound(t.ID, id)
}

// ReorderSubtasks puts subtasks in the order given by ids. Unknown ids are
// dropped; subtasks missing from ids keep their relative order at the end.
func (t *Task) ReorderSubtasks(ids []int) {
	newSubs := make([]*Subtask, 0, len(t.Subtasks))
	lookup := make(map[int]*Subtask, len(t.Subtasks))
	for _, s := range t.Subtasks {
		lookup[s.ID] = s
	}

	for _, id := range ids {
		if s, ok := lookup[id]; ok {
			newSubs = append(newSubs, s)
			delete(lookup, id)
		}
	}

	// Append leftovers
	for _, s := range t.Subtasks {
		if _, ok := lookup[s.ID]; ok {
			newSubs = append(newSubs, s)
		}
	}
	t.Subtasks = newSubs
}

// Clone returns a deep copy so callers never share state with a store.
func (t *Task) Clone() *Task {
	c := *t
	c.CategoryID = cloneInt(t.CategoryID)
	c.ParentTaskID = cloneInt(t.ParentTaskID)
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	if t.Recurrence != nil {
		r := *t.Recurrence
		r.EndDate = cloneTime(t.Recurrence.EndDate)
		c.Recurrence = &r
	}
	c.Subtasks = make([]*Subtask, len(t.Subtasks))
	for i, s := range t.Subtasks {
		sub := *s
		c.Subtasks[i] = &sub
	}
	return &c
}

// DueWithin reports whether the due date falls in [start, end].
func (t *Task) DueWithin(start, end time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return !t.DueDate.Before(start) && !t.DueDate.After(end)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

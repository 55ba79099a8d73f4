package domain

import "time"

type RecurrencePattern string

const (
	RecurDaily   RecurrencePattern = "daily"
	RecurWeekly  RecurrencePattern = "weekly"
	RecurMonthly RecurrencePattern = "monthly"
	RecurYearly  RecurrencePattern = "yearly"
)

var RecurrencePatterns = []RecurrencePattern{RecurDaily, RecurWeekly, RecurMonthly, RecurYearly}

func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	}
	return false
}

const (
	// MaxRecurrences caps the instances produced by one generation call.
	MaxRecurrences = 50
	// RecurrenceHorizonYears bounds generation relative to the current time.
	RecurrenceHorizonYears = 1
)

// Recurrence describes how a task spawns future instances.
type Recurrence struct {
	Pattern   RecurrencePattern `json:"pattern"`
	Frequency int               `json:"frequency"`
	EndDate   *time.Time        `json:"end_date,omitempty"`
}

func (r Recurrence) interval() int {
	if r.Frequency < 1 {
		return 1
	}
	return r.Frequency
}

// Advance moves d forward by one interval. ok is false for unknown patterns.
func (r Recurrence) Advance(d time.Time) (next time.Time, ok bool) {
	n := r.interval()
	switch r.Pattern {
	case RecurDaily:
		return d.AddDate(0, 0, n), true
	case RecurWeekly:
		return d.AddDate(0, 0, 7*n), true
	case RecurMonthly:
		return d.AddDate(0, n, 0), true
	case RecurYearly:
		return d.AddDate(n, 0, 0), true
	}
	return d, false
}

// Occurrences returns the due dates of the instances that follow start,
// stopping at the end date, at one year past now, or after MaxRecurrences.
func (r Recurrence) Occurrences(start, now time.Time) []time.Time {
	horizon := now.AddDate(RecurrenceHorizonYears, 0, 0)
	var dates []time.Time
	current := start
	for len(dates) < MaxRecurrences {
		next, ok := r.Advance(current)
		if !ok {
			break
		}
		current = next
		if r.EndDate != nil && !current.Before(*r.EndDate) {
			break
		}
		if !current.Before(horizon) {
			break
		}
		dates = append(dates, current)
	}
	return dates
}

// NewInstance builds a non-recurring child of parent due at due.
// The id is left for the store to allocate.
func NewInstance(parent *Task, due, now time.Time) *Task {
	parentID := parent.ID
	return &Task{
		Title:        parent.Title,
		Priority:     parent.Priority,
		CategoryID:   cloneInt(parent.CategoryID),
		DueDate:      &due,
		CreatedAt:    now,
		ParentTaskID: &parentID,
		Subtasks:     []*Subtask{},
	}
}

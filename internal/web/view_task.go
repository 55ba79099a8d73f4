package web

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

// TaskView is the view model for Task
type TaskView struct {
	ID        int
	Title     string
	Completed bool
	Priority  string

	CategoryID    int
	CategoryName  string
	CategoryColor string

	DueLabel string // "Mon Jan 2, 15:04"
	DueInput string // value for <input type="date">
	DueTime  string
	Overdue  bool
	DueToday bool

	RecurrenceLabel     string
	RecurrencePattern   string
	RecurrenceFrequency int
	RecurrenceEnd       string
	IsInstance          bool

	Progress     domain.Progress
	Choices      *FormChoices // nil hides the edit form
	HasSubtasks  bool
	Subtasks     []SubtaskView
	OOB          bool
	DeleteButton DeleteButtonView
}

// NewTaskView creates a TaskView from a domain Task. cats may be nil.
func NewTaskView(t *domain.Task, cats map[int]*domain.Category, now time.Time, oob bool) TaskView {
	view := TaskView{
		ID:         t.ID,
		Title:      t.Title,
		Completed:  t.Completed,
		Priority:   string(t.Priority),
		IsInstance: t.ParentTaskID != nil,
		Progress:   t.Progress(),
		OOB:        oob,
	}
	if t.CategoryID != nil {
		view.CategoryID = *t.CategoryID
		if c, ok := cats[*t.CategoryID]; ok {
			view.CategoryName = c.Name
			view.CategoryColor = c.Color
		}
	}
	if t.DueDate != nil {
		due := t.DueDate.In(now.Location())
		view.DueLabel = due.Format("Mon Jan 2, 15:04")
		view.DueInput = due.Format(dateLayout)
		view.DueTime = due.Format(timeLayout)
		view.Overdue = !t.Completed && due.Before(now)
		view.DueToday = sameDay(due, now)
	}
	if t.Recurrence != nil {
		view.RecurrenceLabel = recurrenceLabel(t.Recurrence)
		view.RecurrencePattern = string(t.Recurrence.Pattern)
		view.RecurrenceFrequency = t.Recurrence.Frequency
		if t.Recurrence.EndDate != nil {
			view.RecurrenceEnd = t.Recurrence.EndDate.In(now.Location()).Format(dateLayout)
		}
	}
	if len(t.Subtasks) > 0 {
		view.HasSubtasks = true
		view.Subtasks = make([]SubtaskView, len(t.Subtasks))
		for i, s := range t.Subtasks {
			view.Subtasks[i] = NewSubtaskView(t.ID, s)
		}
	}

	view.DeleteButton = DeleteButtonView{
		URL:            "/tasks/" + strconv.Itoa(t.ID),
		Target:         "#task-" + strconv.Itoa(t.ID),
		ConfirmMessage: "Delete this task?",
		ButtonText:     "Delete",
	}
	return view
}

func recurrenceLabel(r *domain.Recurrence) string {
	unit := map[domain.RecurrencePattern]string{
		domain.RecurDaily:   "day",
		domain.RecurWeekly:  "week",
		domain.RecurMonthly: "month",
		domain.RecurYearly:  "year",
	}[r.Pattern]
	if unit == "" {
		return string(r.Pattern)
	}
	label := "every " + unit
	if r.Frequency > 1 {
		label = fmt.Sprintf("every %d %ss", r.Frequency, unit)
	}
	if r.EndDate != nil {
		label += " until " + r.EndDate.Format("Jan 2, 2006")
	}
	return label
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FormChoices lists the options offered by task forms.
type FormChoices struct {
	Categories []CategoryView
	Priorities []domain.Priority
	Patterns   []domain.RecurrencePattern
}

func newFormChoices(cats []*domain.Category) *FormChoices {
	choices := &FormChoices{
		Priorities: domain.Priorities,
		Patterns:   domain.RecurrencePatterns,
	}
	for _, c := range cats {
		choices.Categories = append(choices.Categories, NewCategoryView(c, 0, false, false))
	}
	return choices
}

// TaskGroup is one titled section of the task list.
type TaskGroup struct {
	Key   string
	Title string
	Tasks []TaskView
}

// groupTasks splits views into list sections. Each task lands in exactly
// one group; completed tasks always go to the last one.
func groupTasks(tasks []*domain.Task, cats []*domain.Category, choices *FormChoices, now time.Time) []TaskGroup {
	idx := categoryIndex(cats)
	groups := []TaskGroup{
		{Key: "overdue", Title: "Overdue"},
		{Key: "today", Title: "Today"},
		{Key: "tomorrow", Title: "Tomorrow"},
		{Key: "upcoming", Title: "Upcoming"},
		{Key: "none", Title: "No Due Date"},
		{Key: "completed", Title: "Completed"},
	}
	tomorrow := now.AddDate(0, 0, 1)
	for _, t := range tasks {
		var slot int
		switch {
		case t.Completed:
			slot = 5
		case t.DueDate == nil:
			slot = 4
		case t.DueDate.Before(now):
			slot = 0
		case sameDay(t.DueDate.In(now.Location()), now):
			slot = 1
		case sameDay(t.DueDate.In(now.Location()), tomorrow):
			slot = 2
		default:
			slot = 3
		}
		view := NewTaskView(t, idx, now, false)
		view.Choices = choices
		groups[slot].Tasks = append(groups[slot].Tasks, view)
	}
	return groups
}

// RenderTask renders a single task row from its view model
func (p *Presentation) RenderTask(w io.Writer, view TaskView) error {
	return p.tmpl.ExecuteTemplate(w, "task_row", view)
}

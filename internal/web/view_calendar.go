package web

import (
	"io"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

const monthLayout = "2006-01"

type CalendarDay struct {
	Day     int
	Date    string // YYYY-MM-DD
	InMonth bool
	Today   bool
	Tasks   []TaskView
}

// CalendarView is a month grid of weeks starting on Sunday.
type CalendarView struct {
	PageView
	Month     string // "October 2026"
	Prev      string // YYYY-MM
	Next      string
	ThisMonth string
	Weekdays  []string
	Weeks     [][]CalendarDay
	TaskCount int
	Completed int
	Choices   *FormChoices
}

// calendarBounds returns the first and last instant of the grid that
// contains month.
func calendarBounds(month time.Time) (start, end time.Time) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	last := first.AddDate(0, 1, -1)
	start = first.AddDate(0, 0, -int(first.Weekday()))
	end = domain.EndOfDay(last.AddDate(0, 0, 6-int(last.Weekday())))
	return start, end
}

// parseMonth reads YYYY-MM in now's location, falling back to now's month.
func parseMonth(value string, now time.Time) time.Time {
	if m, err := time.ParseInLocation(monthLayout, value, now.Location()); err == nil {
		return m
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func newCalendarView(month time.Time, tasks []*domain.Task, cats []*domain.Category, now time.Time) CalendarView {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	view := CalendarView{
		PageView:  PageView{Title: "Calendar", Active: "calendar"},
		Month:     first.Format("January 2006"),
		Prev:      first.AddDate(0, -1, 0).Format(monthLayout),
		Next:      first.AddDate(0, 1, 0).Format(monthLayout),
		ThisMonth: now.Format(monthLayout),
		Weekdays:  []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		Choices:   newFormChoices(cats),
	}

	byDay := make(map[string][]*domain.Task)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		key := t.DueDate.In(month.Location()).Format(dateLayout)
		byDay[key] = append(byDay[key], t)
		view.TaskCount++
		if t.Completed {
			view.Completed++
		}
	}

	idx := categoryIndex(cats)
	start, end := calendarBounds(first)
	var week []CalendarDay
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		cell := CalendarDay{
			Day:     day.Day(),
			Date:    key,
			InMonth: day.Month() == first.Month(),
			Today:   sameDay(day, now),
		}
		for _, t := range byDay[key] {
			cell.Tasks = append(cell.Tasks, NewTaskView(t, idx, now, false))
		}
		week = append(week, cell)
		if len(week) == 7 {
			view.Weeks = append(view.Weeks, week)
			week = nil
		}
	}
	return view
}

func (p *Presentation) RenderCalendar(w io.Writer, view CalendarView) error {
	return p.tmpl.ExecuteTemplate(w, "calendar.html", view)
}

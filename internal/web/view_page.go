package web

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

// PageView carries what the shared layout needs.
type PageView struct {
	Title  string
	Active string // nav entry: tasks, calendar, stats
}

// ListFilter narrows the task list.
type ListFilter struct {
	Status     string // all, pending, completed
	Priority   domain.Priority
	CategoryID int
	Query      string
}

func parseListFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	f := ListFilter{
		Status:   q.Get("status"),
		Priority: domain.Priority(q.Get("priority")),
		Query:    strings.TrimSpace(q.Get("q")),
	}
	switch f.Status {
	case "pending", "completed":
	default:
		f.Status = "all"
	}
	if !f.Priority.Valid() {
		f.Priority = ""
	}
	if id, err := strconv.Atoi(q.Get("category")); err == nil && id > 0 {
		f.CategoryID = id
	}
	return f
}

func (f ListFilter) Match(t *domain.Task) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Query)) {
		return false
	}
	switch f.Status {
	case "completed":
		if !t.Completed {
			return false
		}
	case "pending":
		if t.Completed {
			return false
		}
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.CategoryID != 0 && (t.CategoryID == nil || *t.CategoryID != f.CategoryID) {
		return false
	}
	return true
}

// With encodes the filter as query parameters, overriding key with value.
func (f ListFilter) With(key, value string) string {
	v := url.Values{}
	if f.Status != "all" {
		v.Set("status", f.Status)
	}
	if f.Priority != "" {
		v.Set("priority", string(f.Priority))
	}
	if f.CategoryID != 0 {
		v.Set("category", strconv.Itoa(f.CategoryID))
	}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	if value == "" || (key == "status" && value == "all") {
		v.Del(key)
	} else {
		v.Set(key, value)
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

type ListCounts struct {
	All       int
	Pending   int
	Completed int
}

// ListView is the model for the task list page.
type ListView struct {
	PageView
	Filter     ListFilter
	Counts     ListCounts
	Groups     []TaskGroup
	Matched    int
	Categories []CategoryView
	Choices    *FormChoices
	Today      string
}

func newListView(tasks []*domain.Task, cats []*domain.Category, filter ListFilter, now time.Time) ListView {
	view := ListView{
		PageView: PageView{Title: "Tasks", Active: "tasks"},
		Filter:   filter,
		Choices:  newFormChoices(cats),
		Today:    now.Format(dateLayout),
	}

	counts := categoryCounts(tasks)
	view.Categories = make([]CategoryView, len(cats))
	for i, c := range cats {
		view.Categories[i] = NewCategoryView(c, counts[c.ID], c.ID == filter.CategoryID, false)
	}

	matched := []*domain.Task{}
	for _, t := range tasks {
		view.Counts.All++
		if t.Completed {
			view.Counts.Completed++
		}
		if filter.Match(t) {
			matched = append(matched, t)
		}
	}
	view.Counts.Pending = view.Counts.All - view.Counts.Completed
	view.Matched = len(matched)
	view.Groups = groupTasks(matched, cats, view.Choices, now)
	return view
}

func (p *Presentation) RenderIndex(w io.Writer, view ListView) error {
	return p.tmpl.ExecuteTemplate(w, "index.html", view)
}

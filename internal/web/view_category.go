package web

import (
	"io"
	"strconv"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

// CategoryView is the view model for Category
type CategoryView struct {
	ID           int
	Name         string
	Color        string
	Icon         string
	TaskCount    int
	Active       bool // selected in the list filter
	OOB          bool
	DeleteButton DeleteButtonView
}

// NewCategoryView creates a CategoryView from a domain Category
func NewCategoryView(c *domain.Category, count int, active, oob bool) CategoryView {
	return CategoryView{
		ID:        c.ID,
		Name:      c.Name,
		Color:     c.Color,
		Icon:      c.Icon,
		TaskCount: count,
		Active:    active,
		OOB:       oob,
		DeleteButton: DeleteButtonView{
			URL:            "/categories/" + strconv.Itoa(c.ID),
			Target:         "#category-" + strconv.Itoa(c.ID),
			ConfirmMessage: "Delete this category? Its tasks become uncategorized.",
			ButtonText:     "×",
		},
	}
}

// categoryIndex keys categories by id for view lookups.
func categoryIndex(cats []*domain.Category) map[int]*domain.Category {
	idx := make(map[int]*domain.Category, len(cats))
	for _, c := range cats {
		idx[c.ID] = c
	}
	return idx
}

// categoryCounts counts tasks per category id.
func categoryCounts(tasks []*domain.Task) map[int]int {
	counts := make(map[int]int)
	for _, t := range tasks {
		if t.CategoryID != nil {
			counts[*t.CategoryID]++
		}
	}
	return counts
}

// RenderCategory renders a single category entry from its view model
func (p *Presentation) RenderCategory(w io.Writer, view CategoryView) error {
	return p.tmpl.ExecuteTemplate(w, "category_item", view)
}

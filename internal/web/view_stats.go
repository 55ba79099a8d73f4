package web

import (
	"io"
	"sort"
	"strconv"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

// StatRow is one bar in a distribution chart.
type StatRow struct {
	Label   string
	Color   string
	Count   int
	Percent int // share of the largest row, for bar widths
}

type TrendRow struct {
	Label   string
	Count   int
	Percent int
}

type StatsView struct {
	PageView
	Stats           domain.Statistics
	CompletionLabel string
	CompletionTone  string // good, fair, poor
	OverdueLabel    string
	OverdueTone     string
	TopCategory     string
	TopPriority     string
	Categories      []StatRow
	Priorities      []StatRow
	Trend           []TrendRow
}

// CompletionLabel grades a completion rate.
func CompletionLabel(rate float64) (label, tone string) {
	switch {
	case rate >= 70:
		return "Excellent", "good"
	case rate >= 40:
		return "Good", "fair"
	default:
		return "Needs Improvement", "poor"
	}
}

// OverdueLabel grades an overdue count.
func OverdueLabel(overdue int) (label, tone string) {
	switch {
	case overdue == 0:
		return "On Track", "good"
	case overdue <= 2:
		return "Minor Issues", "fair"
	default:
		return "Attention Needed", "poor"
	}
}

func newStatsView(stats domain.Statistics, cats []*domain.Category) StatsView {
	view := StatsView{
		PageView:    PageView{Title: "Statistics", Active: "stats"},
		Stats:       stats,
		TopCategory: "N/A",
		TopPriority: "N/A",
	}
	view.CompletionLabel, view.CompletionTone = CompletionLabel(stats.CompletionRate)
	view.OverdueLabel, view.OverdueTone = OverdueLabel(stats.OverdueTasks)

	idx := categoryIndex(cats)
	for key, count := range stats.CategoryStats {
		row := StatRow{Label: "Uncategorized", Color: "#9CA3AF", Count: count}
		if id, err := strconv.Atoi(key); err == nil {
			row.Label = "Category " + key
			if c, ok := idx[id]; ok {
				row.Label, row.Color = c.Name, c.Color
			}
		}
		view.Categories = append(view.Categories, row)
	}
	sort.SliceStable(view.Categories, func(i, j int) bool {
		if view.Categories[i].Count != view.Categories[j].Count {
			return view.Categories[i].Count > view.Categories[j].Count
		}
		return view.Categories[i].Label < view.Categories[j].Label
	})
	if len(view.Categories) > 0 {
		view.TopCategory = view.Categories[0].Label
	}

	for _, p := range domain.Priorities {
		if count := stats.PriorityStats[p]; count > 0 {
			view.Priorities = append(view.Priorities, StatRow{Label: string(p), Count: count})
		}
	}
	top := 0
	for _, row := range view.Priorities {
		if row.Count > top {
			top = row.Count
			view.TopPriority = row.Label
		}
	}

	for _, point := range stats.CompletionTrend {
		view.Trend = append(view.Trend, TrendRow{
			Label: point.Date.Format("Mon 2"),
			Count: point.Completed,
		})
	}

	scaleRows(view.Categories)
	scaleRows(view.Priorities)
	peak := 0
	for _, t := range view.Trend {
		peak = max(peak, t.Count)
	}
	for i := range view.Trend {
		if peak > 0 {
			view.Trend[i].Percent = view.Trend[i].Count * 100 / peak
		}
	}
	return view
}

func scaleRows(rows []StatRow) {
	peak := 0
	for _, r := range rows {
		peak = max(peak, r.Count)
	}
	if peak == 0 {
		return
	}
	for i := range rows {
		rows[i].Percent = rows[i].Count * 100 / peak
	}
}

func (p *Presentation) RenderStats(w io.Writer, view StatsView) error {
	return p.tmpl.ExecuteTemplate(w, "stats.html", view)
}

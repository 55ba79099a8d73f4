package domain

import (
	"math"
	"strconv"
	"time"
)

// UncategorizedKey is the CategoryStats key for tasks without a category.
const UncategorizedKey = "uncategorized"

const (
	trendDays         = 7
	monthlyWindowDays = 30
)

type TrendPoint struct {
	Date      time.Time `json:"date"`
	Completed int       `json:"completed"`
}

type Statistics struct {
	TotalTasks             int              `json:"total_tasks"`
	CompletedTasks         int              `json:"completed_tasks"`
	CompletionRate         float64          `json:"completion_rate"`
	OverdueTasks           int              `json:"overdue_tasks"`
	CategoryStats          map[string]int   `json:"category_stats"`
	PriorityStats          map[Priority]int `json:"priority_stats"`
	CompletionTrend        []TrendPoint     `json:"completion_trend"`
	MonthlyCompletionRate  float64          `json:"monthly_completion_rate"`
	AvgCompletionTimeHours float64          `json:"avg_completion_time_hours"`
}

// CategoryKey is the CategoryStats key for a task.
func CategoryKey(id *int) string {
	if id == nil {
		return UncategorizedKey
	}
	return strconv.Itoa(*id)
}

// ComputeStatistics derives dashboard metrics from the whole collection.
// Day boundaries use now's location.
func ComputeStatistics(tasks []*Task, now time.Time) Statistics {
	stats := Statistics{
		TotalTasks:    len(tasks),
		CategoryStats: map[string]int{},
		PriorityStats: map[Priority]int{},
	}

	today := StartOfDay(now)
	trend := make([]TrendPoint, trendDays)
	for i := range trend {
		trend[i].Date = today.AddDate(0, 0, i-(trendDays-1))
	}

	monthStart := now.AddDate(0, 0, -monthlyWindowDays)
	var monthTotal, monthCompleted int
	var completionHours float64
	var timedCompletions int

	for _, t := range tasks {
		if t.Completed {
			stats.CompletedTasks++
		} else if t.DueDate != nil && t.DueDate.Before(now) {
			stats.OverdueTasks++
		}

		stats.CategoryStats[CategoryKey(t.CategoryID)]++
		stats.PriorityStats[t.Priority]++

		if t.CompletedAt != nil {
			day := StartOfDay(t.CompletedAt.In(now.Location()))
			for i := range trend {
				if day.Equal(trend[i].Date) {
					trend[i].Completed++
					break
				}
			}
		}

		if !t.CreatedAt.Before(monthStart) {
			monthTotal++
			if t.Completed {
				monthCompleted++
			}
		}

		if t.Completed && t.CompletedAt != nil && !t.CreatedAt.IsZero() {
			completionHours += t.CompletedAt.Sub(t.CreatedAt).Hours()
			timedCompletions++
		}
	}

	stats.CompletionTrend = trend
	stats.CompletionRate = rate(stats.CompletedTasks, stats.TotalTasks)
	stats.MonthlyCompletionRate = rate(monthCompleted, monthTotal)
	if timedCompletions > 0 {
		stats.AvgCompletionTimeHours = round1(completionHours / float64(timedCompletions))
	}
	return stats
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay is the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(100 * float64(part) / float64(total))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	"github.com/charmbracelet/log"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const daysLateKey = "%d days late"

func newPrinter() *message.Printer {
	b := catalog.NewBuilder()
	_ = b.Set(language.English, daysLateKey, plural.Selectf(1, "%d",
		"=1", "%d day late",
		"other", "%d days late",
	))
	return message.NewPrinter(language.English, message.Catalog(b))
}

// Reporter builds the periodic statistics summary and the daily digest of
// overdue and due-today tasks.
type Reporter struct {
	tasks      *TaskService
	categories *CategoryService
	logger     *log.Logger
	printer    *message.Printer
}

func NewReporter(tasks *TaskService, categories *CategoryService, logger *log.Logger) *Reporter {
	return &Reporter{
		tasks:      tasks,
		categories: categories,
		logger:     logger.WithPrefix("report"),
		printer:    newPrinter(),
	}
}

func (r *Reporter) Summary(ctx context.Context) (string, error) {
	stats, err := r.tasks.Statistics(ctx)
	if err != nil {
		return "", err
	}
	return r.printer.Sprintf("%d tasks, %d completed (%.1f%%), %d overdue, avg completion %.1fh",
		stats.TotalTasks,
		stats.CompletedTasks,
		stats.CompletionRate,
		stats.OverdueTasks,
		stats.AvgCompletionTimeHours,
	), nil
}

// Digest lists open tasks that are overdue or due today as of now.
func (r *Reporter) Digest(ctx context.Context, now time.Time) (string, error) {
	all, err := r.tasks.All(ctx)
	if err != nil {
		return "", err
	}
	names, err := r.categories.Names(ctx)
	if err != nil {
		return "", err
	}

	endOfDay := domain.EndOfDay(now)
	var overdue, dueToday []*domain.Task
	for _, t := range all {
		if t.Completed || t.DueDate == nil {
			continue
		}
		switch {
		case t.DueDate.Before(now):
			overdue = append(overdue, t)
		case !t.DueDate.After(endOfDay):
			dueToday = append(dueToday, t)
		}
	}
	byDue := func(list []*domain.Task) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].DueDate.Before(*list[j].DueDate)
		})
	}
	byDue(overdue)
	byDue(dueToday)

	var b strings.Builder
	b.WriteString(r.printer.Sprintf("Digest for %s\n", now.Format("Mon Jan 2")))
	r.writeSection(&b, "Overdue", overdue, names, now)
	r.writeSection(&b, "Due today", dueToday, names, now)
	return strings.TrimSpace(b.String()), nil
}

func (r *Reporter) writeSection(b *strings.Builder, title string, list []*domain.Task, names map[int]string, now time.Time) {
	b.WriteString(r.printer.Sprintf("%s (%d)\n", title, len(list)))
	if len(list) == 0 {
		b.WriteString("  none\n")
		return
	}
	for _, t := range list {
		b.WriteString("  - ")
		b.WriteString(t.Title)
		if t.CategoryID != nil {
			if name, ok := names[*t.CategoryID]; ok && name != "" {
				b.WriteString(" [" + name + "]")
			}
		}
		due := t.DueDate.In(now.Location())
		switch days := daysLate(due, now); {
		case days > 0:
			b.WriteString(" (" + r.printer.Sprintf(daysLateKey, days) + ")")
		case due.Before(now):
			b.WriteString(" (late since " + due.Format("15:04") + ")")
		default:
			b.WriteString(" (due " + due.Format("15:04") + ")")
		}
		b.WriteByte('\n')
	}
}

// daysLate counts calendar days between due and now, so anything due
// yesterday is one day late regardless of the hour.
func daysLate(due, now time.Time) int {
	d := domain.StartOfDay(now).Sub(domain.StartOfDay(due))
	return int(math.Round(d.Hours() / 24))
}

// LogSummary is the body of the interval job.
func (r *Reporter) LogSummary(ctx context.Context) {
	summary, err := r.Summary(ctx)
	if err != nil {
		r.logger.Error("summary failed", "err", err)
		return
	}
	r.logger.Info(summary)
}

// LogDigest is the body of the daily job.
func (r *Reporter) LogDigest(ctx context.Context) {
	digest, err := r.Digest(ctx, r.tasks.Now())
	if err != nil {
		r.logger.Error("digest failed", "err", err)
		return
	}
	for _, line := range strings.Split(digest, "\n") {
		r.logger.Info(line)
	}
}

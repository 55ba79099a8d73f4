package store

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed seed/schema.json seed/default.json
var seedFS embed.FS

const seedSchemaURL = "seed.schema.json"

// Seed is the startup data set. Dates are relative to the load time so the
// demo data never goes stale.
type Seed struct {
	Categories []SeedCategory `json:"categories"`
	Tasks      []SeedTask     `json:"tasks"`
}

type SeedCategory struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type SeedTask struct {
	ID               int             `json:"id"`
	Title            string          `json:"title"`
	Priority         domain.Priority `json:"priority"`
	CategoryID       *int            `json:"category_id"`
	DueInDays        *int            `json:"due_in_days"`
	CreatedDaysAgo   int             `json:"created_days_ago"`
	CompletedDaysAgo *int            `json:"completed_days_ago"`
	Recurrence       *SeedRecurrence `json:"recurrence"`
	Subtasks         []SeedSubtask   `json:"subtasks"`
}

type SeedRecurrence struct {
	Pattern    domain.RecurrencePattern `json:"pattern"`
	Frequency  int                      `json:"frequency"`
	EndsInDays *int                     `json:"ends_in_days"`
}

type SeedSubtask struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// SeedError lists every schema violation found in a seed document.
type SeedError struct {
	Problems []string
}

func (e *SeedError) Error() string {
	return "invalid seed: " + strings.Join(e.Problems, "; ")
}

// DefaultSeed returns the embedded demo data set.
func DefaultSeed() []byte {
	data, err := seedFS.ReadFile("seed/default.json")
	if err != nil {
		panic(fmt.Sprintf("embedded seed missing: %v", err))
	}
	return data
}

// ParseSeed validates data against the seed schema and decodes it.
func ParseSeed(data []byte) (*Seed, error) {
	schemaData, err := seedFS.ReadFile("seed/schema.json")
	if err != nil {
		return nil, fmt.Errorf("read seed schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(seedSchemaURL, bytes.NewReader(schemaData)); err != nil {
		return nil, fmt.Errorf("load seed schema: %w", err)
	}
	schema, err := compiler.Compile(seedSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		seedErr := &SeedError{}
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			collectSeedProblems(seedErr, ve)
		} else {
			seedErr.Problems = append(seedErr.Problems, err.Error())
		}
		return nil, seedErr
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &seed, nil
}

func collectSeedProblems(out *SeedError, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out.Problems = append(out.Problems, fmt.Sprintf("%s: %s", loc, err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectSeedProblems(out, cause)
	}
}

// Build turns the seed into domain values anchored at now. Task ids are left
// at zero unless the seed pins them.
func (s *Seed) Build(now time.Time) ([]*domain.Category, []*domain.Task) {
	categories := make([]*domain.Category, 0, len(s.Categories))
	for _, c := range s.Categories {
		cat := &domain.Category{
			ID:    c.ID,
			Name:  c.Name,
			Color: c.Color,
			Icon:  c.Icon,
		}
		if cat.Color == "" {
			cat.Color = domain.DefaultCategoryColor
		}
		if cat.Icon == "" {
			cat.Icon = domain.DefaultCategoryIcon
		}
		categories = append(categories, cat)
	}

	day := domain.StartOfDay(now)
	tasks := make([]*domain.Task, 0, len(s.Tasks))
	for _, st := range s.Tasks {
		t := &domain.Task{
			ID:         st.ID,
			Title:      st.Title,
			Priority:   st.Priority,
			CategoryID: st.CategoryID,
			CreatedAt:  now.AddDate(0, 0, -st.CreatedDaysAgo),
			Subtasks:   []*domain.Subtask{},
		}
		if t.Priority == "" {
			t.Priority = domain.PriorityMedium
		}
		if st.DueInDays != nil {
			// Due at end of the working day.
			due := day.AddDate(0, 0, *st.DueInDays).Add(17 * time.Hour)
			t.DueDate = &due
		}
		if st.Recurrence != nil {
			r := &domain.Recurrence{
				Pattern:   st.Recurrence.Pattern,
				Frequency: max(st.Recurrence.Frequency, 1),
			}
			if st.Recurrence.EndsInDays != nil {
				end := day.AddDate(0, 0, *st.Recurrence.EndsInDays)
				r.EndDate = &end
			}
			t.Recurrence = r
		}

		subs := make([]*domain.Subtask, len(st.Subtasks))
		for i, sub := range st.Subtasks {
			subs[i] = &domain.Subtask{Title: sub.Title, Completed: sub.Completed}
		}
		completedAt := now
		if st.CompletedDaysAgo != nil {
			completedAt = now.AddDate(0, 0, -*st.CompletedDaysAgo)
			t.SetCompleted(true, completedAt)
		}
		if len(subs) > 0 {
			if t.Completed {
				for _, sub := range subs {
					sub.Completed = true
				}
			}
			t.SetSubtasks(subs, completedAt)
		}
		tasks = append(tasks, t)
	}
	return categories, tasks
}

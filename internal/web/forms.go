package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	"git.sr.ht/~jakintosh/taskflow/internal/service"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	// Date-only due dates land at this local time.
	defaultDueTime = "17:00"
)

// parseDate accepts RFC3339 or YYYY-MM-DD. Date-only values are midnight in
// loc.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, domain.Validation("invalid date %q, expected YYYY-MM-DD or RFC3339", value)
}

func isDateOnly(value string) bool {
	_, err := time.Parse(dateLayout, strings.TrimSpace(value))
	return err == nil
}

// parseRangeEnd is parseDate, except a date-only value covers the whole day.
func parseRangeEnd(value string, loc *time.Location) (time.Time, error) {
	t, err := parseDate(value, loc)
	if err != nil {
		return t, err
	}
	if isDateOnly(value) {
		return domain.EndOfDay(t), nil
	}
	return t, nil
}

// parseDueDate combines a date input with an optional HH:MM time input.
func parseDueDate(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := parseDate(date, loc)
	if err != nil {
		return day, err
	}
	if !isDateOnly(date) {
		return day, nil
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = defaultDueTime
	}
	tod, err := time.Parse(timeLayout, clock)
	if err != nil {
		return day, domain.Validation("invalid time %q, expected HH:MM", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, loc), nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domain.Validation("title is required")
	}
	return title, nil
}

func validatePriority(p domain.Priority) error {
	if p != "" && !p.Valid() {
		return domain.Validation("unknown priority %q", p)
	}
	return nil
}

func validatePattern(p domain.RecurrencePattern) error {
	if !p.Valid() {
		return domain.Validation("unknown recurrence pattern %q", p)
	}
	return nil
}

func parseID(value string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, domain.Validation("invalid id %q", value)
	}
	return id, nil
}

// formIDs reads every "id" value, skipping blanks and junk.
func formIDs(r *http.Request) []int {
	ids := []int{}
	for _, raw := range r.Form["id"] {
		if id, err := parseID(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// taskInputFromForm reads the create form.
func taskInputFromForm(r *http.Request, loc *time.Location) (service.TaskInput, error) {
	var in service.TaskInput
	title, err := validateTitle(r.PostFormValue("title"))
	if err != nil {
		return in, err
	}
	in.Title = title

	in.Priority = domain.Priority(r.PostFormValue("priority"))
	if err := validatePriority(in.Priority); err != nil {
		return in, err
	}

	if raw := strings.TrimSpace(r.PostFormValue("category_id")); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return in, err
		}
		in.CategoryID = &id
	}

	if raw := strings.TrimSpace(r.PostFormValue("due_date")); raw != "" {
		due, err := parseDueDate(raw, r.PostFormValue("due_time"), loc)
		if err != nil {
			return in, err
		}
		in.DueDate = &due
	}

	rec, err := recurrenceFromForm(r, loc)
	if err != nil {
		return in, err
	}
	in.Recurrence = rec

	for _, line := range strings.Split(r.PostFormValue("subtasks"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			in.Subtasks = append(in.Subtasks, service.SubtaskInput{Title: line})
		}
	}
	return in, nil
}

// taskPatchFromForm reads the edit form. Fields missing from the form are
// left alone; present but empty optional fields are cleared.
func taskPatchFromForm(r *http.Request, loc *time.Location) (service.TaskPatch, error) {
	var patch service.TaskPatch
	has := func(key string) bool {
		_, ok := r.PostForm[key]
		return ok
	}

	if has("title") {
		title, err := validateTitle(r.PostFormValue("title"))
		if err != nil {
			return patch, err
		}
		patch.Title = &title
	}
	if has("priority") {
		p := domain.Priority(r.PostFormValue("priority"))
		if p == "" || !p.Valid() {
			return patch, domain.Validation("unknown priority %q", p)
		}
		patch.Priority = &p
	}
	if has("category_id") {
		if raw := strings.TrimSpace(r.PostFormValue("category_id")); raw == "" {
			patch.ClearCategory = true
		} else {
			id, err := parseID(raw)
			if err != nil {
				return patch, err
			}
			patch.CategoryID = &id
		}
	}
	if has("due_date") {
		if raw := strings.TrimSpace(r.PostFormValue("due_date")); raw == "" {
			patch.ClearDueDate = true
		} else {
			due, err := parseDueDate(raw, r.PostFormValue("due_time"), loc)
			if err != nil {
				return patch, err
			}
			patch.DueDate = &due
		}
	}
	if has("recurrence_pattern") {
		rec, err := recurrenceFromForm(r, loc)
		if err != nil {
			return patch, err
		}
		if rec == nil {
			patch.ClearRecurrence = true
		} else {
			patch.Recurrence = rec
		}
	}
	return patch, nil
}

func recurrenceFromForm(r *http.Request, loc *time.Location) (*domain.Recurrence, error) {
	pattern := domain.RecurrencePattern(strings.TrimSpace(r.PostFormValue("recurrence_pattern")))
	if pattern == "" {
		return nil, nil
	}
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}
	rec := &domain.Recurrence{Pattern: pattern, Frequency: 1}
	if raw := strings.TrimSpace(r.PostFormValue("recurrence_frequency")); raw != "" {
		freq, err := strconv.Atoi(raw)
		if err != nil {
			return nil, domain.Validation("invalid recurrence frequency %q", raw)
		}
		rec.Frequency = freq
	}
	if raw := strings.TrimSpace(r.PostFormValue("recurrence_end")); raw != "" {
		end, err := parseDate(raw, loc)
		if err != nil {
			return nil, err
		}
		rec.EndDate = &end
	}
	return rec, nil
}

func categoryInputFromForm(r *http.Request) (service.CategoryInput, error) {
	in := service.CategoryInput{
		Name:  strings.TrimSpace(r.PostFormValue("name")),
		Color: strings.TrimSpace(r.PostFormValue("color")),
		Icon:  strings.TrimSpace(r.PostFormValue("icon")),
	}
	return in, validateCategory(in.Name, in.Color)
}

func validateCategory(name, color string) error {
	if strings.TrimSpace(name) == "" {
		return domain.Validation("category name is required")
	}
	if color != "" && !validColor(color) {
		return domain.Validation("invalid color %q, expected #RGB or #RRGGBB", color)
	}
	return nil
}

func validColor(c string) bool {
	if len(c) != 4 && len(c) != 7 || c[0] != '#' {
		return false
	}
	for _, ch := range c[1:] {
		switch {
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'f', ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}

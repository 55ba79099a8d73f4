package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	"git.sr.ht/~jakintosh/taskflow/internal/service"
)

const maxBodyBytes = 1 << 20

func (s *Server) apiRoutes() {
	s.router.HandleFunc("GET /api/tasks", s.apiListTasks)
	s.router.HandleFunc("POST /api/tasks", s.apiCreateTask)
	s.router.HandleFunc("GET /api/tasks/range", s.apiTasksInRange)
	s.router.HandleFunc("GET /api/tasks/on", s.apiTasksOn)
	s.router.HandleFunc("POST /api/tasks/bulk-delete", s.apiBulkDelete)
	s.router.HandleFunc("POST /api/tasks/bulk-complete", s.apiBulkComplete)
	s.router.HandleFunc("GET /api/tasks/{id}", s.apiGetTask)
	s.router.HandleFunc("PATCH /api/tasks/{id}", s.apiUpdateTask)
	s.router.HandleFunc("DELETE /api/tasks/{id}", s.apiDeleteTask)
	s.router.HandleFunc("POST /api/tasks/{id}/toggle", s.apiToggleTask)
	s.router.HandleFunc("POST /api/tasks/{id}/recurrences", s.apiGenerateRecurring)
	s.router.HandleFunc("GET /api/tasks/{id}/progress", s.apiProgress)
	s.router.HandleFunc("GET /api/tasks/{id}/subtasks", s.apiListSubtasks)
	s.router.HandleFunc("POST /api/tasks/{id}/subtasks", s.apiCreateSubtask)
	s.router.HandleFunc("POST /api/tasks/{id}/subtasks/reorder", s.apiReorderSubtasks)
	s.router.HandleFunc("PATCH /api/tasks/{id}/subtasks/{sid}", s.apiUpdateSubtask)
	s.router.HandleFunc("DELETE /api/tasks/{id}/subtasks/{sid}", s.apiDeleteSubtask)
	s.router.HandleFunc("GET /api/statistics", s.apiStatistics)
	s.router.HandleFunc("GET /api/categories", s.apiListCategories)
	s.router.HandleFunc("POST /api/categories", s.apiCreateCategory)
	s.router.HandleFunc("GET /api/categories/{id}", s.apiGetCategory)
	s.router.HandleFunc("PATCH /api/categories/{id}", s.apiUpdateCategory)
	s.router.HandleFunc("DELETE /api/categories/{id}", s.apiDeleteCategory)
}

type apiError struct {
	Error    string            `json:"error"`
	Code     domain.Code       `json:"code"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := apiError{Error: err.Error(), Code: domain.CodeUnknown}
	var derr *domain.Error
	if errors.As(err, &derr) {
		body.Code = derr.Code
		body.Metadata = derr.Metadata
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", "path", r.URL.Path, "request_id", r.Header.Get(requestIDHeader), "err", err)
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON value, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validation("request body is empty")
		}
		return domain.Validation("invalid JSON body: %v", err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Tasks

type recurrenceRequest struct {
	Pattern   domain.RecurrencePattern `json:"pattern"`
	Frequency int                      `json:"frequency"`
	EndDate   string                   `json:"end_date"`
}

type taskRequest struct {
	Title      string                 `json:"title"`
	Priority   domain.Priority        `json:"priority"`
	CategoryID *int                   `json:"category_id"`
	DueDate    string                 `json:"due_date"`
	Recurrence *recurrenceRequest     `json:"recurrence"`
	Subtasks   []service.SubtaskInput `json:"subtasks"`
}

type idsRequest struct {
	IDs []int `json:"ids"`
}

func (s *Server) recurrenceFromRequest(req *recurrenceRequest) (*domain.Recurrence, error) {
	if req == nil {
		return nil, nil
	}
	if err := validatePattern(req.Pattern); err != nil {
		return nil, err
	}
	rec := &domain.Recurrence{Pattern: req.Pattern, Frequency: req.Frequency}
	if req.EndDate != "" {
		end, err := parseDate(req.EndDate, s.location())
		if err != nil {
			return nil, err
		}
		rec.EndDate = &end
	}
	return rec, nil
}

func (s *Server) apiListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.All(r.Context())
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	filter := parseListFilter(r)
	matched := []*domain.Task{}
	for _, t := range tasks {
		if filter.Match(t) {
			matched = append(matched, t)
		}
	}
	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) apiCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.apiError(w, r, err)
		return
	}
	input, err := s.taskInputFromRequest(r, req)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	task, err := s.tasks.Create(r.Context(), input)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) taskInputFromRequest(r *http.Request, req taskRequest) (service.TaskInput, error) {
	var in service.TaskInput
	title, err := validateTitle(req.Title)
	if err != nil {
		return in, err
	}
	if err := validatePriority(req.Priority); err != nil {
		return in, err
	}
	in = service.TaskInput{
		Title:      title,
		Priority:   req.Priority,
		CategoryID: req.CategoryID,
		Subtasks:   req.Subtasks,
	}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate, s.location())
		if err != nil {
			return in, err
		}
		in.DueDate = &due
	}
	in.Recurrence, err = s.recurrenceFromRequest(req.Recurrence)
	return in, err
}

func (s *Server) apiGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) apiUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	var fields map[string]json.RawMessage
	if err := decodeJSON(r, &fields); err != nil {
		s.apiError(w, r, err)
		return
	}
	patch, err := s.taskPatchFromJSON(r, fields)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	task, err := s.tasks.Update(r.Context(), id, patch)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// taskPatchFromJSON turns a PATCH body into a TaskPatch. Absent keys are
// untouched and null clears optional fields.
func (s *Server) taskPatchFromJSON(r *http.Request, fields map[string]json.RawMessage) (service.TaskPatch, error) {
	var patch service.TaskPatch
	for key, raw := range fields {
		if err := s.applyPatchField(r, &patch, key, raw); err != nil {
			return patch, err
		}
	}
	return patch, nil
}

func (s *Server) applyPatchField(r *http.Request, patch *service.TaskPatch, key string, raw json.RawMessage) error {
	invalid := func(err error) error {
		return domain.Validation("invalid %s: %v", key, err)
	}
	switch key {
	case "title":
		var title string
		if err := json.Unmarshal(raw, &title); err != nil {
			return invalid(err)
		}
		title, err := validateTitle(title)
		if err != nil {
			return err
		}
		patch.Title = &title
	case "completed":
		var done bool
		if isNull(raw) {
			return domain.Validation("completed cannot be null")
		}
		if err := json.Unmarshal(raw, &done); err != nil {
			return invalid(err)
		}
		patch.Completed = &done
	case "priority":
		var p domain.Priority
		if err := json.Unmarshal(raw, &p); err != nil {
			return invalid(err)
		}
		if p == "" || !p.Valid() {
			return domain.Validation("unknown priority %q", p)
		}
		patch.Priority = &p
	case "category_id":
		if isNull(raw) {
			patch.ClearCategory = true
			return nil
		}
		var id int
		if err := json.Unmarshal(raw, &id); err != nil {
			return invalid(err)
		}
		patch.CategoryID = &id
	case "due_date":
		if isNull(raw) {
			patch.ClearDueDate = true
			return nil
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return invalid(err)
		}
		due, err := parseDate(value, s.location())
		if err != nil {
			return err
		}
		patch.DueDate = &due
	case "recurrence":
		if isNull(raw) {
			patch.ClearRecurrence = true
			return nil
		}
		var req recurrenceRequest
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return invalid(err)
		}
		rec, err := s.recurrenceFromRequest(&req)
		if err != nil {
			return err
		}
		patch.Recurrence = rec
	case "subtasks":
		var subs []domain.Subtask
		if err := json.Unmarshal(raw, &subs); err != nil {
			return invalid(err)
		}
		if subs == nil {
			subs = []domain.Subtask{}
		}
		for _, sub := range subs {
			if strings.TrimSpace(sub.Title) == "" {
				return domain.Validation("subtask title is required")
			}
		}
		patch.Subtasks = subs
	default:
		return domain.Validation("unknown field %q", key)
	}
	return nil
}

func (s *Server) apiDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	task, err := s.tasks.Delete(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) apiToggleTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	task, err := s.tasks.ToggleComplete(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) apiBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.apiError(w, r, err)
		return
	}
	deleted, err := s.tasks.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

func (s *Server) apiBulkComplete(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.apiError(w, r, err)
		return
	}
	updated, err := s.tasks.BulkComplete(r.Context(), req.IDs)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) apiTasksInRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		s.apiError(w, r, domain.Validation("start and end are required"))
		return
	}
	start, err := parseDate(q.Get("start"), s.location())
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	end, err := parseRangeEnd(q.Get("end"), s.location())
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	tasks, err := s.tasks.ByDateRange(r.Context(), start, end)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) apiTasksOn(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("date")
	if value == "" {
		s.apiError(w, r, domain.Validation("date is required"))
		return
	}
	day, err := parseDate(value, s.location())
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	tasks, err := s.tasks.ByDate(r.Context(), day.In(s.location()))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) apiGenerateRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	parent, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	generated, err := s.tasks.GenerateRecurring(r.Context(), parent)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, generated)
}

func (s *Server) apiProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	progress, err := s.tasks.Progress(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) apiStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tasks.Statistics(r.Context())
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Subtasks

func (s *Server) subtaskPath(r *http.Request) (taskID, subID int, err error) {
	if taskID, err = pathID(r, "id"); err != nil {
		return 0, 0, err
	}
	if subID, err = pathID(r, "sid"); err != nil {
		return 0, 0, err
	}
	return taskID, subID, nil
}

func (s *Server) apiListSubtasks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	subs, err := s.tasks.Subtasks(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) apiCreateSubtask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	var input service.SubtaskInput
	if err := decodeJSON(r, &input); err != nil {
		s.apiError(w, r, err)
		return
	}
	if input.Title, err = validateTitle(input.Title); err != nil {
		s.apiError(w, r, err)
		return
	}
	sub, err := s.tasks.CreateSubtask(r.Context(), id, input)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) apiUpdateSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, subID, err := s.subtaskPath(r)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	var patch service.SubtaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.apiError(w, r, err)
		return
	}
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		patch.Title = &title
	}
	sub, err := s.tasks.UpdateSubtask(r.Context(), taskID, subID, patch)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) apiDeleteSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, subID, err := s.subtaskPath(r)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	sub, err := s.tasks.DeleteSubtask(r.Context(), taskID, subID)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) apiReorderSubtasks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.apiError(w, r, err)
		return
	}
	subs, err := s.tasks.ReorderSubtasks(r.Context(), id, req.IDs)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Categories

func (s *Server) apiListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.All(r.Context())
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) apiGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	cat, err := s.categories.Get(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) apiCreateCategory(w http.ResponseWriter, r *http.Request) {
	var input service.CategoryInput
	if err := decodeJSON(r, &input); err != nil {
		s.apiError(w, r, err)
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validateCategory(input.Name, input.Color); err != nil {
		s.apiError(w, r, err)
		return
	}
	cat, err := s.categories.Create(r.Context(), input)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) apiUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	var patch service.CategoryPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.apiError(w, r, err)
		return
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			s.apiError(w, r, domain.Validation("category name is required"))
			return
		}
		patch.Name = &name
	}
	if patch.Color != nil && !validColor(*patch.Color) {
		s.apiError(w, r, domain.Validation("invalid color %q, expected #RGB or #RRGGBB", *patch.Color))
		return
	}
	cat, err := s.categories.Update(r.Context(), id, patch)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) apiDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	cat, err := s.categories.Delete(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

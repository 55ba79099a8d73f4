package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	"git.sr.ht/~jakintosh/taskflow/internal/service"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

type Options struct {
	Logger    *log.Logger
	RateLimit float64 // requests per second per client, 0 disables
	RateBurst int
}

type Server struct {
	tasks        *service.TaskService
	categories   *service.CategoryService
	logger       *log.Logger
	router       *http.ServeMux
	handler      http.Handler
	presentation *Presentation
}

func NewServer(tasks *service.TaskService, categories *service.CategoryService, opts Options) (*Server, error) {
	pres, err := NewPresentation()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		tasks:        tasks,
		categories:   categories,
		logger:       logger.WithPrefix("http"),
		router:       http.NewServeMux(),
		presentation: pres,
	}
	s.routes()
	s.handler = Chain(s.router,
		RequestID(),
		RequestLogger(s.logger),
		RecoverPanic(s.logger),
		RateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
	)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Page Routes
	s.router.HandleFunc("GET /{$}", s.handleIndex)
	s.router.HandleFunc("GET /calendar", s.handleCalendar)
	s.router.HandleFunc("GET /stats", s.handleStats)
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Form/HTMX Routes
	s.router.HandleFunc("POST /tasks", s.handleCreateTask)
	s.router.HandleFunc("POST /tasks/bulk", s.handleBulkTasks)
	s.router.HandleFunc("POST /tasks/{id}", s.handleUpdateTask)
	s.router.HandleFunc("POST /tasks/{id}/toggle", s.handleToggleTask)
	s.router.HandleFunc("DELETE /tasks/{id}", s.handleDeleteTask)
	s.router.HandleFunc("POST /tasks/{id}/delete", s.handleDeleteTask)
	s.router.HandleFunc("POST /tasks/{id}/subtasks", s.handleCreateSubtask)
	s.router.HandleFunc("POST /tasks/{id}/subtasks/reorder", s.handleReorderSubtasks)
	s.router.HandleFunc("POST /tasks/{id}/subtasks/{sid}/toggle", s.handleToggleSubtask)
	s.router.HandleFunc("DELETE /tasks/{id}/subtasks/{sid}", s.handleDeleteSubtask)
	s.router.HandleFunc("POST /tasks/{id}/subtasks/{sid}/delete", s.handleDeleteSubtask)
	s.router.HandleFunc("POST /categories", s.handleCreateCategory)
	s.router.HandleFunc("DELETE /categories/{id}", s.handleDeleteCategory)
	s.router.HandleFunc("POST /categories/{id}/delete", s.handleDeleteCategory)

	s.apiRoutes()
}

func (s *Server) location() *time.Location {
	return s.tasks.Now().Location()
}

// statusFor maps domain error codes to HTTP statuses.
func statusFor(err error) int {
	var derr *domain.Error
	if errors.As(err, &derr) {
		switch derr.Code {
		case domain.CodeNotFound:
			return http.StatusNotFound
		case domain.CodeValidation:
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, context.Canceled) {
		return 499
	}
	return http.StatusInternalServerError
}

func (s *Server) httpError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", r.Header.Get(requestIDHeader), "err", err)
		msg = http.StatusText(status)
	}
	http.Error(w, msg, status)
}

func pathID(r *http.Request, name string) (int, error) {
	return parseID(r.PathValue(name))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.All(r.Context())
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	cats, err := s.categories.All(r.Context())
	if err != nil {
		s.httpError(w, r, err)
		return
	}

	view := newListView(tasks, cats, parseListFilter(r), s.tasks.Now())
	if err := s.presentation.RenderIndex(w, view); err != nil {
		s.httpError(w, r, err)
	}
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.tasks.Now()
	month := parseMonth(r.URL.Query().Get("month"), now)
	start, end := calendarBounds(month)

	tasks, err := s.tasks.ByDateRange(r.Context(), start, end)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	cats, err := s.categories.All(r.Context())
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if err := s.presentation.RenderCalendar(w, newCalendarView(month, tasks, cats, now)); err != nil {
		s.httpError(w, r, err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tasks.Statistics(r.Context())
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	cats, err := s.categories.All(r.Context())
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if err := s.presentation.RenderStats(w, newStatsView(stats, cats)); err != nil {
		s.httpError(w, r, err)
	}
}

// renderTaskRow answers an HTMX request with the task's row, or redirects a
// plain form post back.
func (s *Server) renderTaskRow(w http.ResponseWriter, r *http.Request, task *domain.Task) {
	ctx := parseRequestContext(r)
	if !ctx.WantsFragment() {
		redirectBack(w, r, "/")
		return
	}
	cats, err := s.categories.All(r.Context())
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	view := NewTaskView(task, categoryIndex(cats), s.tasks.Now(), false)
	view.Choices = newFormChoices(cats)
	if err := s.presentation.RenderTask(w, view); err != nil {
		s.httpError(w, r, err)
	}
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input, err := taskInputFromForm(r, s.location())
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if _, err := s.tasks.Create(r.Context(), input); err != nil {
		s.httpError(w, r, err)
		return
	}

	if parseRequestContext(r).WantsFragment() {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusCreated)
		return
	}
	redirectBack(w, r, "/")
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	patch, err := taskPatchFromForm(r, s.location())
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	task, err := s.tasks.Update(r.Context(), id, patch)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	s.renderTaskRow(w, r, task)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	task, err := s.tasks.ToggleComplete(r.Context(), id)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	s.renderTaskRow(w, r, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if _, err := s.tasks.Delete(r.Context(), id); err != nil {
		s.httpError(w, r, err)
		return
	}
	if parseRequestContext(r).WantsFragment() {
		// Empty body removes the row
		w.WriteHeader(http.StatusOK)
		return
	}
	redirectBack(w, r, "/")
}

func (s *Server) handleBulkTasks(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ids := formIDs(r)
	var err error
	switch action := r.PostFormValue("action"); action {
	case "delete":
		_, err = s.tasks.BulkDelete(r.Context(), ids)
	case "complete":
		_, err = s.tasks.BulkComplete(r.Context(), ids)
	default:
		err = domain.Validation("unknown bulk action %q", action)
	}
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if parseRequestContext(r).WantsFragment() {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	redirectBack(w, r, "/")
}

func (s *Server) handleCreateSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	title, err := validateTitle(r.PostFormValue("title"))
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if _, err := s.tasks.CreateSubtask(r.Context(), taskID, service.SubtaskInput{Title: title}); err != nil {
		s.httpError(w, r, err)
		return
	}
	s.refreshTaskRow(w, r, taskID)
}

func (s *Server) handleToggleSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	subID, err := pathID(r, "sid")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	updated, err := s.tasks.ToggleSubtask(r.Context(), taskID, subID)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	s.renderTaskRow(w, r, updated)
}

func (s *Server) handleDeleteSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	subID, err := pathID(r, "sid")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if _, err := s.tasks.DeleteSubtask(r.Context(), taskID, subID); err != nil {
		s.httpError(w, r, err)
		return
	}
	s.refreshTaskRow(w, r, taskID)
}

func (s *Server) handleReorderSubtasks(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.tasks.ReorderSubtasks(r.Context(), taskID, formIDs(r)); err != nil {
		s.httpError(w, r, err)
		return
	}
	s.refreshTaskRow(w, r, taskID)
}

func (s *Server) refreshTaskRow(w http.ResponseWriter, r *http.Request, taskID int) {
	if !parseRequestContext(r).WantsFragment() {
		redirectBack(w, r, "/")
		return
	}
	task, err := s.tasks.Get(r.Context(), taskID)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	s.renderTaskRow(w, r, task)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input, err := categoryInputFromForm(r)
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	cat, err := s.categories.Create(r.Context(), input)
	if err != nil {
		s.httpError(w, r, err)
		return
	}

	if !parseRequestContext(r).WantsFragment() {
		redirectBack(w, r, "/")
		return
	}
	if err := s.presentation.RenderCategory(w, NewCategoryView(cat, 0, false, false)); err != nil {
		s.httpError(w, r, err)
	}
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.httpError(w, r, err)
		return
	}
	if _, err := s.categories.Delete(r.Context(), id); err != nil {
		s.httpError(w, r, err)
		return
	}
	if parseRequestContext(r).WantsFragment() {
		// Tasks lost their label, so the whole list changes.
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	// The referring list may be filtered by the category that is now gone.
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

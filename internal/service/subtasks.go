package service

import (
	"context"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

// Subtask operations load the parent, mutate it through the domain helpers
// (which recompute the parent's completion) and save it back.

func (s *TaskService) Subtasks(ctx context.Context, taskID int) ([]*domain.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return task.Subtasks, nil
}

func (s *TaskService) CreateSubtask(ctx context.Context, taskID int, input SubtaskInput) (*domain.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	sub := task.AddSubtask(input.Title, input.Completed, s.now())
	if _, err := s.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *TaskService) UpdateSubtask(ctx context.Context, taskID, subtaskID int, patch SubtaskPatch) (*domain.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	sub, err := task.Subtask(subtaskID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		sub.Title = *patch.Title
	}
	if patch.Completed != nil {
		if err := task.ApplySubtaskChange(subtaskID, *patch.Completed, s.now()); err != nil {
			return nil, err
		}
	}
	if _, err := s.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplySubtaskChange sets one subtask's completion and returns the
// recomputed parent.
func (s *TaskService) ApplySubtaskChange(ctx context.Context, taskID, subtaskID int, done bool) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := task.ApplySubtaskChange(subtaskID, done, s.now()); err != nil {
		return nil, err
	}
	return s.store.SaveTask(ctx, task)
}

// ToggleSubtask flips one subtask's completion and returns the recomputed
// parent. The read and the write happen under one lock.
func (s *TaskService) ToggleSubtask(ctx context.Context, taskID, subtaskID int) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	sub, err := task.Subtask(subtaskID)
	if err != nil {
		return nil, err
	}
	if err := task.ApplySubtaskChange(subtaskID, !sub.Completed, s.now()); err != nil {
		return nil, err
	}
	return s.store.SaveTask(ctx, task)
}

func (s *TaskService) DeleteSubtask(ctx context.Context, taskID, subtaskID int) (*domain.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	removed, err := task.RemoveSubtask(subtaskID, s.now())
	if err != nil {
		return nil, err
	}
	if _, err := s.store.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *TaskService) ReorderSubtasks(ctx context.Context, taskID int, ids []int) ([]*domain.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.ReorderSubtasks(ids)
	saved, err := s.store.SaveTask(ctx, task)
	if err != nil {
		return nil, err
	}
	return saved.Subtasks, nil
}

func (s *TaskService) Progress(ctx context.Context, taskID int) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return domain.Progress{}, err
	}
	return task.Progress(), nil
}

package web

import (
	"strconv"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
)

// SubtaskView is the view model for Subtask
type SubtaskView struct {
	TaskID       int
	ID           int
	Title        string
	Completed    bool
	DeleteButton DeleteButtonView
}

// NewSubtaskView creates a SubtaskView from a domain Subtask
func NewSubtaskView(taskID int, s *domain.Subtask) SubtaskView {
	url := "/tasks/" + strconv.Itoa(taskID) + "/subtasks/" + strconv.Itoa(s.ID)
	return SubtaskView{
		TaskID:    taskID,
		ID:        s.ID,
		Title:     s.Title,
		Completed: s.Completed,
		DeleteButton: DeleteButtonView{
			URL:            url,
			Target:         "#task-" + strconv.Itoa(taskID),
			ConfirmMessage: "Delete this subtask?",
			ButtonText:     "×",
		},
	}
}

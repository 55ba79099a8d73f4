package web

// DeleteButtonView holds data for the delete button template fragment
type DeleteButtonView struct {
	URL            string // e.g., "/tasks/12"
	Target         string // element swapped with the response, e.g., "#task-12"
	ConfirmMessage string // e.g., "Delete this task?"
	ButtonText     string
}

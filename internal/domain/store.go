package domain

import "context"

// Store persists tasks and categories. Implementations hand out copies, so
// callers mutate a task and write it back with SaveTask.
//
// AddTask and AddCategory allocate the id when it is zero: one past the
// highest id the store has ever held, so ids are never reused.
type Store interface {
	ListTasks(ctx context.Context) ([]*Task, error)
	GetTask(ctx context.Context, id int) (*Task, error)
	AddTask(ctx context.Context, task *Task) (*Task, error)
	SaveTask(ctx context.Context, task *Task) (*Task, error)
	DeleteTask(ctx context.Context, id int) (*Task, error)

	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategory(ctx context.Context, id int) (*Category, error)
	AddCategory(ctx context.Context, cat *Category) (*Category, error)
	SaveCategory(ctx context.Context, cat *Category) (*Category, error)
	DeleteCategory(ctx context.Context, id int) (*Category, error)

	Close() error
}

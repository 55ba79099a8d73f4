package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/taskflow/internal/domain"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" databases intact.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			priority TEXT NOT NULL DEFAULT 'medium',
			category_id INTEGER,
			due_date TEXT,
			created_at TEXT NOT NULL,
			completed_at TEXT,
			recurrence_pattern TEXT,
			recurrence_frequency INTEGER,
			recurrence_end_date TEXT,
			parent_task_id INTEGER,
			subtask_seq INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS subtasks (
			task_id INTEGER NOT NULL,
			id INTEGER NOT NULL,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (task_id, id)
		);

		CREATE TABLE IF NOT EXISTS sequences (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);
	`)
	return err
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `
	id,
	title,
	completed,
	priority,
	category_id,
	due_date,
	created_at,
	completed_at,
	recurrence_pattern,
	recurrence_frequency,
	recurrence_end_date,
	parent_task_id,
	subtask_seq`

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t           domain.Task
		priority    string
		categoryID  sql.NullInt64
		dueDate     sql.NullString
		createdAt   string
		completedAt sql.NullString
		pattern     sql.NullString
		frequency   sql.NullInt64
		endDate     sql.NullString
		parentID    sql.NullInt64
	)
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Completed,
		&priority,
		&categoryID,
		&dueDate,
		&createdAt,
		&completedAt,
		&pattern,
		&frequency,
		&endDate,
		&parentID,
		&t.SubtaskSeq,
	); err != nil {
		return nil, err
	}

	var err error
	t.Priority = domain.Priority(priority)
	t.CategoryID = intPtr(categoryID)
	t.ParentTaskID = intPtr(parentID)
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("task %d created_at: %w", t.ID, err)
	}
	if t.DueDate, err = timePtr(dueDate); err != nil {
		return nil, fmt.Errorf("task %d due_date: %w", t.ID, err)
	}
	if t.CompletedAt, err = timePtr(completedAt); err != nil {
		return nil, fmt.Errorf("task %d completed_at: %w", t.ID, err)
	}
	if pattern.Valid {
		r := &domain.Recurrence{
			Pattern:   domain.RecurrencePattern(pattern.String),
			Frequency: int(frequency.Int64),
		}
		if r.EndDate, err = timePtr(endDate); err != nil {
			return nil, fmt.Errorf("task %d recurrence_end_date: %w", t.ID, err)
		}
		t.Recurrence = r
	}
	t.Subtasks = []*domain.Subtask{}
	return &t, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+taskColumns+`
		FROM tasks
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	byID := make(map[int]*domain.Task)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// get all subtasks
	subRows, err := s.db.QueryContext(ctx, `
		SELECT
			task_id,
			id,
			title,
			completed
		FROM subtasks
		ORDER BY task_id ASC, sort_order ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer subRows.Close()

	for subRows.Next() {
		var taskID int
		var sub domain.Subtask
		if err := subRows.Scan(
			&taskID,
			&sub.ID,
			&sub.Title,
			&sub.Completed,
		); err != nil {
			return nil, err
		}
		if t, ok := byID[taskID]; ok {
			t.Subtasks = append(t.Subtasks, &sub)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, err
	}

	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id int) (*domain.Task, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q queryer, id int) (*domain.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `
		SELECT`+taskColumns+`
		FROM tasks
		WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.TaskNotFound(id)
		}
		return nil, err
	}
	subs, err := getSubtasksForTask(ctx, q, id)
	if err != nil {
		return nil, err
	}
	t.Subtasks = subs
	return t, nil
}

func getSubtasksForTask(ctx context.Context, q queryer, taskID int) ([]*domain.Subtask, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT
			id,
			title,
			completed
		FROM subtasks
		WHERE task_id = ?
		ORDER BY sort_order ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []*domain.Subtask{}
	for rows.Next() {
		var sub domain.Subtask
		if err := rows.Scan(
			&sub.ID,
			&sub.Title,
			&sub.Completed,
		); err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) AddTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id := task.ID
	if id <= 0 {
		if id, err = nextID(ctx, tx, "tasks"); err != nil {
			return nil, err
		}
	}

	pattern, frequency, endDate := recurrenceColumns(task.Recurrence)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		task.Title,
		task.Completed,
		string(task.Priority),
		nullInt(task.CategoryID),
		nullTime(task.DueDate),
		task.CreatedAt.Format(time.RFC3339Nano),
		nullTime(task.CompletedAt),
		pattern,
		frequency,
		endDate,
		nullInt(task.ParentTaskID),
		task.SubtaskSeq,
	); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	if err := replaceSubtasks(ctx, tx, id, task.Subtasks); err != nil {
		return nil, err
	}
	if err := bumpSequence(ctx, tx, "tasks", id); err != nil {
		return nil, err
	}

	added, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *SQLiteStore) SaveTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	pattern, frequency, endDate := recurrenceColumns(task.Recurrence)
	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?,
			completed = ?,
			priority = ?,
			category_id = ?,
			due_date = ?,
			completed_at = ?,
			recurrence_pattern = ?,
			recurrence_frequency = ?,
			recurrence_end_date = ?,
			parent_task_id = ?,
			subtask_seq = ?
		WHERE id = ?`,
		task.Title,
		task.Completed,
		string(task.Priority),
		nullInt(task.CategoryID),
		nullTime(task.DueDate),
		nullTime(task.CompletedAt),
		pattern,
		frequency,
		endDate,
		nullInt(task.ParentTaskID),
		task.SubtaskSeq,
		task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.TaskNotFound(task.ID)
	}
	if err := replaceSubtasks(ctx, tx, task.ID, task.Subtasks); err != nil {
		return nil, err
	}

	saved, err := getTask(ctx, tx, task.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id int) (*domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	removed, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete subtasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

func replaceSubtasks(ctx context.Context, tx *sql.Tx, taskID int, subs []*domain.Subtask) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear subtasks: %w", err)
	}
	for i, sub := range subs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subtasks (task_id, id, title, completed, sort_order)
			VALUES (?, ?, ?, ?, ?)`,
			taskID,
			sub.ID,
			sub.Title,
			sub.Completed,
			i,
		); err != nil {
			return fmt.Errorf("insert subtask %d: %w", sub.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id,
			name,
			color,
			icon
		FROM categories
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Color,
			&c.Icon,
		); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (s *SQLiteStore) GetCategory(ctx context.Context, id int) (*domain.Category, error) {
	var c domain.Category
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			id,
			name,
			color,
			icon
		FROM categories
		WHERE id = ?`,
		id,
	).Scan(
		&c.ID,
		&c.Name,
		&c.Color,
		&c.Icon,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.CategoryNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) AddCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id := cat.ID
	if id <= 0 {
		if id, err = nextID(ctx, tx, "categories"); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO categories (id, name, color, icon)
		VALUES (?, ?, ?, ?)`,
		id,
		cat.Name,
		cat.Color,
		cat.Icon,
	); err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	if err := bumpSequence(ctx, tx, "categories", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	added := *cat
	added.ID = id
	return &added, nil
}

func (s *SQLiteStore) SaveCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	var updated domain.Category
	if err := s.db.QueryRowContext(ctx, `
		UPDATE categories
			SET name = ?,
				color = ?,
				icon = ?
			WHERE id = ?
		RETURNING
			id,
			name,
			color,
			icon`,
		cat.Name,
		cat.Color,
		cat.Icon,
		cat.ID,
	).Scan(
		&updated.ID,
		&updated.Name,
		&updated.Color,
		&updated.Icon,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.CategoryNotFound(cat.ID)
		}
		return nil, err
	}
	return &updated, nil
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, id int) (*domain.Category, error) {
	var removed domain.Category
	if err := s.db.QueryRowContext(ctx, `
		DELETE FROM categories
		WHERE id = ?
		RETURNING
			id,
			name,
			color,
			icon`,
		id,
	).Scan(
		&removed.ID,
		&removed.Name,
		&removed.Color,
		&removed.Icon,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.CategoryNotFound(id)
		}
		return nil, err
	}
	return &removed, nil
}

// nextID is one past the larger of the table's max id and its recorded
// high-water mark, so deleted ids are never handed out again.
func nextID(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var seq sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT value FROM sequences WHERE name = ?`, table).Scan(&seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read %s sequence: %w", table, err)
	}

	var maxID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(id) FROM `+table).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("read max %s id: %w", table, err)
	}
	return int(max(seq.Int64, maxID.Int64)) + 1, nil
}

func bumpSequence(ctx context.Context, tx *sql.Tx, name string, id int) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sequences (name, value)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = MAX(value, excluded.value)`,
		name,
		id,
	); err != nil {
		return fmt.Errorf("bump %s sequence: %w", name, err)
	}
	return nil
}

func recurrenceColumns(r *domain.Recurrence) (pattern, frequency, endDate any) {
	if r == nil {
		return nil, nil, nil
	}
	return string(r.Pattern), r.Frequency, nullTime(r.EndDate)
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Format(time.RFC3339Nano)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func timePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

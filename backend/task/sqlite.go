package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wthorbecke/gather/shared"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	steps       TEXT NOT NULL DEFAULT '[]',
	create_time TIMESTAMP NOT NULL,
	update_time TIMESTAMP NOT NULL
);
`

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to open task database")
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to create task schema")
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AddTask(ctx context.Context, title, category string, steps []Step) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:         uuid.New(),
		Title:      title,
		Category:   category,
		Steps:      steps,
		CreateTime: now,
		UpdateTime: now,
	}
	if t.Steps == nil {
		t.Steps = []Step{}
	}

	encoded, err := json.Marshal(t.Steps)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to encode steps")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, category, steps, create_time, update_time) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Title, t.Category, string(encoded), t.CreateTime, t.UpdateTime,
	)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to insert task")
	}

	return t, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, category, steps, create_time, update_time FROM tasks WHERE id = ?`,
		id.String(),
	)
	return scanTask(row)
}

func (s *SQLiteStore) GetTasks(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, category, steps, create_time, update_time FROM tasks ORDER BY create_time, rowid`,
	)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to query tasks")
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id uuid.UUID, update TaskUpdate) (*Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.Category != nil {
		t.Category = *update.Category
	}
	t.UpdateTime = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, category = ?, update_time = ? WHERE id = ?`,
		t.Title, t.Category, t.UpdateTime, id.String(),
	)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to update task")
	}

	return t, nil
}

func (s *SQLiteStore) AppendSteps(ctx context.Context, id uuid.UUID, steps []Step) (*Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	t.Steps = append(t.Steps, steps...)
	if err := s.writeSteps(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) ToggleStep(ctx context.Context, taskID, stepID uuid.UUID) error {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	step := t.Step(stepID)
	if step == nil {
		return ErrStepNotFound
	}
	step.Done = !step.Done

	return s.writeSteps(ctx, t)
}

func (s *SQLiteStore) writeSteps(ctx context.Context, t *Task) error {
	encoded, err := json.Marshal(t.Steps)
	if err != nil {
		return shared.Wrap(shared.ErrorSourceStore, err, "failed to encode steps")
	}

	t.UpdateTime = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET steps = ?, update_time = ? WHERE id = ?`,
		string(encoded), t.UpdateTime, t.ID.String(),
	)
	if err != nil {
		return shared.Wrap(shared.ErrorSourceStore, err, "failed to write steps")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		id       string
		title    string
		category string
		steps    string
		created  time.Time
		updated  time.Time
	)

	err := row.Scan(&id, &title, &category, &steps, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to scan task")
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "invalid task id %q", id)
	}

	t := &Task{
		ID:         parsedID,
		Title:      title,
		Category:   category,
		CreateTime: created,
		UpdateTime: updated,
	}
	if err := json.Unmarshal([]byte(steps), &t.Steps); err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to decode steps")
	}

	return t, nil
}

var _ Store = (*SQLiteStore)(nil)

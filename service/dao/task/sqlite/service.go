// Package sqlite stores kanban tasks in a SQLite database. Stage transitions
// use a compare-and-set UPDATE so a stale writer can never overwrite a newer
// stage.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao"
	"github.com/viant/deepresearch/service/dao/criteria"
	"github.com/viant/deepresearch/service/dao/task"

	_ "modernc.org/sqlite"
)

// Service implements task.Service with SQLite.
type Service struct {
	db *sql.DB
}

var _ task.Service = (*Service)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Service, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close releases the database.
func (s *Service) Close() error {
	return s.db.Close()
}

func (s *Service) Save(ctx context.Context, t *model.Task) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if t.ID == "" {
		return dao.ErrInvalidID
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks(id, stage, created_at, seq, updated_at, payload)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET stage = excluded.stage, created_at = excluded.created_at,
	seq = excluded.seq, updated_at = excluded.updated_at, payload = excluded.payload`,
		t.ID, string(t.Stage), t.CreatedAt.UnixNano(), t.Seq, t.UpdatedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

func (s *Service) Load(ctx context.Context, id string) (*model.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM tasks WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, dao.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	return decode(payload)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, dao.ErrNotFound)
	}
	return nil
}

// List returns tasks matching the stage parameters in FIFO order using the
// stage index.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Task, error) {
	query := `SELECT payload FROM tasks`
	var args []interface{}
	if stages := criteria.StageValues(parameters); len(stages) > 0 {
		placeholders := make([]string, len(stages))
		for i, stage := range stages {
			placeholders[i] = "?"
			args = append(args, string(stage))
		}
		query += ` WHERE stage IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at, seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var tasks []*model.Task
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t, err := decode(payload)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Swap updates the row only while its stage still equals expect.
func (s *Service) Swap(ctx context.Context, t *model.Task, expect model.Stage) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if t.ID == "" {
		return dao.ErrInvalidID
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET stage = ?, updated_at = ?, payload = ? WHERE id = ? AND stage = ?`,
		string(t.Stage), t.UpdatedAt.UnixNano(), string(payload), t.ID, string(expect))
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if n == 1 {
		return nil
	}
	var stage string
	err = s.db.QueryRowContext(ctx, `SELECT stage FROM tasks WHERE id = ?`, t.ID).Scan(&stage)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %s: %w", t.ID, dao.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read task %s: %w", t.ID, err)
	}
	return fmt.Errorf("task %s is %s, expected %s: %w", t.ID, stage, expect, dao.ErrConflict)
}

func decode(payload string) (*model.Task, error) {
	var t model.Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}

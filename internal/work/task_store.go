package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/cascade/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrTaskNotFound = errors.New("work: task not found")

const taskColumns = `id, COALESCE(objective_id, ''), title, description, rubric, status, start_date, due_date,
	owner_role_id, assigned_role_ids, priority, recent_comments, comments_count, feedbacks,
	resources, outputs, created_at, updated_at`

// TaskStore provides database operations for tasks.
type TaskStore struct {
	db database.Querier
}

// NewTaskStore creates a task store on a pool or a transaction.
func NewTaskStore(db database.Querier) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scan func(dest ...any) error) (*Task, error) {
	t := &Task{}
	var rubricJSON []byte
	err := scan(&t.ID, &t.ObjectiveID, &t.Title, &t.Description, &rubricJSON, &t.Status, &t.StartDate, &t.DueDate,
		&t.OwnerRoleID, &t.AssignedRolesIDs, &t.Priority, &t.RecentComments, &t.CommentsCount, &t.Feedbacks,
		&t.TaskResources, &t.TaskOutputs, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if len(rubricJSON) > 0 {
		if err := json.Unmarshal(rubricJSON, &t.TaskRubric); err != nil {
			return nil, fmt.Errorf("unmarshaling task rubric: %w", err)
		}
	}
	t.TaskRubric = nonNilSlice(t.TaskRubric)
	t.AssignedRolesIDs = nonNilSlice(t.AssignedRolesIDs)
	t.RecentComments = nonNilSlice(t.RecentComments)
	t.Feedbacks = nonNilSlice(t.Feedbacks)
	t.TaskResources = nonNilSlice(t.TaskResources)
	t.TaskOutputs = nonNilSlice(t.TaskOutputs)
	return t, nil
}

// Create inserts a task owned by ownerRoleID.
func (s *TaskStore) Create(ctx context.Context, ownerRoleID string, in TaskInput) (*Task, error) {
	rubricJSON, err := json.Marshal(nonNilSlice(in.TaskRubric))
	if err != nil {
		return nil, fmt.Errorf("marshaling task rubric: %w", err)
	}
	status := in.Status
	if status == "" {
		status = StatusToDo
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	t, err := scanTask(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO tasks (id, objective_id, title, description, rubric, status, start_date, due_date,
			                    owner_role_id, assigned_role_ids, priority)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING `+taskColumns,
			uuid.NewString(), nullableText(in.ObjectiveID), in.Title, in.Description, rubricJSON, status,
			in.StartDate, in.DueDate, ownerRoleID, nonNilSlice(in.AssignedRolesIDs), priority,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return t, nil
}

// GetByID retrieves a task by primary key.
func (s *TaskStore) GetByID(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(func(dest ...any) error {
		return s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

// ListOwned returns the tasks owned by roleID.
func (s *TaskStore) ListOwned(ctx context.Context, roleID string) ([]*Task, error) {
	return s.list(ctx, "listing owned tasks",
		`SELECT `+taskColumns+` FROM tasks WHERE owner_role_id = $1 ORDER BY created_at`, roleID)
}

// ListAssigned returns the tasks assigned to roleID.
func (s *TaskStore) ListAssigned(ctx context.Context, roleID string) ([]*Task, error) {
	return s.list(ctx, "listing assigned tasks",
		`SELECT `+taskColumns+` FROM tasks WHERE $1 = ANY(assigned_role_ids) ORDER BY created_at`, roleID)
}

func (s *TaskStore) list(ctx context.Context, op, query string, args ...any) ([]*Task, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	tasks := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Update applies a partial update to a task owned by ownerRoleID.
func (s *TaskStore) Update(ctx context.Context, ownerRoleID, id string, in TaskPatch) (*Task, error) {
	var b setBuilder
	if in.ObjectiveID != nil {
		b.add("objective_id", nullableText(*in.ObjectiveID))
	}
	if in.Title != nil {
		b.add("title", *in.Title)
	}
	if in.Description != nil {
		b.add("description", *in.Description)
	}
	if in.TaskRubric != nil {
		rubricJSON, err := json.Marshal(nonNilSlice(*in.TaskRubric))
		if err != nil {
			return nil, fmt.Errorf("marshaling task rubric: %w", err)
		}
		b.add("rubric", rubricJSON)
	}
	if in.Status != nil {
		b.add("status", *in.Status)
	}
	if in.StartDate != nil {
		b.add("start_date", *in.StartDate)
	}
	if in.DueDate != nil {
		b.add("due_date", *in.DueDate)
	}
	if in.AssignedRolesIDs != nil {
		b.add("assigned_role_ids", nonNilSlice(*in.AssignedRolesIDs))
	}
	if in.Priority != nil {
		b.add("priority", *in.Priority)
	}

	if b.empty() {
		t, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if t.OwnerRoleID != ownerRoleID {
			return nil, ErrTaskNotFound
		}
		return t, nil
	}

	query, args := b.build("tasks", "id", id, "owner_role_id", ownerRoleID)
	t, err := scanTask(func(dest ...any) error {
		return s.db.QueryRow(ctx, query+` RETURNING `+taskColumns, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return t, nil
}

// AddFile records a stored file name on the task.
func (s *TaskStore) AddFile(ctx context.Context, id string, kind FileKind, name string) error {
	col := kind.column()
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE tasks SET %[1]s = array_append(%[1]s, $2), updated_at = now()
		             WHERE id = $1 AND NOT ($2 = ANY(%[1]s))`, col), id, name)
	if err != nil {
		return fmt.Errorf("adding task file: %w", err)
	}
	return nil
}

// RemoveFile forgets a stored file name.
func (s *TaskStore) RemoveFile(ctx context.Context, id string, kind FileKind, name string) error {
	col := kind.column()
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE tasks SET %[1]s = array_remove(%[1]s, $2), updated_at = now() WHERE id = $1`, col),
		id, name)
	if err != nil {
		return fmt.Errorf("removing task file: %w", err)
	}
	return nil
}

// Delete removes a task owned by ownerRoleID.
func (s *TaskStore) Delete(ctx context.Context, ownerRoleID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_role_id = $2`, id, ownerRoleID)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteByRoles removes every task owned by or assigned to any of roleIDs.
func (s *TaskStore) DeleteByRoles(ctx context.Context, roleIDs []string) (int64, error) {
	if len(roleIDs) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM tasks WHERE owner_role_id = ANY($1) OR assigned_role_ids && $1`, roleIDs)
	if err != nil {
		return 0, fmt.Errorf("deleting tasks by roles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// setBuilder collects SET clauses for a partial update.
type setBuilder struct {
	clauses []string
	args    []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.clauses = append(b.clauses, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *setBuilder) empty() bool { return len(b.clauses) == 0 }

// build renders an UPDATE scoped by two equality conditions.
func (b *setBuilder) build(table, keyCol string, key any, scopeCol string, scope any) (string, []any) {
	args := append(b.args, key, scope)
	n := len(b.args)
	query := fmt.Sprintf(`UPDATE %s SET %s, updated_at = now() WHERE %s = $%d AND %s = $%d`,
		table, strings.Join(b.clauses, ", "), keyCol, n+1, scopeCol, n+2)
	return query, args
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alecgard/cascade/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrObjectiveNotFound = errors.New("work: objective not found")

const objectiveColumns = `id, name, kpis, milestones, goal_progress, start_date, due_date, owner_role_id,
	assigned_role_ids, accountable_departments, priority, resources, documents, recent_comments, feedbacks,
	created_at, updated_at`

// ObjectiveStore provides database operations for objectives.
type ObjectiveStore struct {
	db database.Querier
}

// NewObjectiveStore creates an objective store on a pool or a transaction.
func NewObjectiveStore(db database.Querier) *ObjectiveStore {
	return &ObjectiveStore{db: db}
}

func scanObjective(scan func(dest ...any) error) (*Objective, error) {
	o := &Objective{}
	var kpisJSON, milestonesJSON, progressJSON []byte
	err := scan(&o.ID, &o.Name, &kpisJSON, &milestonesJSON, &progressJSON, &o.ObjectiveStartDate,
		&o.ObjectiveDueDate, &o.OwnerRoleID, &o.AssignedRoleIDs, &o.AccountableDepartments, &o.Priority,
		&o.ObjectiveResources, &o.ObjectiveDocuments, &o.RecentComments, &o.Feedbacks, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrObjectiveNotFound
		}
		return nil, err
	}
	for _, f := range []struct {
		raw  []byte
		dest any
	}{{kpisJSON, &o.ObjectiveKPIs}, {milestonesJSON, &o.Milestones}, {progressJSON, &o.GoalProgress}} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return nil, fmt.Errorf("unmarshaling objective: %w", err)
		}
	}
	o.ObjectiveKPIs = nonNilSlice(o.ObjectiveKPIs)
	o.Milestones = nonNilSlice(o.Milestones)
	o.GoalProgress = nonNilSlice(o.GoalProgress)
	o.AssignedRoleIDs = nonNilSlice(o.AssignedRoleIDs)
	o.AccountableDepartments = nonNilSlice(o.AccountableDepartments)
	o.ObjectiveResources = nonNilSlice(o.ObjectiveResources)
	o.ObjectiveDocuments = nonNilSlice(o.ObjectiveDocuments)
	o.RecentComments = nonNilSlice(o.RecentComments)
	o.Feedbacks = nonNilSlice(o.Feedbacks)
	return o, nil
}

// Create inserts an objective owned by ownerRoleID.
func (s *ObjectiveStore) Create(ctx context.Context, ownerRoleID string, in ObjectiveInput) (*Objective, error) {
	kpis, err := json.Marshal(nonNilSlice(in.ObjectiveKPIs))
	if err != nil {
		return nil, fmt.Errorf("marshaling kpis: %w", err)
	}
	milestones, err := json.Marshal(nonNilSlice(in.Milestones))
	if err != nil {
		return nil, fmt.Errorf("marshaling milestones: %w", err)
	}
	progress, err := json.Marshal(nonNilSlice(in.GoalProgress))
	if err != nil {
		return nil, fmt.Errorf("marshaling goal progress: %w", err)
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	o, err := scanObjective(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO objectives (id, name, kpis, milestones, goal_progress, start_date, due_date,
			                         owner_role_id, assigned_role_ids, accountable_departments, priority)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING `+objectiveColumns,
			uuid.NewString(), in.Name, kpis, milestones, progress, in.ObjectiveStartDate, in.ObjectiveDueDate,
			ownerRoleID, nonNilSlice(in.AssignedRoleIDs), nonNilSlice(in.AccountableDepartments), priority,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating objective: %w", err)
	}
	return o, nil
}

// GetByID retrieves an objective by primary key.
func (s *ObjectiveStore) GetByID(ctx context.Context, id string) (*Objective, error) {
	o, err := scanObjective(func(dest ...any) error {
		return s.db.QueryRow(ctx, `SELECT `+objectiveColumns+` FROM objectives WHERE id = $1`, id).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting objective: %w", err)
	}
	return o, nil
}

// ListOwned returns the objectives owned by roleID.
func (s *ObjectiveStore) ListOwned(ctx context.Context, roleID string) ([]*Objective, error) {
	return s.list(ctx, "listing owned objectives",
		`SELECT `+objectiveColumns+` FROM objectives WHERE owner_role_id = $1 ORDER BY created_at`, roleID)
}

// ListAssigned returns the objectives assigned to roleID.
func (s *ObjectiveStore) ListAssigned(ctx context.Context, roleID string) ([]*Objective, error) {
	return s.list(ctx, "listing assigned objectives",
		`SELECT `+objectiveColumns+` FROM objectives WHERE $1 = ANY(assigned_role_ids) ORDER BY created_at`, roleID)
}

func (s *ObjectiveStore) list(ctx context.Context, op, query string, args ...any) ([]*Objective, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	objectives := []*Objective{}
	for rows.Next() {
		o, err := scanObjective(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning objective row: %w", err)
		}
		objectives = append(objectives, o)
	}
	return objectives, rows.Err()
}

// Update applies a partial update to an objective owned by ownerRoleID.
func (s *ObjectiveStore) Update(ctx context.Context, ownerRoleID, id string, in ObjectivePatch) (*Objective, error) {
	var b setBuilder
	addJSON := func(column string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", column, err)
		}
		b.add(column, raw)
		return nil
	}

	if in.Name != nil {
		b.add("name", *in.Name)
	}
	if in.ObjectiveKPIs != nil {
		if err := addJSON("kpis", nonNilSlice(*in.ObjectiveKPIs)); err != nil {
			return nil, err
		}
	}
	if in.Milestones != nil {
		if err := addJSON("milestones", nonNilSlice(*in.Milestones)); err != nil {
			return nil, err
		}
	}
	if in.GoalProgress != nil {
		if err := addJSON("goal_progress", nonNilSlice(*in.GoalProgress)); err != nil {
			return nil, err
		}
	}
	if in.ObjectiveStartDate != nil {
		b.add("start_date", *in.ObjectiveStartDate)
	}
	if in.ObjectiveDueDate != nil {
		b.add("due_date", *in.ObjectiveDueDate)
	}
	if in.AssignedRoleIDs != nil {
		b.add("assigned_role_ids", nonNilSlice(*in.AssignedRoleIDs))
	}
	if in.AccountableDepartments != nil {
		b.add("accountable_departments", nonNilSlice(*in.AccountableDepartments))
	}
	if in.Priority != nil {
		b.add("priority", *in.Priority)
	}

	if b.empty() {
		o, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if o.OwnerRoleID != ownerRoleID {
			return nil, ErrObjectiveNotFound
		}
		return o, nil
	}

	query, args := b.build("objectives", "id", id, "owner_role_id", ownerRoleID)
	o, err := scanObjective(func(dest ...any) error {
		return s.db.QueryRow(ctx, query+` RETURNING `+objectiveColumns, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating objective: %w", err)
	}
	return o, nil
}

// Delete removes an objective owned by ownerRoleID.
func (s *ObjectiveStore) Delete(ctx context.Context, ownerRoleID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM objectives WHERE id = $1 AND owner_role_id = $2`, id, ownerRoleID)
	if err != nil {
		return fmt.Errorf("deleting objective: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrObjectiveNotFound
	}
	return nil
}

// DeleteByRoles removes every objective owned by or assigned to any of roleIDs.
func (s *ObjectiveStore) DeleteByRoles(ctx context.Context, roleIDs []string) (int64, error) {
	if len(roleIDs) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM objectives WHERE owner_role_id = ANY($1) OR assigned_role_ids && $1`, roleIDs)
	if err != nil {
		return 0, fmt.Errorf("deleting objectives by roles: %w", err)
	}
	return tag.RowsAffected(), nil
}

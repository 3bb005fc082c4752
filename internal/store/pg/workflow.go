package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"collegia.org/internal/access"
	"collegia.org/internal/ids"
	"collegia.org/internal/workflow"
)

// WorkflowStore is the PostgreSQL workflow.Store. Kept as a separate type so
// the optimistic-versioning contract has its own surface.
type WorkflowStore struct {
	db *sql.DB
}

var _ workflow.Store = (*WorkflowStore)(nil)

// NewWorkflowStore constructs the store.
func NewWorkflowStore(db *sql.DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

func (s *WorkflowStore) Create(ctx context.Context, req *workflow.Request) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if req.ID == "" {
		req.ID = ids.New()
	}
	var unitID, unitName sql.NullString
	if req.Unit != nil {
		if req.Unit.ID != "" {
			unitID = sql.NullString{String: req.Unit.ID, Valid: true}
		}
		if req.Unit.Name != "" {
			unitName = sql.NullString{String: req.Unit.Name, Valid: true}
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into certificate_requests (id, requester_id, kind, reason, unit_id, unit_name, stage, version)
		values ($1, $2, $3, $4, $5, $6, $7, 1)
		returning created_at, updated_at
	`, req.ID, req.RequesterID, req.Kind, req.Reason, unitID, unitName, string(req.Stage))
	if err := row.Scan(&req.CreatedAt, &req.UpdatedAt); err != nil {
		return err
	}
	for _, entry := range req.History {
		if err := insertHistory(ctx, tx, req.ID, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	req.Version = 1
	return nil
}

func (s *WorkflowStore) Find(ctx context.Context, id string) (*workflow.Request, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select id, requester_id, kind, reason, unit_id, unit_name, stage,
		       coalesce(artifact_url, ''), version, created_at, updated_at
		from certificate_requests where id = $1
	`, id)
	var (
		req              workflow.Request
		stage            string
		unitID, unitName sql.NullString
	)
	err := row.Scan(&req.ID, &req.RequesterID, &req.Kind, &req.Reason, &unitID, &unitName,
		&stage, &req.ArtifactURL, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, err
	}
	req.Stage = workflow.Stage(stage)
	if unitID.Valid || unitName.Valid {
		req.Unit = &access.UnitRef{ID: unitID.String, Name: unitName.String}
	}
	history, err := s.history(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	req.History = history
	return &req, nil
}

// Update persists a transition under the optimistic version check: the write
// applies only when the stored row still carries expectedVersion. Exactly
// one history entry is appended per transition, so the request's last entry
// is the one to persist.
func (s *WorkflowStore) Update(ctx context.Context, req *workflow.Request, expectedVersion int64) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update certificate_requests
		set stage = $1, artifact_url = nullif($2, ''), version = version + 1, updated_at = now()
		where id = $3 and version = $4
	`, string(req.Stage), req.ArtifactURL, req.ID, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current int64
		row := tx.QueryRowContext(ctx, `select version from certificate_requests where id = $1`, req.ID)
		if scanErr := row.Scan(&current); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return workflow.ErrNotFound
			}
			return scanErr
		}
		return fmt.Errorf("%w: request %s at version %d, expected %d",
			workflow.ErrConcurrentModification, req.ID, current, expectedVersion)
	}
	if n := len(req.History); n > 0 {
		if err := insertHistory(ctx, tx, req.ID, req.History[n-1]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	req.Version = expectedVersion + 1
	return nil
}

func (s *WorkflowStore) ListByUnit(ctx context.Context, unit string, limit int) ([]*workflow.Request, error) {
	return s.list(ctx, `unit_id = $1 or unit_name = $1`, unit, limit)
}

func (s *WorkflowStore) ListByRequester(ctx context.Context, requesterID string, limit int) ([]*workflow.Request, error) {
	return s.list(ctx, `requester_id = $1`, requesterID, limit)
}

func (s *WorkflowStore) list(ctx context.Context, where, arg string, limit int) ([]*workflow.Request, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, requester_id, kind, reason, unit_id, unit_name, stage,
		       coalesce(artifact_url, ''), version, created_at, updated_at
		from certificate_requests
		where `+where+`
		order by id
		limit `+fmt.Sprint(limit), arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*workflow.Request
	for rows.Next() {
		var (
			req              workflow.Request
			stage            string
			unitID, unitName sql.NullString
		)
		err := rows.Scan(&req.ID, &req.RequesterID, &req.Kind, &req.Reason, &unitID, &unitName,
			&stage, &req.ArtifactURL, &req.Version, &req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			return nil, err
		}
		req.Stage = workflow.Stage(stage)
		if unitID.Valid || unitName.Valid {
			req.Unit = &access.UnitRef{ID: unitID.String, Name: unitName.String}
		}
		out = append(out, &req)
	}
	return out, rows.Err()
}

func (s *WorkflowStore) history(ctx context.Context, requestID string) ([]workflow.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select actor_id, coalesce(actor_name, ''), role, action, coalesce(comment, ''), at
		from request_history
		where request_id = $1
		order by seq
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workflow.HistoryEntry
	for rows.Next() {
		var (
			entry workflow.HistoryEntry
			role  string
		)
		if err := rows.Scan(&entry.ActorID, &entry.ActorName, &role, &entry.Action, &entry.Comment, &entry.At); err != nil {
			return nil, err
		}
		entry.Role = access.Role(role)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, requestID string, entry workflow.HistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		insert into request_history (request_id, actor_id, actor_name, role, action, comment, at)
		values ($1, $2, $3, $4, $5, nullif($6, ''), $7)
	`, requestID, entry.ActorID, entry.ActorName, string(entry.Role), entry.Action, entry.Comment, entry.At)
	return err
}

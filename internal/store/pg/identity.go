package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"collegia.org/internal/access"
	"collegia.org/internal/ids"
)

var (
	_ access.IdentityStore  = (*Store)(nil)
	_ access.DirectoryStore = (*Store)(nil)
)

const identityColumns = `u.id, u.display_name, u.email, u.password_hash, u.role,
	u.unit_id, d.name, u.status, u.approved, u.department_head, u.created_at, u.updated_at`

func (s *Store) Create(ctx context.Context, id *access.Identity) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if id.ID == "" {
		id.ID = ids.New()
	}
	var unitID sql.NullString
	if id.Unit != nil && id.Unit.ID != "" {
		unitID = sql.NullString{String: id.Unit.ID, Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, display_name, email, password_hash, role, unit_id, status, approved, department_head)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning created_at, updated_at
	`, id.ID, id.DisplayName, id.Email, id.PasswordHash, string(id.Role), unitID, id.Status, id.Approved, id.DepartmentHead)
	if err := row.Scan(&id.CreatedAt, &id.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: email %s", access.ErrConflict, id.Email)
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: unknown unit %s", access.ErrInvalidInput, unitID.String)
			}
		}
		return err
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (*access.Identity, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+identityColumns+`
		from users u
		left join departments d on d.id = u.unit_id
		where u.id = $1
	`, id)
	return scanIdentity(row)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*access.Identity, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+identityColumns+`
		from users u
		left join departments d on d.id = u.unit_id
		where u.email = $1
	`, email)
	return scanIdentity(row)
}

func (s *Store) ListByUnit(ctx context.Context, unitID string) ([]*access.Identity, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+identityColumns+`
		from users u
		left join departments d on d.id = u.unit_id
		where u.unit_id = $1
		order by u.id
	`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*access.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) SetApproval(ctx context.Context, id string, approved bool) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx,
		`update users set approved = $1, updated_at = now() where id = $2`, approved, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return access.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*access.Identity, error) {
	var (
		id       access.Identity
		role     string
		unitID   sql.NullString
		unitName sql.NullString
	)
	err := row.Scan(&id.ID, &id.DisplayName, &id.Email, &id.PasswordHash, &role,
		&unitID, &unitName, &id.Status, &id.Approved, &id.DepartmentHead,
		&id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, access.ErrNotFound
		}
		return nil, err
	}
	id.Role = access.Role(role)
	if unitID.Valid {
		id.Unit = &access.UnitRef{ID: unitID.String, Name: unitName.String}
	}
	return &id, nil
}

// Directory ---------------------------------------------------------------

func (s *Store) CreateUnit(ctx context.Context, unit *access.Unit) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if unit.ID == "" {
		unit.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into departments (id, name)
		values ($1, $2)
		returning created_at, updated_at
	`, unit.ID, unit.Name)
	if err := row.Scan(&unit.CreatedAt, &unit.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: department %s", access.ErrConflict, unit.Name)
		}
		return err
	}
	return nil
}

func (s *Store) UnitByID(ctx context.Context, id string) (access.Unit, error) {
	if s.db == nil {
		return access.Unit{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at, updated_at from departments where id = $1`, id)
	var unit access.Unit
	if err := row.Scan(&unit.ID, &unit.Name, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return access.Unit{}, access.ErrNotFound
		}
		return access.Unit{}, err
	}
	return unit, nil
}

// UnitByName matches on the normalized display name. More than one hit is
// reported as ambiguity, never resolved by guesswork.
func (s *Store) UnitByName(ctx context.Context, name string) (access.Unit, error) {
	if s.db == nil {
		return access.Unit{}, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, created_at, updated_at
		from departments
		where lower(regexp_replace(name, '\s+', ' ', 'g')) = lower(regexp_replace(trim($1), '\s+', ' ', 'g'))
	`, name)
	if err != nil {
		return access.Unit{}, err
	}
	defer rows.Close()

	var (
		unit access.Unit
		hits int
	)
	for rows.Next() {
		var u access.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return access.Unit{}, err
		}
		unit = u
		hits++
	}
	if err := rows.Err(); err != nil {
		return access.Unit{}, err
	}
	switch hits {
	case 0:
		return access.Unit{}, access.ErrNotFound
	case 1:
		return unit, nil
	default:
		return access.Unit{}, fmt.Errorf("%w: %q matches %d departments", access.ErrAmbiguousUnit, name, hits)
	}
}

func (s *Store) ListUnits(ctx context.Context) ([]access.Unit, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, name, created_at, updated_at from departments order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []access.Unit
	for rows.Next() {
		var unit access.Unit
		if err := rows.Scan(&unit.ID, &unit.Name, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

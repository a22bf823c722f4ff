package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kense.org/internal/auth"
	"kense.org/internal/ids"
)

var _ auth.AdminStore = (*Store)(nil)

// CreateUser inserts an account row.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, status string) (auth.User, error) {
	id := ids.New()
	var u auth.User
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, username, password_hash, status)
		values ($1, $2, $3, $4)
		returning id, username, password_hash, status, created_at, updated_at
	`, id, username, passwordHash, status)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, err
	}
	return u, nil
}

// ListUsers returns account rows without role graphs.
func (s *Store) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, username, status,
		       coalesce(last_login_at, 'epoch'::timestamptz),
		       coalesce(last_login_ip, ''),
		       created_at, updated_at
		from users order by username asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.User
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Status,
			&u.LastLoginAt, &u.LastLoginIP, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// UpdateUserStatus switches the account status.
func (s *Store) UpdateUserStatus(ctx context.Context, userID, status string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set status = $2, updated_at = now() where id = $1
	`, userID, status)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// CreateRole inserts a role row.
func (s *Store) CreateRole(ctx context.Context, name, description string) (auth.Role, error) {
	id := ids.New()
	var role auth.Role
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description)
		values ($1, $2, $3)
		returning id, name, coalesce(description, '')
	`, id, name, description)
	if err := row.Scan(&role.ID, &role.Name, &role.Description); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Role{}, auth.ErrConflict
		}
		return auth.Role{}, err
	}
	return role, nil
}

// ListRoles returns every role with its permissions.
func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, coalesce(r.description, ''), p.id, p.name
		from roles r
		left join role_permissions rp on rp.role_id = r.id
		left join permissions p on p.id = rp.permission_id
		order by r.name asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	index := make(map[string]int)
	for rows.Next() {
		var (
			role     auth.Role
			permID   sql.NullString
			permName sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &permID, &permName); err != nil {
			return nil, err
		}
		at, ok := index[role.ID]
		if !ok {
			at = len(roles)
			index[role.ID] = at
			roles = append(roles, role)
		}
		if permName.Valid && permName.String != "" {
			roles[at].Permissions = append(roles[at].Permissions, auth.Permission{
				ID:   permID.String,
				Name: permName.String,
			})
		}
	}
	return roles, rows.Err()
}

// SetRolePermissions replaces the role's permission set inside one
// transaction, creating unknown permission keys on the fly.
func (s *Store) SetRolePermissions(ctx context.Context, roleID string, permissionNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `select exists(select 1 from roles where id=$1)`, roleID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return auth.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, name := range permissionNames {
		var permID string
		err := tx.QueryRowContext(ctx, `select id from permissions where name=$1`, name).Scan(&permID)
		if errors.Is(err, sql.ErrNoRows) {
			permID = ids.New()
			if _, err := tx.ExecContext(ctx,
				`insert into permissions (id, name) values ($1, $2)`, permID, name); err != nil {
				return fmt.Errorf("ensure permission %s: %w", name, err)
			}
		} else if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`insert into role_permissions (role_id, permission_id) values ($1, $2)`, roleID, permID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AssignRole appends the role at the end of the user's ordered role list.
func (s *Store) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id, position)
		values ($1, $2, coalesce((select max(position)+1 from user_roles where user_id=$1), 0))
	`, userID, roleID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

package pg

import (
	"context"
	"database/sql"
	"errors"

	"kense.org/internal/auth"
)

var _ auth.Directory = (*Store)(nil)

// FindByID loads a user with its resolved role graph.
func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findUser(ctx, `
		select id, username, password_hash, status,
		       coalesce(last_login_at, 'epoch'::timestamptz),
		       coalesce(last_login_ip, ''),
		       created_at, updated_at
		from users where id = $1
	`, id)
}

// FindByUsername loads a user with its resolved role graph.
func (s *Store) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.findUser(ctx, `
		select id, username, password_hash, status,
		       coalesce(last_login_at, 'epoch'::timestamptz),
		       coalesce(last_login_ip, ''),
		       created_at, updated_at
		from users where username = $1
	`, username)
}

// UpdateLastLogin records the timestamp and source address of a login.
func (s *Store) UpdateLastLogin(ctx context.Context, id, address string) error {
	_, err := s.db.ExecContext(ctx, `
		update users set last_login_at = now(), last_login_ip = $2, updated_at = now()
		where id = $1
	`, id, address)
	return err
}

// UpdatePasswordHash persists a new password digest.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set password_hash = $2, updated_at = now() where id = $1
	`, id, hash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) findUser(ctx context.Context, query, arg string) (*auth.User, error) {
	var u auth.User
	row := s.db.QueryRowContext(ctx, query, arg)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Status,
		&u.LastLoginAt, &u.LastLoginIP, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	roles, err := s.rolesForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

// rolesForUser loads the ordered role list with permissions normalized to
// plain name strings at this boundary.
func (s *Store) rolesForUser(ctx context.Context, userID string) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, coalesce(r.description, ''), p.id, p.name
		from user_roles ur
		join roles r on r.id = ur.role_id
		left join role_permissions rp on rp.role_id = r.id
		left join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
		order by ur.position asc, r.id asc
	`, userID)
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

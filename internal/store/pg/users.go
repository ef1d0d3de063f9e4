package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/auth"
	"cloudops.org/internal/model"
)

const userCols = `
	id, created_at, updated_at, deleted_at, metadata, version,
	name, email, username, first_name, last_name, hashed_password, user_status,
	is_superuser, is_verified, avatar_url, timezone, language,
	last_login_at, last_login_ip, failed_login_attempts, locked_until,
	password_changed_at`

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	meta, err := jsonArg(u.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into users(
			id, created_at, updated_at, metadata, version,
			name, email, username, first_name, last_name, hashed_password, user_status,
			is_superuser, is_verified, timezone, language)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, u.ID, u.CreatedAt, u.UpdatedAt, meta, u.Version,
		u.DisplayName(), u.Email, nullStr(u.Username), nullStr(u.FirstName),
		nullStr(u.LastName), u.HashedPassword, string(u.Status),
		u.IsSuperuser, u.IsVerified, u.Timezone, u.Language)
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userCols+`
		from users
		where id=$1 and deleted_at is null
	`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperr.NotFound("user", id)
	}
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userCols+`
		from users
		where email=$1 and deleted_at is null
	`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperr.NotFound("user", "")
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context, f auth.UserFilter) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userCols+`
		from users u
		where u.deleted_at is null
		  and ($1 = '' or u.user_status = $1)
		  and ($2 = '' or exists (
		      select 1 from user_roles ur
		      join roles r on r.id = ur.role_id
		      where ur.user_id = u.id and ur.is_active and r.name = $2))
		order by u.created_at desc
		limit $3 offset $4
	`, f.Status, f.Role, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set name=$2, username=$3, first_name=$4, last_name=$5, user_status=$6,
		    is_superuser=$7, is_verified=$8, avatar_url=$9, timezone=$10, language=$11,
		    last_login_at=$12, last_login_ip=$13, failed_login_attempts=$14,
		    locked_until=$15, hashed_password=$16, password_changed_at=$17,
		    updated_at=$18, version=$19
		where id=$1 and deleted_at is null
	`, u.ID, u.DisplayName(), nullStr(u.Username), nullStr(u.FirstName),
		nullStr(u.LastName), string(u.Status), u.IsSuperuser, u.IsVerified,
		nullStr(u.AvatarURL), u.Timezone, u.Language,
		nullTime(u.LastLoginAt), nullStr(u.LastLoginIP), u.FailedLoginAttempts,
		nullTime(u.LockedUntil), u.HashedPassword, nullTime(u.PasswordChangedAt),
		u.UpdatedAt, u.Version)
	if err != nil {
		return err
	}
	return mustAffect(res, "user", u.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update users set deleted_at=$2, updated_at=$2
		where id=$1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	return mustAffect(res, "user", id)
}

func (s *Store) GetRole(ctx context.Context, id string) (model.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, created_at, updated_at, deleted_at, metadata, version,
		       name, description, role_type, permissions, is_system_role, is_active
		from roles
		where id=$1 and deleted_at is null
	`, id)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Role{}, apperr.NotFound("role", id)
	}
	return r, err
}

// ListRolesForUser returns the active, unexpired roles granted to a user.
func (s *Store) ListRolesForUser(ctx context.Context, userID string, now time.Time) ([]model.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.created_at, r.updated_at, r.deleted_at, r.metadata, r.version,
		       r.name, r.description, r.role_type, r.permissions, r.is_system_role, r.is_active
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		  and ur.is_active
		  and (ur.expires_at is null or ur.expires_at > $2)
		  and r.deleted_at is null
		  and r.is_active
		order by r.name
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AssignRole(ctx context.Context, ur *model.UserRole) error {
	meta, err := jsonArg(ur.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into user_roles(
			id, created_at, updated_at, metadata, version,
			user_id, role_id, granted_by, granted_at, expires_at,
			is_active, scope, resource_id)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		on conflict (user_id, role_id, scope, resource_id) do update
		set is_active = true, granted_by = excluded.granted_by,
		    granted_at = excluded.granted_at, expires_at = excluded.expires_at,
		    updated_at = excluded.updated_at
	`, ur.ID, ur.CreatedAt, ur.UpdatedAt, meta, ur.Version,
		ur.UserID, ur.RoleID, nullStr(ur.GrantedBy), ur.GrantedAt,
		nullTime(ur.ExpiresAt), ur.IsActive, string(ur.Scope), ur.ResourceID)
	return err
}

// --- scanners ---

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var deleted, lastLogin, lockedUntil, pwChanged sql.NullTime
	var meta []byte
	var username, first, last, avatar, lastIP sql.NullString
	var status string
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &deleted, &meta, &u.Version,
		&u.Name, &u.Email, &username, &first, &last, &u.HashedPassword, &status,
		&u.IsSuperuser, &u.IsVerified, &avatar, &u.Timezone, &u.Language,
		&lastLogin, &lastIP, &u.FailedLoginAttempts, &lockedUntil,
		&pwChanged)
	if err != nil {
		return model.User{}, err
	}
	u.DeletedAt = timePtr(deleted)
	u.LastLoginAt = timePtr(lastLogin)
	u.LockedUntil = timePtr(lockedUntil)
	u.PasswordChangedAt = timePtr(pwChanged)
	u.Username = strVal(username)
	u.FirstName = strVal(first)
	u.LastName = strVal(last)
	u.AvatarURL = strVal(avatar)
	u.LastLoginIP = strVal(lastIP)
	u.Status = model.UserStatus(status)
	if err := scanJSON(meta, &u.Metadata); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func scanRole(row rowScanner) (model.Role, error) {
	var r model.Role
	var deleted sql.NullTime
	var meta, perms []byte
	var desc sql.NullString
	var rtype string
	err := row.Scan(
		&r.ID, &r.CreatedAt, &r.UpdatedAt, &deleted, &meta, &r.Version,
		&r.Name, &desc, &rtype, &perms, &r.IsSystemRole, &r.IsActive)
	if err != nil {
		return model.Role{}, err
	}
	r.DeletedAt = timePtr(deleted)
	r.Description = strVal(desc)
	r.Type = model.RoleType(rtype)
	if err := scanJSON(meta, &r.Metadata); err != nil {
		return model.Role{}, err
	}
	if err := scanJSON(perms, &r.Permissions); err != nil {
		return model.Role{}, err
	}
	return r, nil
}

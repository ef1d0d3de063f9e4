package model

import "time"

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserActive              UserStatus = "active"
	UserInactive            UserStatus = "inactive"
	UserSuspended           UserStatus = "suspended"
	UserPendingVerification UserStatus = "pending_verification"
	UserLocked              UserStatus = "locked"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserInactive, UserSuspended, UserPendingVerification, UserLocked:
		return true
	}
	return false
}

// RoleType classifies a role's origin and reach.
type RoleType string

const (
	RoleSystem       RoleType = "system"
	RoleOrganization RoleType = "organization"
	RoleProject      RoleType = "project"
	RoleCustom       RoleType = "custom"
)

func (t RoleType) Valid() bool {
	switch t {
	case RoleSystem, RoleOrganization, RoleProject, RoleCustom:
		return true
	}
	return false
}

// PermissionScope bounds a role grant.
type PermissionScope string

const (
	ScopeGlobal       PermissionScope = "global"
	ScopeOrganization PermissionScope = "organization"
	ScopeProject      PermissionScope = "project"
	ScopeResource     PermissionScope = "resource"
)

func (s PermissionScope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeOrganization, ScopeProject, ScopeResource:
		return true
	}
	return false
}

// User is an account. Accounts are never hard-deleted.
type User struct {
	Named
	Email                      string     `json:"email"`
	Username                   string     `json:"username,omitempty"`
	FirstName                  string     `json:"first_name,omitempty"`
	LastName                   string     `json:"last_name,omitempty"`
	HashedPassword             string     `json:"-"`
	Status                     UserStatus `json:"user_status"`
	IsSuperuser                bool       `json:"is_superuser"`
	IsVerified                 bool       `json:"is_verified"`
	AvatarURL                  string     `json:"avatar_url,omitempty"`
	Timezone                   string     `json:"timezone"`
	Language                   string     `json:"language"`
	LastLoginAt                *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP                string     `json:"last_login_ip,omitempty"`
	FailedLoginAttempts        int        `json:"failed_login_attempts"`
	LockedUntil                *time.Time `json:"locked_until,omitempty"`
	PasswordChangedAt          *time.Time `json:"password_changed_at,omitempty"`
	EmailVerificationToken     string     `json:"-"`
	EmailVerificationExpiresAt *time.Time `json:"-"`
	PasswordResetToken         string     `json:"-"`
	PasswordResetExpiresAt     *time.Time `json:"-"`
}

// FullName returns the user's composed name, falling back to email.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

// DisplayName prefers the username over the composed name.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FullName()
}

// IsAccountLocked reports whether logins must be rejected at the given time.
func (u *User) IsAccountLocked(now time.Time) bool {
	if u.Status == UserLocked {
		return true
	}
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Role is a named set of permission strings.
type Role struct {
	Named
	Type         RoleType `json:"role_type"`
	Permissions  []string `json:"permissions"`
	IsSystemRole bool     `json:"is_system_role"`
	IsActive     bool     `json:"is_active"`
	MaxUsers     int      `json:"max_users,omitempty"`
}

// HasPermission reports whether the role grants the given permission string.
func (r *Role) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// UserRole is the user↔role join. Unique per (user, role, scope, resource).
type UserRole struct {
	Record
	UserID     string          `json:"user_id"`
	RoleID     string          `json:"role_id"`
	GrantedBy  string          `json:"granted_by,omitempty"`
	GrantedAt  time.Time       `json:"granted_at"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
	IsActive   bool            `json:"is_active"`
	Scope      PermissionScope `json:"scope"`
	ResourceID string          `json:"resource_id,omitempty"`
}

// IsExpired reports whether the grant has lapsed at the given time.
func (ur *UserRole) IsExpired(now time.Time) bool {
	return ur.ExpiresAt != nil && ur.ExpiresAt.Before(now)
}

// IsValid reports whether the grant is active and unexpired.
func (ur *UserRole) IsValid(now time.Time) bool {
	return ur.IsActive && !ur.IsExpired(now)
}

// APIKey is a long-lived programmatic credential owned by a user.
type APIKey struct {
	Named
	UserID     string     `json:"user_id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsActive   bool       `json:"is_active"`
}

// IsUsable reports whether the key may authenticate at the given time.
func (k *APIKey) IsUsable(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

// Package auth covers accounts, credentials, tokens and role-based
// permissions.
package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/ids"
	"cloudops.org/internal/model"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// UserFilter narrows user listings.
type UserFilter struct {
	Status string
	Role   string
	Limit  int
	Offset int
}

// Store is the persistence surface the service needs.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id string, at time.Time) error

	GetRole(ctx context.Context, id string) (model.Role, error)
	ListRolesForUser(ctx context.Context, userID string, now time.Time) ([]model.Role, error)
	AssignRole(ctx context.Context, ur *model.UserRole) error
}

// Permissions is the effective access view for one user.
type Permissions struct {
	UserID              string   `json:"user_id"`
	Role                string   `json:"role"`
	Permissions         []string `json:"permissions"`
	CloudProviderAccess []string `json:"cloud_provider_access"`
}

// Superusers get the full permission set without role lookups.
var superuserPermissions = []string{
	"infrastructure:read",
	"infrastructure:write",
	"costs:read",
	"costs:write",
	"policies:read",
	"policies:write",
	"users:read",
	"users:write",
}

// Service carries account and credential operations.
type Service struct {
	store      Store
	tokens     *Tokens
	bcryptCost int
	clock      func() time.Time
}

// ServiceOption mutates a Service during construction.
type ServiceOption func(*Service) error

// WithClock overrides the service clock, used by tests.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) error {
		s.clock = clock
		return nil
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		s.bcryptCost = cost
		return nil
	}
}

// NewService builds the auth service over the given store and token issuer.
func NewService(store Store, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		store:      store,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		clock:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register creates a pending account from an email and password.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (model.User, error) {
	if email == "" {
		return model.User{}, apperr.FieldValidation("email", "email is required")
	}
	if len(password) < 8 {
		return model.User{}, apperr.FieldValidation("password", "password must be at least 8 characters")
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return model.User{}, apperr.Conflict("email is already registered")
	}
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	now := s.clock()
	u := model.User{
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		HashedPassword: hash,
		Status:         model.UserPendingVerification,
		Timezone:       "UTC",
		Language:       "en",
	}
	u.ID = ids.New()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Version = 1
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Login verifies credentials and returns a fresh token pair. Failed
// attempts increment the lockout counter; the account locks after five
// consecutive failures.
func (s *Service) Login(ctx context.Context, email, password, clientIP string) (TokenPair, model.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, model.User{}, apperr.Authentication("invalid email or password")
	}
	now := s.clock()
	if u.IsAccountLocked(now) {
		return TokenPair{}, model.User{}, apperr.Authentication("account is locked")
	}
	if u.Status == model.UserSuspended || u.Status == model.UserInactive {
		return TokenPair{}, model.User{}, apperr.Authentication("account is not active")
	}
	if err := VerifyPassword(u.HashedPassword, password); err != nil {
		u.FailedLoginAttempts++
		if u.FailedLoginAttempts >= maxFailedLogins {
			until := now.Add(lockoutDuration)
			u.LockedUntil = &until
		}
		u.Touch(now)
		_ = s.store.UpdateUser(ctx, &u)
		return TokenPair{}, model.User{}, apperr.Authentication("invalid email or password")
	}

	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	t := now
	u.LastLoginAt = &t
	u.LastLoginIP = clientIP
	u.Touch(now)
	if err := s.store.UpdateUser(ctx, &u); err != nil {
		return TokenPair{}, model.User{}, err
	}

	roles, err := s.roleNames(ctx, &u, now)
	if err != nil {
		return TokenPair{}, model.User{}, err
	}
	pair, err := s.tokens.IssuePair(u.ID, roles)
	if err != nil {
		return TokenPair{}, model.User{}, err
	}
	return pair, u, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, apperr.Authentication("invalid refresh token")
	}
	u, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, apperr.Authentication("invalid refresh token")
	}
	now := s.clock()
	if u.IsAccountLocked(now) {
		return TokenPair{}, apperr.Authentication("account is locked")
	}
	roles, err := s.roleNames(ctx, &u, now)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokens.IssuePair(u.ID, roles)
}

// ValidateToken verifies a bearer token and returns the caller's identity.
// Used by the authentication middleware.
func (s *Service) ValidateToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return Principal{}, apperr.Authentication("invalid or expired token")
	}
	return Principal{UserID: claims.Subject, Roles: claims.Roles}, nil
}

// CreateUser provisions an account administratively, already active.
func (s *Service) CreateUser(ctx context.Context, u model.User, password string) (model.User, error) {
	if u.Email == "" {
		return model.User{}, apperr.FieldValidation("email", "email is required")
	}
	if len(password) < 8 {
		return model.User{}, apperr.FieldValidation("password", "password must be at least 8 characters")
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	if !u.Status.Valid() {
		return model.User{}, apperr.FieldValidation("user_status", "unknown user status")
	}
	if _, err := s.store.GetUserByEmail(ctx, u.Email); err == nil {
		return model.User{}, apperr.Conflict("email is already registered")
	}
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	now := s.clock()
	u.HashedPassword = hash
	u.ID = ids.New()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Version = 1
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	if u.Language == "" {
		u.Language = "en"
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetUser fetches one account by id.
func (s *Service) GetUser(ctx context.Context, id string) (model.User, error) {
	return s.store.GetUser(ctx, id)
}

// ListUsers lists accounts matching the filter.
func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]model.User, error) {
	if f.Status != "" && !model.UserStatus(f.Status).Valid() {
		return nil, apperr.FieldValidation("status", "unknown user status")
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListUsers(ctx, f)
}

// UpdateUser applies changes to an account and bumps its version.
func (s *Service) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	cur, err := s.store.GetUser(ctx, u.ID)
	if err != nil {
		return model.User{}, err
	}
	if u.Username != "" {
		cur.Username = u.Username
	}
	if u.FirstName != "" {
		cur.FirstName = u.FirstName
	}
	if u.LastName != "" {
		cur.LastName = u.LastName
	}
	if u.Status != "" {
		if !u.Status.Valid() {
			return model.User{}, apperr.FieldValidation("user_status", "unknown user status")
		}
		cur.Status = u.Status
	}
	if u.Timezone != "" {
		cur.Timezone = u.Timezone
	}
	if u.Language != "" {
		cur.Language = u.Language
	}
	if u.AvatarURL != "" {
		cur.AvatarURL = u.AvatarURL
	}
	cur.Touch(s.clock())
	if err := s.store.UpdateUser(ctx, &cur); err != nil {
		return model.User{}, err
	}
	return cur, nil
}

// DeleteUser soft-deletes an account. Accounts are never hard-deleted.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id, s.clock())
}

// GrantRole assigns a role to a user within the given scope.
func (s *Service) GrantRole(ctx context.Context, userID, roleID, grantedBy string, scope model.PermissionScope, resourceID string) (model.UserRole, error) {
	if scope == "" {
		scope = model.ScopeGlobal
	}
	if !scope.Valid() {
		return model.UserRole{}, apperr.FieldValidation("scope", "unknown permission scope")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return model.UserRole{}, err
	}
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return model.UserRole{}, err
	}
	now := s.clock()
	ur := model.UserRole{
		UserID:     userID,
		RoleID:     roleID,
		GrantedBy:  grantedBy,
		GrantedAt:  now,
		IsActive:   true,
		Scope:      scope,
		ResourceID: resourceID,
	}
	ur.ID = ids.New()
	ur.CreatedAt = now
	ur.UpdatedAt = now
	ur.Version = 1
	if err := s.store.AssignRole(ctx, &ur); err != nil {
		return model.UserRole{}, err
	}
	return ur, nil
}

// UserPermissions returns the effective permission view for one user:
// the union of active role grants, or the full set for superusers.
func (s *Service) UserPermissions(ctx context.Context, userID string) (Permissions, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Permissions{}, err
	}
	out := Permissions{
		UserID:              u.ID,
		CloudProviderAccess: []string{"aws", "azure", "gcp"},
	}
	if u.IsSuperuser {
		out.Role = "admin"
		out.Permissions = append([]string(nil), superuserPermissions...)
		return out, nil
	}
	roles, err := s.store.ListRolesForUser(ctx, u.ID, s.clock())
	if err != nil {
		return Permissions{}, err
	}
	seen := map[string]struct{}{}
	for i, r := range roles {
		if i == 0 {
			out.Role = r.Name
		}
		for _, p := range r.Permissions {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out.Permissions = append(out.Permissions, p)
		}
	}
	if out.Role == "" {
		out.Role = "user"
	}
	return out, nil
}

func (s *Service) roleNames(ctx context.Context, u *model.User, now time.Time) ([]string, error) {
	if u.IsSuperuser {
		return []string{"admin"}, nil
	}
	roles, err := s.store.ListRolesForUser(ctx, u.ID, now)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/auth"
	"cloudops.org/internal/model"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func providerRows(id string, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "deleted_at", "metadata", "version",
		"created_by", "updated_by",
		"name", "description", "provider_type", "region", "credentials",
		"configuration", "is_active", "last_connected_at", "connection_status",
	}).AddRow(
		id, at, at, nil, nil, 1,
		nil, nil,
		"prod-aws", "production account", "aws", "us-east-1",
		[]byte(`{"access_key":"AKIA"}`), nil, true, nil, "connected",
	)
}

func TestGetProvider(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("from cloud_providers").
		WithArgs("cp-1").
		WillReturnRows(providerRows("cp-1", now))

	p, err := store.GetProvider(context.Background(), "cp-1")
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if p.ID != "cp-1" || p.ProviderType != model.ProviderAWS {
		t.Fatalf("provider = %+v", p)
	}
	if p.Credentials["access_key"] != "AKIA" {
		t.Fatalf("credentials not decoded: %v", p.Credentials)
	}
	if p.ConnectionStatus != "connected" {
		t.Fatalf("connection status = %q", p.ConnectionStatus)
	}
	expectMet(t, mock)
}

func TestGetProviderNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("from cloud_providers").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetProvider(context.Background(), "missing")
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Type != apperr.TypeNotFound {
		t.Fatalf("err = %v, want not_found_error", err)
	}
	expectMet(t, mock)
}

func TestDeleteProviderNotFound(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()

	mock.ExpectExec("update cloud_providers set deleted_at").
		WithArgs("missing", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteProvider(context.Background(), "missing", at)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Type != apperr.TypeNotFound {
		t.Fatalf("err = %v, want not_found_error", err)
	}
	expectMet(t, mock)
}

func TestDeleteBudgetCascadesAlerts(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("update cost_budgets set deleted_at").
		WithArgs("b-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update cost_alerts set deleted_at").
		WithArgs("b-1", at).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := store.DeleteBudget(context.Background(), "b-1", at); err != nil {
		t.Fatalf("DeleteBudget: %v", err)
	}
	expectMet(t, mock)
}

func TestDeleteBudgetMissingRollsBack(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("update cost_budgets set deleted_at").
		WithArgs("missing", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.DeleteBudget(context.Background(), "missing", at)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Type != apperr.TypeNotFound {
		t.Fatalf("err = %v, want not_found_error", err)
	}
	expectMet(t, mock)
}

func TestListUsersFiltersByRole(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "deleted_at", "metadata", "version",
		"name", "email", "username", "first_name", "last_name",
		"hashed_password", "user_status",
		"is_superuser", "is_verified", "avatar_url", "timezone", "language",
		"last_login_at", "last_login_ip", "failed_login_attempts",
		"locked_until", "password_changed_at",
	}).AddRow(
		"u-1", now, now, nil, nil, 1,
		"Dev User", "dev@example.com", "dev", "Dev", "User",
		"$2b$12$hash", "active",
		false, true, nil, "UTC", "en",
		nil, nil, 0, nil, nil,
	)
	mock.ExpectQuery("from users u").
		WithArgs("active", "operator", 100, 0).
		WillReturnRows(rows)

	users, err := store.ListUsers(context.Background(), auth.UserFilter{
		Status: "active",
		Role:   "operator",
		Limit:  100,
	})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Email != "dev@example.com" {
		t.Fatalf("users = %+v", users)
	}
	if users[0].Status != model.UserActive {
		t.Fatalf("status = %q", users[0].Status)
	}
	expectMet(t, mock)
}

func TestCountViolationsOnlyOpen(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("from policy_violations\\s+where policy_id=\\$1 and violation_status=\\$2").
		WithArgs("pol-1", "open").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.CountViolations(context.Background(), "pol-1")
	if err != nil {
		t.Fatalf("CountViolations: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	expectMet(t, mock)
}

func TestCreateProviderBindsJSON(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("insert into cloud_providers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := model.CloudProvider{
		Named: model.Named{
			Record: model.Record{ID: "cp-1", CreatedAt: now, UpdatedAt: now, Version: 1},
			Name:   "prod-aws",
		},
		ProviderType: model.ProviderAWS,
		Credentials:  map[string]any{"access_key": "AKIA"},
		IsActive:     true,
	}
	p.ConnectionStatus = "unknown"
	if err := store.CreateProvider(context.Background(), &p); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	expectMet(t, mock)
}

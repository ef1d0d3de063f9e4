package audit

import (
	"context"
	"testing"
	"time"

	"cloudops.org/internal/auth"
	"cloudops.org/internal/model"
)

type captureStore struct {
	logs []model.AuditLog
}

func (c *captureStore) AppendLog(_ context.Context, l *model.AuditLog) error {
	c.logs = append(c.logs, *l)
	return nil
}

func (c *captureStore) ListLogs(_ context.Context, eventType string, _, _ int) ([]model.AuditLog, error) {
	var out []model.AuditLog
	for _, l := range c.logs {
		if eventType != "" && string(l.EventType) != eventType {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func TestRecordEnrichesFromContext(t *testing.T) {
	store := &captureStore{}
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(store).WithClock(func() time.Time { return now })

	ctx := WithCorrelationID(context.Background(), "corr-123")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{UserID: "user-1"})

	err := rec.Record(ctx, Event{
		Type:         model.AuditCreate,
		Action:       "infrastructure.provider.create",
		ResourceType: "cloud_provider",
		ResourceID:   "cp-1",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(store.logs) != 1 {
		t.Fatalf("appended logs = %d, want 1", len(store.logs))
	}
	l := store.logs[0]
	if l.ID == "" || l.Version != 1 || !l.CreatedAt.Equal(now) {
		t.Fatalf("record not initialized: %+v", l.Record)
	}
	if l.CorrelationID != "corr-123" {
		t.Fatalf("correlation id = %q", l.CorrelationID)
	}
	if l.UserID != "user-1" {
		t.Fatalf("user id = %q", l.UserID)
	}
	if l.Severity != model.AuditInfo || l.Status != model.AuditSuccess {
		t.Fatalf("defaults not applied: severity=%q status=%q", l.Severity, l.Status)
	}
}

func TestRecordKeepsExplicitSeverity(t *testing.T) {
	store := &captureStore{}
	rec := NewRecorder(store)

	err := rec.Record(context.Background(), Event{
		Type:     model.AuditLogin,
		Severity: model.AuditWarning,
		Status:   model.AuditFailure,
		Action:   "auth.login",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	l := store.logs[0]
	if l.Severity != model.AuditWarning || l.Status != model.AuditFailure {
		t.Fatalf("explicit severity overwritten: severity=%q status=%q", l.Severity, l.Status)
	}
	if l.UserID != "" || l.CorrelationID != "" {
		t.Fatalf("enrichment from empty context: %+v", l)
	}
}

func TestRecordWithoutStoreIsLogOnly(t *testing.T) {
	rec := NewRecorder(nil)
	if err := rec.Record(context.Background(), Event{Type: model.AuditRead}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	logs, err := rec.ListLogs(context.Background(), "", 100, 0)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if logs != nil {
		t.Fatalf("log-only recorder returned entries: %v", logs)
	}
}

func TestListLogsFiltersByEventType(t *testing.T) {
	store := &captureStore{}
	rec := NewRecorder(store)
	ctx := context.Background()

	_ = rec.Record(ctx, Event{Type: model.AuditCreate})
	_ = rec.Record(ctx, Event{Type: model.AuditLogin})
	_ = rec.Record(ctx, Event{Type: model.AuditCreate})

	logs, err := rec.ListLogs(ctx, "create", 100, 0)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("filtered logs = %d, want 2", len(logs))
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationIDFromContext(ctx); got != "" {
		t.Fatalf("empty context yields %q", got)
	}
	ctx = WithCorrelationID(ctx, "  ")
	if got := CorrelationIDFromContext(ctx); got != "" {
		t.Fatalf("blank id stored: %q", got)
	}
	ctx = WithCorrelationID(ctx, "abc")
	if got := CorrelationIDFromContext(ctx); got != "abc" {
		t.Fatalf("correlation id = %q", got)
	}
}

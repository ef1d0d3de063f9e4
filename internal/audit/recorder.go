// Package audit appends immutable records of user-visible actions, mirrored
// as JSON log lines so they can be joined with request logs.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cloudops.org/internal/auth"
	"cloudops.org/internal/ids"
	"cloudops.org/internal/model"
	"cloudops.org/internal/obs"
)

type ctxKey struct{}

// WithCorrelationID attaches the request correlation id to the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, correlationID)
}

// CorrelationIDFromContext extracts the correlation id if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// Store persists audit records. Writes are append-only.
type Store interface {
	AppendLog(ctx context.Context, l *model.AuditLog) error
	ListLogs(ctx context.Context, eventType string, limit, offset int) ([]model.AuditLog, error)
}

// Recorder appends audit logs to the store and mirrors each one as a JSON
// log line. A nil store degrades to log-only operation.
type Recorder struct {
	store Store
	clock func() time.Time
}

// NewRecorder builds a Recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the recorder clock, used by tests.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	r.clock = clock
	return r
}

// Event describes one action to record.
type Event struct {
	Type         model.AuditEventType
	Severity     model.AuditSeverity
	Status       model.AuditStatus
	Action       string
	Description  string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
	APIEndpoint  string
	Data         map[string]any
	BeforeState  map[string]any
	AfterState   map[string]any
}

// Record appends one audit log, enriched with the caller identity and
// correlation id from the context.
func (r *Recorder) Record(ctx context.Context, ev Event) error {
	now := r.clock()
	if ev.Severity == "" {
		ev.Severity = model.AuditInfo
	}
	if ev.Status == "" {
		ev.Status = model.AuditSuccess
	}
	l := model.AuditLog{
		EventType:     ev.Type,
		Severity:      ev.Severity,
		Status:        ev.Status,
		Action:        ev.Action,
		Description:   ev.Description,
		ResourceType:  ev.ResourceType,
		ResourceID:    ev.ResourceID,
		IPAddress:     ev.IPAddress,
		UserAgent:     ev.UserAgent,
		APIEndpoint:   ev.APIEndpoint,
		EventData:     ev.Data,
		BeforeState:   ev.BeforeState,
		AfterState:    ev.AfterState,
		CorrelationID: CorrelationIDFromContext(ctx),
	}
	l.ID = ids.New()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.Version = 1
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		l.UserID = p.UserID
	}

	r.mirror(&l)

	if r.store == nil {
		return nil
	}
	return r.store.AppendLog(ctx, &l)
}

// ListLogs reads back recorded entries, newest first.
func (r *Recorder) ListLogs(ctx context.Context, eventType string, limit, offset int) ([]model.AuditLog, error) {
	if r.store == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return r.store.ListLogs(ctx, eventType, limit, offset)
}

func (r *Recorder) mirror(l *model.AuditLog) {
	entry := map[string]any{
		"ts":    l.CreatedAt.Format(time.RFC3339Nano),
		"type":  "audit",
		"event": string(l.EventType),
	}
	if l.Action != "" {
		entry["action"] = l.Action
	}
	if l.CorrelationID != "" {
		entry["correlation_id"] = l.CorrelationID
	}
	if l.UserID != "" {
		entry["user_id"] = l.UserID
	}
	if l.ResourceType != "" {
		entry["resource_type"] = l.ResourceType
	}
	if l.ResourceID != "" {
		entry["resource_id"] = l.ResourceID
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
}

package model

import "time"

// AuditEventType classifies the action behind an audit record.
type AuditEventType string

const (
	AuditCreate                AuditEventType = "create"
	AuditRead                  AuditEventType = "read"
	AuditUpdate                AuditEventType = "update"
	AuditDelete                AuditEventType = "delete"
	AuditLogin                 AuditEventType = "login"
	AuditLogout                AuditEventType = "logout"
	AuditPermissionGranted     AuditEventType = "permission_granted"
	AuditPermissionRevoked     AuditEventType = "permission_revoked"
	AuditPolicyViolation       AuditEventType = "policy_violation"
	AuditInfrastructureDeploy  AuditEventType = "infrastructure_deploy"
	AuditInfrastructureDestroy AuditEventType = "infrastructure_destroy"
	AuditCostAlert             AuditEventType = "cost_alert"
	AuditSecurityEvent         AuditEventType = "security_event"
)

func (t AuditEventType) Valid() bool {
	switch t {
	case AuditCreate, AuditRead, AuditUpdate, AuditDelete, AuditLogin,
		AuditLogout, AuditPermissionGranted, AuditPermissionRevoked,
		AuditPolicyViolation, AuditInfrastructureDeploy,
		AuditInfrastructureDestroy, AuditCostAlert, AuditSecurityEvent:
		return true
	}
	return false
}

// AuditSeverity ranks the importance of an audit record.
type AuditSeverity string

const (
	AuditInfo     AuditSeverity = "info"
	AuditWarning  AuditSeverity = "warning"
	AuditError    AuditSeverity = "error"
	AuditCritical AuditSeverity = "critical"
)

func (s AuditSeverity) Valid() bool {
	switch s {
	case AuditInfo, AuditWarning, AuditError, AuditCritical:
		return true
	}
	return false
}

// AuditStatus records the outcome of the audited action.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
	AuditPartial AuditStatus = "partial"
)

func (s AuditStatus) Valid() bool {
	switch s {
	case AuditSuccess, AuditFailure, AuditPartial:
		return true
	}
	return false
}

// AuditLog is an immutable append-only record of one action.
type AuditLog struct {
	Record
	EventType          AuditEventType `json:"event_type"`
	Severity           AuditSeverity  `json:"severity"`
	Status             AuditStatus    `json:"status"`
	UserID             string         `json:"user_id,omitempty"`
	SessionID          string         `json:"session_id,omitempty"`
	ResourceType       string         `json:"resource_type,omitempty"`
	ResourceID         string         `json:"resource_id,omitempty"`
	ResourceIdentifier string         `json:"resource_identifier,omitempty"`
	Action             string         `json:"action"`
	Description        string         `json:"description"`
	EventData          map[string]any `json:"event_data,omitempty"`
	BeforeState        map[string]any `json:"before_state,omitempty"`
	AfterState         map[string]any `json:"after_state,omitempty"`
	IPAddress          string         `json:"ip_address,omitempty"`
	UserAgent          string         `json:"user_agent,omitempty"`
	APIEndpoint        string         `json:"api_endpoint,omitempty"`
	RequestID          string         `json:"request_id,omitempty"`
	CorrelationID      string         `json:"correlation_id,omitempty"`
	DurationMillis     int64          `json:"duration_ms,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	ErrorCode          string         `json:"error_code,omitempty"`
}

// IsSecurityEvent reports whether the record describes an access or
// security action.
func (l *AuditLog) IsSecurityEvent() bool {
	switch l.EventType {
	case AuditLogin, AuditLogout, AuditPermissionGranted,
		AuditPermissionRevoked, AuditSecurityEvent:
		return true
	}
	return false
}

// IsInfrastructureEvent reports whether the record describes an
// infrastructure lifecycle action.
func (l *AuditLog) IsInfrastructureEvent() bool {
	switch l.EventType {
	case AuditInfrastructureDeploy, AuditInfrastructureDestroy:
		return true
	}
	return false
}

// AuditEvent aggregates related audit logs into one named, timed event.
type AuditEvent struct {
	Record
	EventName         string         `json:"event_name"`
	EventType         AuditEventType `json:"event_type"`
	Severity          AuditSeverity  `json:"severity"`
	Status            AuditStatus    `json:"status"`
	UserID            string         `json:"user_id,omitempty"`
	Description       string         `json:"description"`
	EventSummary      map[string]any `json:"event_summary,omitempty"`
	ResourcesAffected int            `json:"resources_affected"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds   int64          `json:"duration_seconds,omitempty"`
	CorrelationID     string         `json:"correlation_id"`
}

// IsCompleted reports whether the event has finished.
func (e *AuditEvent) IsCompleted() bool { return e.CompletedAt != nil }

// Complete closes the event with the given outcome.
func (e *AuditEvent) Complete(status AuditStatus, at time.Time) {
	e.Status = status
	t := at
	e.CompletedAt = &t
	e.DurationSeconds = int64(at.Sub(e.StartedAt).Seconds())
}

// AuditRetentionPolicy governs purge and archive age thresholds per
// event-type set.
type AuditRetentionPolicy struct {
	Record
	Name               string     `json:"name"`
	EventTypes         []string   `json:"event_types"`
	RetentionDays      int        `json:"retention_days"`
	ArchiveAfterDays   int        `json:"archive_after_days,omitempty"`
	CompressionEnabled bool       `json:"compression_enabled"`
	IsActive           bool       `json:"is_active"`
	LastCleanupAt      *time.Time `json:"last_cleanup_at,omitempty"`
}

// ShouldRetain reports whether a log of the given age stays queryable.
func (p *AuditRetentionPolicy) ShouldRetain(logAgeDays int) bool {
	return logAgeDays <= p.RetentionDays
}

// ShouldArchive reports whether a log of the given age moves to cold storage.
func (p *AuditRetentionPolicy) ShouldArchive(logAgeDays int) bool {
	return p.ArchiveAfterDays > 0 && logAgeDays >= p.ArchiveAfterDays
}

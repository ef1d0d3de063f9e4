package model

import "time"

// PolicyStatus is the publication state of a policy.
type PolicyStatus string

const (
	PolicyDraft      PolicyStatus = "draft"
	PolicyActive     PolicyStatus = "active"
	PolicyInactive   PolicyStatus = "inactive"
	PolicyDeprecated PolicyStatus = "deprecated"
)

func (s PolicyStatus) Valid() bool {
	switch s {
	case PolicyDraft, PolicyActive, PolicyInactive, PolicyDeprecated:
		return true
	}
	return false
}

// PolicySeverity ranks the impact of a violation.
type PolicySeverity string

const (
	SeverityLow      PolicySeverity = "low"
	SeverityMedium   PolicySeverity = "medium"
	SeverityHigh     PolicySeverity = "high"
	SeverityCritical PolicySeverity = "critical"
)

func (s PolicySeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// PolicyType categorizes what a policy governs.
type PolicyType string

const (
	PolicySecurity    PolicyType = "security"
	PolicyCost        PolicyType = "cost"
	PolicyCompliance  PolicyType = "compliance"
	PolicyGovernance  PolicyType = "governance"
	PolicyPerformance PolicyType = "performance"
	PolicyBackup      PolicyType = "backup"
)

func (t PolicyType) Valid() bool {
	switch t {
	case PolicySecurity, PolicyCost, PolicyCompliance, PolicyGovernance,
		PolicyPerformance, PolicyBackup:
		return true
	}
	return false
}

// ViolationStatus is the triage state of a policy violation.
type ViolationStatus string

const (
	ViolationOpen          ViolationStatus = "open"
	ViolationAcknowledged  ViolationStatus = "acknowledged"
	ViolationResolved      ViolationStatus = "resolved"
	ViolationSuppressed    ViolationStatus = "suppressed"
	ViolationFalsePositive ViolationStatus = "false_positive"
)

func (s ViolationStatus) Valid() bool {
	switch s {
	case ViolationOpen, ViolationAcknowledged, ViolationResolved,
		ViolationSuppressed, ViolationFalsePositive:
		return true
	}
	return false
}

// RuleEngine selects the evaluator for policy code.
type RuleEngine string

const (
	EngineOPA         RuleEngine = "opa"
	EngineCustom      RuleEngine = "custom"
	EngineTerraform   RuleEngine = "terraform"
	EngineCloudNative RuleEngine = "cloud_native"
)

func (e RuleEngine) Valid() bool {
	switch e {
	case EngineOPA, EngineCustom, EngineTerraform, EngineCloudNative:
		return true
	}
	return false
}

// Policy is a governance rule set evaluated against infrastructure.
type Policy struct {
	Named
	Type                PolicyType     `json:"policy_type"`
	Status              PolicyStatus   `json:"policy_status"`
	Severity            PolicySeverity `json:"severity"`
	PolicyVersion       string         `json:"version"`
	PolicyCode          string         `json:"policy_code"`
	RuleEngine          RuleEngine     `json:"rule_engine"`
	TargetResources     []string       `json:"target_resources,omitempty"`
	TargetEnvironments  []string       `json:"target_environments,omitempty"`
	Parameters          map[string]any `json:"parameters,omitempty"`
	RemediationActions  map[string]any `json:"remediation_actions,omitempty"`
	DocumentationURL    string         `json:"documentation_url,omitempty"`
	IsEnforced          bool           `json:"is_enforced"`
	AutoRemediate       bool           `json:"auto_remediate"`
	NotificationEnabled bool           `json:"notification_enabled"`
	EvaluationFrequency string         `json:"evaluation_frequency,omitempty"`
	LastEvaluatedAt     *time.Time     `json:"last_evaluated_at,omitempty"`
}

// PolicyRule is one ordered sub-check inside a policy.
type PolicyRule struct {
	Named
	PolicyID        string         `json:"policy_id"`
	RuleCode        string         `json:"rule_code"`
	RuleType        string         `json:"rule_type"`
	Severity        PolicySeverity `json:"severity"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	ErrorMessage    string         `json:"error_message"`
	RemediationHint string         `json:"remediation_hint,omitempty"`
	IsActive        bool           `json:"is_active"`
	OrderIndex      int            `json:"order_index"`
}

// PolicyViolation records a resource failing a policy check.
type PolicyViolation struct {
	Named
	PolicyID               string          `json:"policy_id"`
	ResourceID             string          `json:"resource_id,omitempty"`
	ResourceType           string          `json:"resource_type"`
	ResourceIdentifier     string          `json:"resource_identifier"`
	Status                 ViolationStatus `json:"violation_status"`
	Severity               PolicySeverity  `json:"severity"`
	ViolationDetails       map[string]any  `json:"violation_details,omitempty"`
	DetectedAt             time.Time       `json:"detected_at"`
	LastSeenAt             time.Time       `json:"last_seen_at"`
	ResolvedAt             *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy             string          `json:"resolved_by,omitempty"`
	ResolutionNotes        string          `json:"resolution_notes,omitempty"`
	SuppressedUntil        *time.Time      `json:"suppressed_until,omitempty"`
	SuppressionReason      string          `json:"suppression_reason,omitempty"`
	AutoRemediationAttempt bool            `json:"auto_remediation_attempted"`
	RemediationDetails     map[string]any  `json:"remediation_details,omitempty"`
}

// IsOpen reports whether the violation still needs attention.
func (v *PolicyViolation) IsOpen() bool { return v.Status == ViolationOpen }

// IsSuppressed reports whether the violation is silenced at the given time.
func (v *PolicyViolation) IsSuppressed(now time.Time) bool {
	if v.Status == ViolationSuppressed {
		return true
	}
	return v.SuppressedUntil != nil && v.SuppressedUntil.After(now)
}

// Resolve closes the violation with optional notes.
func (v *PolicyViolation) Resolve(resolvedBy, notes string, at time.Time) {
	v.Status = ViolationResolved
	t := at
	v.ResolvedAt = &t
	v.ResolvedBy = resolvedBy
	if notes != "" {
		v.ResolutionNotes = notes
	}
}

// Suppress silences the violation, optionally until a deadline.
func (v *PolicyViolation) Suppress(reason string, until *time.Time) {
	v.Status = ViolationSuppressed
	v.SuppressionReason = reason
	v.SuppressedUntil = until
}

// Acknowledge marks the violation as seen.
func (v *PolicyViolation) Acknowledge() { v.Status = ViolationAcknowledged }

// PolicyExemption excludes matching resources from evaluation for a time.
type PolicyExemption struct {
	Named
	PolicyID        string     `json:"policy_id"`
	ResourcePattern string     `json:"resource_pattern"`
	ExemptionReason string     `json:"exemption_reason"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	GrantedBy       string     `json:"granted_by"`
	IsActive        bool       `json:"is_active"`
}

// IsExpired reports whether the exemption has lapsed at the given time.
func (e *PolicyExemption) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// IsValid reports whether the exemption is active and unexpired.
func (e *PolicyExemption) IsValid(now time.Time) bool {
	return e.IsActive && !e.IsExpired(now)
}

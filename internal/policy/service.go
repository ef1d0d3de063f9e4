// Package policy manages governance policies, their violations and
// exemptions.
package policy

import (
	"context"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/ids"
	"cloudops.org/internal/model"
)

// Filter narrows policy listings.
type Filter struct {
	Type     string
	Severity string
	Enforced *bool
	Limit    int
	Offset   int
}

// ViolationFilter narrows violation listings.
type ViolationFilter struct {
	PolicyID string
	Severity string
	Status   string
	Limit    int
	Offset   int
}

// Store is the persistence surface the service needs.
type Store interface {
	CreatePolicy(ctx context.Context, p *model.Policy) error
	GetPolicy(ctx context.Context, id string) (model.Policy, error)
	ListPolicies(ctx context.Context, f Filter) ([]model.Policy, error)
	UpdatePolicy(ctx context.Context, p *model.Policy) error
	DeletePolicy(ctx context.Context, id string, at time.Time) error
	CountViolations(ctx context.Context, policyID string) (int, error)

	CreateViolation(ctx context.Context, v *model.PolicyViolation) error
	GetViolation(ctx context.Context, id string) (model.PolicyViolation, error)
	ListViolations(ctx context.Context, f ViolationFilter) ([]model.PolicyViolation, error)
	UpdateViolation(ctx context.Context, v *model.PolicyViolation) error

	CreateExemption(ctx context.Context, e *model.PolicyExemption) error
	ListExemptions(ctx context.Context, policyID string, limit, offset int) ([]model.PolicyExemption, error)
}

// PolicyView is a policy plus its live violation count.
type PolicyView struct {
	model.Policy
	ViolationCount int `json:"violation_count"`
}

// EvaluationResult summarizes one evaluation pass.
type EvaluationResult struct {
	EvaluatedResources int `json:"evaluated_resources"`
	PoliciesChecked    int `json:"policies_checked"`
	ViolationsFound    int `json:"violations_found"`
	CriticalViolations int `json:"critical_violations"`
	HighViolations     int `json:"high_violations"`
	MediumViolations   int `json:"medium_violations"`
	LowViolations      int `json:"low_violations"`
}

// Service carries policy operations. CRUD hits the store; evaluation
// delegates to an external rule-engine collaborator and currently returns
// representative stub data.
type Service struct {
	store Store
	clock func() time.Time
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

// NewService builds the policy service over the given store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	s := &Service{store: store, clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create registers a new policy. Fresh policies start with zero violations.
func (s *Service) Create(ctx context.Context, p model.Policy) (PolicyView, error) {
	if p.Name == "" {
		return PolicyView{}, apperr.FieldValidation("name", "name is required")
	}
	if !p.Type.Valid() {
		return PolicyView{}, apperr.FieldValidation("policy_type", "unknown policy type")
	}
	if p.Severity == "" {
		p.Severity = model.SeverityMedium
	}
	if !p.Severity.Valid() {
		return PolicyView{}, apperr.FieldValidation("severity", "unknown severity")
	}
	if p.Status == "" {
		p.Status = model.PolicyDraft
	}
	if !p.Status.Valid() {
		return PolicyView{}, apperr.FieldValidation("policy_status", "unknown policy status")
	}
	if p.RuleEngine == "" {
		p.RuleEngine = model.EngineOPA
	}
	if !p.RuleEngine.Valid() {
		return PolicyView{}, apperr.FieldValidation("rule_engine", "unknown rule engine")
	}
	now := s.clock()
	p.ID = ids.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1
	if p.PolicyVersion == "" {
		p.PolicyVersion = "1.0.0"
	}
	if err := s.store.CreatePolicy(ctx, &p); err != nil {
		return PolicyView{}, err
	}
	return PolicyView{Policy: p, ViolationCount: 0}, nil
}

// Get fetches one policy with its violation count.
func (s *Service) Get(ctx context.Context, id string) (PolicyView, error) {
	p, err := s.store.GetPolicy(ctx, id)
	if err != nil {
		return PolicyView{}, err
	}
	count, err := s.store.CountViolations(ctx, id)
	if err != nil {
		return PolicyView{}, err
	}
	return PolicyView{Policy: p, ViolationCount: count}, nil
}

// List lists policies matching the filter, each with its violation count.
func (s *Service) List(ctx context.Context, f Filter) ([]PolicyView, error) {
	if f.Type != "" && !model.PolicyType(f.Type).Valid() {
		return nil, apperr.FieldValidation("policy_type", "unknown policy type")
	}
	if f.Severity != "" && !model.PolicySeverity(f.Severity).Valid() {
		return nil, apperr.FieldValidation("severity", "unknown severity")
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	policies, err := s.store.ListPolicies(ctx, f)
	if err != nil {
		return nil, err
	}
	views := make([]PolicyView, 0, len(policies))
	for _, p := range policies {
		count, err := s.store.CountViolations(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, PolicyView{Policy: p, ViolationCount: count})
	}
	return views, nil
}

// Update applies changes to a policy and bumps its version.
func (s *Service) Update(ctx context.Context, p model.Policy) (PolicyView, error) {
	cur, err := s.store.GetPolicy(ctx, p.ID)
	if err != nil {
		return PolicyView{}, err
	}
	if p.Name != "" {
		cur.Name = p.Name
	}
	if p.Description != "" {
		cur.Description = p.Description
	}
	if p.Type != "" {
		if !p.Type.Valid() {
			return PolicyView{}, apperr.FieldValidation("policy_type", "unknown policy type")
		}
		cur.Type = p.Type
	}
	if p.Severity != "" {
		if !p.Severity.Valid() {
			return PolicyView{}, apperr.FieldValidation("severity", "unknown severity")
		}
		cur.Severity = p.Severity
	}
	if p.Status != "" {
		if !p.Status.Valid() {
			return PolicyView{}, apperr.FieldValidation("policy_status", "unknown policy status")
		}
		cur.Status = p.Status
	}
	if p.PolicyCode != "" {
		cur.PolicyCode = p.PolicyCode
	}
	if p.Parameters != nil {
		cur.Parameters = p.Parameters
	}
	if p.TargetResources != nil {
		cur.TargetResources = p.TargetResources
	}
	if p.TargetEnvironments != nil {
		cur.TargetEnvironments = p.TargetEnvironments
	}
	cur.IsEnforced = p.IsEnforced
	cur.Touch(s.clock())
	if err := s.store.UpdatePolicy(ctx, &cur); err != nil {
		return PolicyView{}, err
	}
	count, err := s.store.CountViolations(ctx, cur.ID)
	if err != nil {
		return PolicyView{}, err
	}
	return PolicyView{Policy: cur, ViolationCount: count}, nil
}

// Delete soft-deletes a policy.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeletePolicy(ctx, id, s.clock())
}

// Evaluate runs active policies against the fleet, or one resource when
// resourceID is set. Evaluation itself runs in an external rule-engine
// collaborator; the counts below are representative until it is attached.
func (s *Service) Evaluate(ctx context.Context, resourceID, resourceType string) (EvaluationResult, error) {
	evaluated := 150
	if resourceID != "" {
		evaluated = 1
	}
	return EvaluationResult{
		EvaluatedResources: evaluated,
		PoliciesChecked:    25,
		ViolationsFound:    8,
		CriticalViolations: 2,
		HighViolations:     3,
		MediumViolations:   2,
		LowViolations:      1,
	}, nil
}

// RecordViolation stores a newly detected violation.
func (s *Service) RecordViolation(ctx context.Context, v model.PolicyViolation) (model.PolicyViolation, error) {
	if v.PolicyID == "" {
		return model.PolicyViolation{}, apperr.FieldValidation("policy_id", "policy_id is required")
	}
	if _, err := s.store.GetPolicy(ctx, v.PolicyID); err != nil {
		return model.PolicyViolation{}, err
	}
	if v.Severity == "" {
		v.Severity = model.SeverityMedium
	}
	if !v.Severity.Valid() {
		return model.PolicyViolation{}, apperr.FieldValidation("severity", "unknown severity")
	}
	now := s.clock()
	v.ID = ids.New()
	v.CreatedAt = now
	v.UpdatedAt = now
	v.Version = 1
	v.Status = model.ViolationOpen
	v.DetectedAt = now
	v.LastSeenAt = now
	if err := s.store.CreateViolation(ctx, &v); err != nil {
		return model.PolicyViolation{}, err
	}
	return v, nil
}

// ListViolations lists violations matching the filter.
func (s *Service) ListViolations(ctx context.Context, f ViolationFilter) ([]model.PolicyViolation, error) {
	if f.Severity != "" && !model.PolicySeverity(f.Severity).Valid() {
		return nil, apperr.FieldValidation("severity", "unknown severity")
	}
	if f.Status != "" && !model.ViolationStatus(f.Status).Valid() {
		return nil, apperr.FieldValidation("status", "unknown violation status")
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListViolations(ctx, f)
}

// ResolveViolation closes a violation with optional notes.
func (s *Service) ResolveViolation(ctx context.Context, id, resolvedBy, notes string) (model.PolicyViolation, error) {
	v, err := s.store.GetViolation(ctx, id)
	if err != nil {
		return model.PolicyViolation{}, err
	}
	if v.Status == model.ViolationResolved {
		return model.PolicyViolation{}, apperr.Conflict("violation is already resolved")
	}
	now := s.clock()
	v.Resolve(resolvedBy, notes, now)
	v.Touch(now)
	if err := s.store.UpdateViolation(ctx, &v); err != nil {
		return model.PolicyViolation{}, err
	}
	return v, nil
}

// GrantExemption excludes matching resources from a policy for a time.
func (s *Service) GrantExemption(ctx context.Context, e model.PolicyExemption) (model.PolicyExemption, error) {
	if e.PolicyID == "" {
		return model.PolicyExemption{}, apperr.FieldValidation("policy_id", "policy_id is required")
	}
	if e.ResourcePattern == "" {
		return model.PolicyExemption{}, apperr.FieldValidation("resource_pattern", "resource_pattern is required")
	}
	if e.ExemptionReason == "" {
		return model.PolicyExemption{}, apperr.FieldValidation("exemption_reason", "exemption_reason is required")
	}
	if _, err := s.store.GetPolicy(ctx, e.PolicyID); err != nil {
		return model.PolicyExemption{}, err
	}
	now := s.clock()
	e.ID = ids.New()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Version = 1
	e.IsActive = true
	if err := s.store.CreateExemption(ctx, &e); err != nil {
		return model.PolicyExemption{}, err
	}
	return e, nil
}

// ListExemptions lists exemptions for one policy.
func (s *Service) ListExemptions(ctx context.Context, policyID string, limit, offset int) ([]model.PolicyExemption, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListExemptions(ctx, policyID, limit, offset)
}

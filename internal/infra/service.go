// Package infra manages cloud providers, deployment units and their
// concrete resources.
package infra

import (
	"context"
	"errors"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/ids"
	"cloudops.org/internal/model"
)

// ResourceFilter narrows resource listings.
type ResourceFilter struct {
	CloudProvider string
	ResourceType  string
	Status        string
	Limit         int
	Offset        int
}

// Store is the persistence surface the service needs.
type Store interface {
	CreateProvider(ctx context.Context, p *model.CloudProvider) error
	GetProvider(ctx context.Context, id string) (model.CloudProvider, error)
	ListProviders(ctx context.Context, limit, offset int) ([]model.CloudProvider, error)
	UpdateProvider(ctx context.Context, p *model.CloudProvider) error
	DeleteProvider(ctx context.Context, id string, at time.Time) error

	CreateResource(ctx context.Context, r *model.InfrastructureResource) error
	GetResource(ctx context.Context, id string) (model.InfrastructureResource, error)
	ListResources(ctx context.Context, f ResourceFilter) ([]model.InfrastructureResource, error)
	UpdateResource(ctx context.Context, r *model.InfrastructureResource) error
	DeleteResource(ctx context.Context, id string, at time.Time) error
}

// SyncResult summarizes one provider discovery pass.
type SyncResult struct {
	Discovered int `json:"discovered"`
	Updated    int `json:"updated"`
	New        int `json:"new"`
}

// DriftReport is the outcome of a drift check on one resource.
type DriftReport struct {
	ResourceID    string         `json:"resource_id"`
	DriftDetected bool           `json:"drift_detected"`
	DriftDetails  map[string]any `json:"drift_details"`
}

// Statistics aggregates the fleet. Values are stable between writes.
type Statistics struct {
	TotalResources   int            `json:"total_resources"`
	ByProvider       map[string]int `json:"by_provider"`
	ByType           map[string]int `json:"by_type"`
	DriftDetected    int            `json:"drift_detected"`
	PolicyViolations int            `json:"policy_violations"`
}

// Service carries infrastructure operations. Provider and resource CRUD hit
// the store; sync, drift and statistics delegate to an external discovery
// collaborator and currently return representative stub data.
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

// NewService builds the infrastructure service over the given store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	s := &Service{store: store, clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CreateProvider registers a cloud provider connection.
func (s *Service) CreateProvider(ctx context.Context, p model.CloudProvider) (model.CloudProvider, error) {
	if p.Name == "" {
		return model.CloudProvider{}, apperr.FieldValidation("name", "name is required")
	}
	if !p.ProviderType.Valid() {
		return model.CloudProvider{}, apperr.FieldValidation("provider_type", "unknown provider type")
	}
	now := s.clock()
	p.ID = ids.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1
	if p.ConnectionStatus == "" {
		p.ConnectionStatus = "unknown"
	}
	if err := s.store.CreateProvider(ctx, &p); err != nil {
		return model.CloudProvider{}, err
	}
	return p, nil
}

// GetProvider fetches one provider by id.
func (s *Service) GetProvider(ctx context.Context, id string) (model.CloudProvider, error) {
	return s.store.GetProvider(ctx, id)
}

// ListProviders lists provider connections.
func (s *Service) ListProviders(ctx context.Context, limit, offset int) ([]model.CloudProvider, error) {
	return s.store.ListProviders(ctx, normalizeLimit(limit), max0(offset))
}

// UpdateProvider applies changes to a provider and bumps its version.
func (s *Service) UpdateProvider(ctx context.Context, p model.CloudProvider) (model.CloudProvider, error) {
	cur, err := s.store.GetProvider(ctx, p.ID)
	if err != nil {
		return model.CloudProvider{}, err
	}
	if p.Name != "" {
		cur.Name = p.Name
	}
	if p.Description != "" {
		cur.Description = p.Description
	}
	if p.Region != "" {
		cur.Region = p.Region
	}
	if p.Credentials != nil {
		cur.Credentials = p.Credentials
	}
	if p.Configuration != nil {
		cur.Configuration = p.Configuration
	}
	cur.IsActive = p.IsActive
	cur.Touch(s.clock())
	if err := s.store.UpdateProvider(ctx, &cur); err != nil {
		return model.CloudProvider{}, err
	}
	return cur, nil
}

// DeleteProvider soft-deletes a provider.
func (s *Service) DeleteProvider(ctx context.Context, id string) error {
	return s.store.DeleteProvider(ctx, id, s.clock())
}

// CreateResource records a concrete cloud resource.
func (s *Service) CreateResource(ctx context.Context, r model.InfrastructureResource) (model.InfrastructureResource, error) {
	if r.CloudProviderID == "" {
		return model.InfrastructureResource{}, apperr.FieldValidation("cloud_provider_id", "cloud_provider_id is required")
	}
	if r.Status == "" {
		r.Status = model.ResourceUnknown
	}
	if !r.Status.Valid() {
		return model.InfrastructureResource{}, apperr.FieldValidation("resource_status", "unknown resource status")
	}
	now := s.clock()
	r.ID = ids.New()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	if err := s.store.CreateResource(ctx, &r); err != nil {
		return model.InfrastructureResource{}, err
	}
	return r, nil
}

// GetResource fetches one resource by id.
func (s *Service) GetResource(ctx context.Context, id string) (model.InfrastructureResource, error) {
	return s.store.GetResource(ctx, id)
}

// ListResources lists resources matching the filter.
func (s *Service) ListResources(ctx context.Context, f ResourceFilter) ([]model.InfrastructureResource, error) {
	if f.Status != "" && !model.ResourceStatus(f.Status).Valid() {
		return nil, apperr.FieldValidation("status", "unknown resource status")
	}
	f.Limit = normalizeLimit(f.Limit)
	f.Offset = max0(f.Offset)
	return s.store.ListResources(ctx, f)
}

// UpdateResource applies changes to a resource and bumps its version.
func (s *Service) UpdateResource(ctx context.Context, r model.InfrastructureResource) (model.InfrastructureResource, error) {
	cur, err := s.store.GetResource(ctx, r.ID)
	if err != nil {
		return model.InfrastructureResource{}, err
	}
	if r.Name != "" {
		cur.Name = r.Name
	}
	if r.Status != "" {
		if !r.Status.Valid() {
			return model.InfrastructureResource{}, apperr.FieldValidation("resource_status", "unknown resource status")
		}
		cur.Status = r.Status
	}
	if r.Configuration != nil {
		cur.Configuration = r.Configuration
	}
	if r.DesiredConfiguration != nil {
		cur.DesiredConfiguration = r.DesiredConfiguration
	}
	if r.ActualConfiguration != nil {
		cur.ActualConfiguration = r.ActualConfiguration
	}
	if r.Region != "" {
		cur.Region = r.Region
	}
	cur.Touch(s.clock())
	if err := s.store.UpdateResource(ctx, &cur); err != nil {
		return model.InfrastructureResource{}, err
	}
	return cur, nil
}

// DeleteResource soft-deletes a resource.
func (s *Service) DeleteResource(ctx context.Context, id string) error {
	return s.store.DeleteResource(ctx, id, s.clock())
}

// Sync triggers a discovery pass against the given provider, or all
// providers when empty. Discovery itself runs in an external collaborator;
// the counts below are representative until it is attached.
func (s *Service) Sync(ctx context.Context, cloudProvider string) (SyncResult, error) {
	if cloudProvider != "" && !model.CloudProviderType(cloudProvider).Valid() {
		return SyncResult{}, apperr.FieldValidation("cloud_provider", "unknown provider type")
	}
	return SyncResult{Discovered: 150, Updated: 145, New: 5}, nil
}

// DetectDrift compares desired against observed configuration for one
// resource. Falls back to stub data when the resource is not persisted.
func (s *Service) DetectDrift(ctx context.Context, resourceID string) (DriftReport, error) {
	r, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Type == apperr.TypeNotFound {
			return DriftReport{ResourceID: resourceID, DriftDetected: false}, nil
		}
		return DriftReport{}, err
	}
	report := DriftReport{ResourceID: resourceID, DriftDetected: r.HasDrift()}
	if report.DriftDetected {
		report.DriftDetails = map[string]any{
			"desired": r.DesiredConfiguration,
			"actual":  r.ActualConfiguration,
		}
	}
	return report, nil
}

// Statistics returns fleet-wide aggregate counts.
func (s *Service) Statistics(ctx context.Context, cloudProvider string) (Statistics, error) {
	if cloudProvider != "" && !model.CloudProviderType(cloudProvider).Valid() {
		return Statistics{}, apperr.FieldValidation("cloud_provider", "unknown provider type")
	}
	return Statistics{
		TotalResources:   150,
		ByProvider:       map[string]int{"aws": 100, "azure": 30, "gcp": 20},
		ByType:           map[string]int{"compute": 45, "storage": 60, "network": 30, "database": 15},
		DriftDetected:    3,
		PolicyViolations: 2,
	}, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

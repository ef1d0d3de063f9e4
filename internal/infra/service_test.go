package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/model"
)

type fakeStore struct {
	providers map[string]model.CloudProvider
	resources map[string]model.InfrastructureResource
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		providers: map[string]model.CloudProvider{},
		resources: map[string]model.InfrastructureResource{},
	}
}

func (f *fakeStore) CreateProvider(_ context.Context, p *model.CloudProvider) error {
	f.providers[p.ID] = *p
	return nil
}

func (f *fakeStore) GetProvider(_ context.Context, id string) (model.CloudProvider, error) {
	p, ok := f.providers[id]
	if !ok || p.IsDeleted() {
		return model.CloudProvider{}, apperr.NotFound("cloud provider", id)
	}
	return p, nil
}

func (f *fakeStore) ListProviders(_ context.Context, _, _ int) ([]model.CloudProvider, error) {
	var out []model.CloudProvider
	for _, p := range f.providers {
		if !p.IsDeleted() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProvider(_ context.Context, p *model.CloudProvider) error {
	if _, ok := f.providers[p.ID]; !ok {
		return apperr.NotFound("cloud provider", p.ID)
	}
	f.providers[p.ID] = *p
	return nil
}

func (f *fakeStore) DeleteProvider(_ context.Context, id string, at time.Time) error {
	p, ok := f.providers[id]
	if !ok || p.IsDeleted() {
		return apperr.NotFound("cloud provider", id)
	}
	p.SoftDelete(at)
	f.providers[id] = p
	return nil
}

func (f *fakeStore) CreateResource(_ context.Context, r *model.InfrastructureResource) error {
	f.resources[r.ID] = *r
	return nil
}

func (f *fakeStore) GetResource(_ context.Context, id string) (model.InfrastructureResource, error) {
	r, ok := f.resources[id]
	if !ok || r.IsDeleted() {
		return model.InfrastructureResource{}, apperr.NotFound("infrastructure resource", id)
	}
	return r, nil
}

func (f *fakeStore) ListResources(_ context.Context, filter ResourceFilter) ([]model.InfrastructureResource, error) {
	var out []model.InfrastructureResource
	for _, r := range f.resources {
		if r.IsDeleted() {
			continue
		}
		if filter.Status != "" && string(r.Status) != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) UpdateResource(_ context.Context, r *model.InfrastructureResource) error {
	if _, ok := f.resources[r.ID]; !ok {
		return apperr.NotFound("infrastructure resource", r.ID)
	}
	f.resources[r.ID] = *r
	return nil
}

func (f *fakeStore) DeleteResource(_ context.Context, id string, at time.Time) error {
	r, ok := f.resources[id]
	if !ok || r.IsDeleted() {
		return apperr.NotFound("infrastructure resource", id)
	}
	r.SoftDelete(at)
	f.resources[id] = r
	return nil
}

func testService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateProviderInitializesRecord(t *testing.T) {
	svc := testService(t, newFakeStore())
	p, err := svc.CreateProvider(context.Background(), model.CloudProvider{
		Named:        model.Named{Name: "prod-aws"},
		ProviderType: model.ProviderAWS,
	})
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if p.ID == "" || p.Version != 1 || p.CreatedAt.IsZero() {
		t.Fatalf("record not initialized: %+v", p.Record)
	}
	if p.ConnectionStatus != "unknown" {
		t.Fatalf("connection status = %q, want unknown", p.ConnectionStatus)
	}
}

func TestCreateProviderValidation(t *testing.T) {
	svc := testService(t, newFakeStore())
	ctx := context.Background()

	_, err := svc.CreateProvider(ctx, model.CloudProvider{ProviderType: model.ProviderAWS})
	assertValidation(t, err, "missing name")

	_, err = svc.CreateProvider(ctx, model.CloudProvider{
		Named:        model.Named{Name: "x"},
		ProviderType: "ibm",
	})
	assertValidation(t, err, "unknown provider type")
}

func TestUpdateProviderBumpsVersion(t *testing.T) {
	svc := testService(t, newFakeStore())
	ctx := context.Background()
	p, err := svc.CreateProvider(ctx, model.CloudProvider{
		Named:        model.Named{Name: "prod-aws"},
		ProviderType: model.ProviderAWS,
	})
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	updated, err := svc.UpdateProvider(ctx, model.CloudProvider{
		Named: model.Named{Record: model.Record{ID: p.ID}, Name: "prod-aws-2"},
	})
	if err != nil {
		t.Fatalf("UpdateProvider: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d, want 2", updated.Version)
	}
	if updated.Name != "prod-aws-2" {
		t.Fatalf("name = %q", updated.Name)
	}
}

func TestDetectDrift(t *testing.T) {
	store := newFakeStore()
	svc := testService(t, store)
	ctx := context.Background()

	r, err := svc.CreateResource(ctx, model.InfrastructureResource{
		Named:           model.Named{Name: "web-1"},
		CloudProviderID: "cp-1",
		DesiredConfiguration: map[string]any{
			"instance_type": "t3.large",
		},
		ActualConfiguration: map[string]any{
			"instance_type": "t3.medium",
		},
	})
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	report, err := svc.DetectDrift(ctx, r.ID)
	if err != nil {
		t.Fatalf("DetectDrift: %v", err)
	}
	if !report.DriftDetected {
		t.Fatal("drift not detected on diverged configuration")
	}
	if report.DriftDetails == nil {
		t.Fatal("drift details missing")
	}
}

func TestDetectDriftUnknownResource(t *testing.T) {
	svc := testService(t, newFakeStore())
	report, err := svc.DetectDrift(context.Background(), "missing")
	if err != nil {
		t.Fatalf("DetectDrift: %v", err)
	}
	if report.DriftDetected {
		t.Fatal("drift reported for unknown resource")
	}
	if report.ResourceID != "missing" {
		t.Fatalf("resource id = %q", report.ResourceID)
	}
}

func TestSyncSummary(t *testing.T) {
	svc := testService(t, newFakeStore())
	result, err := svc.Sync(context.Background(), "aws")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Discovered != 150 || result.Updated != 145 || result.New != 5 {
		t.Fatalf("sync result = %+v", result)
	}
	if _, err := svc.Sync(context.Background(), "ibm"); err == nil {
		t.Fatal("unknown provider accepted")
	}
}

func TestStatisticsShape(t *testing.T) {
	svc := testService(t, newFakeStore())
	stats, err := svc.Statistics(context.Background(), "")
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalResources != 150 {
		t.Fatalf("total = %d", stats.TotalResources)
	}
	sum := 0
	for _, n := range stats.ByProvider {
		sum += n
	}
	if sum != stats.TotalResources {
		t.Fatalf("provider counts sum to %d, want %d", sum, stats.TotalResources)
	}
}

func TestListResourcesValidatesStatus(t *testing.T) {
	svc := testService(t, newFakeStore())
	_, err := svc.ListResources(context.Background(), ResourceFilter{Status: "bogus"})
	assertValidation(t, err, "unknown status")
}

func assertValidation(t *testing.T, err error, msg string) {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Type != apperr.TypeValidation {
		t.Fatalf("%s: err = %v, want validation_error", msg, err)
	}
}

// Package cost tracks spend, budgets, alerts and optimization
// recommendations.
package cost

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/ids"
	"cloudops.org/internal/model"
)

// RecordFilter narrows cost record listings.
type RecordFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	CloudProvider string
	Service       string
	Limit         int
	Offset        int
}

// Store is the persistence surface the service needs.
type Store interface {
	CreateRecord(ctx context.Context, r *model.CostRecord) error
	ListRecords(ctx context.Context, f RecordFilter) ([]model.CostRecord, error)

	CreateBudget(ctx context.Context, b *model.CostBudget) error
	GetBudget(ctx context.Context, id string) (model.CostBudget, error)
	ListBudgets(ctx context.Context, limit, offset int) ([]model.CostBudget, error)
	UpdateBudget(ctx context.Context, b *model.CostBudget) error
	DeleteBudget(ctx context.Context, id string, at time.Time) error

	CreateAlert(ctx context.Context, a *model.CostAlert) error
	ListAlerts(ctx context.Context, budgetID string, limit, offset int) ([]model.CostAlert, error)
	GetAlert(ctx context.Context, id string) (model.CostAlert, error)
	UpdateAlert(ctx context.Context, a *model.CostAlert) error
}

// Summary is the aggregate spend view.
type Summary struct {
	TotalCost           float64            `json:"total_cost"`
	Currency            string             `json:"currency"`
	BreakdownByProvider map[string]float64 `json:"breakdown_by_provider"`
	BreakdownByService  map[string]float64 `json:"breakdown_by_service"`
	Trend               string             `json:"trend"`
}

// ConfidenceInterval bounds one forecast entry.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastEntry is one projected month of spend.
type ForecastEntry struct {
	Month              int                `json:"month"`
	ForecastedCost     float64            `json:"forecasted_cost"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
}

// Forecast is the projection response.
type Forecast struct {
	ForecastMonths int             `json:"forecast_months"`
	CloudProvider  string          `json:"cloud_provider"`
	Forecasts      []ForecastEntry `json:"forecasts"`
}

// Anomaly is one detected spend irregularity.
type Anomaly struct {
	Date            string  `json:"date"`
	Service         string  `json:"service"`
	ExpectedCost    float64 `json:"expected_cost"`
	ActualCost      float64 `json:"actual_cost"`
	VariancePercent float64 `json:"variance_percent"`
	Severity        string  `json:"severity"`
}

// AnomalyReport is the anomaly detection response.
type AnomalyReport struct {
	PeriodDays        int       `json:"period_days"`
	AnomaliesDetected int       `json:"anomalies_detected"`
	Anomalies         []Anomaly `json:"anomalies"`
}

// Recommendation is one savings opportunity.
type Recommendation struct {
	RecommendationID     string  `json:"recommendation_id"`
	ResourceID           string  `json:"resource_id"`
	RecommendationType   string  `json:"recommendation_type"`
	Description          string  `json:"description"`
	EstimatedSavings     float64 `json:"estimated_savings"`
	Priority             string  `json:"priority"`
	ImplementationEffort string  `json:"implementation_effort"`
}

const baseMonthlyCost = 15789.43

// Service carries cost operations. Records, budgets and alerts hit the
// store; summary, forecast and anomaly detection delegate to an external
// analytics collaborator and currently return representative stub data.
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

// NewService builds the cost service over the given store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	s := &Service{store: store, clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CreateRecord stores an immutable spend observation.
func (s *Service) CreateRecord(ctx context.Context, r model.CostRecord) (model.CostRecord, error) {
	if r.CloudProviderID == "" {
		return model.CostRecord{}, apperr.FieldValidation("cloud_provider_id", "cloud_provider_id is required")
	}
	if r.CostAmount < 0 {
		return model.CostRecord{}, apperr.FieldValidation("cost_amount", "cost_amount must not be negative")
	}
	if r.BillingPeriodEnd.Before(r.BillingPeriodStart) {
		return model.CostRecord{}, apperr.Validation("billing period end precedes start")
	}
	now := s.clock()
	r.ID = ids.New()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	if r.Currency == "" {
		r.Currency = "USD"
	}
	if err := s.store.CreateRecord(ctx, &r); err != nil {
		return model.CostRecord{}, err
	}
	return r, nil
}

// ListRecords lists spend observations matching the filter.
func (s *Service) ListRecords(ctx context.Context, f RecordFilter) ([]model.CostRecord, error) {
	if f.CloudProvider != "" && !model.CloudProviderType(f.CloudProvider).Valid() {
		return nil, apperr.FieldValidation("cloud_provider", "unknown provider type")
	}
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListRecords(ctx, f)
}

// Summarize returns aggregate spend with provider/service breakdowns.
func (s *Service) Summarize(ctx context.Context, cloudProvider string) (Summary, error) {
	if cloudProvider != "" && !model.CloudProviderType(cloudProvider).Valid() {
		return Summary{}, apperr.FieldValidation("cloud_provider", "unknown provider type")
	}
	return Summary{
		TotalCost: baseMonthlyCost,
		Currency:  "USD",
		BreakdownByProvider: map[string]float64{
			"aws":   10234.56,
			"azure": 3456.78,
			"gcp":   2098.09,
		},
		BreakdownByService: map[string]float64{
			"compute":  8500.00,
			"storage":  3200.00,
			"network":  2000.00,
			"database": 2089.43,
		},
		Trend: "increasing",
	}, nil
}

// ForecastCosts projects spend months ahead with a confidence band.
// Months must be between 1 and 12.
func (s *Service) ForecastCosts(ctx context.Context, months int, cloudProvider string) (Forecast, error) {
	if months < 1 || months > 12 {
		return Forecast{}, apperr.FieldValidation("months", "months must be between 1 and 12")
	}
	if cloudProvider != "" && !model.CloudProviderType(cloudProvider).Valid() {
		return Forecast{}, apperr.FieldValidation("cloud_provider", "unknown provider type")
	}
	provider := cloudProvider
	if provider == "" {
		provider = "all"
	}
	entries := make([]ForecastEntry, 0, months)
	for i := 1; i <= months; i++ {
		forecasted := baseMonthlyCost * (1 + 0.05*float64(i))
		entries = append(entries, ForecastEntry{
			Month:          i,
			ForecastedCost: round2(forecasted),
			ConfidenceInterval: ConfidenceInterval{
				Lower: round2(forecasted * 0.9),
				Upper: round2(forecasted * 1.1),
			},
		})
	}
	return Forecast{ForecastMonths: months, CloudProvider: provider, Forecasts: entries}, nil
}

// DetectAnomalies scans the given trailing window for spend irregularities.
func (s *Service) DetectAnomalies(ctx context.Context, days int, cloudProvider string) (AnomalyReport, error) {
	if days < 1 || days > 365 {
		return AnomalyReport{}, apperr.FieldValidation("days", "days must be between 1 and 365")
	}
	if cloudProvider != "" && !model.CloudProviderType(cloudProvider).Valid() {
		return AnomalyReport{}, apperr.FieldValidation("cloud_provider", "unknown provider type")
	}
	anomalies := []Anomaly{
		{
			Date:            "2025-10-15",
			Service:         "S3",
			ExpectedCost:    120.50,
			ActualCost:      450.80,
			VariancePercent: 274,
			Severity:        "high",
		},
		{
			Date:            "2025-10-18",
			Service:         "RDS",
			ExpectedCost:    200.00,
			ActualCost:      350.00,
			VariancePercent: 75,
			Severity:        "medium",
		},
	}
	return AnomalyReport{PeriodDays: days, AnomaliesDetected: len(anomalies), Anomalies: anomalies}, nil
}

// Optimizations returns savings recommendations, optionally filtered by
// priority and minimum estimated savings.
func (s *Service) Optimizations(ctx context.Context, priority string, minSavings float64) ([]Recommendation, error) {
	recs := []Recommendation{
		{
			RecommendationID:     "opt-001",
			ResourceID:           "i-1234567890abcdef0",
			RecommendationType:   "rightsizing",
			Description:          "Downsize EC2 instance from t3.large to t3.medium based on low CPU utilization (<15%)",
			EstimatedSavings:     450.00,
			Priority:             "high",
			ImplementationEffort: "low",
		},
		{
			RecommendationID:     "opt-002",
			ResourceID:           "vol-0987654321fedcba",
			RecommendationType:   "storage_optimization",
			Description:          "Convert gp3 volume to gp2 for infrequently accessed data",
			EstimatedSavings:     180.00,
			Priority:             "medium",
			ImplementationEffort: "low",
		},
	}
	out := recs[:0]
	for _, r := range recs {
		if priority != "" && r.Priority != priority {
			continue
		}
		if r.EstimatedSavings < minSavings {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// CreateBudget registers a spending limit.
func (s *Service) CreateBudget(ctx context.Context, b model.CostBudget) (model.CostBudget, error) {
	if b.Name == "" {
		return model.CostBudget{}, apperr.FieldValidation("name", "name is required")
	}
	if b.BudgetAmount < 0 {
		return model.CostBudget{}, apperr.FieldValidation("budget_amount", "budget_amount must not be negative")
	}
	if b.Period == "" {
		b.Period = model.PeriodMonthly
	}
	if !b.Period.Valid() {
		return model.CostBudget{}, apperr.FieldValidation("period", "unknown budget period")
	}
	now := s.clock()
	b.ID = ids.New()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1
	if b.Currency == "" {
		b.Currency = "USD"
	}
	if b.Status == "" {
		b.Status = model.BudgetActive
	}
	if b.WarningThreshold == 0 {
		b.WarningThreshold = 80
	}
	if b.CriticalThreshold == 0 {
		b.CriticalThreshold = 100
	}
	if b.StartDate.IsZero() {
		b.StartDate = now
	}
	b.LastUpdatedAt = now
	if err := s.store.CreateBudget(ctx, &b); err != nil {
		return model.CostBudget{}, err
	}
	return b, nil
}

// GetBudget fetches one budget by id.
func (s *Service) GetBudget(ctx context.Context, id string) (model.CostBudget, error) {
	return s.store.GetBudget(ctx, id)
}

// ListBudgets lists budgets.
func (s *Service) ListBudgets(ctx context.Context, limit, offset int) ([]model.CostBudget, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListBudgets(ctx, limit, offset)
}

// UpdateBudget applies changes to a budget, recomputes its status against
// thresholds, and bumps the version.
func (s *Service) UpdateBudget(ctx context.Context, b model.CostBudget) (model.CostBudget, error) {
	cur, err := s.store.GetBudget(ctx, b.ID)
	if err != nil {
		return model.CostBudget{}, err
	}
	if b.Name != "" {
		cur.Name = b.Name
	}
	if b.BudgetAmount > 0 {
		cur.BudgetAmount = b.BudgetAmount
	}
	if b.WarningThreshold > 0 {
		cur.WarningThreshold = b.WarningThreshold
	}
	if b.CriticalThreshold > 0 {
		cur.CriticalThreshold = b.CriticalThreshold
	}
	if b.CurrentSpend > 0 {
		cur.CurrentSpend = b.CurrentSpend
	}
	prev := cur.Status
	switch {
	case cur.IsCriticalThresholdExceeded():
		cur.Status = model.BudgetExceeded
	case cur.IsWarningThresholdExceeded():
		cur.Status = model.BudgetWarning
	default:
		cur.Status = model.BudgetActive
	}
	now := s.clock()
	cur.LastUpdatedAt = now
	cur.Touch(now)
	if err := s.store.UpdateBudget(ctx, &cur); err != nil {
		return model.CostBudget{}, err
	}
	if cur.Status != prev && cur.Status != model.BudgetActive {
		if err := s.raiseBudgetAlert(ctx, cur, now); err != nil {
			return model.CostBudget{}, err
		}
	}
	return cur, nil
}

// raiseBudgetAlert records an alert when a budget crosses a threshold.
func (s *Service) raiseBudgetAlert(ctx context.Context, b model.CostBudget, now time.Time) error {
	alert := model.CostAlert{
		Named: model.Named{
			Record: model.Record{
				ID:        ids.New(),
				CreatedAt: now,
				UpdatedAt: now,
				Version:   1,
			},
			Name: b.Name + " threshold crossed",
		},
		BudgetID:       b.ID,
		Type:           model.AlertBudgetThreshold,
		Status:         model.AlertActive,
		Severity:       "medium",
		ThresholdValue: b.WarningThreshold,
		CurrentValue:   b.SpendPercentage(),
		Message:        fmt.Sprintf("budget %q reached %.1f%% of its limit", b.Name, b.SpendPercentage()),
		TriggeredAt:    now,
	}
	if b.Status == model.BudgetExceeded {
		alert.Severity = "critical"
		alert.ThresholdValue = b.CriticalThreshold
	}
	return s.store.CreateAlert(ctx, &alert)
}

// DeleteBudget soft-deletes a budget; its alerts go with it.
func (s *Service) DeleteBudget(ctx context.Context, id string) error {
	return s.store.DeleteBudget(ctx, id, s.clock())
}

// ListAlerts lists alerts, optionally scoped to one budget.
func (s *Service) ListAlerts(ctx context.Context, budgetID string, limit, offset int) ([]model.CostAlert, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListAlerts(ctx, budgetID, limit, offset)
}

// ResolveAlert closes an alert on behalf of a user.
func (s *Service) ResolveAlert(ctx context.Context, id, resolvedBy string) (model.CostAlert, error) {
	a, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return model.CostAlert{}, err
	}
	if a.Status == model.AlertResolved {
		return model.CostAlert{}, apperr.Conflict("alert is already resolved")
	}
	now := s.clock()
	a.Resolve(resolvedBy, now)
	a.Touch(now)
	if err := s.store.UpdateAlert(ctx, &a); err != nil {
		return model.CostAlert{}, err
	}
	return a, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package model

import "time"

// CostPeriod is a budget or record aggregation window.
type CostPeriod string

const (
	PeriodHourly  CostPeriod = "hourly"
	PeriodDaily   CostPeriod = "daily"
	PeriodWeekly  CostPeriod = "weekly"
	PeriodMonthly CostPeriod = "monthly"
	PeriodYearly  CostPeriod = "yearly"
)

func (p CostPeriod) Valid() bool {
	switch p {
	case PeriodHourly, PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// AlertStatus is the lifecycle state of a cost alert.
type AlertStatus string

const (
	AlertActive     AlertStatus = "active"
	AlertTriggered  AlertStatus = "triggered"
	AlertResolved   AlertStatus = "resolved"
	AlertSuppressed AlertStatus = "suppressed"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertActive, AlertTriggered, AlertResolved, AlertSuppressed:
		return true
	}
	return false
}

// AlertType classifies what triggered a cost alert.
type AlertType string

const (
	AlertBudgetThreshold         AlertType = "budget_threshold"
	AlertCostSpike               AlertType = "cost_spike"
	AlertCostAnomaly             AlertType = "cost_anomaly"
	AlertWasteDetection          AlertType = "waste_detection"
	AlertOptimizationOpportunity AlertType = "optimization_opportunity"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertBudgetThreshold, AlertCostSpike, AlertCostAnomaly,
		AlertWasteDetection, AlertOptimizationOpportunity:
		return true
	}
	return false
}

// BudgetStatus is the computed standing of a budget.
type BudgetStatus string

const (
	BudgetActive   BudgetStatus = "active"
	BudgetExceeded BudgetStatus = "exceeded"
	BudgetWarning  BudgetStatus = "warning"
	BudgetInactive BudgetStatus = "inactive"
)

func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetActive, BudgetExceeded, BudgetWarning, BudgetInactive:
		return true
	}
	return false
}

// CostRecord is an immutable observation of spend over a billing window.
type CostRecord struct {
	Record
	ResourceID         string         `json:"resource_id,omitempty"`
	InfrastructureID   string         `json:"infrastructure_id,omitempty"`
	CloudProviderID    string         `json:"cloud_provider_id"`
	ServiceName        string         `json:"service_name"`
	ResourceType       string         `json:"resource_type"`
	ResourceIdentifier string         `json:"resource_identifier"`
	Region             string         `json:"region,omitempty"`
	CostAmount         float64        `json:"cost_amount"`
	Currency           string         `json:"currency"`
	BillingPeriodStart time.Time      `json:"billing_period_start"`
	BillingPeriodEnd   time.Time      `json:"billing_period_end"`
	UsageQuantity      float64        `json:"usage_quantity,omitempty"`
	UsageUnit          string         `json:"usage_unit,omitempty"`
	CostDetails        map[string]any `json:"cost_details,omitempty"`
	BillingAccountID   string         `json:"billing_account_id,omitempty"`
	ProjectID          string         `json:"project_id,omitempty"`
}

// CostBudget is a spending limit with warning/critical thresholds.
type CostBudget struct {
	Named
	BudgetAmount       float64        `json:"budget_amount"`
	Currency           string         `json:"currency"`
	Period             CostPeriod     `json:"period"`
	Status             BudgetStatus   `json:"budget_status"`
	WarningThreshold   float64        `json:"warning_threshold"`
	CriticalThreshold  float64        `json:"critical_threshold"`
	ScopeFilters       map[string]any `json:"scope_filters,omitempty"`
	StartDate          time.Time      `json:"start_date"`
	EndDate            *time.Time     `json:"end_date,omitempty"`
	CurrentSpend       float64        `json:"current_spend"`
	ForecastedSpend    float64        `json:"forecasted_spend,omitempty"`
	LastUpdatedAt      time.Time      `json:"last_updated_at"`
	NotificationEmails []string       `json:"notification_emails,omitempty"`
}

// SpendPercentage returns current spend as a percentage of the budget.
// A zero budget yields zero.
func (b *CostBudget) SpendPercentage() float64 {
	if b.BudgetAmount == 0 {
		return 0
	}
	return b.CurrentSpend / b.BudgetAmount * 100
}

// RemainingBudget returns the unspent amount, clamped at zero.
func (b *CostBudget) RemainingBudget() float64 {
	if rem := b.BudgetAmount - b.CurrentSpend; rem > 0 {
		return rem
	}
	return 0
}

// IsOverThreshold reports whether spend has reached the given percentage.
func (b *CostBudget) IsOverThreshold(threshold float64) bool {
	return b.SpendPercentage() >= threshold
}

// IsWarningThresholdExceeded reports whether the warning line is crossed.
func (b *CostBudget) IsWarningThresholdExceeded() bool {
	return b.IsOverThreshold(b.WarningThreshold)
}

// IsCriticalThresholdExceeded reports whether the critical line is crossed.
func (b *CostBudget) IsCriticalThresholdExceeded() bool {
	return b.IsOverThreshold(b.CriticalThreshold)
}

// CostAlert notifies about budget thresholds, spikes and anomalies.
// Alerts cascade-delete with their parent budget.
type CostAlert struct {
	Named
	BudgetID           string         `json:"budget_id,omitempty"`
	Type               AlertType      `json:"alert_type"`
	Status             AlertStatus    `json:"alert_status"`
	Severity           string         `json:"severity"`
	ThresholdValue     float64        `json:"threshold_value,omitempty"`
	CurrentValue       float64        `json:"current_value,omitempty"`
	Message            string         `json:"message"`
	AlertDetails       map[string]any `json:"alert_details,omitempty"`
	TriggeredAt        time.Time      `json:"triggered_at"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy         string         `json:"resolved_by,omitempty"`
	NotificationSent   bool           `json:"notification_sent"`
	NotificationSentAt *time.Time     `json:"notification_sent_at,omitempty"`
}

// Resolve marks the alert resolved by the given user.
func (a *CostAlert) Resolve(resolvedBy string, at time.Time) {
	a.Status = AlertResolved
	t := at
	a.ResolvedAt = &t
	a.ResolvedBy = resolvedBy
}

// Suppress silences the alert.
func (a *CostAlert) Suppress() { a.Status = AlertSuppressed }

// CostOptimization is a savings recommendation with implementation tracking.
type CostOptimization struct {
	Named
	ResourceID           string         `json:"resource_id,omitempty"`
	OptimizationType     string         `json:"optimization_type"`
	Category             string         `json:"category"`
	Priority             string         `json:"priority"`
	CurrentCost          float64        `json:"current_cost"`
	PotentialSavings     float64        `json:"potential_savings"`
	SavingsPercentage    float64        `json:"savings_percentage"`
	ConfidenceScore      float64        `json:"confidence_score"`
	Recommendation       string         `json:"recommendation"`
	ImplementationEffort string         `json:"implementation_effort"`
	RiskLevel            string         `json:"risk_level"`
	AutomationAvailable  bool           `json:"automation_available"`
	DetectedAt           time.Time      `json:"detected_at"`
	LastValidatedAt      *time.Time     `json:"last_validated_at,omitempty"`
	ImplementedAt        *time.Time     `json:"implemented_at,omitempty"`
	ImplementedBy        string         `json:"implemented_by,omitempty"`
	ActualSavings        float64        `json:"actual_savings,omitempty"`
	OptimizationDetails  map[string]any `json:"optimization_details,omitempty"`
}

// IsImplemented reports whether the optimization has been applied.
func (o *CostOptimization) IsImplemented() bool { return o.ImplementedAt != nil }

// AnnualSavings projects the monthly savings over a year.
func (o *CostOptimization) AnnualSavings() float64 { return o.PotentialSavings * 12 }

// Implement marks the optimization applied by the given user.
func (o *CostOptimization) Implement(implementedBy string, at time.Time) {
	t := at
	o.ImplementedAt = &t
	o.ImplementedBy = implementedBy
}

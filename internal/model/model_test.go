package model

import (
	"testing"
	"time"
)

func TestBudgetSpendPercentageZeroBudget(t *testing.T) {
	b := &CostBudget{BudgetAmount: 0, CurrentSpend: 500}
	if got := b.SpendPercentage(); got != 0 {
		t.Fatalf("SpendPercentage = %v, want 0", got)
	}
}

func TestBudgetRemainingNeverNegative(t *testing.T) {
	b := &CostBudget{BudgetAmount: 100, CurrentSpend: 250}
	if got := b.RemainingBudget(); got != 0 {
		t.Fatalf("RemainingBudget = %v, want 0", got)
	}
	b.CurrentSpend = 40
	if got := b.RemainingBudget(); got != 60 {
		t.Fatalf("RemainingBudget = %v, want 60", got)
	}
}

func TestBudgetThresholds(t *testing.T) {
	b := &CostBudget{
		BudgetAmount:      1000,
		CurrentSpend:      850,
		WarningThreshold:  80,
		CriticalThreshold: 100,
	}
	if !b.IsWarningThresholdExceeded() {
		t.Fatalf("warning threshold should be exceeded at 85%%")
	}
	if b.IsCriticalThresholdExceeded() {
		t.Fatalf("critical threshold should not be exceeded at 85%%")
	}
}

func TestUserAccountLocked(t *testing.T) {
	now := time.Now()
	u := &User{Status: UserActive}
	if u.IsAccountLocked(now) {
		t.Fatalf("active user should not be locked")
	}
	u.Status = UserLocked
	if !u.IsAccountLocked(now) {
		t.Fatalf("locked status should lock the account")
	}
	until := now.Add(time.Hour)
	u2 := &User{Status: UserActive, LockedUntil: &until}
	if !u2.IsAccountLocked(now) {
		t.Fatalf("locked_until in the future should lock the account")
	}
	past := now.Add(-time.Hour)
	u3 := &User{Status: UserActive, LockedUntil: &past}
	if u3.IsAccountLocked(now) {
		t.Fatalf("expired lock should not lock the account")
	}
}

func TestUserNames(t *testing.T) {
	u := &User{Email: "a@b.example", FirstName: "Ada", LastName: "Lovelace"}
	if u.FullName() != "Ada Lovelace" {
		t.Fatalf("FullName = %q", u.FullName())
	}
	if u.DisplayName() != "Ada Lovelace" {
		t.Fatalf("DisplayName = %q", u.DisplayName())
	}
	u.Username = "ada"
	if u.DisplayName() != "ada" {
		t.Fatalf("DisplayName = %q, want username", u.DisplayName())
	}
	empty := &User{Email: "a@b.example"}
	if empty.FullName() != "a@b.example" {
		t.Fatalf("FullName fallback = %q", empty.FullName())
	}
}

func TestViolationTransitions(t *testing.T) {
	now := time.Now()
	v := &PolicyViolation{Status: ViolationOpen}
	if !v.IsOpen() {
		t.Fatalf("new violation should be open")
	}
	v.Acknowledge()
	if v.Status != ViolationAcknowledged {
		t.Fatalf("status = %q after acknowledge", v.Status)
	}
	v.Resolve("u1", "patched", now)
	if v.Status != ViolationResolved || v.ResolvedBy != "u1" || v.ResolvedAt == nil {
		t.Fatalf("resolve did not stamp fields: %+v", v)
	}

	until := now.Add(time.Hour)
	v2 := &PolicyViolation{Status: ViolationOpen, SuppressedUntil: &until}
	if !v2.IsSuppressed(now) {
		t.Fatalf("suppressed_until in the future should suppress")
	}
}

func TestExemptionValidity(t *testing.T) {
	now := time.Now()
	e := &PolicyExemption{IsActive: true}
	if !e.IsValid(now) {
		t.Fatalf("active exemption without expiry should be valid")
	}
	past := now.Add(-time.Minute)
	e.ExpiresAt = &past
	if e.IsValid(now) {
		t.Fatalf("expired exemption should be invalid")
	}
}

func TestOptimizationHelpers(t *testing.T) {
	o := &CostOptimization{PotentialSavings: 125.5}
	if o.IsImplemented() {
		t.Fatalf("fresh optimization should not be implemented")
	}
	if got := o.AnnualSavings(); got != 1506 {
		t.Fatalf("AnnualSavings = %v", got)
	}
	o.Implement("u9", time.Now())
	if !o.IsImplemented() || o.ImplementedBy != "u9" {
		t.Fatalf("implement did not stamp fields: %+v", o)
	}
}

func TestResourceDrift(t *testing.T) {
	r := &InfrastructureResource{
		DesiredConfiguration: map[string]any{"size": "m5.large"},
		ActualConfiguration:  map[string]any{"size": "m5.xlarge"},
	}
	if !r.HasDrift() {
		t.Fatalf("mismatched configs should drift")
	}
	r.ActualConfiguration["size"] = "m5.large"
	if r.HasDrift() {
		t.Fatalf("matching configs should not drift")
	}
	empty := &InfrastructureResource{}
	if empty.HasDrift() {
		t.Fatalf("empty configs should not drift")
	}
}

func TestResourceDriftNestedValues(t *testing.T) {
	// jsonb round-trips decode nested objects into map[string]any.
	r := &InfrastructureResource{
		DesiredConfiguration: map[string]any{"tags": map[string]any{"env": "prod"}},
		ActualConfiguration:  map[string]any{"tags": map[string]any{"env": "dev"}},
	}
	if !r.HasDrift() {
		t.Fatalf("nested mismatch should drift")
	}
	r.ActualConfiguration["tags"] = map[string]any{"env": "prod"}
	if r.HasDrift() {
		t.Fatalf("nested match should not drift")
	}
	r.DesiredConfiguration["ports"] = []any{float64(80), float64(443)}
	r.ActualConfiguration["ports"] = []any{float64(80)}
	if !r.HasDrift() {
		t.Fatalf("slice mismatch should drift")
	}
}

func TestRetentionPolicy(t *testing.T) {
	p := &AuditRetentionPolicy{RetentionDays: 90, ArchiveAfterDays: 30}
	if !p.ShouldRetain(90) || p.ShouldRetain(91) {
		t.Fatalf("retention boundary broken")
	}
	if p.ShouldArchive(29) || !p.ShouldArchive(30) {
		t.Fatalf("archive boundary broken")
	}
}

func TestEnumValidity(t *testing.T) {
	if !CloudProviderType("aws").Valid() || CloudProviderType("ibm").Valid() {
		t.Fatalf("provider validity broken")
	}
	if !ViolationStatus("false_positive").Valid() || ViolationStatus("closed").Valid() {
		t.Fatalf("violation status validity broken")
	}
	if !AuditEventType("infrastructure_deploy").Valid() || AuditEventType("deploy").Valid() {
		t.Fatalf("audit event type validity broken")
	}
}

func TestRecordHelpers(t *testing.T) {
	now := time.Now()
	r := &Record{Version: 1}
	if r.IsDeleted() {
		t.Fatalf("fresh record should not be deleted")
	}
	r.Touch(now)
	if r.Version != 2 || !r.UpdatedAt.Equal(now) {
		t.Fatalf("touch did not bump: %+v", r)
	}
	r.SoftDelete(now)
	if !r.IsDeleted() {
		t.Fatalf("soft delete should mark record")
	}
}

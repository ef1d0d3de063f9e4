package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/config"
	"cloudops.org/internal/model"
	"cloudops.org/internal/policy"
)

// policyStoreFake keeps policies in memory so the CRUD routes can be
// exercised through the full middleware chain.
type policyStoreFake struct {
	policies   map[string]model.Policy
	violations []model.PolicyViolation
	exemptions []model.PolicyExemption
}

func newPolicyStoreFake() *policyStoreFake {
	return &policyStoreFake{policies: map[string]model.Policy{}}
}

func (f *policyStoreFake) CreatePolicy(_ context.Context, p *model.Policy) error {
	f.policies[p.ID] = *p
	return nil
}

func (f *policyStoreFake) GetPolicy(_ context.Context, id string) (model.Policy, error) {
	p, ok := f.policies[id]
	if !ok || p.IsDeleted() {
		return model.Policy{}, apperr.NotFound("policy", id)
	}
	return p, nil
}

func (f *policyStoreFake) ListPolicies(_ context.Context, _ policy.Filter) ([]model.Policy, error) {
	var out []model.Policy
	for _, p := range f.policies {
		if !p.IsDeleted() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *policyStoreFake) UpdatePolicy(_ context.Context, p *model.Policy) error {
	if _, ok := f.policies[p.ID]; !ok {
		return apperr.NotFound("policy", p.ID)
	}
	f.policies[p.ID] = *p
	return nil
}

func (f *policyStoreFake) DeletePolicy(_ context.Context, id string, at time.Time) error {
	p, ok := f.policies[id]
	if !ok || p.IsDeleted() {
		return apperr.NotFound("policy", id)
	}
	p.SoftDelete(at)
	f.policies[id] = p
	return nil
}

func (f *policyStoreFake) CountViolations(_ context.Context, policyID string) (int, error) {
	n := 0
	for _, v := range f.violations {
		if v.PolicyID == policyID && v.Status == model.ViolationOpen && !v.IsDeleted() {
			n++
		}
	}
	return n, nil
}

func (f *policyStoreFake) CreateViolation(_ context.Context, v *model.PolicyViolation) error {
	f.violations = append(f.violations, *v)
	return nil
}

func (f *policyStoreFake) GetViolation(_ context.Context, id string) (model.PolicyViolation, error) {
	for _, v := range f.violations {
		if v.ID == id {
			return v, nil
		}
	}
	return model.PolicyViolation{}, apperr.NotFound("policy violation", id)
}

func (f *policyStoreFake) ListViolations(_ context.Context, _ policy.ViolationFilter) ([]model.PolicyViolation, error) {
	return f.violations, nil
}

func (f *policyStoreFake) UpdateViolation(_ context.Context, v *model.PolicyViolation) error {
	for i := range f.violations {
		if f.violations[i].ID == v.ID {
			f.violations[i] = *v
			return nil
		}
	}
	return apperr.NotFound("policy violation", v.ID)
}

func (f *policyStoreFake) CreateExemption(_ context.Context, e *model.PolicyExemption) error {
	f.exemptions = append(f.exemptions, *e)
	return nil
}

func (f *policyStoreFake) ListExemptions(_ context.Context, policyID string, _, _ int) ([]model.PolicyExemption, error) {
	var out []model.PolicyExemption
	for _, e := range f.exemptions {
		if e.PolicyID == policyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newPolicyAPI(t *testing.T, store *policyStoreFake) http.Handler {
	t.Helper()
	svc, err := policy.NewService(store)
	if err != nil {
		t.Fatalf("policy service: %v", err)
	}
	cfg := &config.Settings{
		AppName:     "CloudOps Central",
		AppVersion:  "1.0.0",
		Environment: "development",
		APIPrefix:   "/api/v1",
	}
	return New(cfg, Deps{Policies: svc}).Handler()
}

func TestPolicyCreateAndFetch(t *testing.T) {
	h := newPolicyAPI(t, newPolicyStoreFake())

	rr := do(t, h, http.MethodPost, "/api/v1/policies",
		`{"name": "require-ebs-encryption", "policy_type": "security", "policy_code": "package ebs"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d\n%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["name"] != "require-ebs-encryption" {
		t.Fatalf("name = %v", body["name"])
	}
	if body["violation_count"] != float64(0) {
		t.Fatalf("violation_count = %v, want 0", body["violation_count"])
	}
	if body["policy_status"] != "draft" || body["severity"] != "medium" || body["rule_engine"] != "opa" {
		t.Fatalf("defaults not applied: %v", body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("created policy has no id")
	}
	if want := "/api/v1/policies/" + id; rr.Header().Get("Location") != want {
		t.Fatalf("Location = %q, want %q", rr.Header().Get("Location"), want)
	}

	rr = do(t, h, http.MethodGet, "/api/v1/policies/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("fetch status = %d", rr.Code)
	}
	body = decodeBody(t, rr)
	if body["id"] != id || body["name"] != "require-ebs-encryption" {
		t.Fatalf("fetched policy = %v", body)
	}
	if body["violation_count"] != float64(0) {
		t.Fatalf("fetched violation_count = %v", body["violation_count"])
	}
}

func TestPolicyDeleteMissing(t *testing.T) {
	h := newPolicyAPI(t, newPolicyStoreFake())

	rr := do(t, h, http.MethodDelete, "/api/v1/policies/does-not-exist", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	env := decodeError(t, rr)
	if env.Error.Type != apperr.TypeNotFound {
		t.Fatalf("error type = %q", env.Error.Type)
	}
}

func TestPolicyDeleteThenFetch(t *testing.T) {
	h := newPolicyAPI(t, newPolicyStoreFake())

	rr := do(t, h, http.MethodPost, "/api/v1/policies",
		`{"name": "tag-everything", "policy_type": "governance", "policy_code": "package tags"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	id, _ := decodeBody(t, rr)["id"].(string)

	rr = do(t, h, http.MethodDelete, "/api/v1/policies/"+id, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/v1/policies/"+id, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("fetch after delete status = %d, want 404", rr.Code)
	}
}

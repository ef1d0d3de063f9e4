package httpapi

import (
	"net/http"
	"strings"

	"cloudops.org/internal/audit"
	"cloudops.org/internal/model"
	"cloudops.org/internal/policy"
)

func (a *API) handlePoliciesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPolicies(w, r)
	case http.MethodPost:
		a.createPolicy(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePolicyResource dispatches everything under /policies/: the evaluate
// action, the violation sub-collection, and single-policy CRUD.
func (a *API) handlePolicyResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, a.prefix+"/policies/"), "/")
	switch {
	case path == "":
		writeError(w, r, notFoundPath())
	case path == "evaluate":
		a.evaluatePolicies(w, r)
	case path == "violations":
		a.handleViolationsCollection(w, r)
	case strings.HasPrefix(path, "violations/"):
		a.handleViolationAction(w, r, strings.TrimPrefix(path, "violations/"))
	case strings.HasSuffix(path, "/violations"):
		a.listPolicyViolations(w, r, strings.TrimSuffix(path, "/violations"))
	case strings.HasSuffix(path, "/exemptions"):
		a.handleExemptions(w, r, strings.TrimSuffix(path, "/exemptions"))
	case strings.Contains(path, "/"):
		writeError(w, r, notFoundPath())
	default:
		a.handlePolicyItem(w, r, path)
	}
}

func (a *API) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req model.Policy
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := a.policies.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditCreate, Action: "policy.create",
		ResourceType: "policy", ResourceID: view.ID,
	})
	w.Header().Set("Location", a.prefix+"/policies/"+view.ID)
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) listPolicies(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := policy.Filter{
		Type:     q.Get("policy_type"),
		Severity: q.Get("severity"),
		Limit:    limit,
		Offset:   offset,
	}
	if raw := q.Get("enforced"); raw != "" {
		enforced := raw == "true"
		f.Enforced = &enforced
	}
	items, err := a.policies.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (a *API) handlePolicyItem(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		view, err := a.policies.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		var req model.Policy
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.ID = id
		view, err := a.policies.Update(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditUpdate, Action: "policy.update",
			ResourceType: "policy", ResourceID: id,
		})
		writeJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		if err := a.policies.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditDelete, Action: "policy.delete",
			ResourceType: "policy", ResourceID: id,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) evaluatePolicies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	q := r.URL.Query()
	result, err := a.policies.Evaluate(r.Context(), q.Get("resource_id"), q.Get("resource_type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditPolicyViolation, Action: "policy.evaluate",
		ResourceType: "policy",
		Data:         map[string]any{"violations_found": result.ViolationsFound},
	})
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleViolationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listViolations(w, r, "")
	case http.MethodPost:
		var req model.PolicyViolation
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		v, err := a.policies.RecordViolation(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditPolicyViolation, Action: "policy.violation.record",
			ResourceType: "policy_violation", ResourceID: v.ID,
		})
		writeJSON(w, http.StatusCreated, v)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleViolationAction(w http.ResponseWriter, r *http.Request, rest string) {
	id, ok := strings.CutSuffix(rest, "/resolve")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, notFoundPath())
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	v, err := a.policies.ResolveViolation(r.Context(), id, callerID(r), req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditUpdate, Action: "policy.violation.resolve",
		ResourceType: "policy_violation", ResourceID: id,
	})
	writeJSON(w, http.StatusOK, v)
}

func (a *API) listPolicyViolations(w http.ResponseWriter, r *http.Request, policyID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.listViolations(w, r, policyID)
}

func (a *API) listViolations(w http.ResponseWriter, r *http.Request, policyID string) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	items, err := a.policies.ListViolations(r.Context(), policy.ViolationFilter{
		PolicyID: policyID,
		Severity: q.Get("severity"),
		Status:   q.Get("status"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (a *API) handleExemptions(w http.ResponseWriter, r *http.Request, policyID string) {
	switch r.Method {
	case http.MethodGet:
		limit, offset, err := pageParams(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items, err := a.policies.ListExemptions(r.Context(), policyID, limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	case http.MethodPost:
		var req model.PolicyExemption
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.PolicyID = policyID
		if req.GrantedBy == "" {
			req.GrantedBy = callerID(r)
		}
		e, err := a.policies.GrantExemption(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditPermissionGranted, Action: "policy.exemption.grant",
			ResourceType: "policy_exemption", ResourceID: e.ID,
		})
		writeJSON(w, http.StatusCreated, e)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

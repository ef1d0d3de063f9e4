package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/audit"
	"cloudops.org/internal/cost"
	"cloudops.org/internal/model"
)

func (a *API) handleCostRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCostRecords(w, r)
	case http.MethodPost:
		a.createCostRecord(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listCostRecords(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := cost.RecordFilter{
		CloudProvider: q.Get("cloud_provider"),
		Service:       q.Get("service"),
		Limit:         limit,
		Offset:        offset,
	}
	if f.StartDate, err = queryTime(q.Get("start_date"), "start_date"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.EndDate, err = queryTime(q.Get("end_date"), "end_date"); err != nil {
		writeError(w, r, err)
		return
	}
	items, err := a.costs.ListRecords(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (a *API) createCostRecord(w http.ResponseWriter, r *http.Request) {
	var req model.CostRecord
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := a.costs.CreateRecord(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditCreate, Action: "cost.record.create",
		ResourceType: "cost_record", ResourceID: rec.ID,
	})
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleCostSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	summary, err := a.costs.Summarize(r.Context(), r.URL.Query().Get("cloud_provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCostForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	months, err := queryInt(r.URL.Query().Get("months"), 3, 1, 12, "months")
	if err != nil {
		writeError(w, r, err)
		return
	}
	forecast, err := a.costs.ForecastCosts(r.Context(), months, r.URL.Query().Get("cloud_provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

func (a *API) handleCostAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	days, err := queryInt(r.URL.Query().Get("days"), 30, 1, 365, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := a.costs.DetectAnomalies(r.Context(), days, r.URL.Query().Get("cloud_provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleCostOptimizations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	minSavings := 0.0
	if raw := strings.TrimSpace(q.Get("min_savings")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, r, apperr.FieldValidation("min_savings", "min_savings must be a non-negative number"))
			return
		}
		minSavings = v
	}
	recs, err := a.costs.Optimizations(r.Context(), q.Get("priority"), minSavings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs, "count": len(recs)})
}

func (a *API) handleBudgetsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, offset, err := pageParams(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items, err := a.costs.ListBudgets(r.Context(), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	case http.MethodPost:
		var req model.CostBudget
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		b, err := a.costs.CreateBudget(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditCreate, Action: "cost.budget.create",
			ResourceType: "cost_budget", ResourceID: b.ID,
		})
		w.Header().Set("Location", a.prefix+"/costs/budgets/"+b.ID)
		writeJSON(w, http.StatusCreated, b)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBudgetResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, a.prefix+"/costs/budgets/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, notFoundPath())
		return
	}
	switch r.Method {
	case http.MethodGet:
		b, err := a.costs.GetBudget(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	case http.MethodPut:
		var req model.CostBudget
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.ID = id
		b, err := a.costs.UpdateBudget(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditUpdate, Action: "cost.budget.update",
			ResourceType: "cost_budget", ResourceID: id,
		})
		writeJSON(w, http.StatusOK, b)
	case http.MethodDelete:
		if err := a.costs.DeleteBudget(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditDelete, Action: "cost.budget.delete",
			ResourceType: "cost_budget", ResourceID: id,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleAlertsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := a.costs.ListAlerts(r.Context(), r.URL.Query().Get("budget_id"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// handleAlertResource dispatches /costs/alerts/{id}/resolve.
func (a *API) handleAlertResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, a.prefix+"/costs/alerts/"), "/")
	id, ok := strings.CutSuffix(path, "/resolve")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, notFoundPath())
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	alert, err := a.costs.ResolveAlert(r.Context(), id, callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditCostAlert, Action: "cost.alert.resolve",
		ResourceType: "cost_alert", ResourceID: id,
	})
	writeJSON(w, http.StatusOK, alert)
}

func queryTime(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.FieldValidation(field, field+" must be RFC 3339 or YYYY-MM-DD")
}

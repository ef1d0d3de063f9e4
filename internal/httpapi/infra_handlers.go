package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/audit"
	"cloudops.org/internal/infra"
	"cloudops.org/internal/model"
)

func (a *API) handleProvidersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProviders(w, r)
	case http.MethodPost:
		a.createProvider(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProviderResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, a.prefix+"/infrastructure/providers/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, notFoundPath())
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := a.infra.GetProvider(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut:
		var req model.CloudProvider
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.ID = id
		p, err := a.infra.UpdateProvider(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditUpdate, Action: "infrastructure.provider.update",
			ResourceType: "cloud_provider", ResourceID: id,
		})
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := a.infra.DeleteProvider(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditDelete, Action: "infrastructure.provider.delete",
			ResourceType: "cloud_provider", ResourceID: id,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) createProvider(w http.ResponseWriter, r *http.Request) {
	var req model.CloudProvider
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.infra.CreateProvider(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditCreate, Action: "infrastructure.provider.create",
		ResourceType: "cloud_provider", ResourceID: p.ID,
		Data: map[string]any{"provider_type": string(p.ProviderType)},
	})
	w.Header().Set("Location", a.prefix+"/infrastructure/providers/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listProviders(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := a.infra.ListProviders(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (a *API) handleResourcesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listResources(w, r)
	case http.MethodPost:
		a.createResource(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleResourceItem dispatches /infrastructure/resources/{id} and the
// {id}/detect-drift action.
func (a *API) handleResourceItem(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, a.prefix+"/infrastructure/resources/"), "/")
	if path == "" {
		writeError(w, r, notFoundPath())
		return
	}
	if id, ok := strings.CutSuffix(path, "/detect-drift"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		report, err := a.infra.DetectDrift(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, notFoundPath())
		return
	}
	switch r.Method {
	case http.MethodGet:
		res, err := a.infra.GetResource(r.Context(), path)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodPut:
		var req model.InfrastructureResource
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.ID = path
		res, err := a.infra.UpdateResource(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditUpdate, Action: "infrastructure.resource.update",
			ResourceType: "infrastructure_resource", ResourceID: path,
		})
		writeJSON(w, http.StatusOK, res)
	case http.MethodDelete:
		if err := a.infra.DeleteResource(r.Context(), path); err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditDelete, Action: "infrastructure.resource.delete",
			ResourceType: "infrastructure_resource", ResourceID: path,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) createResource(w http.ResponseWriter, r *http.Request) {
	var req model.InfrastructureResource
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.infra.CreateResource(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditCreate, Action: "infrastructure.resource.create",
		ResourceType: "infrastructure_resource", ResourceID: res.ID,
	})
	w.Header().Set("Location", a.prefix+"/infrastructure/resources/"+res.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) listResources(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	items, err := a.infra.ListResources(r.Context(), infra.ResourceFilter{
		CloudProvider: q.Get("cloud_provider"),
		ResourceType:  q.Get("resource_type"),
		Status:        q.Get("status"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	result, err := a.infra.Sync(r.Context(), r.URL.Query().Get("cloud_provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditUpdate, Action: "infrastructure.sync",
		ResourceType: "infrastructure_resource",
		Data:         map[string]any{"discovered": result.Discovered, "new": result.New},
	})
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	stats, err := a.infra.Statistics(r.Context(), r.URL.Query().Get("cloud_provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// pageParams parses limit/offset query parameters with bounds checking.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit, err = queryInt(q.Get("limit"), 100, 1, 1000, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err = queryInt(q.Get("offset"), 0, 0, 1<<30, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func queryInt(raw string, def, min, max int, field string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.FieldValidation(field, field+" must be an integer")
	}
	if v < min || v > max {
		return 0, apperr.FieldValidation(field, field+" is out of range")
	}
	return v, nil
}

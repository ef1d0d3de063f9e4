package httpapi

import (
	"net/http"
	"strings"

	"cloudops.org/internal/audit"
	"cloudops.org/internal/auth"
	"cloudops.org/internal/model"
)

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsSuperuser bool   `json:"is_superuser"`
	Status      string `json:"user_status"`
}

type grantRoleRequest struct {
	RoleID     string `json:"role_id"`
	Scope      string `json:"scope"`
	ResourceID string `json:"resource_id"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserResource dispatches /users/{id} plus the permissions and roles
// sub-resources.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, a.prefix+"/users/"), "/")
	if path == "" {
		writeError(w, r, notFoundPath())
		return
	}
	if id, ok := strings.CutSuffix(path, "/permissions"); ok {
		a.userPermissions(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(path, "/roles"); ok {
		a.grantUserRole(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, notFoundPath())
		return
	}
	switch r.Method {
	case http.MethodGet:
		u, err := a.users.GetUser(r.Context(), path)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPut:
		var req model.User
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.ID = path
		u, err := a.users.UpdateUser(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditUpdate, Action: "user.update",
			ResourceType: "user", ResourceID: path,
		})
		writeJSON(w, http.StatusOK, u)
	case http.MethodDelete:
		if err := a.users.DeleteUser(r.Context(), path); err != nil {
			writeError(w, r, err)
			return
		}
		a.record(r.Context(), audit.Event{
			Type: model.AuditDelete, Action: "user.delete",
			ResourceType: "user", ResourceID: path,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u := model.User{
		Email:       req.Email,
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		IsSuperuser: req.IsSuperuser,
		Status:      model.UserStatus(req.Status),
	}
	created, err := a.users.CreateUser(r.Context(), u, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditCreate, Action: "user.create",
		ResourceType: "user", ResourceID: created.ID,
	})
	w.Header().Set("Location", a.prefix+"/users/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	items, err := a.users.ListUsers(r.Context(), auth.UserFilter{
		Status: q.Get("status"),
		Role:   q.Get("role"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (a *API) userPermissions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	perms, err := a.users.UserPermissions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (a *API) grantUserRole(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req grantRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ur, err := a.users.GrantRole(r.Context(), id, req.RoleID, callerID(r),
		model.PermissionScope(req.Scope), req.ResourceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditPermissionGranted, Action: "user.role.grant",
		ResourceType: "user", ResourceID: id,
		Data: map[string]any{"role_id": req.RoleID},
	})
	writeJSON(w, http.StatusCreated, ur)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.auditor == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []model.AuditLog{}, "count": 0})
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := a.auditor.ListLogs(r.Context(), r.URL.Query().Get("event_type"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

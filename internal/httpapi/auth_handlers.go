package httpapi

import (
	"net/http"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/audit"
	"cloudops.org/internal/auth"
	"cloudops.org/internal/model"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.users.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditCreate, Action: "auth.register",
		ResourceType: "user", ResourceID: u.ID,
		IPAddress: clientIP(r),
	})
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	ip := clientIP(r)
	if a.loginThrottle != nil && !a.loginThrottle.Allow(ip) {
		writeError(w, r, apperr.RateLimited(a.loginThrottle.Limit(), 60))
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pair, u, err := a.users.Login(r.Context(), req.Email, req.Password, ip)
	if err != nil {
		a.record(r.Context(), audit.Event{
			Type: model.AuditLogin, Severity: model.AuditWarning, Status: model.AuditFailure,
			Action: "auth.login", IPAddress: ip,
			Data: map[string]any{"email": req.Email},
		})
		writeError(w, r, err)
		return
	}
	a.record(r.Context(), audit.Event{
		Type: model.AuditLogin, Action: "auth.login",
		ResourceType: "user", ResourceID: u.ID,
		IPAddress: ip,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
		"user":          u,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := a.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.Authentication("authentication required"))
		return
	}
	u, err := a.users.GetUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

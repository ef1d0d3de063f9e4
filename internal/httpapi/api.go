package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/audit"
	"cloudops.org/internal/auth"
	"cloudops.org/internal/config"
	"cloudops.org/internal/cost"
	"cloudops.org/internal/infra"
	"cloudops.org/internal/obs"
	"cloudops.org/internal/policy"
)

// ReadyProbe checks downstream readiness, typically a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries the collaborators the HTTP layer dispatches into.
type Deps struct {
	DB            *sql.DB
	Infra         *infra.Service
	Costs         *cost.Service
	Policies      *policy.Service
	Users         *auth.Service
	Audit         *audit.Recorder
	Limiter       *RateLimiter
	LoginThrottle *LoginThrottle
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	prefix     string
	readyProbe ReadyProbe

	appName string
	version string

	infra    *infra.Service
	costs    *cost.Service
	policies *policy.Service
	users    *auth.Service
	auditor  *audit.Recorder
	tokens   TokenValidator

	limiter       *RateLimiter
	loginThrottle *LoginThrottle

	corsOrigins   []string
	allowedHosts  []string
	sessionSecret string
	sessionMaxAge time.Duration
	hsts          bool
}

// New wires routes for every exposed operation.
func New(cfg *config.Settings, deps Deps) *API {
	a := &API{
		mux:           http.NewServeMux(),
		prefix:        cfg.APIPrefix,
		readyProbe:    ReadyProbe{DB: deps.DB},
		appName:       cfg.AppName,
		version:       cfg.AppVersion,
		infra:         deps.Infra,
		costs:         deps.Costs,
		policies:      deps.Policies,
		users:         deps.Users,
		auditor:       deps.Audit,
		limiter:       deps.Limiter,
		loginThrottle: deps.LoginThrottle,
		corsOrigins:   cfg.CORSOrigins,
		allowedHosts:  cfg.AllowedHosts,
		sessionSecret: cfg.SessionSecret,
		sessionMaxAge: cfg.SessionMaxAge,
		hsts:          cfg.IsProduction(),
	}
	if deps.Users != nil {
		a.tokens = deps.Users
	}

	a.mux.HandleFunc("/", a.root)
	a.mux.HandleFunc("/health", a.health)
	a.mux.Handle("/metrics", obs.Handler())

	// A deployment without a database leaves the domain services nil.
	// Their routes stay registered but answer 503 instead of panicking.
	p := a.prefix
	a.mux.HandleFunc(p+"/auth/register", guard(deps.Users != nil, a.handleRegister))
	a.mux.HandleFunc(p+"/auth/login", guard(deps.Users != nil, a.handleLogin))
	a.mux.HandleFunc(p+"/auth/refresh", guard(deps.Users != nil, a.handleRefresh))
	a.mux.HandleFunc(p+"/auth/me", guard(deps.Users != nil, a.handleMe))

	a.mux.HandleFunc(p+"/infrastructure/providers", guard(deps.Infra != nil, a.handleProvidersCollection))
	a.mux.HandleFunc(p+"/infrastructure/providers/", guard(deps.Infra != nil, a.handleProviderResource))
	a.mux.HandleFunc(p+"/infrastructure/resources", guard(deps.Infra != nil, a.handleResourcesCollection))
	a.mux.HandleFunc(p+"/infrastructure/resources/", guard(deps.Infra != nil, a.handleResourceItem))
	a.mux.HandleFunc(p+"/infrastructure/sync", guard(deps.Infra != nil, a.handleSync))
	a.mux.HandleFunc(p+"/infrastructure/statistics", guard(deps.Infra != nil, a.handleStatistics))

	a.mux.HandleFunc(p+"/costs/records", guard(deps.Costs != nil, a.handleCostRecords))
	a.mux.HandleFunc(p+"/costs/summary", guard(deps.Costs != nil, a.handleCostSummary))
	a.mux.HandleFunc(p+"/costs/forecast", guard(deps.Costs != nil, a.handleCostForecast))
	a.mux.HandleFunc(p+"/costs/anomalies", guard(deps.Costs != nil, a.handleCostAnomalies))
	a.mux.HandleFunc(p+"/costs/optimizations", guard(deps.Costs != nil, a.handleCostOptimizations))
	a.mux.HandleFunc(p+"/costs/budgets", guard(deps.Costs != nil, a.handleBudgetsCollection))
	a.mux.HandleFunc(p+"/costs/budgets/", guard(deps.Costs != nil, a.handleBudgetResource))
	a.mux.HandleFunc(p+"/costs/alerts", guard(deps.Costs != nil, a.handleAlertsCollection))
	a.mux.HandleFunc(p+"/costs/alerts/", guard(deps.Costs != nil, a.handleAlertResource))

	a.mux.HandleFunc(p+"/policies", guard(deps.Policies != nil, a.handlePoliciesCollection))
	a.mux.HandleFunc(p+"/policies/", guard(deps.Policies != nil, a.handlePolicyResource))

	a.mux.HandleFunc(p+"/users", guard(deps.Users != nil, a.handleUsersCollection))
	a.mux.HandleFunc(p+"/users/", guard(deps.Users != nil, a.handleUserResource))

	a.mux.HandleFunc(p+"/audit/logs", a.handleAuditLogs)

	return a
}

// guard passes requests through when the backing service is wired, and
// reports the route unavailable otherwise.
func guard(ok bool, h http.HandlerFunc) http.HandlerFunc {
	if ok {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperr.Unavailable("service requires a configured database"))
	}
}

// Handler assembles the middleware chain around the route table.
// Outermost first: trusted host, CORS, session, security headers, logging,
// rate limiting, authentication.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	if a.limiter != nil {
		h = a.limiter.Middleware(h)
	}
	h = Logging(h)
	h = SecurityHeaders(h, a.hsts)
	h = Session(h, a.sessionSecret, a.sessionMaxAge)
	h = CORS(h, a.corsOrigins)
	h = TrustedHost(h, a.allowedHosts)
	return obs.Instrument(h)
}

func (a *API) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, r, notFoundPath())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    a.appName,
		"version": a.version,
		"docs":    "/docs",
		"health":  "/health",
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	checks := map[string]string{}
	if err := a.readyProbe.Check(r.Context()); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"service": a.appName,
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"checks":  checks,
	})
}

func (a *API) record(ctx context.Context, ev audit.Event) {
	if a.auditor == nil {
		return
	}
	if err := a.auditor.Record(ctx, ev); err != nil {
		obs.Warn("audit record failed", map[string]any{"error": err.Error()})
	}
}

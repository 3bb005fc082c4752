package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"collegia.org/internal/access"
	"collegia.org/internal/audit"
	"collegia.org/internal/fees"
	"collegia.org/internal/feed"
	"collegia.org/internal/obs"
	"collegia.org/internal/workflow"
)

// ReadyProbe is a simple readiness check (e.g. database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the API's collaborators.
type Options struct {
	Probe    ReadyProbe
	Version  string
	Access   *access.Service
	Resolver *access.Resolver
	Workflow *workflow.Service
	Fees     fees.Service
	Recorder *audit.Recorder
	Feed     *feed.Feed
	TokenTTL time.Duration
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	probe    ReadyProbe
	version  string
	access   *access.Service
	resolver *access.Resolver
	workflow *workflow.Service
	fees     fees.Service
	rec      *audit.Recorder
	feed     *feed.Feed
	tokenTTL time.Duration
}

// New builds the router.
func New(opts Options) *API {
	a := &API{
		mux:      http.NewServeMux(),
		probe:    opts.Probe,
		version:  opts.Version,
		access:   opts.Access,
		resolver: opts.Resolver,
		workflow: opts.Workflow,
		fees:     opts.Fees,
		rec:      opts.Recorder,
		feed:     opts.Feed,
		tokenTTL: opts.TokenTTL,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = 30 * time.Minute
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleToken)
	a.mux.HandleFunc("/v1/certificates", a.handleCertificates)
	a.mux.HandleFunc("/v1/certificates/", a.handleCertificateScoped)
	a.mux.HandleFunc("/v1/departments", a.handleDepartments)
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)
	a.mux.HandleFunc("/v1/fees/accounts", a.handleFeeAccounts)
	a.mux.HandleFunc("/v1/fees/payments", a.handleFeePayments)
	a.mux.HandleFunc("/v1/audit/feed", a.handleAuditFeed)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "collegia-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "collegia-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// handleDomainError maps core errors onto HTTP statuses.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, access.ErrUnauthorized), errors.Is(err, access.ErrForbidden):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, workflow.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workflow.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "request was modified concurrently; re-read and retry")
	case errors.Is(err, access.ErrConflict), errors.Is(err, fees.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrNotFound), errors.Is(err, workflow.ErrNotFound), errors.Is(err, fees.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, access.ErrInvalidInput), errors.Is(err, workflow.ErrInvalidInput),
		errors.Is(err, fees.ErrInvalidAmount), errors.Is(err, fees.ErrInvalidCurrency),
		errors.Is(err, fees.ErrCurrencyMismatch), errors.Is(err, fees.ErrOverpayment):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

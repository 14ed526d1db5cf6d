package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"faceguard/internal/audit"
	"faceguard/internal/enrollment"
	dErrors "faceguard/pkg/domain-errors"
	"faceguard/pkg/platform/httputil"
	"faceguard/pkg/requestcontext"
)

// AuditQuerier reads back stored audit events.
type AuditQuerier interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// LockoutAdmin clears lockout state for an identity.
type LockoutAdmin interface {
	Clear(ctx context.Context, identity string) error
}

// RoleSetter changes an identity's role.
type RoleSetter interface {
	SetRole(ctx context.Context, actor, identity, role string) error
}

// AdminHandler wires the operator endpoints. The events endpoint is mounted
// separately because analysts may read events but not mutate anything.
type AdminHandler struct {
	events   AuditQuerier
	lockouts LockoutAdmin
	roles    RoleSetter
	recorder Recorder
	logger   *slog.Logger
}

// Recorder is the audit port this handler needs.
type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

func NewAdminHandler(events AuditQuerier, lockouts LockoutAdmin, roles RoleSetter, recorder Recorder, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		events:   events,
		lockouts: lockouts,
		roles:    roles,
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterEvents mounts the read-only events endpoint (admin or analyst).
func (h *AdminHandler) RegisterEvents(r chi.Router) {
	r.Get("/admin/events", h.HandleEvents)
}

// Register mounts the mutating endpoints (admin only).
func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/admin/set-role", h.HandleSetRole)
	r.Delete("/admin/lockouts/{identity}", h.HandleClearLockout)
}

type eventsResponse struct {
	Events []audit.Event `json:"events"`
}

// HandleEvents handles GET /admin/events with optional identity, type,
// since, until (RFC 3339) and limit query parameters.
func (h *AdminHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := eventFilterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.events.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query events"))
		return
	}

	h.record(ctx, audit.Event{
		Type:     audit.EventEventsViewed,
		Identity: requestcontext.Subject(ctx),
		Outcome:  audit.OutcomeSuccess,
		Detail:   map[string]any{"returned": len(events)},
	})

	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events})
}

type setRoleRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// HandleSetRole handles POST /admin/set-role.
func (h *AdminHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[setRoleRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Identity == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "identity is required"))
		return
	}

	actor := requestcontext.Subject(ctx)
	if err := h.roles.SetRole(ctx, actor, req.Identity, req.Role); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "role changed",
		"request_id", requestcontext.RequestID(ctx),
		"actor", actor,
		"identity", req.Identity,
		"role", req.Role,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearLockout handles DELETE /admin/lockouts/{identity}.
func (h *AdminHandler) HandleClearLockout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := enrollment.NormalizeIdentity(chi.URLParam(r, "identity"))
	if identity == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "identity is required"))
		return
	}

	if err := h.lockouts.Clear(ctx, identity); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "lockout cleared",
		"request_id", requestcontext.RequestID(ctx),
		"actor", requestcontext.Subject(ctx),
		"identity", identity,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) record(ctx context.Context, event audit.Event) {
	if h.recorder != nil {
		h.recorder.Record(ctx, event)
	}
}

func eventFilterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Identity: q.Get("identity"),
		Type:     audit.EventType(q.Get("type")),
	}

	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "since must be RFC 3339")
		}
		filter.Since = t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "until must be RFC 3339")
		}
		filter.Until = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		filter.Limit = n
	}

	return filter, nil
}

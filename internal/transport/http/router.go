// Package httptransport is the thin HTTP layer. Handlers decode multipart
// captures and JSON bodies, delegate to the domain services, and translate
// decisions and coded errors into the wire contract; no business logic
// lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faceguard/internal/policy"
	"faceguard/pkg/platform/httputil"
	authmw "faceguard/pkg/platform/middleware/auth"
	"faceguard/pkg/platform/middleware/metadata"
	"faceguard/pkg/platform/middleware/requestid"
	"faceguard/pkg/platform/middleware/requesttime"
)

// Handlers groups the per-domain handlers the router mounts.
type Handlers struct {
	Enroll *EnrollHandler
	Verify *VerifyHandler
	Search *SearchHandler
	Me     *MeHandler
	Admin  *AdminHandler
}

// NewRouter wires middleware and routes. Enrollment and verification are
// unauthenticated by design: verification is how a caller obtains a
// credential in the first place. Everything else requires one.
func NewRouter(h Handlers, validator authmw.TokenValidator, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.Enroll.Register(r)
	h.Verify.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, logger))

		h.Search.Register(r)
		h.Me.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, logger))
		r.Use(authmw.RequireRole(policy.Allowed, logger,
			policy.RoleAdmin.String(), policy.RoleAnalyst.String()))

		h.Admin.RegisterEvents(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, logger))
		r.Use(authmw.RequireRole(policy.Allowed, logger, policy.RoleAdmin.String()))

		h.Admin.Register(r)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"faceguard/pkg/platform/httputil"
	"faceguard/pkg/requestcontext"
)

// MeHandler reflects the authenticated credential back to its holder.
type MeHandler struct{}

func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

func (h *MeHandler) Register(r chi.Router) {
	r.Get("/me", h.HandleMe)
}

type meResponse struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httputil.WriteJSON(w, http.StatusOK, meResponse{
		Subject: requestcontext.Subject(ctx),
		Role:    requestcontext.Role(ctx),
	})
}

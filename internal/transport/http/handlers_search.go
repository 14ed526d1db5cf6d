package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"faceguard/internal/search"
	dErrors "faceguard/pkg/domain-errors"
	"faceguard/pkg/platform/httputil"
	"faceguard/pkg/requestcontext"
)

// SearchService defines the identification operation this handler needs.
type SearchService interface {
	Search(ctx context.Context, image []byte, k int) ([]search.Candidate, error)
}

// SearchHandler wires the 1:N identification endpoint to the search service.
type SearchHandler struct {
	service SearchService
	logger  *slog.Logger
}

func NewSearchHandler(service SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{service: service, logger: logger}
}

func (h *SearchHandler) Register(r chi.Router) {
	r.Post("/search", h.HandleSearch)
}

type searchResponse struct {
	Candidates []search.Candidate `json:"candidates"`
}

// HandleSearch handles POST /search: multipart form with an "image" frame
// and an optional "k" field (default 5).
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)

	image, err := captureFile(r, "image")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	k := 5
	if raw := r.FormValue("k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "k must be an integer"))
			return
		}
	}

	candidates, err := h.service.Search(ctx, image, k)
	if err != nil {
		h.logger.WarnContext(ctx, "search failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject", requestcontext.Subject(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if candidates == nil {
		candidates = []search.Candidate{}
	}
	httputil.WriteJSON(w, http.StatusOK, searchResponse{Candidates: candidates})
}

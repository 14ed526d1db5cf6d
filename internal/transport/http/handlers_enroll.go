package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"faceguard/internal/enrollment"
	"faceguard/pkg/platform/httputil"
	"faceguard/pkg/requestcontext"
)

// EnrollmentService defines the enrollment operations this handler needs.
type EnrollmentService interface {
	Enroll(ctx context.Context, identity string, image []byte) (*enrollment.Record, error)
}

// EnrollHandler wires the enrollment endpoint to the enrollment service.
type EnrollHandler struct {
	service EnrollmentService
	logger  *slog.Logger
}

func NewEnrollHandler(service EnrollmentService, logger *slog.Logger) *EnrollHandler {
	return &EnrollHandler{service: service, logger: logger}
}

func (h *EnrollHandler) Register(r chi.Router) {
	r.Post("/enroll", h.HandleEnroll)
}

type enrollResponse struct {
	Identity  string    `json:"identity"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// HandleEnroll handles POST /enroll: multipart form with a "username" field
// and a single "image" frame.
func (h *EnrollHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)

	image, err := captureFile(r, "image")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity := r.FormValue("username")

	record, err := h.service.Enroll(ctx, identity, image)
	if err != nil {
		h.logger.WarnContext(ctx, "enrollment rejected",
			"request_id", requestcontext.RequestID(ctx),
			"identity", identity,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "enrollment stored",
		"request_id", requestcontext.RequestID(ctx),
		"identity", record.Identity,
	)
	httputil.WriteJSON(w, http.StatusCreated, enrollResponse{
		Identity:  record.Identity,
		Role:      record.Role,
		CreatedAt: record.CreatedAt,
	})
}

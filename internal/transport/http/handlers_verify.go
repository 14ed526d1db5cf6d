package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"faceguard/internal/verify"
	"faceguard/pkg/platform/httputil"
	"faceguard/pkg/requestcontext"
)

// VerifyService defines the decision operation this handler needs.
type VerifyService interface {
	Verify(ctx context.Context, identity string, frame1, frame2 []byte) (*verify.Decision, error)
}

// VerifyHandler wires the verification endpoint to the decision engine.
type VerifyHandler struct {
	service VerifyService
	logger  *slog.Logger
}

func NewVerifyHandler(service VerifyService, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{service: service, logger: logger}
}

func (h *VerifyHandler) Register(r chi.Router) {
	r.Post("/verify", h.HandleVerify)
}

type verifyResponse struct {
	Authenticated     bool       `json:"authenticated"`
	Token             string     `json:"token,omitempty"`
	Role              string     `json:"role,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	Distance          float64    `json:"distance"`
	Threshold         float64    `json:"threshold"`
	MotionScore       float64    `json:"motion_score"`
	LivenessPass      bool       `json:"liveness_pass"`
	FailureCount      int        `json:"failure_count,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
}

// HandleVerify handles POST /verify: multipart form with a "username" field
// and two sequential frames, "frame1" and "frame2". A denial is a normal
// response with authenticated=false, not an error envelope.
func (h *VerifyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)

	frame1, err := captureFile(r, "frame1")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	frame2, err := captureFile(r, "frame2")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity := r.FormValue("username")

	decision, err := h.service.Verify(ctx, identity, frame1, frame2)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"identity", identity,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := verifyResponse{
		Authenticated: decision.Authenticated,
		Reason:        decision.Reason,
		Distance:      decision.Distance,
		Threshold:     decision.Threshold,
		MotionScore:   decision.MotionScore,
		LivenessPass:  decision.LivenessPass,
		FailureCount:  decision.FailureCount,
	}

	status := http.StatusOK
	switch {
	case decision.Authenticated:
		resp.Token = decision.Credential.Token
		resp.Role = decision.Credential.Role
		expires := decision.Credential.ExpiresAt
		resp.ExpiresAt = &expires
	case decision.Reason == verify.ReasonQualityFail:
		status = http.StatusBadRequest
	case decision.Reason == verify.ReasonLocked:
		status = http.StatusTooManyRequests
		seconds := int(decision.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		resp.RetryAfterSeconds = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	default:
		status = http.StatusUnauthorized
	}

	h.logger.InfoContext(ctx, "verification decided",
		"request_id", requestcontext.RequestID(ctx),
		"identity", identity,
		"authenticated", decision.Authenticated,
		"reason", decision.Reason,
	)
	httputil.WriteJSON(w, status, resp)
}

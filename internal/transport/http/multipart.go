package httptransport

import (
	"io"
	"net/http"

	dErrors "faceguard/pkg/domain-errors"
)

// maxCaptureBytes bounds one multipart upload. Two full frames plus form
// fields fit comfortably; anything larger is not a camera capture.
const maxCaptureBytes = 10 << 20

// captureFile reads one uploaded frame from a multipart form field.
func captureFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "missing capture field %q", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read capture")
	}
	if len(data) == 0 {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "capture field %q is empty", field)
	}
	return data, nil
}

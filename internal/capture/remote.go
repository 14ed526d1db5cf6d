package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"faceguard/internal/embedding"
	"faceguard/pkg/platform/circuit"
	"faceguard/pkg/platform/sentinel"
)

// probeInterval is how often one request is let through an open circuit to
// test whether the extraction service has recovered.
const probeInterval = 5 * time.Second

// RemoteProcessor calls the external extraction service over HTTP. Every
// call is bounded by the configured timeout; a deadline hit is reported as
// sentinel.ErrTimeout, a distinct failure kind that the decision engine
// never conflates with a match or liveness failure. Repeated transport
// failures open a circuit breaker so a dead extractor fails fast instead of
// stacking up timed-out requests.
type RemoteProcessor struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger

	mu        sync.Mutex
	lastProbe time.Time
}

func NewRemoteProcessor(baseURL string, timeout time.Duration) *RemoteProcessor {
	return &RemoteProcessor{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
		breaker: circuit.New("extractor"),
		logger:  slog.Default(),
	}
}

type extractResponse struct {
	Embedding []float64 `json:"embedding"`
	FaceCount int       `json:"face_count"`
	Error     string    `json:"error,omitempty"`
}

func (p *RemoteProcessor) Extract(ctx context.Context, image []byte) (embedding.Vector, error) {
	var resp extractResponse
	if err := p.post(ctx, "/extract", map[string][]byte{"image": image}, &resp); err != nil {
		return nil, err
	}

	switch {
	case resp.FaceCount == 0:
		return nil, ErrNoFaceFound
	case resp.FaceCount > 1:
		return nil, fmt.Errorf("%w: %d faces", ErrMultipleFaces, resp.FaceCount)
	case resp.Error != "":
		return nil, fmt.Errorf("%w: %s", ErrExtractFailed, resp.Error)
	case len(resp.Embedding) == 0:
		return nil, ErrExtractFailed
	}
	return embedding.Vector(resp.Embedding), nil
}

type metricsResponse struct {
	Blur       float64 `json:"blur"`
	Brightness float64 `json:"brightness"`
}

func (p *RemoteProcessor) Metrics(ctx context.Context, image []byte) (Metrics, error) {
	var resp metricsResponse
	if err := p.post(ctx, "/metrics", map[string][]byte{"image": image}, &resp); err != nil {
		return Metrics{}, err
	}
	return Metrics{Blur: resp.Blur, Brightness: resp.Brightness}, nil
}

type motionResponse struct {
	Motion float64 `json:"motion"`
}

func (p *RemoteProcessor) Motion(ctx context.Context, frame1, frame2 []byte) (float64, error) {
	var resp motionResponse
	err := p.post(ctx, "/motion", map[string][]byte{"frame1": frame1, "frame2": frame2}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Motion, nil
}

func (p *RemoteProcessor) post(ctx context.Context, path string, parts map[string][]byte, out any) error {
	if p.breaker.IsOpen() && !p.admitProbe() {
		return fmt.Errorf("extraction service %s: circuit open: %w", path, sentinel.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, data := range parts {
		fw, err := writer.CreateFormFile(name, name)
		if err != nil {
			return fmt.Errorf("build multipart body: %w", err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("build multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		p.recordFailure(path)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("extraction service %s: %w", path, sentinel.ErrTimeout)
		}
		return fmt.Errorf("extraction service %s: %w: %v", path, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		p.recordFailure(path)
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("extraction service %s: status %d: %s: %w",
			path, resp.StatusCode, payload, sentinel.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("extraction service %s: status %d: %s", path, resp.StatusCode, payload)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("extraction service %s: decode response: %w", path, err)
	}

	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.Info("extraction service recovered", "breaker", p.breaker.Name())
	}
	return nil
}

func (p *RemoteProcessor) recordFailure(path string) {
	if _, change := p.breaker.RecordFailure(); change.Opened {
		p.logger.Warn("extraction service circuit opened",
			"breaker", p.breaker.Name(), "path", path)
	}
}

// admitProbe lets one request through an open circuit per probe interval.
func (p *RemoteProcessor) admitProbe() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.lastProbe) < probeInterval {
		return false
	}
	p.lastProbe = time.Now()
	return true
}

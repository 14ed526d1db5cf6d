package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faceguard/internal/embedding"
	"faceguard/pkg/platform/sentinel"
)

func TestRemoteProcessorExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		_, _, err := r.FormFile("image")
		assert.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3],"face_count":1}`))
	}))
	defer server.Close()

	p := NewRemoteProcessor(server.URL, time.Second)
	vector, err := p.Extract(context.Background(), []byte("frame"))
	require.NoError(t, err)
	assert.Equal(t, embedding.Vector{0.1, 0.2, 0.3}, vector)
}

func TestRemoteProcessorExtractFaceCounts(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"no face", `{"embedding":[],"face_count":0}`, ErrNoFaceFound},
		{"multiple faces", `{"embedding":[],"face_count":3}`, ErrMultipleFaces},
		{"extractor error", `{"embedding":[],"face_count":1,"error":"model failure"}`, ErrExtractFailed},
		{"empty embedding", `{"embedding":[],"face_count":1}`, ErrExtractFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.payload))
			}))
			defer server.Close()

			p := NewRemoteProcessor(server.URL, time.Second)
			_, err := p.Extract(context.Background(), []byte("frame"))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRemoteProcessorMetricsAndMotion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/metrics":
			_, _ = w.Write([]byte(`{"blur":87.5,"brightness":120}`))
		case "/motion":
			_, _, err := r.FormFile("frame2")
			assert.NoError(t, err)
			_, _ = w.Write([]byte(`{"motion":0.12}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewRemoteProcessor(server.URL, time.Second)

	metrics, err := p.Metrics(context.Background(), []byte("frame"))
	require.NoError(t, err)
	assert.Equal(t, Metrics{Blur: 87.5, Brightness: 120}, metrics)

	motion, err := p.Motion(context.Background(), []byte("f1"), []byte("f2"))
	require.NoError(t, err)
	assert.Equal(t, 0.12, motion)
}

func TestRemoteProcessorTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	p := NewRemoteProcessor(server.URL, 20*time.Millisecond)
	_, err := p.Metrics(context.Background(), []byte("frame"))
	assert.ErrorIs(t, err, sentinel.ErrTimeout)
}

func TestRemoteProcessorCircuitOpensOnRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewRemoteProcessor(server.URL, time.Second)
	// Consume the probe slot so open-circuit calls below fail fast.
	p.lastProbe = time.Now()

	for i := 0; i < 5; i++ {
		_, err := p.Metrics(context.Background(), []byte("frame"))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	}
	assert.True(t, p.breaker.IsOpen())

	_, err := p.Metrics(context.Background(), []byte("frame"))
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Contains(t, err.Error(), "circuit open")
}

// Package audiogen requests audio clips from an external text-to-audio
// generation service.
//
// Generation runs in the background so the frame loop never blocks on the
// network. Finished jobs, successful or not, land in a completion queue
// the shell drains from its own loop; results are therefore applied on the
// same single-threaded mutation path as every other state change. A failed
// generation only produces a logged error result, never a crash and never
// a state change.
package audiogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opd-ai/rackcore/limits"
)

// Service produces an encoded audio payload for a text prompt.
type Service interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// HTTPService calls a remote generation endpoint with a JSON body of the
// form {"prompt": "..."} and expects the raw audio payload back.
type HTTPService struct {
	endpoint string
	client   *http.Client
}

// NewHTTPService creates a service pointed at the given endpoint.
func NewHTTPService(endpoint string) *HTTPService {
	return &HTTPService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate posts the prompt and returns the response payload.
func (s *HTTPService) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling generation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation service returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, int64(limits.MaxClipBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if err := limits.ValidateClip(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// StaticService returns a fixed payload or error after an optional delay.
// It backs the demos and tests.
type StaticService struct {
	Payload []byte
	Err     error
	Delay   time.Duration
}

// Generate waits out the configured delay, honoring cancellation, then
// returns the fixed result.
func (s *StaticService) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Payload, nil
}

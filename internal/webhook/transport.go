package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexuscargo/nexuscargo/platform/pkg/contracts"
)

// HTTPTransport delivers webhook payloads over plain net/http. It implements
// contracts.WebhookTransport.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport constructs an HTTPTransport with its own client (the
// client has no timeout of its own; Deliver bounds each attempt with its
// timeout argument).
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{client: &http.Client{}}
}

// Deliver POSTs body to targetURL with headers, bounded by timeout.
func (t *HTTPTransport) Deliver(ctx context.Context, targetURL string, body []byte, headers map[string]string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

var _ contracts.WebhookTransport = (*HTTPTransport)(nil)

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// doJSON performs one HTTP round trip and returns the raw response body.
// Network failures become TransportError and non-2xx statuses become
// APIError carrying the body.
func doJSON(ctx context.Context, client *http.Client, name, method, url string, body []byte, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: name, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Provider: name, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

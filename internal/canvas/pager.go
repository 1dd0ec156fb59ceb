package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Pager follows RFC 5988 Link headers to fetch every page of a REST
// collection. Canvas signals the next page with a rel="next" relation;
// the loop ends when that relation is absent, unparsable, or points at
// any URL already fetched (a malformed server must not cause an
// infinite loop, including multi-page cycles).
type Pager struct {
	httpClient *http.Client
}

func NewPager() *Pager {
	return &Pager{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchAll GETs startURL and every linked next page, flattening each
// response into the result. A non-array response body contributes a
// single record. Non-2xx responses fail with the server's error message.
func (p *Pager) FetchAll(ctx context.Context, startURL, bearerToken string) ([]json.RawMessage, error) {
	var results []json.RawMessage
	url := startURL
	visited := map[string]bool{startURL: true}

	for url != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+bearerToken)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", readErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("canvas API error (status %d): %s", resp.StatusCode, upstreamMessage(body, resp.Status))
		}

		records, err := flatten(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		results = append(results, records...)

		next := nextLink(resp.Header.Get("Link"))
		if next == "" || visited[next] {
			// a next-URL already fetched is treated as a termination signal
			break
		}
		visited[next] = true
		url = next
	}

	return results, nil
}

// flatten decodes a response body into records, wrapping a single
// object response into a one-element slice.
func flatten(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	}
	var obj json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	return []json.RawMessage{obj}, nil
}

// nextLink extracts the rel="next" target from a Link header, or ""
func nextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start == -1 || end == -1 || end <= start+1 {
			return ""
		}
		return part[start+1 : end]
	}
	return ""
}

// upstreamMessage pulls the most useful error text out of a Canvas
// error body, falling back to the HTTP status line.
func upstreamMessage(body []byte, status string) string {
	var parsed struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
			return parsed.Errors[0].Message
		}
	}
	return status
}

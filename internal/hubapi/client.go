package hubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/2beens/confhub/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultBaseURL = "https://conferencehub-backend.onrender.com/api"

	maxResponseBodySize = 1 << 20
	roomsCacheSize      = 1 << 20
)

type ClientParams struct {
	BaseURL       string
	Timeout       time.Duration
	Credentials   CredentialSource
	RoomsCacheTTL time.Duration
	// Transport is the base round tripper, http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client talks to the conference hub REST API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	roomsCache    *freecache.Cache
	roomsCacheTTL time.Duration
}

func NewClient(params ClientParams) *Client {
	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base := params.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   params.Timeout,
			Transport: newBearerTransport(otelhttp.NewTransport(base), params.Credentials),
		},
		roomsCacheTTL: params.RoomsCacheTTL,
	}
	if params.RoomsCacheTTL > 0 {
		c.roomsCache = freecache.NewCache(roomsCacheSize)
	}

	return c
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// do sends the request and decodes a 2xx json body into out (when out != nil).
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "hubapi.request")
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("hubapi.path", path),
	)
	var err error
	defer func() {
		tracing.EndSpan(span, err)
	}()

	var reqBody io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			err = fmt.Errorf("marshal request body: %w", marshalErr)
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reqBody)
	if err != nil {
		err = fmt.Errorf("new request: %w", err)
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		err = fmt.Errorf("%w: read response body: %w", ErrUnavailable, err)
		return err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, extractDetail(respBody))
		log.Debugf("hubapi: %s %s: %s", method, path, apiErr)
		err = apiErr
		return err
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		err = fmt.Errorf("%w: empty body", ErrMalformedResponse)
		return err
	}

	if unmarshalErr := json.Unmarshal(respBody, out); unmarshalErr != nil {
		err = fmt.Errorf("%w: %w", ErrMalformedResponse, unmarshalErr)
		return err
	}

	return nil
}

// extractDetail reads the human readable message from an error body:
// "detail" or "error" fields, or the first field validation messages.
func extractDetail(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "error", "message"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s: %s", k, v))
		case []any:
			msgs := make([]string, 0, len(v))
			for _, m := range v {
				msgs = append(msgs, fmt.Sprint(m))
			}
			parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(msgs, " ")))
		}
	}
	return strings.Join(parts, "; ")
}

// IsTransient reports whether the error is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

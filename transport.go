package sonargate

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseBytes bounds how much of an upstream body is read into memory.
const maxResponseBytes = 10 * 1024 * 1024

// RawResponse is a fully-read upstream response. The body is opaque to this
// layer; callers interpret it.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs single HTTP requests against the upstream with pooled
// keep-alive connections, bearer-token auth and bounded timeouts. It never
// retries; that is the orchestrator's job.
type Transport struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     Logger
}

func newTransport(cfg Config, httpClient *http.Client, logger Logger) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.ConnectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.InsecureSkipTLSVerify,
				},
			},
		}
	}
	return &Transport{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		logger:     logger,
	}
}

// Call performs one HTTP request and classifies any failure. Non-2xx
// responses come back as *Error with the status mapped onto the error
// taxonomy; the Retry-After header is parsed for 429 and 503.
func (t *Transport) Call(ctx context.Context, method, path string, params url.Values, body io.Reader) (*RawResponse, error) {
	u := t.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &Error{Type: ErrorTypeValidation, Message: "building request failed", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := uuid.NewString()
	start := time.Now()

	resp, err := t.httpClient.Do(req)
	if err != nil {
		classified := classifyTransportError(err)
		t.logger.Warn("upstream request failed",
			"requestID", requestID,
			"method", method,
			"path", path,
			"error", classified.Type,
			"duration", time.Since(start),
		)
		return nil, classified
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Type: ErrorTypeNetwork, Message: "reading response body failed", Cause: err}
	}

	t.logger.Debug("upstream request",
		"requestID", requestID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(payload),
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 400 {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, newHTTPError(resp.StatusCode, truncate(string(payload), 512), retryAfter)
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       payload,
	}, nil
}

func classifyTransportError(err error) *Error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &Error{Type: ErrorTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &Error{Type: ErrorTypeNetwork, Message: "network request failed", Cause: err}
}

// parseRetryAfter handles both delay-seconds and HTTP-date forms, capped at
// one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		delay := time.Duration(seconds) * time.Second
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay
	}

	if at, err := http.ParseTime(value); err == nil {
		delay := time.Until(at)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/tidwall/gjson"
)

const (
	// DefaultTimeout bounds a single endpoint call when no timeout is configured.
	DefaultTimeout = 30 * time.Second
	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes = 32 << 20
)

var (
	// ErrDisabled is returned by Call when the endpoint is disabled or has no URL.
	ErrDisabled = errors.New("endpoint disabled")
	// ErrAbsent is returned by Call when the response path resolves to nothing.
	ErrAbsent = errors.New("response path resolved to nothing")
)

// Config describes one user defined REST call site.
//
// Headers is JSON object text. BodyTemplate may contain {{text}} and
// {{payload}}; {{text}} is JSON escaped only when the template is a JSON
// object or array. ResponsePath is a dotted path into the JSON response.
type Config struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	Method       string `json:"method" yaml:"method"`
	URL          string `json:"url" yaml:"url"`
	Headers      string `json:"headers" yaml:"headers"`
	BodyTemplate string `json:"bodyTemplate" yaml:"bodyTemplate"`
	ResponsePath string `json:"responsePath" yaml:"responsePath"`
}

// Active reports whether calls to the endpoint go out at all.
func (c Config) Active() bool {
	return c.Enabled && c.URL != ""
}

// Invoker executes endpoint calls.
//
// An Invoker should be created using NewInvoker.
type Invoker struct {
	client  *http.Client
	timeout time.Duration
}

// NewInvokerParams configures an Invoker. A nil HTTPClient uses
// http.DefaultClient and a zero Timeout uses DefaultTimeout.
type NewInvokerParams struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewInvoker creates an Invoker.
func NewInvoker(params NewInvokerParams) *Invoker {
	client := params.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{client: client, timeout: timeout}
}

// Call performs one request against cfg and returns the value found at
// cfg.ResponsePath.
//
// POST requests carry the rendered body template. Any other method is
// sent without a body and with text appended as the "text" query
// parameter. A non 2xx status, a body that is not JSON, or an expired
// timeout are errors. name is used for logging only.
func (i *Invoker) Call(ctx context.Context, name string, cfg Config, text string, payload any) (json.RawMessage, error) {
	if !cfg.Active() {
		return nil, ErrDisabled
	}

	req, err := i.newRequest(ctx, name, cfg, text, payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	logger.Debug("[Endpoint] calling", "endpoint", name, "method", req.Method, "url", req.URL.String())

	res, err := i.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", name, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", name, err)
	}
	if len(body) > MaxResponseBytes {
		return nil, fmt.Errorf("%s response exceeds %d bytes", name, MaxResponseBytes)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned HTTP status %d", name, res.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s returned invalid JSON", name)
	}

	value, ok := Resolve(body, cfg.ResponsePath)
	if !ok {
		return nil, fmt.Errorf("%s path %q: %w", name, cfg.ResponsePath, ErrAbsent)
	}
	return value, nil
}

// Invoke is Call with failures downgraded to absence. Failures are logged
// as warnings; a disabled endpoint is silently absent.
func (i *Invoker) Invoke(ctx context.Context, name string, cfg Config, text string, payload any) (json.RawMessage, bool) {
	value, err := i.Call(ctx, name, cfg, text, payload)
	if err != nil {
		switch {
		case errors.Is(err, ErrDisabled):
		case ctx.Err() != nil:
			logger.Debug("[Endpoint] call aborted", "endpoint", name, "err", err)
		default:
			logger.Warn("[Endpoint] call failed", "endpoint", name, "url", cfg.URL, "err", err)
		}
		return nil, false
	}
	return value, true
}

func (i *Invoker) newRequest(ctx context.Context, name string, cfg Config, text string, payload any) (*http.Request, error) {
	headers := parseHeaders(name, cfg.Headers)

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		body, rerr := RenderBody(cfg.BodyTemplate, text, payload)
		if rerr != nil {
			return nil, fmt.Errorf("%s: %w", name, rerr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, strings.NewReader(body))
	} else {
		u, perr := url.Parse(cfg.URL)
		if perr != nil {
			return nil, fmt.Errorf("%s: invalid url: %w", name, perr)
		}
		param := "text=" + url.QueryEscape(text)
		if u.RawQuery == "" {
			u.RawQuery = param
		} else {
			u.RawQuery += "&" + param
		}
		if method == "" {
			method = http.MethodGet
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", name, err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// parseHeaders decodes the header JSON. Invalid JSON is logged and
// treated as no headers.
func parseHeaders(name, raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		logger.Warn("[Endpoint] invalid headers JSON, sending none", "endpoint", name, "err", err)
		return nil
	}
	headers := make(map[string]string, len(values))
	for k, v := range values {
		switch v := v.(type) {
		case string:
			headers[k] = v
		case nil:
		default:
			headers[k] = fmt.Sprint(v)
		}
	}
	return headers
}

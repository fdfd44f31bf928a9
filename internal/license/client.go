package license

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/config"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/security"
)

// License server endpoints, relative to ClientConfig.ServerURL.
const (
	validatePath   = "/api/validate"
	activatePath   = "/api/validate/activate"
	deactivatePath = "/api/validate/deactivate"
	heartbeatPath  = "/api/validate/heartbeat"
)

const maxResponseBytes = 1 << 20

// Fingerprinter supplies the machine fingerprint sent to the license server.
type Fingerprinter interface {
	Fingerprint() string
}

// Client talks to the remote license server on behalf of one license key.
// Its configuration does not change after construction.
type Client struct {
	cfg         ClientConfig
	httpClient  *http.Client
	fingerprint Fingerprinter
	cache       ValidationCache
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer

	// generation is bumped by ClearCache so that a validation started before
	// the clear does not repopulate the cache with pre-clear data.
	generation atomic.Uint64
	validating singleflight.Group
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache replaces the default 60 second TTLCache.
func WithCache(cache ValidationCache) ClientOption {
	return func(c *Client) { c.cache = cache }
}

// WithFingerprinter replaces the local host fingerprint.
func WithFingerprinter(f Fingerprinter) ClientOption {
	return func(c *Client) { c.fingerprint = f }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the instruments the client records on.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a License Client. The server URL loses any trailing
// slash and a zero timeout selects config.LicenseCheckTimeout.
func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	cfg.LicenseKey = strings.TrimSpace(cfg.LicenseKey)
	if cfg.LicenseKey == "" {
		return nil, ErrMissingLicenseKey
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ServerURL == "" {
		cfg.ServerURL = config.DefaultLicenseServerURL
	}
	if cfg.AppSlug == "" {
		cfg.AppSlug = config.DefaultAppSlug
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.LicenseCheckTimeout
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.logger
	c.logger = base.With("component", "license_client")
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if c.fingerprint == nil {
		c.fingerprint = security.NewFingerprintManager(base)
	}
	if c.cache == nil {
		c.cache = NewTTLCache(config.LicenseCacheDuration, time.Now)
	}
	if c.metrics == nil {
		c.metrics = defaultMetrics()
	}
	return c, nil
}

// Config returns the client's configuration.
func (c *Client) Config() ClientConfig {
	return c.cfg
}

// Validate checks the license with the server. With useCache set, a result
// younger than the cache TTL is returned without a network call. A license
// the server refuses is a result with Valid false, not an error.
func (c *Client) Validate(ctx context.Context, useCache bool) (*ValidationResult, error) {
	if useCache {
		if cached, ok := c.cache.Get(); ok {
			c.metrics.recordCache(ctx, true)
			c.logger.DebugContext(ctx, "License validation served from cache",
				slog.Bool("valid", cached.Valid))
			return cached, nil
		}
		c.metrics.recordCache(ctx, false)
	}

	// Callers only share a round trip within one cache generation, so a
	// Validate after ClearCache never joins a call started before it. The
	// shared call outlives any single caller; each caller still returns
	// when its own context ends.
	gen := c.generation.Load()
	ch := c.validating.DoChan("validate:"+strconv.FormatUint(gen, 10), func() (any, error) {
		return c.fetchValidation(context.WithoutCancel(ctx), gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ValidationResult).clone(), nil
	case <-ctx.Done():
		return nil, c.transportError("validate", ctx, ctx.Err())
	}
}

func (c *Client) fetchValidation(ctx context.Context, gen uint64) (*ValidationResult, error) {
	start := time.Now()

	result := &ValidationResult{}
	err := c.post(ctx, "validate", validatePath, validateRequest{
		LicenseKey:         c.cfg.LicenseKey,
		AppSlug:            c.cfg.AppSlug,
		MachineFingerprint: c.fingerprint.Fingerprint(),
	}, result)
	if err != nil {
		c.finish(ctx, "validate", resultError, start, err)
		return nil, err
	}

	if c.generation.Load() == gen {
		c.cache.Set(result)
	}

	outcome := resultSuccess
	if !result.Valid {
		outcome = resultRejected
	}
	c.finish(ctx, "validate", outcome, start, nil,
		slog.Bool("valid", result.Valid),
		slog.String("reason", result.Error),
		slog.Int("features", len(result.Features)),
	)
	return result, nil
}

// Activate binds the license to this machine. An empty machineName falls
// back to the configured name, then to the host name. A machine the server
// reports as already activated counts as success with AlreadyActivated set.
// The validation cache is cleared whatever the outcome.
func (c *Client) Activate(ctx context.Context, machineName string) (*ActivationResult, error) {
	c.ClearCache()
	defer c.ClearCache()

	if machineName == "" {
		machineName = c.machineName()
	}

	start := time.Now()
	result := &ActivationResult{}
	err := c.post(ctx, "activate", activatePath, activateRequest{
		LicenseKey:         c.cfg.LicenseKey,
		MachineFingerprint: c.fingerprint.Fingerprint(),
		MachineName:        machineName,
	}, result)

	if ErrorCode(err) == CodeAlreadyActivated || (err == nil && result.Code == CodeAlreadyActivated) {
		result = &ActivationResult{Success: true, Code: CodeAlreadyActivated, AlreadyActivated: true}
		c.finish(ctx, "activate", resultSuccess, start, nil, slog.Bool("already_activated", true))
		return result, nil
	}
	if err != nil {
		c.finish(ctx, "activate", resultError, start, err)
		return nil, err
	}

	outcome := resultSuccess
	if !result.Success {
		outcome = resultRejected
	}
	c.finish(ctx, "activate", outcome, start, nil,
		slog.String("machine_name", machineName),
		slog.String("reason", result.Error),
	)
	return result, nil
}

// Deactivate releases this machine's activation slot and clears the cache.
func (c *Client) Deactivate(ctx context.Context) (*ActivationResult, error) {
	c.ClearCache()
	defer c.ClearCache()

	start := time.Now()
	result := &ActivationResult{}
	err := c.post(ctx, "deactivate", deactivatePath, machineRequest{
		LicenseKey:         c.cfg.LicenseKey,
		MachineFingerprint: c.fingerprint.Fingerprint(),
	}, result)
	if err != nil {
		c.finish(ctx, "deactivate", resultError, start, err)
		return nil, err
	}

	outcome := resultSuccess
	if !result.Success {
		outcome = resultRejected
	}
	c.finish(ctx, "deactivate", outcome, start, nil, slog.String("reason", result.Error))
	return result, nil
}

// Heartbeat re-checks the license with the server. It always makes a
// network call and never touches the validation cache.
func (c *Client) Heartbeat(ctx context.Context) (*ValidationResult, error) {
	start := time.Now()
	result := &ValidationResult{}
	err := c.post(ctx, "heartbeat", heartbeatPath, machineRequest{
		LicenseKey:         c.cfg.LicenseKey,
		MachineFingerprint: c.fingerprint.Fingerprint(),
	}, result)
	if err != nil {
		c.finish(ctx, "heartbeat", resultError, start, err)
		return nil, err
	}

	outcome := resultSuccess
	if !result.Valid {
		outcome = resultRejected
	}
	c.finish(ctx, "heartbeat", outcome, start, nil,
		slog.Bool("valid", result.Valid),
		slog.String("reason", result.Error),
	)
	return result, nil
}

// HasFeature reports whether the license grants name, using a cached
// validation when one is fresh.
func (c *Client) HasFeature(ctx context.Context, name string) (bool, error) {
	result, err := c.Validate(ctx, true)
	if err != nil {
		return false, err
	}
	return result.HasFeature(name), nil
}

// ClearCache makes the next cached Validate call go to the server.
func (c *Client) ClearCache() {
	c.generation.Add(1)
	c.cache.Clear()
}

func (c *Client) machineName() string {
	if c.cfg.MachineName != "" {
		return c.cfg.MachineName
	}
	if host := security.Hostname(); host != "" {
		return host
	}
	return "unknown"
}

func (c *Client) finish(ctx context.Context, op, result string, start time.Time, err error, attrs ...slog.Attr) {
	c.metrics.recordRequest(ctx, op, result, time.Since(start))
	c.logAction(ctx, op, result, start, err, attrs...)
}

// post sends payload as JSON to path and decodes a 2xx answer into out.
// The call is bounded by the client timeout.
func (c *Client) post(ctx context.Context, op, path string, payload, out any) (err error) {
	ctx, span := startSpan(ctx, c.tracer, "license."+op,
		attribute.String("license.operation", op),
		attribute.String("license.app_slug", c.cfg.AppSlug),
	)
	defer func() { endSpan(span, err) }()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Op: op, Code: CodeInvalidResponse, Message: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.ServerURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Op: op, Code: CodeNetworkError, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "zamutints-license-client/"+config.AppVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(op, callCtx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transportError(op, callCtx, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return responseError(op, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Code: CodeInvalidResponse, Message: "license server returned malformed JSON",
			StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func (c *Client) transportError(op string, callCtx context.Context, err error) *Error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &Error{Op: op, Code: CodeTimeout,
			Message: fmt.Sprintf("license server did not answer within %s", c.cfg.Timeout), Err: err}
	}
	return &Error{Op: op, Code: CodeNetworkError, Message: "license server unreachable", Err: err}
}

// responseError translates a non-2xx response, keeping the server's code and
// message when the body carries them.
func responseError(op string, status int, data []byte) *Error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && (body.Code != "" || body.Error != "" || body.Message != "") {
		code := body.Code
		if code == "" {
			code = CodeServerError
		}
		msg := body.Error
		if msg == "" {
			msg = body.Message
		}
		return &Error{Op: op, Code: code, Message: msg, StatusCode: status}
	}
	return &Error{Op: op, Code: CodeServerError,
		Message: fmt.Sprintf("license server returned status %d", status), StatusCode: status}
}

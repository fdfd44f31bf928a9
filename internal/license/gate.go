package license

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/config"
)

// LicenseClient is the part of *Client the gate uses.
type LicenseClient interface {
	Validate(ctx context.Context, useCache bool) (*ValidationResult, error)
	Activate(ctx context.Context, machineName string) (*ActivationResult, error)
	Deactivate(ctx context.Context) (*ActivationResult, error)
	Heartbeat(ctx context.Context) (*ValidationResult, error)
	HasFeature(ctx context.Context, name string) (bool, error)
	ClearCache()
}

// ClientFactory builds the client for a license key.
type ClientFactory func(cfg ClientConfig) (LicenseClient, error)

// GateConfig configures a Gate.
type GateConfig struct {
	Env               string
	LicenseKey        string
	ServerURL         string
	AppSlug           string
	Timeout           time.Duration
	HeartbeatInterval time.Duration
	MachineName       string
}

// GateConfigFrom extracts the gate settings from the application config.
func GateConfigFrom(cfg *config.Config) GateConfig {
	return GateConfig{
		Env:               cfg.Env,
		LicenseKey:        cfg.License.Key,
		ServerURL:         cfg.License.ServerURL,
		AppSlug:           cfg.License.AppSlug,
		Timeout:           cfg.License.Timeout,
		HeartbeatInterval: cfg.License.HeartbeatInterval,
		MachineName:       cfg.License.MachineName,
	}
}

func (c GateConfig) development() bool {
	return c.Env == config.EnvDevelopment
}

func (c GateConfig) clientConfig(key string) ClientConfig {
	return ClientConfig{
		LicenseKey:  key,
		ServerURL:   c.ServerURL,
		AppSlug:     c.AppSlug,
		Timeout:     c.Timeout,
		MachineName: c.MachineName,
	}
}

// Gate is the process license state machine. It owns the current License
// Client and its heartbeat, answers the request guards from its cached
// state, and swaps in a new client on re-activation.
//
// States move UNINITIALIZED -> VALID | INVALID. VALID becomes INVALID on a
// failed heartbeat. INVALID becomes VALID on re-activation or on a later
// successful heartbeat; the heartbeat result sets validity in both
// directions.
type Gate struct {
	cfg       GateConfig
	newClient ClientFactory
	clientOps []ClientOption
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer

	// lifecycle serializes Init, ActivateLicenseKey and Shutdown.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	state     State
	mode      string
	lastError string
	client    LicenseClient
	details   *Details
	hb        *heartbeat
	closed    bool

	listenersMu sync.RWMutex
	listeners   []StatusListener
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the gate logger; clients built by the gate share it.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = logger }
}

// WithGateMetrics sets the instruments of the gate and its clients.
func WithGateMetrics(m *Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// WithClientFactory replaces how the gate builds clients.
func WithClientFactory(f ClientFactory) GateOption {
	return func(g *Gate) { g.newClient = f }
}

// WithClientOptions adds options to every client built by the default
// factory.
func WithClientOptions(opts ...ClientOption) GateOption {
	return func(g *Gate) { g.clientOps = append(g.clientOps, opts...) }
}

// NewGate creates an uninitialized gate.
func NewGate(cfg GateConfig, opts ...GateOption) *Gate {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = config.LicenseHeartbeatInterval
	}

	g := &Gate{
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(g)
	}

	base := g.logger
	g.logger = base.With("component", "license_gate")
	if g.metrics == nil {
		g.metrics = defaultMetrics()
	}
	if g.newClient == nil {
		g.newClient = func(cc ClientConfig) (LicenseClient, error) {
			opts := append([]ClientOption{WithLogger(base), WithMetrics(g.metrics)}, g.clientOps...)
			return NewClient(cc, opts...)
		}
	}
	return g
}

// Metrics returns the instruments shared with the request guards.
func (g *Gate) Metrics() *Metrics {
	return g.metrics
}

// Init validates and activates the configured license, then starts the
// heartbeat. In development mode without a key it becomes VALID without
// contacting the server. A missing key otherwise returns
// ErrMissingLicenseKey. If the license is refused the gate stays
// UNINITIALIZED and the refusal is returned.
func (g *Gate) Init(ctx context.Context) (Status, error) {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	ctx, span := startSpan(ctx, g.tracer, "license.init")
	var err error
	defer func() { endSpan(span, err) }()

	if g.isClosed() {
		err = ErrGateClosed
		return g.Status(), err
	}

	key := strings.TrimSpace(g.cfg.LicenseKey)
	if key == "" {
		if !g.cfg.development() {
			err = ErrMissingLicenseKey
			g.logger.ErrorContext(ctx, "License key not configured", slog.String("env", g.cfg.Env))
			return g.Status(), err
		}
		status := g.enterDevelopment(ctx)
		span.SetAttributes(attribute.String("license.mode", ModeDevelopment))
		return status, nil
	}

	client, details, err := g.establish(ctx, key)
	if err != nil {
		g.mu.Lock()
		g.lastError = Reason(err)
		status := g.statusLocked()
		g.mu.Unlock()

		g.logger.ErrorContext(ctx, "License initialization failed",
			licenseKeyAttrs(key),
			slog.String("error", err.Error()),
			slog.String("code", ErrorCode(err)),
		)
		return status, err
	}

	status := g.publish(ctx, client, details, EventInit)
	g.logger.InfoContext(ctx, "License initialized",
		licenseKeyAttrs(key),
		slog.String("type", details.Type),
		slog.Any("features", details.Features),
		slog.Duration("heartbeat_interval", g.cfg.HeartbeatInterval),
	)
	return status, nil
}

func (g *Gate) enterDevelopment(ctx context.Context) Status {
	g.mu.Lock()
	prev := g.state
	g.state = StateValid
	g.mode = ModeDevelopment
	g.lastError = ""
	status := g.statusLocked()
	g.mu.Unlock()

	g.recordValidChange(ctx, prev, StateValid)
	g.emit(EventInit, status)
	g.logger.WarnContext(ctx, config.MsgDevelopmentMode)
	return status
}

// establish builds a client for key, forces a server validation and
// activates this machine. Nothing on the gate changes.
func (g *Gate) establish(ctx context.Context, key string) (LicenseClient, *Details, error) {
	client, err := g.newClient(g.cfg.clientConfig(key))
	if err != nil {
		return nil, nil, err
	}

	validation, err := client.Validate(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	if !validation.Valid {
		msg := validation.Error
		if msg == "" {
			msg = "license is not valid"
		}
		return nil, nil, &Error{Op: "validate", Code: CodeLicenseInvalid, Message: msg}
	}

	activation, err := client.Activate(ctx, g.cfg.MachineName)
	if err != nil {
		return nil, nil, err
	}
	if !activation.Success {
		code := activation.Code
		if code == "" {
			code = CodeActivationFailed
		}
		msg := activation.Error
		if msg == "" {
			msg = "activation refused"
		}
		return nil, nil, &Error{Op: "activate", Code: code, Message: msg}
	}

	return client, newDetails(validation, activation), nil
}

// publish makes client the current client. The old heartbeat is cancelled
// before the new one starts, all under the state lock, so no heartbeat
// result from a replaced client is ever applied.
func (g *Gate) publish(ctx context.Context, client LicenseClient, details *Details, reason string) Status {
	g.mu.Lock()
	if g.hb != nil {
		g.hb.stop()
	}
	prev := g.state
	g.client = client
	g.details = details
	g.state = StateValid
	g.mode = ""
	g.lastError = ""
	g.hb = g.startHeartbeat(client)
	status := g.statusLocked()
	g.mu.Unlock()

	g.recordValidChange(ctx, prev, StateValid)
	g.emit(reason, status)
	return status
}

// RequireLicense is the hard gate. It reads the cached state only and
// returns a *Rejection unless the gate is VALID.
func (g *Gate) RequireLicense() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.state == StateValid {
		return nil
	}
	return &Rejection{
		Reason:  ReasonLicenseRequired,
		State:   g.state,
		Message: config.MsgLicenseRequired,
		Detail:  g.lastError,
	}
}

// CheckLicenseStatus is the soft gate: it never blocks and returns the
// current snapshot.
func (g *Gate) CheckLicenseStatus() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Snapshot{
		Valid:   g.state == StateValid,
		Error:   g.lastError,
		Mode:    g.mode,
		Details: g.details.clone(),
	}
}

// RequireFeature asks the current client whether the license grants
// feature. It returns nil, a *Rejection, or the client error when the
// server could not be asked. Development mode without a client allows
// every feature.
func (g *Gate) RequireFeature(ctx context.Context, feature string) error {
	g.mu.RLock()
	client, state, mode, lastError := g.client, g.state, g.mode, g.lastError
	g.mu.RUnlock()

	if client == nil {
		if mode == ModeDevelopment {
			return nil
		}
		return &Rejection{
			Reason:  ReasonLicenseRequired,
			State:   state,
			Message: config.MsgLicenseRequired,
			Detail:  lastError,
		}
	}

	ctx, span := startSpan(ctx, g.tracer, "license.require_feature",
		attribute.String("license.feature", feature))
	ok, err := client.HasFeature(ctx, feature)
	endSpan(span, err)
	if err != nil {
		return err
	}
	if !ok {
		return &Rejection{
			Reason:  ReasonFeatureNotLicensed,
			State:   state,
			Feature: feature,
			Message: config.MsgFeatureNotLicensed,
		}
	}
	return nil
}

// ActivateLicenseKey replaces the current license with key. The new client
// is validated and activated first; only when both succeed are the client,
// details and heartbeat swapped in. On failure the gate is left as it was.
func (g *Gate) ActivateLicenseKey(ctx context.Context, key string) ActivationOutcome {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	ctx, span := startSpan(ctx, g.tracer, "license.activate_key")
	var err error
	defer func() { endSpan(span, err) }()

	key = strings.TrimSpace(key)
	if key == "" {
		err = ErrMissingLicenseKey
		return ActivationOutcome{Error: "license key is required"}
	}
	if g.isClosed() {
		err = ErrGateClosed
		return ActivationOutcome{Error: err.Error()}
	}

	client, details, err := g.establish(ctx, key)
	if err != nil {
		g.logger.WarnContext(ctx, "License re-activation failed",
			licenseKeyAttrs(key),
			slog.String("error", err.Error()),
			slog.String("code", ErrorCode(err)),
		)
		return ActivationOutcome{Error: Reason(err)}
	}

	g.publish(ctx, client, details, EventActivation)
	g.logger.InfoContext(ctx, config.MsgLicenseActivated,
		licenseKeyAttrs(key),
		slog.String("type", details.Type),
	)
	return ActivationOutcome{Success: true, License: details.clone()}
}

// Shutdown stops the heartbeat and, if the license is VALID, makes one
// best-effort deactivation. Errors are logged only.
func (g *Gate) Shutdown(ctx context.Context) {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	hb, client, prev := g.hb, g.client, g.state
	g.hb = nil
	g.client = nil
	g.state = StateUninitialized
	g.details = nil
	g.mode = ""
	g.lastError = "license released at shutdown"
	status := g.statusLocked()
	g.mu.Unlock()

	if hb != nil {
		hb.stop()
		<-hb.done
	}

	if prev == StateValid && client != nil {
		if _, err := client.Deactivate(ctx); err != nil {
			g.logger.WarnContext(ctx, "License deactivation failed during shutdown",
				slog.String("error", err.Error()),
				slog.String("code", ErrorCode(err)),
			)
		} else {
			g.logger.InfoContext(ctx, "License deactivated")
		}
	}

	g.recordValidChange(ctx, prev, StateUninitialized)
	g.emit(EventShutdown, status)
}

// Status returns the current state snapshot.
func (g *Gate) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.statusLocked()
}

// Details returns the current license details, or nil.
func (g *Gate) Details() *Details {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.details.clone()
}

// Subscribe registers l for every subsequent state transition.
func (g *Gate) Subscribe(l StatusListener) {
	g.listenersMu.Lock()
	defer g.listenersMu.Unlock()
	g.listeners = append(g.listeners, l)
}

func (g *Gate) statusLocked() Status {
	return Status{
		Valid: g.state == StateValid,
		State: g.state,
		Error: g.lastError,
		Mode:  g.mode,
	}
}

func (g *Gate) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

func (g *Gate) recordValidChange(ctx context.Context, prev, next State) {
	switch {
	case prev != StateValid && next == StateValid:
		g.metrics.recordValid(ctx, 1)
	case prev == StateValid && next != StateValid:
		g.metrics.recordValid(ctx, -1)
	}
}

func (g *Gate) emit(reason string, status Status) {
	g.listenersMu.RLock()
	listeners := append([]StatusListener(nil), g.listeners...)
	g.listenersMu.RUnlock()

	event := StatusEvent{Status: status, Reason: reason, At: time.Now()}
	for _, l := range listeners {
		l(event)
	}
}

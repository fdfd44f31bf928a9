package license

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// heartbeat is the background re-check loop bound to one client.
type heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the loop without waiting for it.
func (h *heartbeat) stop() {
	h.cancel()
}

func (g *Gate) startHeartbeat(client LicenseClient) *heartbeat {
	ctx, cancel := context.WithCancel(context.Background())
	hb := &heartbeat{cancel: cancel, done: make(chan struct{})}
	go g.runHeartbeat(ctx, client, hb.done)
	return hb
}

func (g *Gate) runHeartbeat(ctx context.Context, client LicenseClient, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.beat(ctx, client)
		}
	}
}

// beat runs one heartbeat. Failures and panics are recorded on the gate and
// never escape, so the loop keeps ticking.
func (g *Gate) beat(ctx context.Context, client LicenseClient) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "License heartbeat panicked", slog.Any("panic", r))
			g.applyHeartbeat(client, nil, fmt.Errorf("heartbeat panic: %v", r))
		}
	}()

	result, err := client.Heartbeat(ctx)
	if ctx.Err() != nil {
		return
	}
	g.applyHeartbeat(client, result, err)
}

// applyHeartbeat records a heartbeat outcome unless client has been
// replaced meanwhile. Any successful heartbeat restores StateValid.
func (g *Gate) applyHeartbeat(client LicenseClient, result *ValidationResult, err error) {
	if err == nil && result == nil {
		err = &Error{Op: "heartbeat", Code: CodeInvalidResponse, Message: "empty heartbeat response"}
	}

	g.mu.Lock()
	if g.client != client || g.closed {
		g.mu.Unlock()
		return
	}

	prev := g.state
	switch {
	case err != nil:
		g.state = StateInvalid
		g.lastError = Reason(err)
	case !result.Valid:
		g.state = StateInvalid
		g.lastError = result.Error
		if g.lastError == "" {
			g.lastError = "license is no longer valid"
		}
	default:
		g.state = StateValid
		g.lastError = ""
	}
	status := g.statusLocked()
	g.mu.Unlock()

	ctx := context.Background()
	if status.State != prev {
		g.recordValidChange(ctx, prev, status.State)
		g.emit(EventHeartbeat, status)
	}

	if err != nil || !status.Valid {
		g.logger.WarnContext(ctx, "License heartbeat failed",
			slog.String("state", status.State.String()),
			slog.String("error", status.Error),
			slog.Bool("timeout", IsTimeout(err)),
		)
		return
	}
	g.logger.DebugContext(ctx, "License heartbeat ok")
}

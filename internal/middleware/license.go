package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/gokulwholesaleinc-web/zamutints-sub000/internal/errors"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/license"
)

type licenseStatusKey struct{}

// LicenseGuard turns gate decisions into request-pipeline guards.
type LicenseGuard struct {
	gate         LicenseGate
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
	metrics      *license.Metrics
	tracer       trace.Tracer

	// exposeDetail adds the underlying license error to 403 bodies.
	exposeDetail bool
}

// NewLicenseGuard creates the guards for gate. exposeDetail must be false in
// production.
func NewLicenseGuard(gate LicenseGate, errorHandler *apierrors.ErrorHandler, metrics *license.Metrics, logger *slog.Logger, exposeDetail bool) *LicenseGuard {
	return &LicenseGuard{
		gate:         gate,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "license_middleware")),
		metrics:      metrics,
		tracer:       otel.Tracer("zamutints/license-middleware"),
		exposeDetail: exposeDetail,
	}
}

// RequireLicense is the hard gate: requests are rejected with 403 unless the
// license is valid. It never contacts the license server.
func (g *LicenseGuard) RequireLicense(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := g.gate.RequireLicense()
		if err == nil {
			next.ServeHTTP(w, r)
			return
		}
		g.reject(w, r, err)
	})
}

// RequireFeature rejects requests with 403 when the license does not grant
// feature. If the license server cannot be asked the request fails with 503.
func (g *LicenseGuard) RequireFeature(feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := g.tracer.Start(r.Context(), "license_middleware.require_feature",
				trace.WithAttributes(
					attribute.String("license.feature", feature),
					attribute.String("http.route", getRoutePattern(r)),
				),
			)
			err := g.gate.RequireFeature(ctx, feature)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()

			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			g.reject(w, r, err)
		})
	}
}

// CheckLicenseStatus is the soft gate: it attaches the license snapshot to
// the request context and always calls next.
func (g *LicenseGuard) CheckLicenseStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := g.gate.CheckLicenseStatus()
		ctx := context.WithValue(r.Context(), licenseStatusKey{}, snap)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LicenseStatusFromContext returns the snapshot attached by
// CheckLicenseStatus.
func LicenseStatusFromContext(ctx context.Context) (license.Snapshot, bool) {
	snap, ok := ctx.Value(licenseStatusKey{}).(license.Snapshot)
	return snap, ok
}

func (g *LicenseGuard) reject(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var rej *license.Rejection
	if !errors.As(err, &rej) {
		g.metrics.RecordRejection(ctx, license.ReasonValidationFailed)
		g.logger.WarnContext(ctx, "license check could not reach the license server",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		g.errorHandler.HandleError(w, r, apierrors.LicenseServiceUnavailable(license.ErrorCode(err), err))
		return
	}

	g.metrics.RecordRejection(ctx, rej.Reason)
	g.logger.WarnContext(ctx, "request rejected by license guard",
		slog.String("path", r.URL.Path),
		slog.String("reason", rej.Reason),
		slog.String("license_status", rej.State.String()),
		slog.String("feature", rej.Feature),
	)

	var body *apierrors.LicenseRejection
	if rej.Reason == license.ReasonFeatureNotLicensed {
		body = apierrors.NewFeatureNotLicensed(rej.State.String(), rej.Feature, rej.Message)
	} else {
		detail := ""
		if g.exposeDetail {
			detail = rej.Detail
		}
		body = apierrors.NewLicenseRequired(rej.State.String(), rej.Message, detail)
	}
	body.TraceID = GetRequestID(ctx)

	_ = render.Render(w, r, body)
}

package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/gokulwholesaleinc-web/zamutints-sub000/internal/errors"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/license"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/middleware"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/security"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/pkg/contracts/domain"
)

// LicenseService is the part of *license.Gate the license endpoints use.
type LicenseService interface {
	Status() license.Status
	Details() *license.Details
	CheckLicenseStatus() license.Snapshot
	ActivateLicenseKey(ctx context.Context, key string) license.ActivationOutcome
}

// LicenseHandler serves the license status and activation endpoints.
type LicenseHandler struct {
	service        LicenseService
	validator      *middleware.RequestValidator
	inputValidator *security.InputValidator
	errorHandler   *apierrors.ErrorHandler
	logger         *slog.Logger
	tracer         trace.Tracer
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service LicenseService, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:        service,
		validator:      middleware.NewRequestValidator(logger, errorHandler),
		inputValidator: security.NewInputValidator(logger, 0),
		errorHandler:   errorHandler,
		logger:         logger.With(slog.String("handler", "license")),
		tracer:         otel.Tracer("zamutints/license-handler"),
	}
}

// AdminRoutes returns the admin license routes. They stay reachable while
// the license is invalid so an operator can recover. activationLimit guards
// the activate endpoint and may be nil.
func (h *LicenseHandler) AdminRoutes(activationLimit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.AdminStatus)
	r.Group(func(r chi.Router) {
		if activationLimit != nil {
			r.Use(activationLimit)
		}
		r.Use(middleware.ContentTypeValidator(h.errorHandler, "application/json"))
		r.Post("/activate", h.Activate)
	})
	return r
}

// PublicStatus handles GET /api/license/status for the booking site banner.
func (h *LicenseHandler) PublicStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := middleware.LicenseStatusFromContext(r.Context())
	if !ok {
		snap = h.service.CheckLicenseStatus()
	}
	render.JSON(w, r, domain.PublicLicenseStatus{
		Valid: snap.Valid,
		Error: snap.Error,
		Mode:  snap.Mode,
	})
}

// AdminStatus handles GET /api/admin/license/status.
func (h *LicenseHandler) AdminStatus(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()
	render.JSON(w, r, domain.LicenseStatusResponse{
		Valid:   st.Valid,
		State:   st.State.String(),
		Error:   st.Error,
		Mode:    st.Mode,
		License: toDomainDetails(h.service.Details()),
	})
}

// Activate handles POST /api/admin/license/activate. A refused key is a
// 422 with the reason; the running license is left untouched.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "license_handler.activate",
		trace.WithAttributes(attribute.String("http.route", "/api/admin/license/activate")),
	)
	defer span.End()
	r = r.WithContext(ctx)

	var req domain.ActivateLicenseRequest
	if !h.validator.DecodeAndValidate(w, r, &req) {
		span.SetAttributes(attribute.String("license.result", "bad_request"))
		return
	}

	check := h.inputValidator.ValidateLicenseKey(ctx, req.LicenseKey)
	if !check.IsValid {
		span.SetAttributes(attribute.String("license.result", "bad_request"))
		errs := make([]apierrors.ValidationError, 0, len(check.Errors))
		for _, msg := range check.Errors {
			errs = append(errs, apierrors.ValidationError{Field: "licenseKey", Message: msg})
		}
		h.errorHandler.HandleError(w, r, apierrors.NewValidationErrors(errs))
		return
	}

	// The activation is finished even if the admin closes the page; the
	// client's own timeout bounds it.
	outcome := h.service.ActivateLicenseKey(context.WithoutCancel(ctx), check.SanitizedValue)
	if !outcome.Success {
		span.SetAttributes(attribute.String("license.result", "rejected"))
		h.logger.WarnContext(ctx, "license activation refused",
			slog.String("error", outcome.Error))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, domain.ActivateLicenseResponse{Success: false, Error: outcome.Error})
		return
	}

	span.SetAttributes(attribute.String("license.result", "activated"))
	h.logger.InfoContext(ctx, "license activated from admin panel")
	render.JSON(w, r, domain.ActivateLicenseResponse{
		Success: true,
		License: toDomainDetails(outcome.License),
	})
}

func toDomainDetails(d *license.Details) *domain.LicenseDetails {
	if d == nil {
		return nil
	}
	return &domain.LicenseDetails{
		Type:               d.Type,
		Status:             d.Status,
		Features:           d.Features,
		MaxActivations:     d.MaxActivations,
		CurrentActivations: d.CurrentActivations,
		ExpiresAt:          d.ExpiresAt,
		ActivatedAt:        d.ActivatedAt,
	}
}

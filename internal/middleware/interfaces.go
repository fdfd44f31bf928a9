package middleware

import (
	"context"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/license"
)

// LicenseGate is the part of *license.Gate the request guards use.
type LicenseGate interface {
	RequireLicense() error
	RequireFeature(ctx context.Context, feature string) error
	CheckLicenseStatus() license.Snapshot
}

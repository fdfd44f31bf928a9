package license

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// maskLicenseKey keeps the first and last four characters of key.
func maskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// hashLicenseKey returns a short digest of key for correlating log lines.
func hashLicenseKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

func licenseKeyAttrs(key string) slog.Attr {
	return slog.Group("license",
		slog.String("key", maskLicenseKey(key)),
		slog.String("key_hash", hashLicenseKey(key)),
	)
}

// logAction logs one License Client call.
func (c *Client) logAction(ctx context.Context, op, result string, start time.Time, err error, attrs ...slog.Attr) {
	all := []slog.Attr{
		slog.String("action", op),
		slog.String("result", result),
		slog.Duration("duration", time.Since(start)),
		licenseKeyAttrs(c.cfg.LicenseKey),
	}
	all = append(all, attrs...)

	level := slog.LevelInfo
	switch {
	case err != nil:
		level = slog.LevelError
		all = append(all, slog.String("error", err.Error()), slog.String("code", ErrorCode(err)))
	case result != resultSuccess:
		level = slog.LevelWarn
	}
	c.logger.LogAttrs(ctx, level, "License "+op, all...)
}

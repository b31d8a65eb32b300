package api

import (
	"log/slog"
	"net/http"

	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/ratelimit"
)

// auditLog emits a structured audit log entry for a mutating action.
func auditLog(r *http.Request, action string, resourceType string, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", ratelimit.ClientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}

	if p := auth.PayloadFromContext(r.Context()); p != nil {
		attrs = append(attrs, "user_id", p.UserID, "web_app_role", p.WebAppRole)
	}

	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
}

package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "auth_user_id"
	ctxRole   contextKey = "auth_role"
)

// WithUserID stores the authenticated user id on the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole stores the authenticated role on the context.
func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	return context.WithValue(ctx, ctxRole, role)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxUserID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// RoleFromContext returns the authenticated role, if any.
func RoleFromContext(ctx context.Context) (enums.UserRole, bool) {
	role, ok := ctx.Value(ctxRole).(enums.UserRole)
	if !ok || !role.IsValid() {
		return "", false
	}
	return role, true
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/api/middleware"
	"github.com/medifast-dev/medifast-backend/pkg/enums"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
)

// pathID parses a uuid path parameter.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name)
	}
	return id, nil
}

// callerIsAdmin reports whether the authenticated caller holds the admin role.
func callerIsAdmin(r *http.Request) bool {
	role, ok := middleware.RoleFromContext(r.Context())
	return ok && role == enums.RoleAdmin
}

// callerCanActOn allows the resource owner and any admin.
func callerCanActOn(r *http.Request, ownerID uuid.UUID) error {
	if callerIsAdmin(r) {
		return nil
	}
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if callerID != ownerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to act on another user's resources")
	}
	return nil
}

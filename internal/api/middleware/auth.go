// Package middleware provides HTTP middleware for Gridbase.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/voltio/gridbase/internal/api/jsonapi"
	"github.com/voltio/gridbase/internal/auth"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// RequireAuth validates the Bearer JWT in the Authorization header.
// On success it injects *auth.Claims into the request context.
// On failure it writes a 401 JSON:API error response carrying a sign-in
// redirect hint for the rendering layer.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				renderUnauthenticated(w, "Authorization header is required")
				return
			}

			claims, err := auth.ParseAccessToken(token, secret)
			if err != nil {
				renderUnauthenticated(w, "access token is invalid or expired")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOrganization checks that the authenticated user has an active
// organization. Tenant-scoped routes chain it after RequireAuth; without an
// org claim the response carries an organization-selection redirect hint.
func RequireOrganization() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				renderUnauthenticated(w, "authentication required")
				return
			}
			if claims.OrganizationID == "" {
				jsonapi.RenderErrorMeta(w, http.StatusForbidden,
					"no_active_tenant", "Forbidden",
					"no organization is selected for this account",
					jsonapi.Meta{"redirect": "/onboarding/organization-selection"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext extracts Claims from the request context.
// Returns nil if not present.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	v := ctx.Value(claimsKey)
	if v == nil {
		return nil
	}
	c, _ := v.(*auth.Claims)
	return c
}

func renderUnauthenticated(w http.ResponseWriter, detail string) {
	jsonapi.RenderErrorMeta(w, http.StatusUnauthorized,
		"unauthenticated", "Unauthorized", detail,
		jsonapi.Meta{"redirect": "/sign-in"})
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

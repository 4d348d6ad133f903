// Package middleware provides HTTP middleware for the orchestration API.
package middleware

import (
	"context"
	"net/http"
)

// TenantHeader carries the caller's tenant identity on every request.
const TenantHeader = "X-Tenant-ID"

type tenantKey struct{}

// Tenant returns an HTTP middleware that resolves the caller's tenant from
// the X-Tenant-ID header and stores it in the request context. Requests
// without the header fall back to defaultTenant. The header is the sole
// partitioning key; nothing in the request body is trusted for isolation.
func Tenant(defaultTenant string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get(TenantHeader)
			if tenantID == "" {
				tenantID = defaultTenant
			}
			ctx := context.WithValue(r.Context(), tenantKey{}, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext extracts the tenant ID from the context. Returns an empty
// string if the tenant middleware did not run.
func TenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantKey{}).(string)
	return tenantID
}

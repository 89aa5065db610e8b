package middleware

import (
	"context"
	"net/http"
	"strings"

	"tablet-tracker/internal/auth"
)

type contextKey string

const EmployeeKey contextKey = "employee"
const RoleKey contextKey = "role"

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
}

func NewAuthMiddleware(jwtManager *auth.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

func (m *AuthMiddleware) claimsFromRequest(r *http.Request) (*auth.Claims, int, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, http.StatusUnauthorized, "Authorization header required"
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, http.StatusUnauthorized, "Invalid authorization format"
	}

	claims, err := m.jwtManager.ValidateToken(parts[1])
	if err != nil {
		return nil, http.StatusUnauthorized, "Invalid or expired token"
	}
	return claims, 0, ""
}

func withClaims(r *http.Request, claims *auth.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), EmployeeKey, claims.Employee)
	ctx = context.WithValue(ctx, RoleKey, claims.Role)
	return r.WithContext(ctx)
}

// Authenticate is a middleware that validates JWT tokens
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, status, msg := m.claimsFromRequest(r)
		if claims == nil {
			http.Error(w, msg, status)
			return
		}
		next.ServeHTTP(w, withClaims(r, claims))
	})
}

// RequireRole is a middleware that ensures the caller has one of the allowed roles
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, status, msg := m.claimsFromRequest(r)
			if claims == nil {
				http.Error(w, msg, status)
				return
			}

			hasRole := false
			for _, role := range allowedRoles {
				if claims.Role == role {
					hasRole = true
					break
				}
			}
			if !hasRole {
				http.Error(w, "Forbidden: Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, withClaims(r, claims))
		})
	}
}

// GetEmployeeFromContext extracts the authenticated employee from request context
func GetEmployeeFromContext(ctx context.Context) (string, bool) {
	employee, ok := ctx.Value(EmployeeKey).(string)
	return employee, ok
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

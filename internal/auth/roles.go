package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/balmohsen/backend/pkg/models"
)

const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
)

// Operation names the gated operations of the service.
type Operation string

const (
	OpSubmitForm  Operation = "form:submit"
	OpViewForm    Operation = "form:view"
	OpDecideForm  Operation = "form:decide"
	OpManageUsers Operation = "users:manage"
)

var approverRoles = map[models.Role]bool{
	models.RoleFinance:       true,
	models.RoleManager:       true,
	models.RoleVP:            true,
	models.RoleAdministrator: true,
}

// Allowed maps (role, operation) to an allow/deny outcome. Submission and
// viewing need only an authenticated principal; deciding needs an approver
// role (which stage may act is the engine's check); user management is
// administrator-only.
func Allowed(role models.Role, op Operation) bool {
	switch op {
	case OpSubmitForm, OpViewForm:
		return role.IsValid()
	case OpDecideForm:
		return approverRoles[role]
	case OpManageUsers:
		return role == models.RoleAdministrator
	default:
		return false
	}
}

// RequireOperation is echo middleware that denies requests whose principal
// may not invoke the operation. Denial never mutates state.
func RequireOperation(op Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFrom(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated principal")
			}
			if !Allowed(principal.Role, op) {
				return echo.NewHTTPError(http.StatusForbidden, "role "+principal.Role.String()+" may not perform "+string(op))
			}
			return next(c)
		}
	}
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal attaches the authenticated principal to the context.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

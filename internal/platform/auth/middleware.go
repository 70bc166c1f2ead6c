package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

const (
	RoleAdmin   = "ADMIN"
	RoleDoctor  = "DOCTOR"
	RolePatient = "PATIENT"
)

// Claims is the token payload issued by the identity collaborator.
// Tokens are verified here, never issued.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	DoctorID string `json:"doctor_id,omitempty"`
}

// Principal is the authenticated caller attached to the request
// context. DoctorID is set only for callers with the DOCTOR role.
type Principal struct {
	UserID   uuid.UUID
	Role     string
	DoctorID *uuid.UUID
}

// IsDoctor reports whether the principal owns the given doctor
// schedule. Admins own everything.
func (p *Principal) IsDoctor(doctorID uuid.UUID) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.DoctorID != nil && *p.DoctorID == doctorID
}

// JWTMiddleware validates a bearer token signed with the shared HMAC
// secret and stores the resulting Principal on the request context.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject")
			}
			p := &Principal{UserID: userID, Role: claims.Role}
			if claims.DoctorID != "" {
				did, err := uuid.Parse(claims.DoctorID)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid doctor_id claim")
				}
				p.DoctorID = &did
			}

			ctx := context.WithValue(c.Request().Context(), principalKey, p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that
// grants an admin principal to unauthenticated requests.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if PrincipalFromContext(c.Request().Context()) == nil {
				p := &Principal{UserID: uuid.New(), Role: RoleAdmin}
				ctx := context.WithValue(c.Request().Context(), principalKey, p)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// PrincipalFromContext retrieves the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// WithPrincipal returns a context carrying p. Used by tests and
// internal callers.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

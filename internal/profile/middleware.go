package profile

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CookieName = "profile"
	contextKey = "profile_id"
)

// Middleware resolves the request's profile from a Bearer token or the
// profile cookie. Requests carrying neither get a fresh profile and a cookie;
// requests carrying an invalid token are rejected.
func Middleware(iss *Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				if cookie, err := c.Cookie(CookieName); err == nil {
					token = cookie.Value
				}
			}

			if token == "" {
				id := uuid.New()
				signed, err := iss.Issue(id)
				if err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "Profile configuration error")
				}
				SetCookie(c, iss, signed)
				c.Set(contextKey, id)
				return next(c)
			}

			id, err := iss.Parse(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired profile token")
			}
			c.Set(contextKey, id)
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// SetCookie stores token in the profile cookie.
func SetCookie(c echo.Context, iss *Issuer, token string) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(iss.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromContext returns the profile resolved by Middleware.
func FromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(contextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("profile not found in context")
	}
	return id, nil
}

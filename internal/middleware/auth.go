package middleware

import (
	"net/http"
	"strings"
	"time"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/errs"
	"visit-tracker/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	principalKey = "principal"
)

// Guard authenticates requests with access tokens issued by a TokenManager.
type Guard struct {
	tokens *auth.TokenManager
	secure bool
}

// NewGuard returns a Guard. secure marks cookies Secure with SameSite=None for cross-origin deployments.
func NewGuard(tokens *auth.TokenManager, secure bool) *Guard {
	return &Guard{tokens: tokens, secure: secure}
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func (g *Guard) SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	g.sameSite(c)
	c.SetCookie(AccessCookie, accessToken, seconds(g.tokens.AccessTTL()), "/", "", g.secure, true)
	c.SetCookie(RefreshCookie, refreshToken, seconds(g.tokens.RefreshTTL()), "/api/auth", "", g.secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func (g *Guard) ClearTokenCookies(c *gin.Context) {
	g.sameSite(c)
	c.SetCookie(AccessCookie, "", -1, "/", "", g.secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/api/auth", "", g.secure, true)
}

func (g *Guard) sameSite(c *gin.Context) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	if g.secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
}

func seconds(d time.Duration) int { return int(d / time.Second) }

// RequireRole validates the access token and checks the caller's role against allowedRoles.
// With no roles, any authenticated caller passes.
func (g *Guard) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie(AccessCookie)
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				abort(c, http.StatusUnauthorized, errs.KindUnauthorized, "Authorization is missing")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				abort(c, http.StatusUnauthorized, errs.KindUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'")
				return
			}
			tokenString = strings.TrimSpace(parts[1])
		}

		principal, err := g.tokens.Parse(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, errs.KindUnauthorized, "Invalid or expired token")
			return
		}

		if len(allowedRoles) > 0 && !hasRole(principal.Role, allowedRoles) {
			abort(c, http.StatusForbidden, errs.KindForbidden, "Access denied: insufficient permissions")
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// CurrentUser returns the principal stored by RequireRole.
func CurrentUser(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func abort(c *gin.Context, status int, kind errs.Kind, msg string) {
	c.AbortWithStatusJSON(status, response.Fail(status, string(kind), msg))
}

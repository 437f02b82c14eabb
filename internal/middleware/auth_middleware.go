package middleware

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/errors"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/ikkim/quickcart-backend/pkg/util"
)

// Context keys for user information
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
)

var (
	errNoCredentials   = stderrors.New("no credentials")
	errMalformedHeader = stderrors.New("malformed authorization header")
)

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// credentials reads "Authorization: Bearer <token>". Browsers cannot set
// headers on a websocket upgrade, so the token query parameter is used when
// the header is absent.
func (m *AuthMiddleware) credentials(c *gin.Context) (*util.Claims, error) {
	raw := c.Query("token")
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
			return nil, errMalformedHeader
		}
		raw = token
	}
	if raw == "" {
		return nil, errNoCredentials
	}

	claims, err := util.ValidateToken(raw, m.jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != util.TokenTypeAccess {
		return nil, util.ErrInvalidToken
	}
	return claims, nil
}

// attach stores the identity and scopes the request logger to the user
func attach(c *gin.Context, claims *util.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UserEmailKey, claims.Email)
	c.Set(UserRoleKey, model.UserRole(claims.Role))

	log := GetLoggerFromContext(c).WithContext(map[string]interface{}{"user_id": claims.UserID})
	c.Set(ctxLoggerKey, log)
	c.Request = c.Request.WithContext(logger.IntoContext(c.Request.Context(), log))
}

// Authenticate requires a valid access token
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.credentials(c)
		if err != nil {
			GetLoggerFromContext(c).Warn("Request not authenticated", map[string]interface{}{
				"reason": err.Error(),
			})
			switch {
			case stderrors.Is(err, errNoCredentials):
				errors.Unauthorized(c, "Authorization header is required")
			case stderrors.Is(err, errMalformedHeader):
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Malformed authorization header")
			case stderrors.Is(err, util.ErrExpiredToken):
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "Session expired, please log in again")
			default:
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Invalid authentication token")
			}
			return
		}

		attach(c, claims)
		c.Next()
	}
}

// OptionalAuthenticate attaches the user when a valid token is present.
// Guests and bad tokens pass through anonymously.
func (m *AuthMiddleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.credentials(c)
		switch {
		case err == nil:
			attach(c, claims)
		case !stderrors.Is(err, errNoCredentials):
			GetLoggerFromContext(c).Debug("Ignoring unusable token, continuing as guest", map[string]interface{}{
				"reason": err.Error(),
			})
		}
		c.Next()
	}
}

// RequireRole lets the request through only for one of roles.
// It must run after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	allowed := make(map[model.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		role, ok := GetUserRole(c)
		if !ok {
			errors.Forbidden(c, "")
			return
		}
		if !allowed[role] {
			GetLoggerFromContext(c).Warn("Insufficient permissions", map[string]interface{}{
				"user_role":      role,
				"required_roles": roles,
			})
			errors.RespondWithError(c, http.StatusForbidden, errors.AuthzAdminOnly, "Administrator access required")
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(UserIDKey)
	return userID, userID != ""
}

func GetUserEmail(c *gin.Context) (string, bool) {
	email := c.GetString(UserEmailKey)
	return email, email != ""
}

func GetUserRole(c *gin.Context) (model.UserRole, bool) {
	role, ok := c.Value(UserRoleKey).(model.UserRole)
	return role, ok
}

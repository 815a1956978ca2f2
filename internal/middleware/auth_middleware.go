package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/truecar-kr/truecar-backend/internal/errors"
	"github.com/truecar-kr/truecar-backend/pkg/util"
)

// Context keys for account information
const (
	AccountIDKey = "account_id"
	UserEmailKey = "user_email"
	IsAdminKey   = "is_admin"
)

// AdminChecker is the part of the admin gate the middleware needs.
type AdminChecker interface {
	IsAdmin(ctx context.Context, email string) bool
}

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// token query parameter for WebSocket upgrades. ok=false means a malformed header.
func bearerToken(c *gin.Context) (token string, ok bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("token"), true
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// Authenticate validates JWT token (required)
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, ok := bearerToken(c)
		if !ok {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "인증 형식이 올바르지 않습니다")
			c.Abort()
			return
		}
		if token == "" {
			log.Warn("Missing authorization header", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.Unauthorized(c, "로그인이 필요합니다")
			c.Abort()
			return
		}

		claims, err := util.ValidateToken(token, m.jwtSecret)
		if err == nil && claims.TokenType != util.TokenTypeAccess {
			err = util.ErrInvalidToken
		}
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})

			// 토큰 만료 에러인 경우 명확히 표시
			if stderrors.Is(err, util.ErrExpiredToken) {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "로그인이 만료되었습니다")
			} else {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "유효하지 않은 인증 토큰입니다")
			}
			c.Abort()
			return
		}

		c.Set(AccountIDKey, claims.AccountID)
		c.Set(UserEmailKey, claims.Email)

		log.Debug("Account authenticated", map[string]interface{}{
			"account_id": claims.AccountID,
		})

		c.Next()
	}
}

// OptionalAuthenticate validates JWT token if present (optional)
// - If token is present and valid: sets account info in context, plus the
//   admin flag when gate recognises the email
// - If token is missing or invalid: continues as guest
func (m *AuthMiddleware) OptionalAuthenticate(gate AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || token == "" {
			c.Next()
			return
		}

		claims, err := util.ValidateToken(token, m.jwtSecret)
		if err != nil || claims.TokenType != util.TokenTypeAccess {
			GetLoggerFromContext(c).Debug("Token validation failed - continuing as guest", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			c.Next()
			return
		}

		c.Set(AccountIDKey, claims.AccountID)
		c.Set(UserEmailKey, claims.Email)
		if gate != nil && gate.IsAdmin(c.Request.Context(), claims.Email) {
			c.Set(IsAdminKey, true)
		}
		c.Next()
	}
}

// RequireAdmin rejects callers the admin gate does not recognise. Must run
// after Authenticate. Services check again on every mutation.
func (m *AuthMiddleware) RequireAdmin(gate AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, _ := GetUserEmail(c)
		if !gate.IsAdmin(c.Request.Context(), email) {
			GetLoggerFromContext(c).Warn("Admin route rejected", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"email": email,
			})
			errors.AdminOnly(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetAccountID extracts account ID from context
func GetAccountID(c *gin.Context) (uint, bool) {
	id, exists := c.Get(AccountIDKey)
	if !exists {
		return 0, false
	}
	v, ok := id.(uint)
	return v, ok
}

// GetUserEmail extracts the caller email from context
func GetUserEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(UserEmailKey)
	if !exists {
		return "", false
	}
	v, ok := email.(string)
	return v, ok
}

// IsAdminCaller reports whether OptionalAuthenticate identified an admin.
func IsAdminCaller(c *gin.Context) bool {
	return c.GetBool(IsAdminKey)
}

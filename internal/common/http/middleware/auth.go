package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "codepulse/pkg/errors"
	"codepulse/pkg/utils/contextkey"
	"codepulse/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDHeader     = "X-User-Id"
	userIDContextKey = "user_id"
)

// JWTAuthenticator verifies HS256 access tokens issued by the user service.
type JWTAuthenticator struct {
	secret []byte
	issuer string
}

func NewJWTAuthenticator(secret, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), issuer: issuer}
}

type tokenClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Authenticate returns the user id carried in the token subject.
func (a *JWTAuthenticator) Authenticate(raw string) (int64, error) {
	if raw == "" || len(a.secret) == 0 {
		return 0, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return 0, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return 0, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return 0, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.TokenType != "access" {
		return 0, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return userID, nil
}

// IdentityMiddleware resolves the caller. With an authenticator the bearer token
// is required; without one the X-User-Id header set by the gateway is trusted.
func IdentityMiddleware(auth *JWTAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			userID int64
			err    error
		)
		if auth != nil {
			userID, err = auth.Authenticate(extractBearerToken(c.GetHeader("Authorization")))
		} else {
			userID, err = parseUserIDHeader(c.GetHeader(userIDHeader))
		}
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(userIDContextKey, userID)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserID returns the caller id set by IdentityMiddleware.
func UserID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok
}

func parseUserIDHeader(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.Unauthorized)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.Unauthorized).WithMessage("invalid user id")
	}
	return id, nil
}

func extractBearerToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

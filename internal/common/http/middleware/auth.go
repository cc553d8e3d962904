package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "codoleet/pkg/errors"
	"codoleet/pkg/utils/contextkey"
	"codoleet/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates access tokens minted by the external auth service
// and extracts the caller identity.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

type accessClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Verify parses the raw token and returns the subject user id.
func (v *TokenVerifier) Verify(raw string) (string, error) {
	if raw == "" || len(v.secret) == 0 {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", pkgerrors.New(pkgerrors.TokenExpired)
		}
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.Subject == "" {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return claims.Subject, nil
}

// AuthMiddleware requires a valid Bearer token and places the user id into
// both the gin and request contexts.
func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		userID, err := verifier.Verify(raw)
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

// UserID returns the authenticated user id set by AuthMiddleware.
func UserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(userIDContextKey)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	StaffRole   = "staff"
	staffKey    = "staff"
	staffIssuer = "roomledger"
)

var ErrStaffTokenInvalid = errors.New("invalid staff token")

type StaffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueStaffToken signs an HS256 token for the admin API.
func IssueStaffToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("empty secret: %w", ErrStaffTokenInvalid)
	}

	//nolint:exhaustruct
	claims := StaffClaims{
		Role: StaffRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    staffIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign staff token: %w", err)
	}

	return signed, nil
}

func parseStaffToken(secret, raw string) (*StaffClaims, error) {
	var claims StaffClaims

	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(staffIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaffTokenInvalid, err)
	}

	if claims.Role != StaffRole {
		return nil, fmt.Errorf("role %q: %w", claims.Role, ErrStaffTokenInvalid)
	}

	return &claims, nil
}

// staffAuthMiddleware admits requests carrying a valid staff bearer token.
// Without a configured secret the admin API is closed.
func (s *Server) staffAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.conf.StaffJWTSecret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "staff API is not configured"})

			return
		}

		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token is missing"})

			return
		}

		claims, err := parseStaffToken(s.conf.StaffJWTSecret, raw)
		if err != nil {
			s.l.LogWarnf("Rejected staff token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrStaffTokenInvalid.Error()})

			return
		}

		c.Set(staffKey, claims.Subject)

		c.Next()
	}
}

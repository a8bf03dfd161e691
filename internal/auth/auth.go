// Package auth parses JWT bearer tokens into principals and exposes the
// role checks the price store enforces on every operation.
package auth

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const principalContextKey = "auth.principal"

// writerRoles are the roles allowed to write price data. Any
// authenticated principal may read.
var writerRoles = map[string]bool{
	"officer": true,
	"admin":   true,
	"service": true,
}

type Principal struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

func (p *Principal) CanWrite() bool {
	return p != nil && writerRoles[p.Role]
}

// ParseToken validates an HMAC-signed JWT and extracts the principal.
func ParseToken(secret, tokenStr string) (*Principal, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims format")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("token missing sub claim")
	}
	role, _ := claims["role"].(string)
	return &Principal{Subject: sub, Role: role}, nil
}

// Middleware attaches the bearer principal to the request context. A
// missing Authorization header is allowed through unauthenticated: reads
// degrade to empty results downstream instead of failing at the edge.
// A present but invalid token is rejected outright.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(401, gin.H{"error": "authorization header must be a Bearer token"})
			return
		}
		p, err := ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid token"})
			return
		}
		c.Set(principalContextKey, p)
		c.Next()
	}
}

// FromContext returns the request principal, or nil when unauthenticated.
func FromContext(c *gin.Context) *Principal {
	if v, ok := c.Get(principalContextKey); ok {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ownerContextKey = "boxstoreOwner"

// ErrUnresolved indicates the request carried no usable owner identity.
var ErrUnresolved = errors.New("owner identity not resolved")

// Resolver maps an inbound request to the owner on whose behalf it runs.
// Authentication itself happens elsewhere; the service only ever sees the
// resolved owner identifier.
type Resolver interface {
	Resolve(c *gin.Context) (uuid.UUID, error)
}

// JWTResolver extracts the owner id from the subject claim of a bearer token.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver constructs a resolver validating HS256 tokens with secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// Resolve validates the Authorization bearer token and returns the subject.
func (r *JWTResolver) Resolve(c *gin.Context) (uuid.UUID, error) {
	header := c.GetHeader("Authorization")
	raw := extractBearerToken(header)
	if raw == "" {
		return uuid.Nil, ErrUnresolved
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrUnresolved
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrUnresolved
	}
	ownerID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrUnresolved
	}
	return ownerID, nil
}

// HeaderResolver trusts an owner id passed in a request header. Meant for
// tests and development behind a trusted proxy.
type HeaderResolver struct {
	Header string
}

// Resolve parses the owner id from the configured header.
func (r *HeaderResolver) Resolve(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetHeader(r.Header)
	if raw == "" {
		return uuid.Nil, ErrUnresolved
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrUnresolved
	}
	return ownerID, nil
}

// Middleware resolves the request owner and injects it into the context,
// rejecting requests it cannot attribute.
func Middleware(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, err := resolver.Resolve(c)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ownerContextKey, ownerID)
		c.Next()
	}
}

// Owner returns the resolved owner id for the request.
func Owner(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(ownerContextKey)
	if !ok {
		return uuid.Nil, false
	}
	ownerID, ok := val.(uuid.UUID)
	return ownerID, ok
}

func extractBearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

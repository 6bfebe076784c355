package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"escrowchain/crypto"
)

// AuthConfig configures bearer token verification. Tokens are HMAC signed and
// carry the caller's address in sub.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

type contextKey string

const contextKeyCaller contextKey = "escrow.caller"

// Authenticator verifies bearer tokens and attaches the caller address to
// the request context.
type Authenticator struct {
	secret []byte
	issuer string
	skew   time.Duration
}

func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return nil, errors.New("auth secret not configured")
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &Authenticator{secret: []byte(secret), issuer: strings.TrimSpace(cfg.Issuer), skew: skew}, nil
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		caller, err := a.Verify(tokenString)
		if err != nil {
			logger(r).Debug("token validation failed", "error", err)
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify parses tokenString and returns the address in its subject.
func (a *Authenticator) Verify(tokenString string) (crypto.Address, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.skew),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return crypto.Address{}, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return crypto.Address{}, errors.New("token invalid")
	}
	caller, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("subject: %w", err)
	}
	if caller.IsZero() {
		return crypto.Address{}, errors.New("subject is the zero address")
	}
	return caller, nil
}

// IssueToken mints an HS256 token for caller valid for ttl.
func IssueToken(secret, issuer string, caller crypto.Address, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("auth secret not configured")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   caller.String(),
		Issuer:    strings.TrimSpace(issuer),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// callerFrom returns the authenticated caller.
func callerFrom(ctx context.Context) (crypto.Address, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(crypto.Address)
	return caller, ok
}

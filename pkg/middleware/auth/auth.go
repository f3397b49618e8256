// middleware/auth/auth.go
package auth

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joeydtaylor/steeze-exthost/pkg/config"
)

// Caller is the authenticated orchestrator identity.
type Caller struct {
	Subject string `json:"sub"`
	Issuer  string `json:"iss"`
}

type contextKey struct{ name string }

var callerCtxKey = &contextKey{"caller"}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Middleware verifies HS256 bearer tokens. A nil *Middleware accepts every
// call, which is how auth is disabled.
type Middleware struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// ProvideAuthentication returns nil when auth is disabled.
func ProvideAuthentication(cfg config.Config) (*Middleware, error) {
	if !cfg.Auth.Enabled {
		return nil, nil
	}
	secret := strings.TrimSpace(os.Getenv(cfg.Auth.SecretEnv))
	if secret == "" {
		return nil, errors.New("auth enabled but " + cfg.Auth.SecretEnv + " is empty")
	}
	return New([]byte(secret), cfg.Auth.Issuer, cfg.Auth.Audience, time.Duration(cfg.Auth.LeewaySeconds)*time.Second), nil
}

func New(secret []byte, issuer, audience string, leeway time.Duration) *Middleware {
	return &Middleware{secret: secret, issuer: issuer, audience: audience, leeway: leeway}
}

func (m *Middleware) Enabled() bool { return m != nil }

// Verify parses a raw token (with or without the "Bearer " prefix).
func (m *Middleware) Verify(raw string) (Caller, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return Caller{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	parser := jwt.NewParser(opts...)

	var claims jwt.RegisteredClaims
	tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !tok.Valid {
		return Caller{}, ErrInvalidToken
	}

	if m.audience != "" && !slices.Contains(claims.Audience, m.audience) {
		return Caller{}, errors.New("bad audience")
	}
	if claims.Subject == "" {
		return Caller{}, errors.New("missing subject")
	}
	return Caller{Subject: claims.Subject, Issuer: claims.Issuer}, nil
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerCtxKey, c)
}

func (m *Middleware) GetCaller(ctx context.Context) Caller {
	c, _ := ctx.Value(callerCtxKey).(Caller)
	return c
}

func (m *Middleware) IsAuthenticated(ctx context.Context) bool {
	return m.GetCaller(ctx).Subject != ""
}

// Package auth turns bearer tokens into the actor consumed by the pipeline.
// Issuing sessions is out of scope; Issue exists for tooling and tests.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"thesiscert/internal/errs"
	"thesiscert/internal/model"
)

type ctxKey string

const actorKey ctxKey = "thesiscert.actor"

// Claims are the token claims carrying the actor's role and affiliations.
type Claims struct {
	Role           string   `json:"role"`
	InstitutionIDs []string `json:"institution_ids,omitempty"`
	jwt.RegisteredClaims
}

// Tokens verifies HS256 actor tokens.
type Tokens struct {
	key    []byte
	leeway time.Duration
}

// NewTokens returns a verifier for tokens signed with secret.
func NewTokens(secret string) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Tokens{key: []byte(secret), leeway: 30 * time.Second}, nil
}

// Parse verifies tok and returns the actor it names.
func (t *Tokens) Parse(tok string) (model.Actor, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(tk *jwt.Token) (any, error) {
		if tk.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.key, nil
	}, jwt.WithLeeway(t.leeway))
	if err != nil || !parsed.Valid {
		return model.Actor{}, &errs.Error{Kind: errs.KindForbidden, Reason: errs.ErrUnauthenticated.Reason, Err: err}
	}

	actor := model.Actor{
		ID:             claims.Subject,
		Role:           model.Role(claims.Role),
		InstitutionIDs: claims.InstitutionIDs,
	}
	if actor.ID == "" || !actor.Role.Valid() {
		return model.Actor{}, errs.ErrUnauthenticated
	}
	return actor, nil
}

// Issue signs a token for actor valid for ttl.
func (t *Tokens) Issue(actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role:           string(actor.Role),
		InstitutionIDs: actor.InstitutionIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	v := strings.TrimSpace(header)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if tok := strings.TrimSpace(v[7:]); tok != "" {
			return tok, true
		}
	}
	return "", false
}

func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom returns the actor stored by WithActor, if any.
func ActorFrom(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorKey).(model.Actor)
	return a, ok
}

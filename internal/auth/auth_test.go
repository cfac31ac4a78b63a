package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesiscert/internal/errs"
	"thesiscert/internal/model"
)

func TestTokens_RoundTrip(t *testing.T) {
	tk, err := NewTokens("s3cret")
	require.NoError(t, err)

	want := model.Actor{ID: "admin-1", Role: model.RoleInstitutionAdmin, InstitutionIDs: []string{"inst-1", "inst-2"}}
	tok, err := tk.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := tk.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTokens_Rejects(t *testing.T) {
	tk, _ := NewTokens("s3cret")
	other, _ := NewTokens("other")
	actor := model.Actor{ID: "u1", Role: model.RoleUser}

	wrongKey, _ := other.Issue(actor, time.Hour)
	expired, _ := tk.Issue(actor, -time.Hour)
	badRole, _ := tk.Issue(model.Actor{ID: "u1", Role: "superuser"}, time.Hour)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong key": wrongKey,
		"expired":   expired,
		"bad role":  badRole,
		"alg none":  none,
		"garbage":   "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tk.Parse(tok)
			assert.ErrorIs(t, err, errs.ErrUnauthenticated)
			assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
		})
	}

	_, err = NewTokens("")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	_, ok = BearerToken("Basic Zm9v")
	assert.False(t, ok)
	_, ok = BearerToken("bearer   ")
	assert.False(t, ok)
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), model.Actor{ID: "u1", Role: model.RoleUser})
	a, ok := ActorFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", a.ID)
}

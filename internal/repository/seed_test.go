package repository_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesiscert/internal/repository"
	"thesiscert/internal/repository/memory"
)

func TestSeedInstitutions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInstitutionStore()

	n, err := repository.SeedInstitutions(ctx, store, strings.NewReader(`[
		{"id": "inst-1", "name": "Member University", "is_member": true, "can_verify": true},
		{"id": "inst-2", "name": "Former Member", "is_member": false, "can_verify": true}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.FindByID(ctx, "inst-2")
	require.NoError(t, err)
	assert.False(t, got.IsMember)
	assert.True(t, got.CanVerify)

	_, err = repository.SeedInstitutions(ctx, store, strings.NewReader(`[{"name": "no id"}]`))
	assert.Error(t, err)

	_, err = repository.SeedInstitutions(ctx, store, strings.NewReader(`{`))
	assert.Error(t, err)
}

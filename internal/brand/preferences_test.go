package brand

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db/dbtest"
)

func TestSetAndGet(t *testing.T) {
	d := dbtest.Open(t)
	store := NewStore(d)
	user := dbtest.User(t, d, "a@example.com")
	ctx := context.Background()

	prefs, err := store.Set(ctx, user, Preferences{
		Owned:    []string{"zara", "Zara", " ZARA ", "Mango"},
		Wishlist: []string{"ralph lauren", "Local Label", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Zara", "Mango"}, prefs.Owned)
	assert.Equal(t, []string{"Ralph Lauren", "Local Label"}, prefs.Wishlist)

	prefs, err = store.Set(ctx, user, Preferences{Owned: []string{"Nike"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Nike"}, prefs.Owned)
	assert.Empty(t, prefs.Wishlist, "set replaces both sets")
	assert.NotNil(t, prefs.Wishlist)
}

func TestSetLimits(t *testing.T) {
	d := dbtest.Open(t)
	store := NewStore(d)
	user := dbtest.User(t, d, "a@example.com")

	var many []string
	for i := 0; i <= MaxPerSet; i++ {
		many = append(many, fmt.Sprintf("brand %d", i))
	}
	_, err := store.Set(context.Background(), user, Preferences{Owned: many})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.Set(context.Background(), "missing-user", Preferences{Owned: []string{"Nike"}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUsersWantingAndOwning(t *testing.T) {
	d := dbtest.Open(t)
	store := NewStore(d)
	ctx := context.Background()

	owner := dbtest.User(t, d, "owner@example.com")
	fan := dbtest.User(t, d, "fan@example.com")
	other := dbtest.User(t, d, "other@example.com")

	_, err := store.Set(ctx, owner, Preferences{Owned: []string{"Nike"}, Wishlist: []string{"Nike"}})
	require.NoError(t, err)
	_, err = store.Set(ctx, fan, Preferences{Wishlist: []string{"nike", "Adidas"}})
	require.NoError(t, err)
	_, err = store.Set(ctx, other, Preferences{Owned: []string{"NIKE"}})
	require.NoError(t, err)

	wanting, err := store.UsersWanting(ctx, "Nike", owner)
	require.NoError(t, err)
	assert.Equal(t, []string{fan}, wanting, "owner is excluded")

	owning, err := store.UsersOwning(ctx, " nike ", owner)
	require.NoError(t, err)
	assert.Equal(t, []string{other}, owning)

	none, err := store.UsersWanting(ctx, Unknown, "")
	require.NoError(t, err)
	assert.Empty(t, none)

	none, err = store.UsersWanting(ctx, "Gucci", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/market"
)

func TestFavorites(t *testing.T) {
	repo, seller, buyer := setup(t)
	ctx := context.Background()

	a, err := repo.Create(ctx, seller, newInput("Jacket"))
	require.NoError(t, err)
	b, err := repo.Create(ctx, seller, newInput("Scarf"))
	require.NoError(t, err)

	require.NoError(t, repo.AddFavorite(ctx, buyer, a.ID))
	require.NoError(t, repo.AddFavorite(ctx, buyer, a.ID), "idempotent")
	require.NoError(t, repo.AddFavorite(ctx, seller, a.ID))
	require.NoError(t, repo.AddFavorite(ctx, buyer, b.ID))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.FavoritesCount)

	favs, err := repo.ListFavorites(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, b.ID, favs[0].ID)

	require.NoError(t, repo.RemoveFavorite(ctx, buyer, a.ID))
	require.NoError(t, repo.RemoveFavorite(ctx, buyer, a.ID), "idempotent")

	got, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FavoritesCount)

	require.NoError(t, repo.SetStatus(ctx, b.ID, seller, market.ListingHidden))
	favs, err = repo.ListFavorites(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, favs, "hidden listings drop out")
}

func TestAddFavoriteMissingListing(t *testing.T) {
	repo, _, buyer := setup(t)
	err := repo.AddFavorite(context.Background(), buyer, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

package school

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db/dbtest"
)

func TestCreateAndGet(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	s, err := repo.Create(ctx, CreateInput{
		Name:          "  St. Edward's College ",
		City:          "birgu",
		Houses:        []string{"Drake ", "Hamilton"},
		UniformsNotes: "Navy blazer with crest",
	})
	require.NoError(t, err)
	assert.Equal(t, "St. Edward's College", s.Name)
	assert.Equal(t, "Birgu", s.City)
	assert.Equal(t, []string{"Drake", "Hamilton"}, s.Houses)

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Name, got.Name)
	assert.Equal(t, "Navy blazer with crest", got.UniformsNotes)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, CreateInput{Name: "San Anton School", City: "Mġarr"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, CreateInput{Name: "san anton school", City: "Mġarr"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateValidation(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))

	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"missing name", CreateInput{City: "Sliema"}, "name"},
		{"unknown city", CreateInput{Name: "Academy", City: "Atlantis"}, "city"},
		{"blank house", CreateInput{Name: "Academy", City: "Sliema", Houses: []string{" "}}, "houses[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(context.Background(), tt.in)
			require.ErrorIs(t, err, apperr.ErrValidation)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Contains(t, e.Fields, tt.field)
		})
	}
}

func TestListByCity(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	for _, in := range []CreateInput{
		{Name: "St. Aloysius' College", City: "Birkirkara"},
		{Name: "De La Salle College", City: "Birgu"},
		{Name: "St. Edward's College", City: "Birgu"},
	} {
		_, err := repo.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "De La Salle College", all[0].Name)
	assert.Equal(t, []string{}, all[0].Houses)

	birgu, err := repo.List(ctx, "birgu")
	require.NoError(t, err)
	require.Len(t, birgu, 2)
	assert.Equal(t, "St. Edward's College", birgu[1].Name)

	none, err := repo.List(ctx, "Gozo")
	require.NoError(t, err)
	assert.Empty(t, none)
}

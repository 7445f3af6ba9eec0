package listing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db/dbtest"
	"github.com/evcraddock/mela/internal/market"
	"github.com/evcraddock/mela/internal/school"
)

func newInput(title string) CreateInput {
	return CreateInput{
		Title:       title,
		Description: "Barely worn",
		Category:    "Clothing",
		Condition:   "Like New",
		PriceEUR:    decimal.RequireFromString("25.50"),
		Locality:    "sliema",
		Images:      []string{"https://img.example.com/1.jpg"},
	}
}

func setup(t *testing.T) (*Repository, string, string) {
	t.Helper()
	d := dbtest.Open(t)
	return NewRepository(d), dbtest.User(t, d, "seller@example.com"), dbtest.User(t, d, "buyer@example.com")
}

func TestCreateAndGet(t *testing.T) {
	repo, seller, _ := setup(t)
	ctx := context.Background()

	l, err := repo.Create(ctx, seller, newInput("  Zara denim jacket "))
	require.NoError(t, err)

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "Zara denim jacket", l.Title)
	assert.Equal(t, "Sliema", l.Locality, "locality is canonicalized")
	assert.Equal(t, market.ListingActive, l.Status)
	assert.True(t, decimal.RequireFromString("25.5").Equal(l.PriceEUR))
	assert.Equal(t, []string{"https://img.example.com/1.jpg"}, l.Images)
	assert.False(t, l.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
}

func TestCreateValidation(t *testing.T) {
	repo, seller, _ := setup(t)

	tests := []struct {
		name string
		mut  func(in *CreateInput)
	}{
		{"empty title", func(in *CreateInput) { in.Title = "   " }},
		{"bad category", func(in *CreateInput) { in.Category = "Cars" }},
		{"bad condition", func(in *CreateInput) { in.Condition = "Broken" }},
		{"negative price", func(in *CreateInput) { in.PriceEUR = decimal.NewFromInt(-5) }},
		{"unknown locality", func(in *CreateInput) { in.Locality = "Atlantis" }},
		{"bad image url", func(in *CreateInput) { in.Images = []string{"not a url"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInput("Jacket")
			tt.mut(&in)
			_, err := repo.Create(context.Background(), seller, in)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, _, _ := setup(t)
	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	repo, seller, other := setup(t)
	ctx := context.Background()

	mk := func(user, title, category, locality string) *Listing {
		in := newInput(title)
		in.Category = category
		in.Locality = locality
		l, err := repo.Create(ctx, user, in)
		require.NoError(t, err)
		return l
	}

	a := mk(seller, "Nike trainers", "Clothing", "Sliema")
	b := mk(seller, "Uniform skirt", "Uniform", "Mosta")
	c := mk(other, "Lego set", "Kids", "Sliema")
	require.NoError(t, repo.SetStatus(ctx, b.ID, seller, market.ListingSold))

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"default active newest first", ListOptions{}, []string{c.ID, a.ID}},
		{"category", ListOptions{Category: market.CategoryKids}, []string{c.ID}},
		{"locality any case", ListOptions{Locality: "SLIEMA"}, []string{c.ID, a.ID}},
		{"query title", ListOptions{Query: "nike"}, []string{a.ID}},
		{"query locality", ListOptions{Query: "mosta", Status: market.ListingSold}, []string{b.ID}},
		{"mine includes sold", ListOptions{UserID: seller}, []string{b.ID, a.ID}},
		{"limit", ListOptions{Limit: 1}, []string{c.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.opts)
			require.NoError(t, err)
			var ids []string
			for _, l := range got {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSchoolUniforms(t *testing.T) {
	d := dbtest.Open(t)
	repo := NewRepository(d)
	seller := dbtest.User(t, d, "seller@example.com")
	ctx := context.Background()

	schools := school.NewRepository(d)
	edwards, err := schools.Create(ctx, school.CreateInput{Name: "St. Edward's College", City: "Birgu"})
	require.NoError(t, err)
	salle, err := schools.Create(ctx, school.CreateInput{Name: "De La Salle College", City: "Birgu"})
	require.NoError(t, err)

	in := newInput("Navy blazer age 8")
	in.Category = "Uniform"
	in.SchoolID = edwards.ID
	blazer, err := repo.Create(ctx, seller, in)
	require.NoError(t, err)
	require.NotNil(t, blazer.SchoolID)
	assert.Equal(t, edwards.ID, *blazer.SchoolID)

	plain, err := repo.Create(ctx, seller, newInput("Zara dress"))
	require.NoError(t, err)
	assert.Nil(t, plain.SchoolID)

	got, err := repo.List(ctx, ListOptions{School: edwards.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, blazer.ID, got[0].ID)

	got, err = repo.List(ctx, ListOptions{School: salle.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	moved, err := repo.Update(ctx, blazer.ID, seller, UpdateInput{SchoolID: &salle.ID})
	require.NoError(t, err)
	assert.Equal(t, salle.ID, *moved.SchoolID)

	none := ""
	unlinked, err := repo.Update(ctx, blazer.ID, seller, UpdateInput{SchoolID: &none})
	require.NoError(t, err)
	assert.Nil(t, unlinked.SchoolID)

	in.SchoolID = "6f1c1a52-8f0e-4d55-9d0e-2b8f4d0c9a11"
	_, err = repo.Create(ctx, seller, in)
	assert.ErrorIs(t, err, school.ErrNotFound)

	in.SchoolID = "not-a-uuid"
	_, err = repo.Create(ctx, seller, in)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	missing := "6f1c1a52-8f0e-4d55-9d0e-2b8f4d0c9a11"
	_, err = repo.Update(ctx, blazer.ID, seller, UpdateInput{SchoolID: &missing})
	assert.ErrorIs(t, err, school.ErrNotFound)
}

func TestListEmptyIsNotNil(t *testing.T) {
	repo, _, _ := setup(t)
	got, err := repo.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, clampLimit(0))
	assert.Equal(t, 5, clampLimit(5))
	assert.Equal(t, MaxLimit, clampLimit(1000))
}

func TestUpdateOwnerOnly(t *testing.T) {
	repo, seller, buyer := setup(t)
	ctx := context.Background()

	l, err := repo.Create(ctx, seller, newInput("Jacket"))
	require.NoError(t, err)

	title := "Winter jacket"
	price := decimal.NewFromInt(30)
	_, err = repo.Update(ctx, l.ID, buyer, UpdateInput{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := repo.Update(ctx, l.ID, seller, UpdateInput{Title: &title, PriceEUR: &price})
	require.NoError(t, err)
	assert.Equal(t, "Winter jacket", got.Title)
	assert.True(t, price.Equal(got.PriceEUR))
	assert.Equal(t, "Barely worn", got.Description, "untouched fields survive")

	empty := ""
	_, err = repo.Update(ctx, l.ID, seller, UpdateInput{Title: &empty})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSetStatusAndDelete(t *testing.T) {
	repo, seller, buyer := setup(t)
	ctx := context.Background()

	l, err := repo.Create(ctx, seller, newInput("Jacket"))
	require.NoError(t, err)

	assert.ErrorIs(t, repo.SetStatus(ctx, l.ID, seller, "Gone"), apperr.ErrValidation)
	assert.ErrorIs(t, repo.SetStatus(ctx, l.ID, buyer, market.ListingSold), apperr.ErrForbidden)

	require.NoError(t, repo.SetStatus(ctx, l.ID, seller, market.ListingReserved))
	got, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ListingReserved, got.Status)

	require.NoError(t, repo.Delete(ctx, l.ID, seller))
	_, err = repo.GetByID(ctx, l.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, l.ID, seller), apperr.ErrNotFound)
}

func TestRecordView(t *testing.T) {
	repo, seller, _ := setup(t)
	ctx := context.Background()

	l, err := repo.Create(ctx, seller, newInput("Jacket"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordView(ctx, l.ID))
	}
	got, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ViewsCount)

	assert.ErrorIs(t, repo.RecordView(ctx, "missing"), apperr.ErrNotFound)
}

package web

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/wanted"
)

func (ts *testServer) setBrands(key string, owned, wishlist []string) {
	ts.t.Helper()
	w := ts.do(http.MethodPut, "/api/me/brands", key, map[string][]string{
		"owned_brands":    owned,
		"wishlist_brands": wishlist,
	})
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
}

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", h.Get("Access-Control-Allow-Headers"))
}

func TestMatchBrandsPreflight(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodOptions, "/api/match-brands", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assertCORS(t, w.Header())
}

func TestMatchBrandsRequiresCaller(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/match-brands", "", map[string]string{"type": "listing", "itemId": "x"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assertCORS(t, w.Header())
}

func TestMatchBrandsListing(t *testing.T) {
	ts := newTestServer(t)
	_, seller := ts.member("maria@example.com", "maria")
	alice, aliceKey := ts.member("alice@example.com", "alice")
	_, bobKey := ts.member("bob@example.com", "bob")
	ts.setBrands(aliceKey, nil, []string{"zara"})
	ts.setBrands(bobKey, []string{"Zara"}, []string{"Nike"})
	l := ts.createListing(seller)

	w := ts.do(http.MethodPost, "/api/match-brands", seller, map[string]string{"type": "listing", "itemId": l.ID})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertCORS(t, w.Header())
	assert.JSONEq(t, `{"success":true,"brand":"Zara","matchedUsersCount":1}`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/notifications", aliceKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []notification.Notification
	decode(t, w, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, alice.ID, notes[0].UserID)
	assert.Equal(t, notification.TypeMatchWishlist, notes[0].Type)
	assert.Equal(t, "Zara item available!", notes[0].Title)
	require.NotNil(t, notes[0].RelatedItemID)
	assert.Equal(t, l.ID, *notes[0].RelatedItemID)
}

func TestMatchBrandsWanted(t *testing.T) {
	ts := newTestServer(t)
	_, buyer := ts.member("maria@example.com", "maria")
	_, ownerKey := ts.member("alice@example.com", "alice")
	ts.setBrands(ownerKey, []string{"Nike"}, nil)

	w := ts.do(http.MethodPost, "/api/wanted", buyer, map[string]interface{}{
		"title":    "Nike running shoes, size 42",
		"category": "Clothing",
		"locality": "Sliema",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ad wanted.Ad
	decode(t, w, &ad)

	w = ts.do(http.MethodPost, "/api/match-brands", buyer, map[string]string{"type": "wanted", "wantedAdId": ad.ID})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"brand":"Nike","matchedUsersCount":1}`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/notifications/unread-count", ownerKey, nil)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())
}

func TestMatchBrandsNoBrand(t *testing.T) {
	ts := newTestServer(t)
	_, key := ts.member("maria@example.com", "maria")
	in := dressInput()
	in["title"] = "Linen dress"
	w := ts.do(http.MethodPost, "/api/listings", key, in)
	require.Equal(t, http.StatusCreated, w.Code)
	var l struct {
		ID string `json:"id"`
	}
	decode(t, w, &l)

	w = ts.do(http.MethodPost, "/api/match-brands", key, map[string]string{"type": "listing", "itemId": l.ID})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"No recognizable brand found"}`, w.Body.String())
}

func TestMatchBrandsErrors(t *testing.T) {
	ts := newTestServer(t)
	_, key := ts.member("maria@example.com", "maria")

	tests := []struct {
		name string
		body interface{}
		code int
		msg  string
	}{
		{"missing item", map[string]string{"type": "listing", "itemId": "nope"}, http.StatusNotFound, "Item not found"},
		{"missing wanted ad", map[string]string{"type": "wanted", "wantedAdId": "nope"}, http.StatusNotFound, "Item not found"},
		{"invalid type", map[string]string{"type": "event", "itemId": "x"}, http.StatusBadRequest, ""},
		{"missing id", map[string]string{"type": "listing"}, http.StatusBadRequest, ""},
		{"bad json", "{", http.StatusBadRequest, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/match-brands", key, tt.body)

			assert.Equal(t, tt.code, w.Code)
			assertCORS(t, w.Header())
			msg := errorMessage(t, w)
			assert.NotEmpty(t, msg)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, msg)
			}
		})
	}
}

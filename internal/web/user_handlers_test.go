package web

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/auth"
	"github.com/evcraddock/mela/internal/brand"
	"github.com/evcraddock/mela/internal/push"
)

func TestUpdateMe(t *testing.T) {
	ts := newTestServer(t)
	_, key := ts.member("maria@example.com", "maria")

	w := ts.do(http.MethodPatch, "/api/me", key, map[string]interface{}{
		"name":       " Maria Borg ",
		"localities": []string{"Gżira", "GŻIRA"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var u auth.User
	decode(t, w, &u)
	assert.Equal(t, "Maria Borg", u.Name)
	assert.Equal(t, []string{"Gżira"}, u.Localities)

	w = ts.do(http.MethodPatch, "/api/me", key, map[string]string{"avatar_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBrandPreferences(t *testing.T) {
	ts := newTestServer(t)
	_, key := ts.member("maria@example.com", "maria")

	w := ts.do(http.MethodGet, "/api/me/brands", key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var prefs brand.Preferences
	decode(t, w, &prefs)
	assert.Empty(t, prefs.Owned)
	assert.Empty(t, prefs.Wishlist)

	ts.setBrands(key, []string{"zara", "ZARA", "Acme Knitwear"}, []string{"hugo boss"})

	w = ts.do(http.MethodGet, "/api/me/brands", key, nil)
	decode(t, w, &prefs)
	assert.Equal(t, []string{"Zara", "Acme Knitwear"}, prefs.Owned)
	assert.Equal(t, []string{"Hugo Boss"}, prefs.Wishlist)
}

func TestDevices(t *testing.T) {
	ts := newTestServer(t)
	_, key := ts.member("maria@example.com", "maria")

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/me/devices", key, map[string]string{"token": ""}).Code)
	require.Equal(t, http.StatusNoContent,
		ts.do(http.MethodPost, "/api/me/devices", key, map[string]string{"token": "fcm-token-1", "platform": "android"}).Code)

	w := ts.do(http.MethodGet, "/api/me/devices", key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var devices []push.Device
	decode(t, w, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "fcm-token-1", devices[0].Token)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/me/devices/fcm-token-1", key, nil).Code)
	w = ts.do(http.MethodGet, "/api/me/devices", key, nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAdminUsers(t *testing.T) {
	ts := newTestServer(t)
	admin, adminKey := ts.member("admin@mela.mt", "admin")
	maria, mariaKey := ts.member("maria@example.com", "maria")
	require.Equal(t, auth.RoleAdmin, admin.Role)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/users", mariaKey, nil).Code)

	w := ts.do(http.MethodGet, "/api/admin/users", adminKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []auth.User
	decode(t, w, &users)
	assert.Len(t, users, 2)

	w = ts.do(http.MethodPut, "/api/admin/users/"+maria.ID+"/role", adminKey, map[string]string{"role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, "/api/admin/users/"+maria.ID+"/role", adminKey, map[string]string{"role": "moderator"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var u auth.User
	decode(t, w, &u)
	assert.Equal(t, auth.RoleModerator, u.Role)
	assert.Len(t, ts.logs.FilterMessage("role changed").All(), 1)

	// Moderators are not admins.
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/users", mariaKey, nil).Code)

	w = ts.do(http.MethodDelete, "/api/admin/users/"+admin.ID, adminKey, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/admin/users/"+maria.ID, adminKey, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/admin/users/"+maria.ID, adminKey, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/me", mariaKey, nil).Code)
}

func TestAPIKeys(t *testing.T) {
	ts := newTestServer(t)
	_, key := ts.member("maria@example.com", "maria")
	_, otherKey := ts.member("joe@example.com", "joe")

	w := ts.do(http.MethodPost, "/api/keys", key, map[string]string{"name": "laptop"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Key    string      `json:"key"`
		APIKey auth.APIKey `json:"api_key"`
	}
	decode(t, w, &created)
	assert.Equal(t, "laptop", created.APIKey.Name)
	assert.Equal(t, created.Key[:11], created.APIKey.KeyPrefix)

	w = ts.do(http.MethodGet, "/api/keys", key, nil)
	var keys []auth.APIKey
	decode(t, w, &keys)
	assert.Len(t, keys, 2)

	path := fmt.Sprintf("/api/keys/%d", created.APIKey.ID)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, path, otherKey, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodDelete, "/api/keys/abc", key, nil).Code)
	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, path, key, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/me", created.Key, nil).Code)
}

package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/dom/inhouse-league/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authResponse struct {
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		IsAdmin     bool   `json:"isAdmin"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
}

func postJSON(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func registerUser(t *testing.T, ts *testutil.TestServer, name string) authResponse {
	t.Helper()

	resp := postJSON(t, ts.APIURL("/auth/register"), "", map[string]string{
		"displayName": name,
		"password":    "testpassword123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out authResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAuthEndpoints(t *testing.T) {
	ts := testutil.NewTestServer(t)

	registered := registerUser(t, ts, "alice")
	assert.Equal(t, "alice", registered.User.DisplayName)
	assert.False(t, registered.User.IsAdmin)
	assert.NotEmpty(t, registered.AccessToken)

	// Duplicate display name.
	resp := postJSON(t, ts.APIURL("/auth/register"), "", map[string]string{
		"displayName": "alice",
		"password":    "otherpassword",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Login with the right and wrong password.
	resp = postJSON(t, ts.APIURL("/auth/login"), "", map[string]string{
		"displayName": "alice",
		"password":    "testpassword123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.APIURL("/auth/login"), "", map[string]string{
		"displayName": "alice",
		"password":    "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Me requires a token.
	resp = getJSON(t, ts.APIURL("/auth/me"), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = getJSON(t, ts.APIURL("/auth/me"), registered.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		DisplayName string `json:"displayName"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "alice", me.DisplayName)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp := getJSON(t, ts.APIURL("/players/leaderboard?guildId=1"), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, ts.APIURL("/matches/shuffle"), "", map[string]interface{}{"guildId": 1})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminOnlyRoutes(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user := registerUser(t, ts, "dave")

	// A plain user cannot force-record or abort.
	resp := postJSON(t, ts.APIURL("/matches/abort"), user.AccessToken, map[string]interface{}{
		"guildId": 1,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// An admin can; with nothing pending the abort is simply a no-op.
	_, rawPassword := testutil.NewUserBuilder().WithDisplayName("root").AsAdmin().Build(t, ts.DB.DB)
	login := postJSON(t, ts.APIURL("/auth/login"), "", map[string]string{
		"displayName": "root",
		"password":    rawPassword,
	})
	require.Equal(t, http.StatusOK, login.StatusCode)
	var admin authResponse
	require.NoError(t, json.NewDecoder(login.Body).Decode(&admin))
	assert.True(t, admin.User.IsAdmin)

	resp = postJSON(t, ts.APIURL("/matches/abort"), admin.AccessToken, map[string]interface{}{
		"guildId": 1,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPlayerEndpoints(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user := registerUser(t, ts, "erin")

	resp := postJSON(t, ts.APIURL("/players"), user.AccessToken, map[string]interface{}{
		"playerId":       1,
		"guildId":        7,
		"name":           "erin",
		"preferredRoles": []int{1, 3},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate registration conflicts.
	resp = postJSON(t, ts.APIURL("/players"), user.AccessToken, map[string]interface{}{
		"playerId": 1,
		"guildId":  7,
		"name":     "erin",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Invalid position is a bad request.
	resp = postJSON(t, ts.APIURL("/players"), user.AccessToken, map[string]interface{}{
		"playerId":       2,
		"guildId":        7,
		"name":           "frank",
		"preferredRoles": []int{6},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, ts.APIURL(fmt.Sprintf("/players/1?guildId=%d", 7)), user.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var player struct {
		Name           string  `json:"name"`
		Rating         float64 `json:"rating"`
		PreferredRoles []int   `json:"preferredRoles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&player))
	assert.Equal(t, "erin", player.Name)
	assert.Equal(t, 1500.0, player.Rating)
	assert.Equal(t, []int{1, 3}, player.PreferredRoles)
}

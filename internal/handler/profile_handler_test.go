package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/academy-api/internal/models"
)

func TestProfileRoute(t *testing.T) {
	env := buildTestEnv(t)
	env.seedUser(t, "u1", "ada@example.com", "password", models.RoleUser)
	token := env.loginToken(t, "ada@example.com", "password")

	resp := performJSON(env.router, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, resp.Body.String(), "password_hash")
}

func TestProfileRouteUserRoleOnly(t *testing.T) {
	env := buildTestEnv(t)
	env.seedUser(t, "admin1", "admin@example.com", "password", models.RoleAdmin)
	token := env.loginToken(t, "admin@example.com", "password")

	// No role hierarchy: admins do not get the user-only routes.
	resp := performJSON(env.router, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestUpdateProfileRouteSelf(t *testing.T) {
	env := buildTestEnv(t)
	env.seedUser(t, "u1", "ada@example.com", "password", models.RoleUser)
	token := env.loginToken(t, "ada@example.com", "password")

	resp := performJSON(env.router, http.MethodPut, "/api/update-profile/u1", token, map[string]string{"firstname": "Ngozi"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Profile updated successfully")
	assert.Equal(t, "Ngozi", env.repo.usersByID["u1"].Firstname)
}

func TestUpdateProfileRouteForeignTarget(t *testing.T) {
	env := buildTestEnv(t)
	env.seedUser(t, "u1", "ada@example.com", "password", models.RoleUser)
	env.seedUser(t, "u2", "ben@example.com", "password", models.RoleUser)
	token := env.loginToken(t, "ada@example.com", "password")

	resp := performJSON(env.router, http.MethodPut, "/api/update-profile/u2", token, map[string]string{"firstname": "Ngozi"})
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Contains(t, resp.Body.String(), "Unauthorized User or User Not Found")
	assert.Equal(t, "Ada", env.repo.usersByID["u2"].Firstname)
}

func TestUpdateProfileRouteMissingTargetMatchesForeign(t *testing.T) {
	env := buildTestEnv(t)
	env.seedUser(t, "u1", "ada@example.com", "password", models.RoleUser)
	env.seedUser(t, "u2", "ben@example.com", "password", models.RoleUser)
	token := env.loginToken(t, "ada@example.com", "password")

	missing := performJSON(env.router, http.MethodPut, "/api/update-profile/ghost", token, map[string]string{"firstname": "Ngozi"})
	foreign := performJSON(env.router, http.MethodPut, "/api/update-profile/u2", token, map[string]string{"firstname": "Ngozi"})

	require.Equal(t, http.StatusForbidden, missing.Code)
	require.Equal(t, http.StatusForbidden, foreign.Code)
	assert.Equal(t, missing.Body.String(), foreign.Body.String())
}

func TestUpdatePasswordRoute(t *testing.T) {
	env := buildTestEnv(t)
	env.seedUser(t, "u1", "ada@example.com", "password", models.RoleUser)
	token := env.loginToken(t, "ada@example.com", "password")

	resp := performJSON(env.router, http.MethodPut, "/api/update-password/u1", token, map[string]string{
		"current_password":          "password",
		"new_password":              "newpassword",
		"new_password_confirmation": "newpassword",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Password updated successfully")

	// The session survives a password change.
	after := performJSON(env.router, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusOK, after.Code)

	login := performJSON(env.router, http.MethodPost, "/api/login", "", map[string]string{"email": "ada@example.com", "password": "newpassword"})
	assert.Equal(t, http.StatusOK, login.Code)
}

func TestUpdatePasswordRouteWrongCurrent(t *testing.T) {
	env := buildTestEnv(t)
	env.seedUser(t, "u1", "ada@example.com", "password", models.RoleUser)
	token := env.loginToken(t, "ada@example.com", "password")

	resp := performJSON(env.router, http.MethodPut, "/api/update-password/u1", token, map[string]string{
		"current_password":          "wrong",
		"new_password":              "newpassword",
		"new_password_confirmation": "newpassword",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "Current password is incorrect")
}

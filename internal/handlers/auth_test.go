package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "profx",
		"password": "s3cret!",
		"role":     "instructor",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Token  string `json:"token"`
		Data   struct {
			User struct {
				ID       int    `json:"id"`
				Username string `json:"username"`
				Role     string `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}
	decodeBody(t, rec, &resp)

	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "profx", resp.Data.User.Username)
	assert.Equal(t, "instructor", resp.Data.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	// The issued credential resolves back to the same identity.
	rec = env.do(t, http.MethodGet, "/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var meResp struct {
		Data struct {
			User struct {
				ID       int    `json:"id"`
				Username string `json:"username"`
				Role     string `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}
	decodeBody(t, rec, &meResp)
	assert.Equal(t, resp.Data.User.ID, meResp.Data.User.ID)
	assert.Equal(t, "profx", meResp.Data.User.Username)
	assert.Equal(t, "instructor", meResp.Data.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing username", map[string]any{"password": "pwd", "role": "student"}},
		{"missing password", map[string]any{"username": "u", "role": "student"}},
		{"missing role", map[string]any{"username": "u", "password": "pwd"}},
		{"invalid role", map[string]any{"username": "u", "password": "pwd", "role": "admin"}},
		{"case-sensitive role", map[string]any{"username": "u", "password": "pwd", "role": "Student"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "taken", "pwd", "student")

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "taken",
		"password": "pwd",
		"role":     "student",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestLoginDoesNotLeakWhichPartWasWrong(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse", "student")

	wrongPassword := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "alice",
		"password": "wrong",
	})
	unknownUser := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "nobody",
		"password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.createUser(t, "bob", "hunter2", "instructor")

	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "bob",
		"password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
		Data  struct {
			User struct {
				ID int `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.Data.User.ID)
}

func TestRequireAuthFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.createUser(t, "ghost", "pwd", "student")

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/auth/me", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		forged, err := issueToken(user.ID, []byte("other-secret"), time.Hour)
		require.NoError(t, err)
		rec := env.do(t, http.MethodGet, "/auth/me", forged, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := issueToken(user.ID, []byte(testSecret), -time.Hour)
		require.NoError(t, err)
		rec := env.do(t, http.MethodGet, "/auth/me", expired, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("subject no longer exists", func(t *testing.T) {
		delete(env.users.users, user.ID)
		rec := env.do(t, http.MethodGet, "/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "no longer exists"))
	})
}

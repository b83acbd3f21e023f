package api

import (
	"context"
	"net/http"
	"testing"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterEndpoint(t *testing.T) {
	router, svcs := newTestRouter(t)

	var gotName, gotEmail, gotPassword string
	svcs.auth.registerFn = func(ctx context.Context, name, email, password string) (*domain.User, error) {
		gotName, gotEmail, gotPassword = name, email, password
		u := testUser(domain.RoleAthlete)
		u.Name, u.Email = name, email
		return u, nil
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Jo Lindner", "email": "jo@example.com", "password": "hunter2hunter2",
	})

	require.Equal(t, http.StatusCreated, rec.Code, "Body: %s", rec.Body.String())
	assert.Equal(t, "Jo Lindner", gotName)
	assert.Equal(t, "jo@example.com", gotEmail)
	assert.Equal(t, "hunter2hunter2", gotPassword)

	user := decodeBody[UserResponse](t, rec)
	assert.Equal(t, "jo@example.com", user.Email)
	assert.Equal(t, domain.RoleAthlete, user.Role)
	assert.NotContains(t, rec.Body.String(), "passwordHash", "Credentials must not leak into responses")
}

func TestRegisterEndpointRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing name", gin.H{"email": "jo@example.com", "password": "hunter2hunter2"}},
		{"bad email", gin.H{"name": "Jo", "email": "not-an-email", "password": "hunter2hunter2"}},
		{"short password", gin.H{"name": "Jo", "email": "jo@example.com", "password": "short"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", tc.body)
			assertErrorBody(t, rec, http.StatusBadRequest)
		})
	}
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	router, svcs := newTestRouter(t)
	svcs.auth.registerFn = func(ctx context.Context, name, email, password string) (*domain.User, error) {
		return nil, service.ErrUserAlreadyExists
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Jo", "email": "jo@example.com", "password": "hunter2hunter2",
	})

	assertErrorBody(t, rec, http.StatusConflict)
}

func TestLoginEndpoint(t *testing.T) {
	router, svcs := newTestRouter(t)
	user := testUser(domain.RoleAthlete)
	svcs.auth.loginFn = func(ctx context.Context, email, password string) (string, *domain.User, error) {
		if email == user.Email && password == "hunter2hunter2" {
			return "signed-token", user, nil
		}
		return "", nil, service.ErrAuthenticationFailed
	}

	t.Run("valid credentials", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"email": user.Email, "password": "hunter2hunter2",
		})

		require.Equal(t, http.StatusOK, rec.Code, "Body: %s", rec.Body.String())
		resp := decodeBody[LoginResponse](t, rec)
		assert.Equal(t, "signed-token", resp.Token)
		assert.Equal(t, user.ID.Hex(), resp.User.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"email": user.Email, "password": "wrong-password",
		})
		assertErrorBody(t, rec, http.StatusUnauthorized)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": user.Email})
		assertErrorBody(t, rec, http.StatusBadRequest)
	})
}

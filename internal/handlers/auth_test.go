package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_AuthHandler(t *testing.T) {
	t.Parallel()

	t.Run("register ok", func(t *testing.T) {
		srv := serve(t)

		data := `{"email": "nk@example.com", "password": "StrongEnoughPassword", "name": "Nik"}`
		code, body := do(t, http.MethodPost, srv.URL+"/auth/register", "", data)

		require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", body)

		var resp struct {
			Message string    `json:"message"`
			UserID  uuid.UUID `json:"userId"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &resp))
		require.Equal(t, "User created", resp.Message)
		require.NotEqual(t, uuid.Nil, resp.UserID)
	})

	t.Run("register existed user fails", func(t *testing.T) {
		srv := serve(t)
		_, err := srv.AuthService.Register(t.Context(), "nk@example.com", "StrongEnoughPassword", nil)
		require.NoError(t, err)

		data := `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`
		code, body := do(t, http.MethodPost, srv.URL+"/auth/register", "", data)

		require.Equalf(t, http.StatusConflict, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "User already exists"
			}`, body)
	})

	t.Run("register invalid data", func(t *testing.T) {
		srv := serve(t)

		data := `{"email": "not-an-email", "password": "short"}`
		code, body := do(t, http.MethodPost, srv.URL+"/auth/register", "", data)

		require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"email": "Invalid email address",
					"password": "Value is too short (minimum 6)"
				}
			}`, body)
	})

	t.Run("register empty body", func(t *testing.T) {
		srv := serve(t)

		code, body := do(t, http.MethodPost, srv.URL+"/auth/register", "", "")

		require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "decoding_failed",
				"message": "Request body is empty"
			}`, body)
	})

	t.Run("login ok", func(t *testing.T) {
		srv := serve(t)
		name := "Nik"
		_, err := srv.AuthService.Register(t.Context(), "nk@example.com", "StrongEnoughPassword", &name)
		require.NoError(t, err)

		data := `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`
		code, body := do(t, http.MethodPost, srv.URL+"/auth/login", "", data)

		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

		var resp struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
			User         struct {
				Email string  `json:"email"`
				Name  *string `json:"name"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &resp))
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
		require.NotEqual(t, resp.AccessToken, resp.RefreshToken)
		require.Equal(t, "nk@example.com", resp.User.Email)
		require.Equal(t, &name, resp.User.Name)
	})

	t.Run("login failed", func(t *testing.T) {
		srv := serve(t)
		_, err := srv.AuthService.Register(t.Context(), "nk@example.com", "StrongEnoughPassword", nil)
		require.NoError(t, err)

		for _, data := range []string{
			`{"email": "nk@example.com", "password": "WrongPassword"}`,
			`{"email": "unknown@example.com", "password": "StrongEnoughPassword"}`,
		} {
			code, body := do(t, http.MethodPost, srv.URL+"/auth/login", "", data)

			require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid credentials"
				}`, body)
		}
	})

	t.Run("refresh ok", func(t *testing.T) {
		srv := serve(t)
		access, refresh := registerAndLogin(t, srv.URL, "nk@example.com")

		code, body := do(t, http.MethodPost, srv.URL+"/auth/refresh", "", `{"refreshToken": "`+refresh+`"}`)

		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

		var resp struct {
			AccessToken string `json:"accessToken"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &resp))
		require.NotEmpty(t, resp.AccessToken)

		// New access token is accepted by protected endpoints
		code, body = do(t, http.MethodGet, srv.URL+"/tasks", resp.AccessToken, "")
		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

		// Refresh token is not rotated, the old access still works too
		code, _ = do(t, http.MethodGet, srv.URL+"/tasks", access, "")
		require.Equal(t, http.StatusOK, code)
	})

	t.Run("refresh with access token fails", func(t *testing.T) {
		srv := serve(t)
		access, _ := registerAndLogin(t, srv.URL, "nk@example.com")

		code, body := do(t, http.MethodPost, srv.URL+"/auth/refresh", "", `{"refreshToken": "`+access+`"}`)

		require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "Invalid refresh token"
			}`, body)
	})

	t.Run("refresh without token", func(t *testing.T) {
		srv := serve(t)

		code, body := do(t, http.MethodPost, srv.URL+"/auth/refresh", "", `{}`)

		require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"refreshToken": "This field is required"
				}
			}`, body)
	})

	t.Run("logout revokes refresh token", func(t *testing.T) {
		srv := serve(t)
		access, refresh := registerAndLogin(t, srv.URL, "nk@example.com")

		code, body := do(t, http.MethodPost, srv.URL+"/auth/logout", access, `{"refreshToken": "`+refresh+`"}`)
		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"message": "Logged out"}`, body)

		code, body = do(t, http.MethodPost, srv.URL+"/auth/refresh", "", `{"refreshToken": "`+refresh+`"}`)
		require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "Invalid refresh token"
			}`, body)
	})

	t.Run("logout all sessions", func(t *testing.T) {
		srv := serve(t)
		access, first := registerAndLogin(t, srv.URL, "nk@example.com")

		code, body := do(t, http.MethodPost, srv.URL+"/auth/login", "", `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`)
		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
		var second struct {
			RefreshToken string `json:"refreshToken"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &second))

		code, body = do(t, http.MethodPost, srv.URL+"/auth/logout", access, `{"all": true}`)
		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

		for _, refresh := range []string{first, second.RefreshToken} {
			code, _ = do(t, http.MethodPost, srv.URL+"/auth/refresh", "", `{"refreshToken": "`+refresh+`"}`)
			require.Equal(t, http.StatusUnauthorized, code)
		}
	})

	t.Run("logout without body ok", func(t *testing.T) {
		srv := serve(t)
		access, _ := registerAndLogin(t, srv.URL, "nk@example.com")

		code, body := do(t, http.MethodPost, srv.URL+"/auth/logout", access, "")

		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
	})

	t.Run("logout unauthorized", func(t *testing.T) {
		srv := serve(t)

		code, body := do(t, http.MethodPost, srv.URL+"/auth/logout", "", "")

		require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)
	})
}

func Test_HealthHandler(t *testing.T) {
	t.Parallel()

	srv := serve(t)

	code, body := do(t, http.MethodGet, srv.URL+"/health", "", "")

	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status": "ok"}`, body)
}

func Test_RouterCORS(t *testing.T) {
	t.Parallel()

	srv := serve(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/tasks", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

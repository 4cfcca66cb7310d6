package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/taskmanager/internal/logger"
	"github.com/nkiryanov/taskmanager/internal/repository/sqlite"
	"github.com/nkiryanov/taskmanager/internal/service/auth"
	"github.com/nkiryanov/taskmanager/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/taskmanager/internal/service/task"
	"github.com/nkiryanov/taskmanager/internal/testutil"
)

type testServer struct {
	URL         string
	AuthService *auth.AuthService
	TaskService *task.TaskService
}

// Run http server with production services on fresh sqlite database
func serve(t *testing.T) testServer {
	t.Helper()

	storage := sqlite.NewStorage(testutil.OpenSQLite(t))

	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
	require.NoError(t, err, "token manager should be created without errors")

	as, err := auth.NewService(auth.Config{Hasher: auth.BcryptHasher{Cost: bcrypt.MinCost}}, tokenManager, storage)
	require.NoError(t, err, "auth service starting error")

	ts := task.NewService(storage.Task(), 0)

	srv := httptest.NewServer(NewRouter(as, ts, logger.NewNoOpLogger(), RouterOpts{}))
	t.Cleanup(srv.Close)

	return testServer{URL: srv.URL, AuthService: as, TaskService: ts}
}

// Send request and return status code with body
// Empty access means no Authorization header
func do(t *testing.T, method string, url string, access string, body string) (int, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(data)
}

// Register user and login it via http api, return token pair
func registerAndLogin(t *testing.T, url string, email string) (access string, refresh string) {
	t.Helper()

	creds := `{"email": "` + email + `", "password": "StrongEnoughPassword"}`

	code, body := do(t, http.MethodPost, url+"/auth/register", "", creds)
	require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", body)

	code, body = do(t, http.MethodPost, url+"/auth/login", "", creds)
	require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &tokens))
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	return tokens.AccessToken, tokens.RefreshToken
}

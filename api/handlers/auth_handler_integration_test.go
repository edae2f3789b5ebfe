// api/handlers/auth_handler_integration_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hansade2005/pixel-pilot-sub013/api"
	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
	"github.com/Hansade2005/pixel-pilot-sub013/config"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/auth"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/indexes"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/ratelimit"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/services"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

const testSecret = "test_secret_key_for_integration_tests_1234567890"

type testEnv struct {
	server *httptest.Server
	store  *storage.Store
	svc    *services.Services
}

// setupTestServer boots the full router over a temporary SQLite database.
func setupTestServer(t *testing.T, authLimit int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tempDir := t.TempDir()
	cfg := &config.Config{
		ServerPort:             "0",
		JWTSecret:              testSecret,
		JWTExpiration:          5 * time.Minute,
		DatabaseDriver:         config.DriverSQLite,
		MetadataDbDir:          tempDir,
		MetadataDbFile:         "test_metadata.db",
		RequestTimeout:         10 * time.Second,
		CORSOrigins:            []string{"*"},
		DefaultAPIRateLimit:    100,
		AuthRateLimitPerMinute: authLimit,
		IndexConcurrency:       2,
	}

	store, err := storage.ConnectSQLite(filepath.Join(tempDir, cfg.MetadataDbFile))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	svc := services.New(store, indexes.NewManager(store, cfg.IndexConcurrency), cfg.RequestTimeout)
	svc.APIKeys.DefaultRateLimit = cfg.DefaultAPIRateLimit

	server := httptest.NewServer(api.SetupRouter(store, svc, ratelimit.NewMemoryCounter(), cfg))
	t.Cleanup(func() {
		server.Close()
		if err := store.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})
	return &testEnv{server: server, store: store, svc: svc}
}

// do sends a JSON request and decodes a JSON object response.
func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

// signupAndLogin registers a fresh user and returns its session token.
func (e *testEnv) signupAndLogin(t *testing.T) string {
	t.Helper()
	email := "user." + strconv.FormatInt(time.Now().UnixNano(), 10) + "@integration.com"
	res, _ := e.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		models.SignupRequest{Username: "tester", Email: email, Password: "StrongPassword123!"})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, body := e.do(t, http.MethodPost, "/api/v1/auth/login", "",
		models.LoginRequest{Email: email, Password: "StrongPassword123!"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	return body["token"].(string)
}

// TestAuthEndpoints performs integration tests on /auth/signup and /auth/login.
func TestAuthEndpoints(t *testing.T) {
	env := setupTestServer(t, 100)
	assert := assert.New(t)

	testEmail := "test.user." + strconv.FormatInt(time.Now().UnixNano(), 10) + "@integration.com"
	testPassword := "StrongPassword123!"

	t.Run("Signup Success", func(t *testing.T) {
		res, body := env.do(t, http.MethodPost, "/api/v1/auth/signup", "",
			models.SignupRequest{Username: "tester", Email: testEmail, Password: testPassword})
		assert.Equal(http.StatusCreated, res.StatusCode, "Expected status 201 Created")
		assert.Equal("User registered successfully", body["message"])

		user, err := env.store.FindUserByEmail(context.Background(), testEmail)
		require.NoError(t, err, "Finding user after signup should not fail")
		assert.Equal(testEmail, user.Email)
		assert.True(auth.CheckPasswordHash(testPassword, user.PasswordHash), "Stored password hash should match")
	})

	t.Run("Signup Conflict (Duplicate Email)", func(t *testing.T) {
		res, _ := env.do(t, http.MethodPost, "/api/v1/auth/signup", "",
			models.SignupRequest{Username: "other", Email: testEmail, Password: "anotherPassword"})
		assert.Equal(http.StatusConflict, res.StatusCode, "Expected status 409 Conflict")
	})

	t.Run("Signup Bad Request (Invalid Email Format)", func(t *testing.T) {
		res, body := env.do(t, http.MethodPost, "/api/v1/auth/signup", "",
			models.SignupRequest{Username: "tester", Email: "invalid-email-format", Password: testPassword})
		assert.Equal(http.StatusBadRequest, res.StatusCode, "Expected status 400 Bad Request")
		assert.NotEmpty(body["details"])
	})

	t.Run("Signup Bad Request (Short Password)", func(t *testing.T) {
		res, _ := env.do(t, http.MethodPost, "/api/v1/auth/signup", "",
			models.SignupRequest{Username: "tester", Email: "shortpass@example.com", Password: "short"})
		assert.Equal(http.StatusBadRequest, res.StatusCode, "Expected status 400 Bad Request")
	})

	t.Run("Login Success", func(t *testing.T) {
		res, body := env.do(t, http.MethodPost, "/api/v1/auth/login", "",
			models.LoginRequest{Email: testEmail, Password: testPassword})
		require.Equal(t, http.StatusOK, res.StatusCode, "Expected status 200 OK")
		assert.Equal("Login successful", body["message"])

		token, _ := body["token"].(string)
		userID, err := auth.ValidateJWT(token, testSecret)
		assert.NoError(err, "Returned token should be valid")
		assert.Equal(body["user_id"], userID)
		assert.Equal("Bearer", body["token_type"])
		assert.EqualValues(300, body["expires_in"])

		res, body = env.do(t, http.MethodGet, "/api/v1/me", token, nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(testEmail, body["email"])
		assert.Equal("tester", body["username"])
	})

	t.Run("Login Email Is Case-Insensitive", func(t *testing.T) {
		res, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", "",
			models.LoginRequest{Email: strings.ToUpper(testEmail), Password: testPassword})
		assert.Equal(http.StatusOK, res.StatusCode)
	})

	t.Run("Login Unauthorized (Wrong Password)", func(t *testing.T) {
		res, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", "",
			models.LoginRequest{Email: testEmail, Password: "IncorrectPassword"})
		assert.Equal(http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("Login Not Found (Unknown User)", func(t *testing.T) {
		res, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", "",
			models.LoginRequest{Email: "nosuchuser@example.com", Password: "anyPassword"})
		assert.Equal(http.StatusNotFound, res.StatusCode)
	})

	t.Run("Protected Route Without Token", func(t *testing.T) {
		res, body := env.do(t, http.MethodGet, "/api/v1/databases", "", nil)
		assert.Equal(http.StatusUnauthorized, res.StatusCode)
		assert.Equal("Authorization header required", body["error"])
	})
}

func TestAuthRateLimit(t *testing.T) {
	env := setupTestServer(t, 3)
	login := models.LoginRequest{Email: "nobody@example.com", Password: "whatever1"}

	for i := 0; i < 3; i++ {
		res, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", "", login)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	}
	res, body := env.do(t, http.MethodPost, "/api/v1/auth/login", "", login)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.Equal(t, "0", res.Header.Get("X-RateLimit-Remaining"))
}

func TestTableAndRecordFlow(t *testing.T) {
	env := setupTestServer(t, 100)
	token := env.signupAndLogin(t)

	res, body := env.do(t, http.MethodPost, "/api/v1/databases", token, models.CreateDatabaseRequest{DBName: "shop"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	dbID := int64(body["database"].(map[string]any)["database_id"].(float64))
	base := fmt.Sprintf("/api/v1/databases/%d", dbID)

	res, body = env.do(t, http.MethodPost, base+"/tables/bulk", token, map[string]any{
		"tables": []map[string]any{
			{"name": "orders", "schema": map[string]any{"columns": []map[string]any{
				{"name": "customer", "type": "text", "required": true, "references": map[string]any{"table": "customers"}},
			}}},
			{"name": "customers", "schema": map[string]any{"columns": []map[string]any{
				{"name": "name", "type": "text", "required": true, "indexed": true},
			}}},
		},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "customers", results[0].(map[string]any)["name"])
	customers := results[0].(map[string]any)["table"].(map[string]any)
	tableBase := fmt.Sprintf("%s/tables/%d", base, int64(customers["table_id"].(float64)))

	res, body = env.do(t, http.MethodPost, tableBase+"/records", token, map[string]any{"nickname": "no name"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "MISSING_REQUIRED_FIELD", body["code"])

	res, body = env.do(t, http.MethodPost, tableBase+"/records", token, map[string]any{"name": "Ada"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	recordID := body["id"].(string)

	res, body = env.do(t, http.MethodGet, tableBase+"/records/"+recordID, token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Ada", body["name"])

	conditions := url.QueryEscape(`[{"field":"name","operator":"=","value":"Ada"}]`)
	res, body = env.do(t, http.MethodGet, tableBase+"/query?conditions="+conditions, token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Len(t, body["records"], 1)

	res, body = env.do(t, http.MethodPost, tableBase+"/search", token, models.SearchRequest{Query: "ad"})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Equal(t, float64(1), body["total"])

	res, _ = env.do(t, http.MethodGet, tableBase+"/records/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	other := env.signupAndLogin(t)
	res, _ = env.do(t, http.MethodGet, tableBase+"/records", other, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode, "databases of other users are hidden")
}

func TestPublicAPIRateLimit(t *testing.T) {
	env := setupTestServer(t, 100)
	token := env.signupAndLogin(t)

	_, body := env.do(t, http.MethodPost, "/api/v1/databases", token, models.CreateDatabaseRequest{DBName: "app"})
	dbID := int64(body["database"].(map[string]any)["database_id"].(float64))
	_, body = env.do(t, http.MethodPost, "/api/v1/databases", token, models.CreateDatabaseRequest{DBName: "other"})
	otherID := int64(body["database"].(map[string]any)["database_id"].(float64))

	res, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/databases/%d/api-keys", dbID), token,
		models.CreateAPIKeyRequest{Name: "ci", RateLimit: 5, RateWindow: "minute"})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	apiKey := body["api_key"].(map[string]any)
	rawKey := apiKey["key"].(string)
	keyID := apiKey["id"].(string)

	public := fmt.Sprintf("/v1/databases/%d/tables", dbID)
	for i := 1; i <= 5; i++ {
		res, _ := env.do(t, http.MethodGet, public, rawKey, nil)
		require.Equal(t, http.StatusOK, res.StatusCode, "request %d", i)
		assert.Equal(t, "5", res.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(5-i), res.Header.Get("X-RateLimit-Remaining"))
	}

	res, body = env.do(t, http.MethodGet, public, rawKey, nil)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, float64(5), details["limit"])
	assert.Equal(t, float64(5), details["usage"])
	assert.Greater(t, details["reset_in"].(float64), float64(0))

	res, _ = env.do(t, http.MethodGet, fmt.Sprintf("/v1/databases/%d/tables", otherID), rawKey, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = env.do(t, http.MethodGet, public, "pp_not-a-real-key", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = env.do(t, http.MethodGet, public, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	assert.Eventually(t, func() bool {
		usage, err := env.svc.APIKeys.Usage(context.Background(), dbID, time.Now().Add(-time.Hour))
		return err == nil && len(usage) == 1 && usage[0].APIKeyID == keyID && usage[0].TotalRequests == 5
	}, 5*time.Second, 50*time.Millisecond)

	res, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/databases/%d/api-keys/%s", dbID, keyID), token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = env.do(t, http.MethodGet, public, rawKey, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, "revoked keys are rejected")
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{JWTSecret: "test-secret", AccessTokenTTL: time.Hour}
}

func TestSignAndParse(t *testing.T) {
	cfg := testConfig()

	token, err := Sign(cfg, Actor{ID: "user-1", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	claims, err := ParseToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := Sign(testConfig(), Actor{ID: "user-1"})
	require.NoError(t, err)

	_, err = ParseToken(Config{JWTSecret: "other-secret"}, token)
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	cfg := Config{JWTSecret: "test-secret", AccessTokenTTL: -time.Minute}
	token, err := Sign(cfg, Actor{ID: "user-1"})
	require.NoError(t, err)

	_, err = ParseToken(cfg, token)
	assert.Error(t, err)
}

func TestRequire_DisabledPassesThrough(t *testing.T) {
	handler := Require(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, GetActor(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/products", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequire_MissingToken(t *testing.T) {
	handler := Require(testConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/products", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequire_TokenSources(t *testing.T) {
	cfg := testConfig()
	token, err := Sign(cfg, Actor{ID: "user-1", Name: "Ana"})
	require.NoError(t, err)

	var seen *Actor
	handler := Require(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetActor(r.Context())
	}))

	// 查询参数
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/products?token="+token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.ID)

	// Bearer 头
	seen = nil
	req := httptest.NewRequest("POST", "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.NotNil(t, seen)
	assert.Equal(t, "Ana", seen.Name)
}

func TestRequire_MalformedHeader(t *testing.T) {
	handler := Require(testConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest("POST", "/api/v1/products", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

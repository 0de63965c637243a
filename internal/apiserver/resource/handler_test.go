package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-admin/internal/apiserver/auth"
	"catalog-admin/internal/shared/engine"
	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage"
	"catalog-admin/internal/shared/storage/memstore"
)

// newTestMux 构建带全部资源路由的 mux；authCfg 零值 = 无认证模式
func newTestMux(t *testing.T, authCfg auth.Config) (*http.ServeMux, *engine.Engine) {
	t.Helper()
	reg, err := registry.Catalog()
	require.NoError(t, err)

	store := memstore.New()
	store.EnsureUnique(registry.ColUsers, "email")
	eng := engine.New(reg, store, nil)

	mux := http.NewServeMux()
	NewHandler(eng).RegisterRoutes(mux, auth.Require(authCfg))
	return mux, eng
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestListEnvelope(t *testing.T) {
	mux, eng := newTestMux(t, auth.Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := eng.Create(ctx, "posts", storage.Doc{
			"title": "t", "brief": "b", "body": "x",
		}, "")
		require.NoError(t, err)
	}

	rec, body := do(t, mux, "GET", "/api/v1/posts?limit=2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["total"], "total covers all matches, not the page")

	posts, ok := body["posts"].([]any)
	require.True(t, ok, "list key is the plural resource name")
	assert.Len(t, posts, 2)
}

func TestGetNotFound(t *testing.T) {
	mux, _ := newTestMux(t, auth.Config{})

	rec, body := do(t, mux, "GET", "/api/v1/products/product-404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])

	detail, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "not_found", detail["kind"])
}

func TestCreateEnvelope(t *testing.T) {
	mux, _ := newTestMux(t, auth.Config{})

	rec, body := do(t, mux, "POST", "/api/v1/users",
		`{"name":"Ana","email":"ana@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok, "single-doc key is the singular resource name")
	assert.Equal(t, "Ana", user["name"])
	assert.Equal(t, "A", user["status"])
	_, present := user["password"]
	assert.False(t, present)
}

func TestCreateValidationError(t *testing.T) {
	mux, _ := newTestMux(t, auth.Config{})

	rec, body := do(t, mux, "POST", "/api/v1/users", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	detail := body["error"].(map[string]any)
	assert.Equal(t, "validation", detail["kind"])
	assert.Equal(t, "name", detail["field"])
}

func TestCreateMalformedBody(t *testing.T) {
	mux, _ := newTestMux(t, auth.Config{})

	rec, body := do(t, mux, "POST", "/api/v1/users", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestUpdateAndToggleAndDelete(t *testing.T) {
	mux, eng := newTestMux(t, auth.Config{})
	ctx := context.Background()

	role, err := eng.Create(ctx, "roles", storage.Doc{"name": "admin"}, "")
	require.NoError(t, err)
	id := role["_id"].(string)

	rec, body := do(t, mux, "PUT", "/api/v1/roles/"+id, `{"name":"editor","status":"D"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	updated := body["role"].(map[string]any)
	assert.Equal(t, "editor", updated["name"])
	assert.Equal(t, "A", updated["status"], "status is protected on update")

	rec, body = do(t, mux, "PUT", "/api/v1/roles/"+id+"/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I", body["role"].(map[string]any)["status"])

	rec, body = do(t, mux, "DELETE", "/api/v1/roles/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "D", body["role"].(map[string]any)["status"])

	// 删除后列表不可见，按 id 仍可取回
	rec, body = do(t, mux, "GET", "/api/v1/roles", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["total"])

	rec, _ = do(t, mux, "GET", "/api/v1/roles/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchRoute(t *testing.T) {
	mux, eng := newTestMux(t, auth.Config{})
	ctx := context.Background()

	_, err := eng.Create(ctx, "products", storage.Doc{"name": "FOOD jacket"}, "")
	require.NoError(t, err)
	_, err = eng.Create(ctx, "products", storage.Doc{"name": "chair"}, "")
	require.NoError(t, err)

	rec, body := do(t, mux, "GET", "/api/v1/products/search/food", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total"])
	products := body["products"].([]any)
	require.Len(t, products, 1)
}

func TestBadPaginationParam(t *testing.T) {
	mux, _ := newTestMux(t, auth.Config{})

	rec, body := do(t, mux, "GET", "/api/v1/products?from=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := body["error"].(map[string]any)
	assert.Equal(t, "invalid_filter", detail["kind"])
	assert.Equal(t, "from", detail["field"])
}

func TestUndeclaredFilterParam(t *testing.T) {
	mux, _ := newTestMux(t, auth.Config{})

	rec, body := do(t, mux, "GET", "/api/v1/products?color=red", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := body["error"].(map[string]any)
	assert.Equal(t, "invalid_filter", detail["kind"])
	assert.Equal(t, "color", detail["field"])
}

func TestWriteRequiresAuth(t *testing.T) {
	cfg := auth.Config{JWTSecret: "test-secret", AccessTokenTTL: auth.DefaultConfig().AccessTokenTTL}
	mux, _ := newTestMux(t, cfg)

	// 读操作无需认证
	rec, _ := do(t, mux, "GET", "/api/v1/products", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// 写操作缺 token → 401
	rec, body := do(t, mux, "POST", "/api/v1/products", `{"name":"Chips"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])

	// 带 token 的写操作放行，操作者被盖进 addedBy
	token, err := auth.Sign(cfg, auth.Actor{ID: "user-1", Name: "Ana"})
	require.NoError(t, err)

	rec, body = do(t, mux, "POST", "/api/v1/products?token="+token, `{"name":"Chips"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
}

func TestSampleParam(t *testing.T) {
	mux, eng := newTestMux(t, auth.Config{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := eng.Create(ctx, "categories", storage.Doc{"name": "c"}, "")
		require.NoError(t, err)
	}

	// sample=N 直接指定抽样条数，与 limit 无关
	rec, body := do(t, mux, "GET", "/api/v1/categories?sample=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), body["total"], "sampling never changes the total")
	assert.Len(t, body["categories"].([]any), 3)

	rec, body = do(t, mux, "GET", "/api/v1/categories?sample=1&limit=4", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["categories"].([]any), 1)

	// randomize 兼容别名：抽样条数取 limit
	rec, body = do(t, mux, "GET", "/api/v1/categories?randomize=true&limit=2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), body["total"])
	assert.Len(t, body["categories"].([]any), 2)
}

func TestSampleParam_Invalid(t *testing.T) {
	mux, _ := newTestMux(t, auth.Config{})

	for _, raw := range []string{"abc", "0", "-2", "true"} {
		rec, body := do(t, mux, "GET", "/api/v1/categories?sample="+raw, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "sample=%s", raw)
		assert.Equal(t, false, body["success"])
		detail := body["error"].(map[string]any)
		assert.Equal(t, "invalid_filter", detail["kind"])
		assert.Equal(t, "sample", detail["field"])
	}
}

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"catalog-admin/internal/shared/eventbus"
	"catalog-admin/internal/shared/query"
	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage"
	"catalog-admin/internal/shared/storage/memstore"
)

func newTestEngine(t *testing.T) (*Engine, *memstore.Store, *eventbus.Recorder) {
	t.Helper()
	reg, err := registry.Catalog()
	require.NoError(t, err)

	store := memstore.New()
	store.EnsureUnique(registry.ColUsers, "email")

	rec := eventbus.NewRecorder()
	return New(reg, store, rec), store, rec
}

// seedTaxonomy 种入 category + subcategory，返回两者 id
func seedTaxonomy(t *testing.T, eng *Engine) (catID, subID string) {
	t.Helper()
	ctx := context.Background()

	cat, err := eng.Create(ctx, "categories", storage.Doc{"name": "Food"}, "")
	require.NoError(t, err)
	sub, err := eng.Create(ctx, "subcategories", storage.Doc{
		"name": "Snacks", "category": cat["_id"],
	}, "")
	require.NoError(t, err)

	return cat["_id"].(string), sub["_id"].(string)
}

// ============================================================================
// Create
// ============================================================================

func TestCreate_InitializesLifecycleFields(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	doc, err := eng.Create(ctx, "posts", storage.Doc{
		"title": "t", "brief": "b", "body": "x",
		"status": "D", // 被剥离
	}, "user-actor")
	require.NoError(t, err)

	assert.Equal(t, "A", doc["status"])
	assert.NotEmpty(t, doc["_id"])
	assert.Contains(t, doc["_id"], "post-")

	stamp, ok := doc["uploadDatetime"].(int64)
	require.True(t, ok)
	assert.Greater(t, stamp, int64(0))
}

func TestCreate_StampsActor(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	role, err := eng.Create(ctx, "roles", storage.Doc{"name": "admin"}, "")
	require.NoError(t, err)
	actor, err := eng.Create(ctx, "users", storage.Doc{
		"name": "Ana", "email": "ana@example.com", "role": role["_id"],
	}, "")
	require.NoError(t, err)

	post, err := eng.Create(ctx, "posts", storage.Doc{
		"title": "t", "brief": "b", "body": "x",
	}, actor["_id"].(string))
	require.NoError(t, err)

	// author 已展开为用户文档
	author, ok := post["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, actor["_id"], author["_id"])
	assert.Equal(t, "Ana", author["name"])
}

func TestCreate_AppliesDefaults(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	user, err := eng.Create(ctx, "users", storage.Doc{
		"name": "Ana", "email": "ana@example.com",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "basic", user["login_type"])
}

func TestCreate_HashesPasswordAndHidesIt(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	user, err := eng.Create(ctx, "users", storage.Doc{
		"name": "Ana", "email": "ana@example.com", "password": "hunter22",
	}, "")
	require.NoError(t, err)

	// 响应里永远没有 password
	_, present := user["password"]
	assert.False(t, present)

	// 存储里是 bcrypt 散列
	raw, err := store.FindByID(ctx, registry.ColUsers, user["_id"].(string))
	require.NoError(t, err)
	hash, _ := raw["password"].(string)
	require.NotEmpty(t, hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))
}

func TestCreate_ValidationFailures(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	var ve *ValidationError

	_, err := eng.Create(ctx, "users", storage.Doc{"email": "a@b.c"}, "")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "name", ve.Field)

	_, err = eng.Create(ctx, "users", storage.Doc{"name": "A", "email": "not-an-email"}, "")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)

	_, err = eng.Create(ctx, "products", storage.Doc{"name": "p", "price": -1.0}, "")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "price", ve.Field)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Create(ctx, "users", storage.Doc{"name": "A", "email": "a@b.c"}, "")
	require.NoError(t, err)

	_, err = eng.Create(ctx, "users", storage.Doc{"name": "B", "email": "a@b.c"}, "")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)
}

// ============================================================================
// 关系展开
// ============================================================================

func TestGetByID_NestedExpansion(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	catID, subID := seedTaxonomy(t, eng)

	// 关系以 {_id: x} 形式提交也被归一为裸 id
	prod, err := eng.Create(ctx, "products", storage.Doc{
		"name": "Chips", "subcategory": map[string]any{"_id": subID},
	}, "")
	require.NoError(t, err)

	got, err := eng.GetByID(ctx, "products", prod["_id"].(string))
	require.NoError(t, err)

	sub, ok := got["subcategory"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, subID, sub["_id"])

	cat, ok := sub["category"].(map[string]any)
	require.True(t, ok, "category must be expanded through the subcategory")
	assert.Equal(t, catID, cat["_id"])

	// 展开回环：与直接取 category 一致
	direct, err := eng.GetByID(ctx, "categories", catID)
	require.NoError(t, err)
	assert.Equal(t, direct["name"], cat["name"])
}

func TestGetByID_DanglingRelationIsNull(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	prod, err := eng.Create(ctx, "products", storage.Doc{
		"name": "Ghost", "subcategory": "sub-does-not-exist",
	}, "")
	require.NoError(t, err)

	got, err := eng.GetByID(ctx, "products", prod["_id"].(string))
	require.NoError(t, err)

	val, present := got["subcategory"]
	assert.True(t, present, "dangling relation must be an explicit null, not missing")
	assert.Nil(t, val)
}

func TestGetByID_NotFound(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.GetByID(context.Background(), "products", "product-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// List / Search
// ============================================================================

func TestList_ExcludesDeletedAndCountsAll(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		post, err := eng.Create(ctx, "posts", storage.Doc{
			"title": "t", "brief": "b", "body": "x",
		}, "")
		require.NoError(t, err)
		ids = append(ids, post["_id"].(string))
	}
	for _, id := range ids[:2] {
		_, err := eng.SoftDelete(ctx, "posts", id)
		require.NoError(t, err)
	}

	docs, total, err := eng.List(ctx, "posts", query.Params{From: 0, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, int64(3), total, "total counts every active post, not just the page")

	for _, doc := range docs {
		assert.NotEqual(t, "D", doc["status"])
	}
}

func TestList_TotalInvariantUnderPaging(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := eng.Create(ctx, "categories", storage.Doc{"name": "c"}, "")
		require.NoError(t, err)
	}

	params := []query.Params{
		{},
		{From: 0, Limit: 2},
		{From: 5, Limit: 100},
		{Sample: 3},
	}
	for _, p := range params {
		_, total, err := eng.List(ctx, "categories", p)
		require.NoError(t, err)
		assert.Equal(t, int64(7), total)
	}

	// 起点超出结果集：空页，total 仍是全量计数
	docs, total, err := eng.List(ctx, "categories", query.Params{From: 100, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, int64(7), total)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Create(ctx, "products", storage.Doc{"name": "FOOD jacket"}, "")
	require.NoError(t, err)
	_, err = eng.Create(ctx, "products", storage.Doc{"name": "chair"}, "")
	require.NoError(t, err)

	docs, total, err := eng.Search(ctx, "products", "food", query.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)
	assert.Equal(t, "FOOD jacket", docs[0]["name"])
}

func TestList_CategoryFilterNoMatches(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	_, subID := seedTaxonomy(t, eng)

	_, err := eng.Create(ctx, "products", storage.Doc{
		"name": "Chips", "subcategory": subID,
	}, "")
	require.NoError(t, err)

	other, err := eng.Create(ctx, "categories", storage.Doc{"name": "Empty"}, "")
	require.NoError(t, err)

	docs, total, err := eng.List(ctx, "products", query.Params{
		Filters: map[string]string{"category": other["_id"].(string)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, docs)
}

func TestList_CategoryFilterMatches(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	catID, subID := seedTaxonomy(t, eng)

	_, err := eng.Create(ctx, "products", storage.Doc{
		"name": "Chips", "subcategory": subID,
	}, "")
	require.NoError(t, err)

	docs, total, err := eng.List(ctx, "products", query.Params{
		Filters: map[string]string{"category": catID},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)
}

func TestList_UndeclaredFilterRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, _, err := eng.List(context.Background(), "products", query.Params{
		Filters: map[string]string{"color": "red"},
	})
	var fe *query.InvalidFilterError
	assert.True(t, errors.As(err, &fe))
}

func TestList_ResponseNeverLeaksPassword(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	user, err := eng.Create(ctx, "users", storage.Doc{
		"name": "Ana", "email": "ana@example.com", "password": "hunter22",
	}, "")
	require.NoError(t, err)

	_, err = eng.Create(ctx, "posts", storage.Doc{
		"title": "t", "brief": "b", "body": "x",
	}, user["_id"].(string))
	require.NoError(t, err)

	docs, _, err := eng.List(ctx, "posts", query.Params{})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	author, ok := docs[0]["author"].(map[string]any)
	require.True(t, ok)
	_, present := author["password"]
	assert.False(t, present, "expanded author must not carry the password hash")
}

// ============================================================================
// Update
// ============================================================================

func TestUpdate_StripsProtectedFields(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	user, err := eng.Create(ctx, "users", storage.Doc{
		"name": "Ana", "email": "ana@example.com",
	}, "")
	require.NoError(t, err)
	id := user["_id"].(string)

	updated, err := eng.Update(ctx, "users", id, storage.Doc{
		"name":   "Anabel",
		"email":  "evil@example.com",
		"status": "D",
		"_id":    "user-hacked",
	})
	require.NoError(t, err)

	assert.Equal(t, "Anabel", updated["name"])
	assert.Equal(t, "ana@example.com", updated["email"])
	assert.Equal(t, "A", updated["status"])
	assert.Equal(t, id, updated["_id"])
}

func TestUpdate_NotFound(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.Update(context.Background(), "users", "user-404", storage.Doc{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_PartialValidation(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	prod, err := eng.Create(ctx, "products", storage.Doc{"name": "Chips"}, "")
	require.NoError(t, err)
	id := prod["_id"].(string)

	// 没带 name 的 patch 不触发 required 校验
	_, err = eng.Update(ctx, "products", id, storage.Doc{"description": "crunchy"})
	assert.NoError(t, err)

	// 带了就必须合规
	_, err = eng.Update(ctx, "products", id, storage.Doc{"name": ""})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestUpdate_EmitsFileRemovalForReplacedImages(t *testing.T) {
	eng, _, rec := newTestEngine(t)
	ctx := context.Background()

	prod, err := eng.Create(ctx, "products", storage.Doc{
		"name": "Chips",
		"images": []any{
			map[string]any{"filename": "a.jpg", "priority": 1},
			map[string]any{"filename": "b.jpg", "priority": 2},
		},
	}, "")
	require.NoError(t, err)
	id := prod["_id"].(string)

	_, err = eng.Update(ctx, "products", id, storage.Doc{
		"images": []any{
			map[string]any{"filename": "b.jpg", "priority": 1},
			map[string]any{"filename": "c.jpg", "priority": 2},
		},
	})
	require.NoError(t, err)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "product", events[0].Resource)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, []string{"a.jpg"}, events[0].Filenames)
}

func TestUpdate_NoEventWhenImagesUntouched(t *testing.T) {
	eng, _, rec := newTestEngine(t)
	ctx := context.Background()

	prod, err := eng.Create(ctx, "products", storage.Doc{
		"name":   "Chips",
		"images": []any{map[string]any{"filename": "a.jpg"}},
	}, "")
	require.NoError(t, err)

	_, err = eng.Update(ctx, "products", prod["_id"].(string), storage.Doc{"description": "crunchy"})
	require.NoError(t, err)
	assert.Empty(t, rec.Events())
}

// ============================================================================
// SoftDelete / ToggleStatus
// ============================================================================

func TestSoftDelete_IdempotentAndEventful(t *testing.T) {
	eng, _, rec := newTestEngine(t)
	ctx := context.Background()

	prod, err := eng.Create(ctx, "products", storage.Doc{
		"name":   "Chips",
		"images": []any{map[string]any{"filename": "a.jpg"}},
	}, "")
	require.NoError(t, err)
	id := prod["_id"].(string)

	first, err := eng.SoftDelete(ctx, "products", id)
	require.NoError(t, err)
	assert.Equal(t, "D", first["status"])

	second, err := eng.SoftDelete(ctx, "products", id)
	require.NoError(t, err)
	assert.Equal(t, "D", second["status"])

	// 只有首次删除发事件
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, []string{"a.jpg"}, events[0].Filenames)

	_, err = eng.SoftDelete(ctx, "products", "product-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleStatus_Involution(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	role, err := eng.Create(ctx, "roles", storage.Doc{"name": "admin"}, "")
	require.NoError(t, err)
	id := role["_id"].(string)

	once, err := eng.ToggleStatus(ctx, "roles", id)
	require.NoError(t, err)
	assert.Equal(t, "I", once["status"])

	twice, err := eng.ToggleStatus(ctx, "roles", id)
	require.NoError(t, err)
	assert.Equal(t, "A", twice["status"])
}

func TestToggleStatus_NoOpOnDeleted(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	role, err := eng.Create(ctx, "roles", storage.Doc{"name": "admin"}, "")
	require.NoError(t, err)
	id := role["_id"].(string)

	_, err = eng.SoftDelete(ctx, "roles", id)
	require.NoError(t, err)

	after, err := eng.ToggleStatus(ctx, "roles", id)
	require.NoError(t, err)
	assert.Equal(t, "D", after["status"])
}

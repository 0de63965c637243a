package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"catalog-admin/internal/shared/eventbus"
	"catalog-admin/internal/shared/model"
	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage"
)

// Create 创建记录并返回关系展开后的文档
//
// status 固定初始化为 A；CreatedField 写入 epoch millis；
// ActorField 在 payload 未提供时由已认证的操作者补齐。
func (e *Engine) Create(ctx context.Context, resource string, payload storage.Doc, actor string) (storage.Doc, error) {
	res, ok := e.reg.Get(resource)
	if !ok {
		return nil, fmt.Errorf("engine: unknown resource %q", resource)
	}

	doc := copyShallow(payload)
	delete(doc, "_id")
	delete(doc, "status")
	if res.CreatedField != "" {
		delete(doc, res.CreatedField)
	}

	normalizeRelations(res, doc)
	applyDefaults(res, doc)

	if res.ActorField != "" && actor != "" {
		if v, ok := doc[res.ActorField]; !ok || v == nil || v == "" {
			doc[res.ActorField] = actor
		}
	}

	if err := e.validateDoc(res, doc, false); err != nil {
		return nil, err
	}

	doc["_id"] = generateID(res.Singular)
	doc["status"] = string(model.StatusActive)
	if res.CreatedField != "" {
		doc[res.CreatedField] = time.Now().UnixMilli()
	}

	if res.PrepareCreate != nil {
		if err := res.PrepareCreate(doc); err != nil {
			return nil, fmt.Errorf("engine: prepare create %s: %w", resource, err)
		}
	}

	id, err := e.store.Insert(ctx, res.Collection, doc)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, duplicateError(res)
		}
		return nil, &StorageError{Op: "insert " + resource, Err: err}
	}

	return e.GetByID(ctx, resource, id)
}

// Update 部分更新：只应用 payload 中出现的字段
//
// 受保护字段（status、_id、用户的 email/password 等）被静默剥离，
// 状态变更只能走 SoftDelete/ToggleStatus。被替换掉的文件引用
// 作为孤儿文件事件发出。
func (e *Engine) Update(ctx context.Context, resource, id string, payload storage.Doc) (storage.Doc, error) {
	res, ok := e.reg.Get(resource)
	if !ok {
		return nil, fmt.Errorf("engine: unknown resource %q", resource)
	}

	current, err := e.store.FindByID(ctx, res.Collection, id)
	if err != nil {
		return nil, &StorageError{Op: "get " + resource, Err: err}
	}
	if current == nil {
		return nil, ErrNotFound
	}

	patch := copyShallow(payload)
	delete(patch, "_id")
	for _, f := range res.Protected {
		delete(patch, f)
	}
	if len(patch) == 0 {
		return e.GetByID(ctx, resource, id)
	}

	normalizeRelations(res, patch)
	if err := e.validateDoc(res, patch, true); err != nil {
		return nil, err
	}

	removed := removedFilenames(res, current, patch)

	if _, err := e.store.UpdateByID(ctx, res.Collection, id, patch); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, storage.ErrDuplicate):
			return nil, duplicateError(res)
		default:
			return nil, &StorageError{Op: "update " + resource, Err: err}
		}
	}

	e.publishRemoval(ctx, res, id, removed)
	return e.GetByID(ctx, resource, id)
}

// SoftDelete 逻辑删除：status 置 D，文档永远保留
//
// 幂等：对已删除的记录再次调用直接返回当前状态；只有 id 从未
// 存在过才返回 ErrNotFound。首次删除时全部文件引用成为孤儿。
func (e *Engine) SoftDelete(ctx context.Context, resource, id string) (storage.Doc, error) {
	res, ok := e.reg.Get(resource)
	if !ok {
		return nil, fmt.Errorf("engine: unknown resource %q", resource)
	}

	current, err := e.store.FindByID(ctx, res.Collection, id)
	if err != nil {
		return nil, &StorageError{Op: "get " + resource, Err: err}
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if statusOf(current) == model.StatusDeleted {
		return e.GetByID(ctx, resource, id)
	}

	if _, err := e.store.UpdateByID(ctx, res.Collection, id,
		storage.Doc{"status": string(model.StatusDeleted)}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "delete " + resource, Err: err}
	}

	e.publishRemoval(ctx, res, id, allFilenames(res, current))
	return e.GetByID(ctx, resource, id)
}

// ToggleStatus 在 A/I 之间翻转；D 状态的记录是 no-op
func (e *Engine) ToggleStatus(ctx context.Context, resource, id string) (storage.Doc, error) {
	res, ok := e.reg.Get(resource)
	if !ok {
		return nil, fmt.Errorf("engine: unknown resource %q", resource)
	}

	current, err := e.store.FindByID(ctx, res.Collection, id)
	if err != nil {
		return nil, &StorageError{Op: "get " + resource, Err: err}
	}
	if current == nil {
		return nil, ErrNotFound
	}

	st := statusOf(current)
	if st == model.StatusDeleted {
		return e.GetByID(ctx, resource, id)
	}

	if _, err := e.store.UpdateByID(ctx, res.Collection, id,
		storage.Doc{"status": string(st.Toggle())}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "toggle " + resource, Err: err}
	}

	return e.GetByID(ctx, resource, id)
}

// ============================================================================
// 内部辅助
// ============================================================================

// validateDoc 按注册表规则校验；partial 时只校验出现的字段
func (e *Engine) validateDoc(res *registry.Resource, doc storage.Doc, partial bool) error {
	for _, f := range res.Fields {
		if f.Rule == "" {
			continue
		}
		val, present := doc[f.Name]
		if !present {
			if partial {
				continue
			}
			val = nil
		}
		if err := e.validate.Var(val, f.Rule); err != nil {
			return &ValidationError{Field: f.Name, Reason: ruleReason(err)}
		}
	}
	for _, rel := range res.Relations {
		if !rel.Required || partial {
			continue
		}
		if v, ok := doc[rel.Field]; !ok || v == nil || v == "" {
			return &ValidationError{Field: rel.Field, Reason: "required relation missing"}
		}
	}
	return nil
}

func ruleReason(err error) string {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		return "failed rule " + ves[0].Tag()
	}
	return err.Error()
}

// normalizeRelations 把 {"_id": "xxx"} 形式的关系值归一为裸 id 串
// 存储中关系字段只保存 id，展开只发生在响应装配时
func normalizeRelations(res *registry.Resource, doc storage.Doc) {
	for _, rel := range res.Relations {
		v, ok := doc[rel.Field]
		if !ok || v == nil {
			continue
		}
		if m, isMap := v.(map[string]any); isMap {
			if id, _ := m["_id"].(string); id != "" {
				doc[rel.Field] = id
			}
		}
	}
}

func applyDefaults(res *registry.Resource, doc storage.Doc) {
	for field, val := range res.Defaults {
		if v, ok := doc[field]; !ok || v == nil || v == "" {
			doc[field] = val
		}
	}
}

func duplicateError(res *registry.Resource) error {
	field := ""
	if len(res.Unique) > 0 {
		field = res.Unique[0]
	}
	return &ValidationError{Field: field, Reason: "duplicate value"}
}

func statusOf(doc storage.Doc) model.Status {
	s, _ := doc["status"].(string)
	return model.Status(s)
}

// publishRemoval 发出孤儿文件事件；发布失败不回滚已完成的写入，
// 只记录日志（清理是尽力而为的异步协作）
func (e *Engine) publishRemoval(ctx context.Context, res *registry.Resource, id string, filenames []string) {
	if len(filenames) == 0 {
		return
	}
	ev := &eventbus.FileRemoval{
		Resource:  res.Singular,
		ID:        id,
		Filenames: filenames,
		Timestamp: time.Now().UTC(),
	}
	if err := e.bus.PublishFileRemoval(ctx, ev); err != nil {
		log.Printf("[Engine] Publish file removal for %s/%s: %v", res.Singular, id, err)
	}
}

func copyShallow(doc storage.Doc) storage.Doc {
	out := make(storage.Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

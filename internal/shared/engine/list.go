package engine

import (
	"context"
	"fmt"
	"strings"

	"catalog-admin/internal/shared/query"
	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage"
)

// List 分页列表
//
// total 先于取页计算，两个管道共享同一过滤前缀，因此 total 与
// from/limit/sample 无关；任一半失败则整个操作失败，不会返回
// 计数与页不匹配的结果。
func (e *Engine) List(ctx context.Context, resource string, p query.Params) ([]storage.Doc, int64, error) {
	res, ok := e.reg.Get(resource)
	if !ok {
		return nil, 0, fmt.Errorf("engine: unknown resource %q", resource)
	}

	plan, err := e.compiler.Compile(resource, p)
	if err != nil {
		return nil, 0, err
	}

	total, err := e.store.Count(ctx, res.Collection, plan.Count)
	if err != nil {
		return nil, 0, &StorageError{Op: "count " + resource, Err: err}
	}

	docs, err := e.store.FindPage(ctx, res.Collection, plan.Data)
	if err != nil {
		return nil, 0, &StorageError{Op: "list " + resource, Err: err}
	}

	for _, doc := range docs {
		fillRelations(res, doc)
	}
	return docs, total, nil
}

// Search 自由文本搜索，分页与计数语义和 List 完全一致
func (e *Engine) Search(ctx context.Context, resource, term string, p query.Params) ([]storage.Doc, int64, error) {
	p.Term = term
	return e.List(ctx, resource, p)
}

// GetByID 按 id 取单条（关系已展开）；软删除的记录仍可取回
func (e *Engine) GetByID(ctx context.Context, resource, id string) (storage.Doc, error) {
	res, ok := e.reg.Get(resource)
	if !ok {
		return nil, fmt.Errorf("engine: unknown resource %q", resource)
	}

	pipe, err := e.compiler.ByID(resource, id)
	if err != nil {
		return nil, err
	}
	docs, err := e.store.FindPage(ctx, res.Collection, pipe)
	if err != nil {
		return nil, &StorageError{Op: "get " + resource, Err: err}
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	fillRelations(res, docs[0])
	return docs[0], nil
}

// fillRelations 把缺失的关系字段补成显式 null
//
// 悬空 id 经 Lookup+Unwind 后表现为字段缺失（或嵌套场景下的
// 空文档），响应中统一呈现为 null。只改响应文档，存储不受影响。
func fillRelations(res *registry.Resource, doc storage.Doc) {
	for _, path := range query.RelationPaths(res) {
		parts := strings.Split(path, ".")
		parent := map[string]any(doc)
		reachable := true
		for _, part := range parts[:len(parts)-1] {
			m, isMap := parent[part].(map[string]any)
			if !isMap {
				reachable = false
				break
			}
			parent = m
		}
		if !reachable {
			continue
		}
		leaf := parts[len(parts)-1]
		v, present := parent[leaf]
		m, isMap := v.(map[string]any)
		if !present || v == nil || (isMap && len(m) == 0) {
			parent[leaf] = nil
		}
	}
}

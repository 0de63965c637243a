// Package memstore 实现基于内存的 storage.Store
//
// 在进程内解释执行 query.Pipeline，与 mongostore 的聚合语义保持
// 一致，用于单元测试和无 MongoDB 的本地开发。
package memstore

import (
	"context"
	"sync"

	"catalog-admin/internal/shared/query"
	"catalog-admin/internal/shared/storage"
)

// Store 内存存储
type Store struct {
	mu     sync.RWMutex
	data   map[string]map[string]storage.Doc // collection → _id → doc
	order  map[string][]string               // 插入顺序，保证无排序时结果稳定
	unique map[string][]string               // collection → 唯一字段
}

// New 创建空的内存存储
func New() *Store {
	return &Store{
		data:   make(map[string]map[string]storage.Doc),
		order:  make(map[string][]string),
		unique: make(map[string][]string),
	}
}

// EnsureUnique 声明唯一约束，等价于 mongostore 的唯一索引
func (s *Store) EnsureUnique(collection string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[collection] = append(s.unique[collection], fields...)
}

// Close 实现 storage.Store
func (s *Store) Close() error { return nil }

// Insert 插入文档
func (s *Store) Insert(ctx context.Context, collection string, doc storage.Doc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, _ := doc["_id"].(string)
	if id == "" {
		return "", errMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.data[collection]
	if col == nil {
		col = make(map[string]storage.Doc)
		s.data[collection] = col
	}
	if _, exists := col[id]; exists {
		return "", storage.ErrDuplicate
	}
	if err := s.checkUnique(collection, doc, id); err != nil {
		return "", err
	}

	col[id] = copyDoc(doc)
	s.order[collection] = append(s.order[collection], id)
	return id, nil
}

// FindByID 按 _id 查找，不存在返回 (nil, nil)
func (s *Store) FindByID(ctx context.Context, collection, id string) (storage.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[collection][id]
	if !ok {
		return nil, nil
	}
	return copyDoc(doc), nil
}

// UpdateByID $set 式部分更新，返回更新后的文档
func (s *Store) UpdateByID(ctx context.Context, collection, id string, patch storage.Doc) (storage.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.data[collection][id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	next := copyDoc(doc)
	for k, v := range patch {
		if k == "_id" {
			continue
		}
		next[k] = copyValue(v)
	}
	if err := s.checkUnique(collection, next, id); err != nil {
		return nil, err
	}

	s.data[collection][id] = next
	return copyDoc(next), nil
}

// FindPage 执行管道并返回结果文档
func (s *Store) FindPage(ctx context.Context, collection string, p query.Pipeline) ([]storage.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, _, err := s.execute(collection, p)
	return docs, err
}

// Count 执行以 Count Stage 结尾的管道并返回匹配总数
func (s *Store) Count(ctx context.Context, collection string, p query.Pipeline) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, n, err := s.execute(collection, p)
	return n, err
}

// checkUnique 调用方须持有写锁；id 为被排除的自身文档
func (s *Store) checkUnique(collection string, doc storage.Doc, id string) error {
	for _, field := range s.unique[collection] {
		val, ok := doc[field]
		if !ok || val == nil {
			continue
		}
		for otherID, other := range s.data[collection] {
			if otherID == id {
				continue
			}
			if other[field] == val {
				return storage.ErrDuplicate
			}
		}
	}
	return nil
}

// Compile-time interface check
var _ storage.Store = (*Store)(nil)

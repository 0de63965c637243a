package engine

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage"
)

// generateID 生成带前缀的随机 ID
// 格式：prefix-xxxxxxxxxxxx（prefix + 12 字符 hex）
func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// removedFilenames 对比新旧文档，找出 patch 替换掉的文件引用
//
// 只有 patch 真的携带了对应容器字段时才比较；文件名仍出现在新值
// 里的不算孤儿（原地保留）。
func removedFilenames(res *registry.Resource, current, patch storage.Doc) []string {
	var removed []string
	for _, path := range res.FileFields {
		field, rest := splitPath(path)
		newVal, touched := patch[field]
		if !touched {
			continue
		}
		kept := make(map[string]bool)
		for _, name := range filenamesIn(newVal, rest) {
			kept[name] = true
		}
		for _, name := range filenamesIn(current[field], rest) {
			if name != "" && !kept[name] {
				removed = append(removed, name)
			}
		}
	}
	return removed
}

// allFilenames 文档当前挂载的全部文件引用（软删除时整体成为孤儿）
func allFilenames(res *registry.Resource, doc storage.Doc) []string {
	var all []string
	for _, path := range res.FileFields {
		field, rest := splitPath(path)
		for _, name := range filenamesIn(doc[field], rest) {
			if name != "" {
				all = append(all, name)
			}
		}
	}
	return all
}

// filenamesIn 从容器值（单个子文档或子文档数组）里取文件名
func filenamesIn(container any, namePath string) []string {
	switch v := container.(type) {
	case map[string]any:
		if name, ok := lookupPath(v, namePath); ok {
			if s, _ := name.(string); s != "" {
				return []string{s}
			}
		}
	case []any:
		var names []string
		for _, elem := range v {
			if m, ok := elem.(map[string]any); ok {
				if name, ok := lookupPath(m, namePath); ok {
					if s, _ := name.(string); s != "" {
						names = append(names, s)
					}
				}
			}
		}
		return names
	}
	return nil
}

func splitPath(path string) (field, rest string) {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

func lookupPath(m map[string]any, path string) (any, bool) {
	if path == "" {
		return m, true
	}
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = mm[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

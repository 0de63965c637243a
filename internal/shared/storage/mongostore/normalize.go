package mongostore

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"catalog-admin/internal/shared/storage"
)

// normalizeDoc 把驱动解码出的 bson.M/bson.D/bson.A 统一为
// 纯 map[string]any / []any
//
// 驱动对 interface{} 值默认解码为 bson.D，嵌套文档和数组
// 带着驱动私有类型会让上层的类型断言失效，入口处统一拍平。
func normalizeDoc(doc bson.M) storage.Doc {
	out := make(storage.Doc, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalizeValue(e)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = normalizeValue(e)
		}
		return a
	case []any:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = normalizeValue(e)
		}
		return a
	default:
		return v
	}
}

package memstore

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"

	"catalog-admin/internal/shared/query"
	"catalog-admin/internal/shared/storage"
)

var errMissingID = errors.New("memstore: document without _id")

// execute 逐段解释管道；遇到 Count Stage 时返回 (nil, 总数)
// 调用方须持有读锁
func (s *Store) execute(collection string, p query.Pipeline) ([]storage.Doc, int64, error) {
	col := s.data[collection]
	docs := make([]storage.Doc, 0, len(col))
	for _, id := range s.order[collection] {
		if doc, ok := col[id]; ok {
			docs = append(docs, copyDoc(doc))
		}
	}

	for _, stage := range p {
		switch st := stage.(type) {
		case query.Match:
			docs = applyMatch(docs, st)
		case query.Lookup:
			docs = s.applyLookup(docs, st)
		case query.Unwind:
			docs = applyUnwind(docs, st)
		case query.Sort:
			applySort(docs, st)
		case query.Sample:
			docs = applySample(docs, st.Size)
		case query.Skip:
			if st.N >= int64(len(docs)) {
				docs = nil
			} else {
				docs = docs[st.N:]
			}
		case query.Limit:
			if st.N < int64(len(docs)) {
				docs = docs[:st.N]
			}
		case query.Count:
			return nil, int64(len(docs)), nil
		case query.Unset:
			for _, doc := range docs {
				for _, f := range st.Fields {
					deletePath(doc, f)
				}
			}
		default:
			return nil, 0, fmt.Errorf("memstore: unsupported stage %T", stage)
		}
	}
	return docs, int64(len(docs)), nil
}

func applyMatch(docs []storage.Doc, m query.Match) []storage.Doc {
	out := docs[:0]
	for _, doc := range docs {
		if matchDoc(doc, m) {
			out = append(out, doc)
		}
	}
	return out
}

func matchDoc(doc storage.Doc, m query.Match) bool {
	for _, c := range m.Conds {
		hit := matchCond(doc, c)
		if m.Or && hit {
			return true
		}
		if !m.Or && !hit {
			return false
		}
	}
	return !m.Or || len(m.Conds) == 0
}

func matchCond(doc storage.Doc, c query.Cond) bool {
	val, present := getPath(doc, c.Field)
	switch c.Op {
	case query.OpEq:
		return present && equalValue(val, c.Value)
	case query.OpNe:
		// 与 $ne 一致：字段缺失也算不等
		return !present || !equalValue(val, c.Value)
	case query.OpRegex:
		str, ok := val.(string)
		if !ok {
			return false
		}
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false
		}
		return re.MatchString(str)
	default:
		return false
	}
}

// applyLookup 关联查询；本地值缺失时产出空数组，
// 与 $lookup 对悬空 id 的行为一致
func (s *Store) applyLookup(docs []storage.Doc, l query.Lookup) []storage.Doc {
	foreign := s.data[l.From]
	for _, doc := range docs {
		var matched []any
		if local, ok := getPath(doc, l.LocalField); ok && local != nil {
			for _, id := range s.order[l.From] {
				other, ok := foreign[id]
				if !ok {
					continue
				}
				if fv, ok := getPath(other, l.ForeignField); ok && equalValue(fv, local) {
					matched = append(matched, copyDoc(other))
				}
			}
		}
		if matched == nil {
			matched = []any{}
		}
		setPath(doc, l.As, matched)
	}
	return docs
}

func applyUnwind(docs []storage.Doc, u query.Unwind) []storage.Doc {
	var out []storage.Doc
	for _, doc := range docs {
		val, ok := getPath(doc, u.Path)
		arr, isArr := val.([]any)
		switch {
		case !ok || (isArr && len(arr) == 0):
			if u.PreserveNull {
				deletePath(doc, u.Path)
				out = append(out, doc)
			}
		case isArr:
			for _, elem := range arr {
				next := copyDoc(doc)
				setPath(next, u.Path, copyValue(elem))
				out = append(out, next)
			}
		default:
			out = append(out, doc)
		}
	}
	return out
}

func applySort(docs []storage.Doc, st query.Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := getPath(docs[i], st.Field)
		b, _ := getPath(docs[j], st.Field)
		less := compareValue(a, b) < 0
		if st.Desc {
			return !less && compareValue(a, b) != 0
		}
		return less
	})
}

func applySample(docs []storage.Doc, size int) []storage.Doc {
	if size >= len(docs) {
		return docs
	}
	idx := rand.Perm(len(docs))[:size]
	out := make([]storage.Doc, 0, size)
	for _, i := range idx {
		out = append(out, docs[i])
	}
	return out
}

// ============================================================================
// 值与路径辅助
// ============================================================================

func equalValue(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func compareValue(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}
	// 缺失字段排最前
	if a == nil && b != nil {
		return -1
	}
	if a != nil && b == nil {
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// getPath 按点号路径取值；第二返回值表示路径是否存在
func getPath(doc storage.Doc, path string) (any, bool) {
	cur := any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath 按点号路径写值，中间层不存在时创建
func setPath(doc storage.Doc, path string, val any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = val
}

func deletePath(doc storage.Doc, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func copyDoc(doc storage.Doc) storage.Doc {
	out := make(storage.Doc, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyDoc(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyValue(elem)
		}
		return out
	default:
		return v
	}
}

package query

import (
	"fmt"
	"regexp"
	"sort"

	"catalog-admin/internal/shared/model"
	"catalog-admin/internal/shared/registry"
)

// InvalidFilterError 未声明的过滤字段或非法的分页参数
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Field, e.Reason)
}

// Params 已验证的请求级查询条件
type Params struct {
	From  int64 // 偏移量，0 = 从头
	Limit int64 // 0 = 不限制

	Term    string            // 自由文本搜索词，空 = 不过滤
	Filters map[string]string // 等值过滤：参数名 → id

	Sample int // >0 时随机抽样，与 From/Limit/排序互斥，优先生效

	SortField string // 空 = 资源默认排序字段
	SortAsc   bool   // 默认降序
}

// Compiler 把 Params 编译为 Plan
type Compiler struct {
	reg *registry.Registry
}

// NewCompiler 创建编译器
func NewCompiler(reg *registry.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Compile 编译查询
//
// 固定的 Stage 顺序：
//  1. status != D
//  2. 关系展开（等值过滤可能引用展开后的路径，必须在前）
//  3. 等值过滤
//  4. 搜索词（对声明的搜索字段做大小写不敏感 OR 匹配）
//  5. 隐藏字段剥离
//  6. Count 变体到此为止；Data 变体继续：排序或抽样 → skip → limit
func (c *Compiler) Compile(resource string, p Params) (Plan, error) {
	res, ok := c.reg.Get(resource)
	if !ok {
		return Plan{}, fmt.Errorf("query: unknown resource %q", resource)
	}
	if p.From < 0 {
		return Plan{}, &InvalidFilterError{Field: "from", Reason: "must be non-negative"}
	}
	if p.Limit < 0 {
		return Plan{}, &InvalidFilterError{Field: "limit", Reason: "must be positive"}
	}

	base := Pipeline{
		Match{Conds: []Cond{{Field: "status", Op: OpNe, Value: string(model.StatusDeleted)}}},
	}
	base = append(base, Expand(c.reg, res)...)

	// 等值过滤，未声明的参数直接拒绝而不是静默忽略
	for _, param := range sortedKeys(p.Filters) {
		path, ok := res.FilterPath(param)
		if !ok {
			return Plan{}, &InvalidFilterError{Field: param, Reason: "not declared for resource " + resource}
		}
		base = append(base, Match{Conds: []Cond{{Field: path, Op: OpEq, Value: p.Filters[param]}}})
	}

	if p.Term != "" {
		escaped := regexp.QuoteMeta(p.Term)
		conds := make([]Cond, 0, len(res.SearchFields))
		for _, field := range res.SearchFields {
			conds = append(conds, Cond{Field: field, Op: OpRegex, Value: escaped})
		}
		base = append(base, Match{Or: true, Conds: conds})
	}

	if fields := c.hiddenFields(res); len(fields) > 0 {
		base = append(base, Unset{Fields: fields})
	}

	count := make(Pipeline, len(base), len(base)+1)
	copy(count, base)
	count = append(count, Count{})

	data := base
	if p.Sample > 0 {
		// 抽样替代排序与分页
		data = append(data, Sample{Size: p.Sample})
	} else {
		field, desc := p.SortField, !p.SortAsc
		if field == "" {
			field, desc = res.DefaultSort, true
		}
		data = append(data, Sort{Field: field, Desc: desc})
		if p.From > 0 {
			data = append(data, Skip{N: p.From})
		}
		if p.Limit > 0 {
			data = append(data, Limit{N: p.Limit})
		}
	}

	return Plan{Data: data, Count: count}, nil
}

// ByID 单条查询管道：按 _id 匹配并做关系展开。
// 不排除 D 状态，软删除后的记录仍可按 id 取回。
func (c *Compiler) ByID(resource, id string) (Pipeline, error) {
	res, ok := c.reg.Get(resource)
	if !ok {
		return nil, fmt.Errorf("query: unknown resource %q", resource)
	}
	p := Pipeline{Match{Conds: []Cond{{Field: "_id", Op: OpEq, Value: id}}}}
	p = append(p, Expand(c.reg, res)...)
	if fields := c.hiddenFields(res); len(fields) > 0 {
		p = append(p, Unset{Fields: fields})
	}
	return p, nil
}

// hiddenFields 收集资源自身以及展开后关联文档上需要剥离的字段，
// 例如 post.author 展开出的用户文档里的 password
func (c *Compiler) hiddenFields(res *registry.Resource) []string {
	fields := append([]string(nil), res.Hidden...)
	for _, rel := range res.Relations {
		fields = append(fields, c.relationHidden(rel.Field, rel)...)
	}
	return fields
}

func (c *Compiler) relationHidden(prefix string, rel registry.Relation) []string {
	var fields []string
	target, ok := c.reg.Get(rel.Target)
	if !ok {
		return nil // New() 已校验，不会发生
	}
	for _, h := range target.Hidden {
		fields = append(fields, prefix+"."+h)
	}
	if rel.Nested != nil {
		fields = append(fields, c.relationHidden(prefix+"."+rel.Nested.Field, *rel.Nested)...)
	}
	return fields
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package registry 资源模式注册表
//
// 每个资源通过声明式描述符注册：必填字段及校验规则、关系字段及
// 展开深度、默认排序、可搜索字段、可过滤字段、受保护字段等。
// 注册表在进程启动时构建一次，之后只读，请求处理期间不会被修改。
package registry

import (
	"fmt"
	"sort"
)

// Field 资源字段及其校验规则
type Field struct {
	Name string
	Rule string // go-playground/validator 规则，空 = 不校验
}

// Relation 关系字段声明
//
// Field 为本地存放关联 id 的字段名，Nested 声明展开后的文档上
// 需要继续展开的下一级关系（如 product.subcategory.category）。
type Relation struct {
	Field    string
	Target   string
	Nested   *Relation
	Required bool // 创建时必须提供，默认可选
}

// Filter 等值过滤声明：查询参数名 → 展开后文档上的路径
type Filter struct {
	Param string
	Path  string
}

// Resource 资源描述符
type Resource struct {
	Name       string // 复数资源名，同时作为列表响应的 key
	Singular   string // 单数形式，作为单条响应的 key 和 id 前缀
	Collection string // MongoDB collection 名

	Fields       []Field
	Relations    []Relation
	DefaultSort  string   // 默认排序字段（降序）
	SearchFields []string // 自由文本搜索命中的字段
	Filters      []Filter

	Protected    []string // 更新时从 payload 中静默剥离的字段
	Hidden       []string // 响应中永不出现的字段（如 password）
	FileFields   []string // 携带文件名的路径，变更时触发孤儿文件事件
	CreatedField string         // 创建时写入 epoch millis 的字段
	ActorField   string         // 创建时写入操作者 id 的字段
	Unique       []string       // 唯一约束字段
	Defaults     map[string]any // 创建时缺省填充的字段值

	// PrepareCreate 创建前的最后一步处理（如密码散列），可为 nil
	PrepareCreate func(doc map[string]any) error
}

// FilterPath 返回查询参数对应的文档路径，未声明时 ok=false
func (r *Resource) FilterPath(param string) (string, bool) {
	for _, f := range r.Filters {
		if f.Param == param {
			return f.Path, true
		}
	}
	return "", false
}

// Registry 只读资源注册表
type Registry struct {
	resources map[string]*Resource
}

// New 构建注册表并校验配置
//
// 关系指向未注册的资源属于配置错误，直接返回 error，
// 调用方应在启动阶段 fatal。
func New(resources ...*Resource) (*Registry, error) {
	reg := &Registry{resources: make(map[string]*Resource, len(resources))}
	for _, res := range resources {
		if res.Name == "" || res.Singular == "" || res.Collection == "" {
			return nil, fmt.Errorf("registry: resource %q missing name/singular/collection", res.Name)
		}
		if res.DefaultSort == "" {
			return nil, fmt.Errorf("registry: resource %q has no default sort field", res.Name)
		}
		if _, dup := reg.resources[res.Name]; dup {
			return nil, fmt.Errorf("registry: resource %q registered twice", res.Name)
		}
		reg.resources[res.Name] = res
	}

	// 关系目标必须已注册
	for _, res := range reg.resources {
		for _, rel := range res.Relations {
			if err := reg.checkRelation(res.Name, rel); err != nil {
				return nil, err
			}
		}
		for _, f := range res.Filters {
			if f.Param == "" || f.Path == "" {
				return nil, fmt.Errorf("registry: resource %q has malformed filter %+v", res.Name, f)
			}
		}
	}
	return reg, nil
}

func (reg *Registry) checkRelation(owner string, rel Relation) error {
	if rel.Field == "" {
		return fmt.Errorf("registry: resource %q has relation without field", owner)
	}
	if _, ok := reg.resources[rel.Target]; !ok {
		return fmt.Errorf("registry: resource %q relation %q targets unknown resource %q",
			owner, rel.Field, rel.Target)
	}
	if rel.Nested != nil {
		return reg.checkRelation(owner, *rel.Nested)
	}
	return nil
}

// Get 按资源名查找描述符
func (reg *Registry) Get(name string) (*Resource, bool) {
	res, ok := reg.resources[name]
	return res, ok
}

// All 返回全部资源，按名称排序
func (reg *Registry) All() []*Resource {
	out := make([]*Resource, 0, len(reg.resources))
	for _, res := range reg.resources {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

package query

import "catalog-admin/internal/shared/registry"

// Expand 为资源声明的全部关系生成展开 Stage
//
// 每个关系是一对 Lookup+Unwind：按本地字段里的 id 去目标集合查
// "_id"，命中的文档原地替换裸 id。二级关系（product→subcategory
// →category）必须作为两次串联的 Lookup 执行，第二次的 LocalField
// 位于第一次展开出的文档内部。
//
// Unwind 开启 PreserveNull：悬空 id（目标文档已不存在）展开为
// 字段缺失而不是整条文档被丢弃，装配阶段再补 null。
func Expand(reg *registry.Registry, res *registry.Resource) Pipeline {
	var p Pipeline
	for _, rel := range res.Relations {
		p = append(p, expandOne(reg, rel.Field, rel)...)
	}
	return p
}

func expandOne(reg *registry.Registry, path string, rel registry.Relation) Pipeline {
	target, ok := reg.Get(rel.Target)
	if !ok {
		return nil // New() 已校验，不会发生
	}
	p := Pipeline{
		Lookup{From: target.Collection, LocalField: path, ForeignField: "_id", As: path},
		Unwind{Path: path, PreserveNull: true},
	}
	if rel.Nested != nil {
		p = append(p, expandOne(reg, path+"."+rel.Nested.Field, *rel.Nested)...)
	}
	return p
}

// RelationPaths 返回展开后所有关系字段的路径（含嵌套），声明序。
// 响应装配用它把缺失的关系字段补成显式 null；父路径先于嵌套路径，
// 父关系悬空时嵌套路径自然不可达
func RelationPaths(res *registry.Resource) []string {
	var paths []string
	for _, rel := range res.Relations {
		paths = append(paths, rel.Field)
		if rel.Nested != nil {
			paths = append(paths, rel.Field+"."+rel.Nested.Field)
		}
	}
	return paths
}

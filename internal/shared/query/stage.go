// Package query 查询管道编译
//
// 把请求级条件（分页、搜索词、等值过滤、抽样、排序）编译为一个
// 有序、不可变的抽象 Stage 序列，由存储驱动负责解释执行。
// Stage 本身不依赖任何数据库，mongostore 将其翻译为聚合管道，
// memstore 在内存中逐段解释，两者语义一致。
package query

// Op 匹配条件运算符
type Op string

const (
	OpEq    Op = "eq"
	OpNe    Op = "ne"
	OpRegex Op = "regex" // 大小写不敏感的子串匹配，值为已转义的正则
)

// Cond 单个匹配条件，Field 支持点号路径（如 subcategory.category._id）
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Stage 管道中的一个抽象步骤
type Stage interface{ stage() }

// Match 过滤：Or=false 时条件取 AND，Or=true 时取 OR
type Match struct {
	Or    bool
	Conds []Cond
}

// Lookup 关联查询：用 LocalField 的值在 From 集合按 ForeignField
// 匹配，结果数组写入 As
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
}

// Unwind 把 Lookup 产出的数组展开为单个文档；
// PreserveNull 时空数组不丢弃文档（悬空关系 → 字段缺失）
type Unwind struct {
	Path         string
	PreserveNull bool
}

// Sort 排序
type Sort struct {
	Field string
	Desc  bool
}

// Sample 从过滤后的结果集随机抽取 Size 条，替代排序与分页
type Sample struct {
	Size int
}

// Skip 跳过前 N 条
type Skip struct {
	N int64
}

// Limit 最多返回 N 条
type Limit struct {
	N int64
}

// Count 终结步骤：输出匹配文档总数
type Count struct{}

// Unset 从输出文档中移除字段（如 password）
type Unset struct {
	Fields []string
}

func (Match) stage()  {}
func (Lookup) stage() {}
func (Unwind) stage() {}
func (Sort) stage()   {}
func (Sample) stage() {}
func (Skip) stage()   {}
func (Limit) stage()  {}
func (Count) stage()  {}
func (Unset) stage()  {}

// Pipeline 有序的 Stage 序列
type Pipeline []Stage

// Plan 同一查询的两个派生管道：Data 用于取页，Count 用于计数。
// 两者共享同一前缀，Count 不含分页/抽样，保证 total 与页无关。
type Plan struct {
	Data  Pipeline
	Count Pipeline
}

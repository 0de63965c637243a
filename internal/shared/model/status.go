// Package model 目录后台的领域类型
//
// 资源的字段结构由 registry 的描述符声明，文档本身以无模式的
// map 形态流经引擎；这里只承载跨资源共享的值类型。
// 所有资源共用统一的生命周期状态字段 status（A/I/D）。
package model

// Status 记录生命周期状态
type Status string

const (
	StatusActive   Status = "A" // 活跃
	StatusInactive Status = "I" // 停用
	StatusDeleted  Status = "D" // 逻辑删除，永不物理删除
)

// Toggle 在 A/I 之间翻转；D 状态不参与切换，原样返回
func (s Status) Toggle() Status {
	switch s {
	case StatusActive:
		return StatusInactive
	case StatusInactive:
		return StatusActive
	default:
		return s
	}
}

// Valid 是否为合法状态值
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusDeleted
}

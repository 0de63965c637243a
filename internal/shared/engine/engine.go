// Package engine 资源查询与生命周期引擎
//
// 每个操作都是 (注册表, 请求参数, 存储句柄) 的纯函数：进程内没有
// 可变共享状态，注册表启动后只读，可安全并发调用。阻塞只发生在
// 存储 IO 上，取消完全委托给 ctx。
package engine

import (
	"github.com/go-playground/validator/v10"

	"catalog-admin/internal/shared/eventbus"
	"catalog-admin/internal/shared/query"
	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage"
)

// Engine 资源引擎
type Engine struct {
	reg      *registry.Registry
	store    storage.Store
	bus      eventbus.Publisher
	compiler *query.Compiler
	validate *validator.Validate
}

// New 创建引擎
func New(reg *registry.Registry, store storage.Store, bus eventbus.Publisher) *Engine {
	if bus == nil {
		bus = eventbus.NewNoOpPublisher()
	}
	return &Engine{
		reg:      reg,
		store:    store,
		bus:      bus,
		compiler: query.NewCompiler(reg),
		validate: validator.New(),
	}
}

// Registry 返回只读注册表（HTTP 层注册路由用）
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Package storage 定义存储协作方的抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 引擎只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/（生产）、memstore/（测试与开发）
//   - 初始化时通过依赖注入传入实现
//
// 存储方负责解释执行 query.Pipeline 的全部 Stage 种类
// （Match/Lookup/Unwind/Sort/Sample/Skip/Limit/Count/Unset）。
// 单文档写入是原子的；本层不提供也不需要多文档事务。
package storage

import (
	"context"

	"catalog-admin/internal/shared/query"
)

// Doc 无模式文档，引擎以此形态处理所有资源
type Doc = map[string]any

// Store 存储协作方接口
type Store interface {
	// FindPage 执行管道并返回结果文档（含分页/抽样 Stage）
	FindPage(ctx context.Context, collection string, p query.Pipeline) ([]Doc, error)

	// Count 执行以 Count Stage 结尾的管道并返回匹配总数
	Count(ctx context.Context, collection string, p query.Pipeline) (int64, error)

	// Insert 插入文档，doc 必须带 _id；唯一约束冲突返回 ErrDuplicate
	Insert(ctx context.Context, collection string, doc Doc) (string, error)

	// UpdateByID 按 _id 对文档做 $set 式部分更新并返回更新后的文档；
	// 不存在返回 ErrNotFound
	UpdateByID(ctx context.Context, collection, id string, patch Doc) (Doc, error)

	// FindByID 按 _id 查找；不存在返回 (nil, nil)
	FindByID(ctx context.Context, collection, id string) (Doc, error)

	Close() error
}

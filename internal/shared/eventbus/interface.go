// Package eventbus 孤儿文件事件总线
//
// 更新或删除操作使某些文件引用（商品图、封面图）失去归属时，
// 生命周期管理只负责发布事件；真正的文件清理由外部协作方
// （objstore 的清理消费者）异步完成，本进程绝不直接做文件 IO。
package eventbus

import (
	"context"
	"time"
)

// FileRemoval 一次操作产生的孤儿文件集合
type FileRemoval struct {
	Resource  string    `json:"resource"`
	ID        string    `json:"id"`
	Filenames []string  `json:"filenames"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher 事件发布方（引擎侧）
type Publisher interface {
	PublishFileRemoval(ctx context.Context, ev *FileRemoval) error
}

// Subscriber 事件订阅方（清理消费者侧）
type Subscriber interface {
	// SubscribeFileRemovals 返回事件通道，ctx 取消后通道关闭
	SubscribeFileRemovals(ctx context.Context) (<-chan *FileRemoval, error)
}

// MaxStreamLength 事件流的近似保留上限
const MaxStreamLength = 10000

package eventbus

import (
	"context"
	"sync"
)

// NoOpPublisher 空操作实现，用于未配置 Redis 的场合
type NoOpPublisher struct{}

// NewNoOpPublisher 创建 NoOpPublisher
func NewNoOpPublisher() *NoOpPublisher { return &NoOpPublisher{} }

// PublishFileRemoval 丢弃事件
func (*NoOpPublisher) PublishFileRemoval(context.Context, *FileRemoval) error { return nil }

// Recorder 记录全部事件，用于测试断言
type Recorder struct {
	mu     sync.Mutex
	events []*FileRemoval
}

// NewRecorder 创建 Recorder
func NewRecorder() *Recorder { return &Recorder{} }

// PublishFileRemoval 追加事件
func (r *Recorder) PublishFileRemoval(_ context.Context, ev *FileRemoval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events 返回已记录事件的副本
func (r *Recorder) Events() []*FileRemoval {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FileRemoval(nil), r.events...)
}

var _ Publisher = (*NoOpPublisher)(nil)
var _ Publisher = (*Recorder)(nil)

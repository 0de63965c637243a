package objstore

import (
	"context"
	"fmt"
	"log"

	"catalog-admin/internal/shared/eventbus"
)

// remover 清理消费者需要的对象操作子集
type remover interface {
	Exists(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}

// Cleaner 孤儿文件清理消费者
//
// 订阅事件总线上的 FileRemoval 事件，把对应对象从存储桶删除。
// 删除失败只记录日志：事件流有保留上限，清理是尽力而为的。
type Cleaner struct {
	sub     eventbus.Subscriber
	objects remover
}

// NewCleaner 创建清理消费者
func NewCleaner(sub eventbus.Subscriber, objects remover) *Cleaner {
	return &Cleaner{sub: sub, objects: objects}
}

// ObjectKey 资源文件在桶内的路径，如 img/product/xxx.jpg
func ObjectKey(resource, filename string) string {
	return fmt.Sprintf("img/%s/%s", resource, filename)
}

// Run 消费事件直到 ctx 取消
func (c *Cleaner) Run(ctx context.Context) error {
	ch, err := c.sub.SubscribeFileRemovals(ctx)
	if err != nil {
		return err
	}
	for ev := range ch {
		for _, filename := range ev.Filenames {
			if filename == "" {
				continue
			}
			key := ObjectKey(ev.Resource, filename)
			ok, err := c.objects.Exists(ctx, key)
			if err != nil {
				log.Printf("[Cleaner] Stat %s: %v", key, err)
				continue
			}
			if !ok {
				continue
			}
			if err := c.objects.Remove(ctx, key); err != nil {
				log.Printf("[Cleaner] Remove %s: %v", key, err)
				continue
			}
			log.Printf("[Cleaner] Removed orphaned file %s (%s/%s)", key, ev.Resource, ev.ID)
		}
	}
	return ctx.Err()
}

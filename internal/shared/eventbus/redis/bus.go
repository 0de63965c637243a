// Package redis 基于 Redis Stream 的事件总线实现
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog-admin/internal/shared/eventbus"
)

// KeyFileRemovals 孤儿文件事件流
const KeyFileRemovals = "catalog:file_removals"

// Bus Redis Stream 事件总线
type Bus struct {
	client *redis.Client
}

// NewBus 创建事件总线
//
// url: Redis 连接串，如 "redis://localhost:6379/0"
func NewBus(url string) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("eventbus: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("eventbus: ping failed: %w", err)
	}
	return &Bus{client: client}, nil
}

// Close 关闭连接
func (b *Bus) Close() error { return b.client.Close() }

// PublishFileRemoval 发布孤儿文件事件
func (b *Bus) PublishFileRemoval(ctx context.Context, ev *eventbus.FileRemoval) error {
	files, err := json.Marshal(ev.Filenames)
	if err != nil {
		return fmt.Errorf("eventbus: marshal filenames: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: KeyFileRemovals,
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"resource":  ev.Resource,
			"id":        ev.ID,
			"filenames": string(files),
			"timestamp": ev.Timestamp.Format(time.RFC3339Nano),
		},
	}

	seq, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("eventbus: publish file removal: %w", err)
	}
	log.Printf("[EventBus] Published file removal: %s/%s seq=%s files=%d", ev.Resource, ev.ID, seq, len(ev.Filenames))
	return nil
}

// SubscribeFileRemovals 阻塞读取事件流，ctx 取消后通道关闭
func (b *Bus) SubscribeFileRemovals(ctx context.Context) (<-chan *eventbus.FileRemoval, error) {
	ch := make(chan *eventbus.FileRemoval, 100)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := b.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{KeyFileRemovals, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				log.Printf("[EventBus] Read error: %v", err)
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					ev := decodeRemoval(msg)
					if ev == nil {
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

func decodeRemoval(msg redis.XMessage) *eventbus.FileRemoval {
	ev := &eventbus.FileRemoval{}
	ev.Resource, _ = msg.Values["resource"].(string)
	ev.ID, _ = msg.Values["id"].(string)
	if files, ok := msg.Values["filenames"].(string); ok {
		if err := json.Unmarshal([]byte(files), &ev.Filenames); err != nil {
			log.Printf("[EventBus] Bad filenames payload in %s: %v", msg.ID, err)
			return nil
		}
	}
	if ts, ok := msg.Values["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = t
		}
	}
	return ev
}

var _ eventbus.Publisher = (*Bus)(nil)
var _ eventbus.Subscriber = (*Bus)(nil)

// Package mongostore 实现基于 MongoDB 的 storage.Store
//
// 使用 mongo-go-driver v2，query.Pipeline 被翻译为聚合管道执行。
// 所有 Collection 名称来自 registry，索引在 ensureIndexes 中统一管理。
package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"catalog-admin/internal/shared/registry"
)

// Store 实现 storage.Store 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "catalog_admin"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	// 验证连接
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{client: client, db: db}

	// 创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		log.Printf("WARNING: mongostore: ensure indexes failed: %v", err)
	}

	return s, nil
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// users
		{registry.ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		{registry.ColUsers, bson.D{{Key: "status", Value: 1}}, false},
		{registry.ColUsers, bson.D{{Key: "role", Value: 1}}, false},

		// posts
		{registry.ColPosts, bson.D{{Key: "status", Value: 1}}, false},
		{registry.ColPosts, bson.D{{Key: "uploadDatetime", Value: -1}}, false},
		{registry.ColPosts, bson.D{{Key: "author", Value: 1}}, false},

		// products
		{registry.ColProducts, bson.D{{Key: "status", Value: 1}}, false},
		{registry.ColProducts, bson.D{{Key: "uploadDate", Value: -1}}, false},
		{registry.ColProducts, bson.D{{Key: "subcategory", Value: 1}}, false},

		// subcategories
		{registry.ColSubcategories, bson.D{{Key: "status", Value: 1}}, false},
		{registry.ColSubcategories, bson.D{{Key: "category", Value: 1}}, false},

		// categories / roles
		{registry.ColCategories, bson.D{{Key: "status", Value: 1}}, false},
		{registry.ColRoles, bson.D{{Key: "status", Value: 1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}

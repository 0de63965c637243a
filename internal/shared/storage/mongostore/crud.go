package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"catalog-admin/internal/shared/query"
	"catalog-admin/internal/shared/storage"
)

// wrapError 将 MongoDB 错误转换为领域错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

// FindPage 执行聚合管道并返回结果文档
func (s *Store) FindPage(ctx context.Context, collection string, p query.Pipeline) ([]storage.Doc, error) {
	pipe, err := translate(p)
	if err != nil {
		return nil, err
	}
	cursor, err := s.col(collection).Aggregate(ctx, pipe)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	docs := []storage.Doc{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, normalizeDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Count 执行以 $count 结尾的聚合管道
// 无匹配文档时 $count 不产出任何文档，视为 0
func (s *Store) Count(ctx context.Context, collection string, p query.Pipeline) (int64, error) {
	docs, err := s.FindPage(ctx, collection, p)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	switch n := docs[0][countField].(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, nil
	}
}

// Insert 插入文档
func (s *Store) Insert(ctx context.Context, collection string, doc storage.Doc) (string, error) {
	if _, err := s.col(collection).InsertOne(ctx, bson.M(doc)); err != nil {
		return "", wrapError(err)
	}
	id, _ := doc["_id"].(string)
	return id, nil
}

// UpdateByID 按 _id 做 $set 式部分更新并返回更新后的文档
func (s *Store) UpdateByID(ctx context.Context, collection, id string, patch storage.Doc) (storage.Doc, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := s.col(collection).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.M(patch)}},
		opts,
	)

	var doc bson.M
	if err := res.Decode(&doc); err != nil {
		return nil, wrapError(err)
	}
	return normalizeDoc(doc), nil
}

// FindByID 按 _id 查找，不存在时返回 (nil, nil)
// 与 memstore 的行为保持一致
func (s *Store) FindByID(ctx context.Context, collection, id string) (storage.Doc, error) {
	var doc bson.M
	err := s.col(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	return normalizeDoc(doc), nil
}

// Compile-time interface check
var _ storage.Store = (*Store)(nil)

package storage

import "errors"

var (
	// ErrNotFound 文档不存在
	// 替代 mongo.ErrNoDocuments
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate 唯一键冲突（如重复 email）
	ErrDuplicate = errors.New("duplicate: document already exists")
)

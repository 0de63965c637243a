package resource

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"catalog-admin/internal/shared/engine"
	"catalog-admin/internal/shared/query"
	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage"
)

// errorDetail 错误分类信息，随 success:false 一起返回
type errorDetail struct {
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeList 列表响应：{success, total, <plural>: [...]}
func writeList(w http.ResponseWriter, res *registry.Resource, docs []storage.Doc, total int64) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"total":   total,
		res.Name:  docs,
	})
}

// writeOne 单条响应：{success, <singular>: {...}}
func writeOne(w http.ResponseWriter, status int, res *registry.Resource, doc storage.Doc) {
	writeJSON(w, status, map[string]interface{}{
		"success":    true,
		res.Singular: doc,
	})
}

// writeFailure 按错误类型映射状态码并写出 success:false 信封
//
// ValidationError / InvalidFilterError → 400
// NotFound → 404
// StorageError 及其余 → 500
func writeFailure(w http.ResponseWriter, err error) {
	var (
		ve *engine.ValidationError
		fe *query.InvalidFilterError
		se *engine.StorageError
	)

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error(), errorDetail{Kind: "validation", Field: ve.Field})
	case errors.As(err, &fe):
		writeError(w, http.StatusBadRequest, fe.Error(), errorDetail{Kind: "invalid_filter", Field: fe.Field})
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", errorDetail{Kind: "not_found"})
	case errors.As(err, &se):
		log.Printf("[API] Storage error: %v", err)
		writeError(w, http.StatusInternalServerError, "storage failure", errorDetail{Kind: "storage"})
	default:
		log.Printf("[API] Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", errorDetail{Kind: "internal"})
	}
}

// writeError 错误信封：{success:false, message, error:{kind,field}}
func writeError(w http.ResponseWriter, status int, message string, detail errorDetail) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
		"error":   detail,
	})
}

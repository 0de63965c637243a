// Package resource 资源通用 HTTP 处理
//
// 所有资源（users/roles/posts/products/subcategories/categories）共用
// 同一组处理函数，行为差异全部来自注册表里的资源描述符。路由按
// 注册表在启动时展开，请求处理期间没有任何按资源分支的代码。
package resource

import (
	"encoding/json"
	"net/http"

	"catalog-admin/internal/apiserver/auth"
	"catalog-admin/internal/shared/engine"
	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage"
)

// Handler 资源通用处理器
type Handler struct {
	eng *engine.Engine
}

// NewHandler 创建资源处理器
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

// RegisterRoutes 按注册表展开全部资源路由
//
// 读操作公开，写操作经 requireAuth 包装。
func (h *Handler) RegisterRoutes(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	for _, res := range h.eng.Registry().All() {
		res := res
		base := "/api/v1/" + res.Name

		mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
			h.list(w, r, res)
		})
		mux.HandleFunc("GET "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.get(w, r, res)
		})
		mux.HandleFunc("GET "+base+"/search/{term}", func(w http.ResponseWriter, r *http.Request) {
			h.search(w, r, res)
		})

		mux.Handle("POST "+base, requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.create(w, r, res)
		})))
		mux.Handle("PUT "+base+"/{id}", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.update(w, r, res)
		})))
		mux.Handle("PUT "+base+"/{id}/status", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.toggleStatus(w, r, res)
		})))
		mux.Handle("DELETE "+base+"/{id}", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.softDelete(w, r, res)
		})))
	}
}

// list 分页列表
// GET /api/v1/{resources}
func (h *Handler) list(w http.ResponseWriter, r *http.Request, res *registry.Resource) {
	params, err := parseParams(r, res)
	if err != nil {
		writeFailure(w, err)
		return
	}

	docs, total, err := h.eng.List(r.Context(), res.Name, params)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeList(w, res, docs, total)
}

// search 自由文本搜索，分页计数与 list 一致
// GET /api/v1/{resources}/search/{term}
func (h *Handler) search(w http.ResponseWriter, r *http.Request, res *registry.Resource) {
	params, err := parseParams(r, res)
	if err != nil {
		writeFailure(w, err)
		return
	}

	docs, total, err := h.eng.Search(r.Context(), res.Name, r.PathValue("term"), params)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeList(w, res, docs, total)
}

// get 按 id 取单条
// GET /api/v1/{resources}/{id}
func (h *Handler) get(w http.ResponseWriter, r *http.Request, res *registry.Resource) {
	doc, err := h.eng.GetByID(r.Context(), res.Name, r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeOne(w, http.StatusOK, res, doc)
}

// create 创建资源
// POST /api/v1/{resources}
func (h *Handler) create(w http.ResponseWriter, r *http.Request, res *registry.Resource) {
	var payload storage.Doc
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeFailure(w, &engine.ValidationError{Reason: "invalid request body"})
		return
	}

	actorID := ""
	if actor := auth.GetActor(r.Context()); actor != nil {
		actorID = actor.ID
	}

	doc, err := h.eng.Create(r.Context(), res.Name, payload, actorID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeOne(w, http.StatusCreated, res, doc)
}

// update 部分更新
// PUT /api/v1/{resources}/{id}
func (h *Handler) update(w http.ResponseWriter, r *http.Request, res *registry.Resource) {
	var payload storage.Doc
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeFailure(w, &engine.ValidationError{Reason: "invalid request body"})
		return
	}

	doc, err := h.eng.Update(r.Context(), res.Name, r.PathValue("id"), payload)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeOne(w, http.StatusOK, res, doc)
}

// softDelete 逻辑删除（status 置 D）
// DELETE /api/v1/{resources}/{id}
func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request, res *registry.Resource) {
	doc, err := h.eng.SoftDelete(r.Context(), res.Name, r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeOne(w, http.StatusOK, res, doc)
}

// toggleStatus A/I 状态翻转
// PUT /api/v1/{resources}/{id}/status
func (h *Handler) toggleStatus(w http.ResponseWriter, r *http.Request, res *registry.Resource) {
	doc, err := h.eng.ToggleStatus(r.Context(), res.Name, r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeOne(w, http.StatusOK, res, doc)
}

// Package server HTTP 服务装配：路由、指标中间件、健康检查
package server

import (
	"encoding/json"
	"net/http"

	"catalog-admin/internal/apiserver/auth"
	"catalog-admin/internal/apiserver/resource"
	"catalog-admin/internal/shared/engine"
)

// Server API Server 顶层装配
type Server struct {
	mux     *http.ServeMux
	metrics *Metrics
}

// New 创建 Server：按注册表展开资源路由，写操作挂认证中间件
func New(eng *engine.Engine, authCfg auth.Config) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		metrics: NewMetrics("catalog"),
	}

	resource.NewHandler(eng).RegisterRoutes(s.mux, auth.Require(authCfg))

	s.mux.HandleFunc("GET /healthz", s.health)
	s.mux.Handle("GET /metrics", MetricsHandler())

	return s
}

// Handler 返回包装了指标中间件的根 handler
func (s *Server) Handler() http.Handler {
	return s.metrics.Middleware(s.mux)
}

// health 健康检查接口
//
// 路由: GET /healthz
// 用于负载均衡器和监控系统检查服务状态。
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

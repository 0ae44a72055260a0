// Package server 提供 HTTP API 处理器
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//   - GET /metrics - Prometheus 指标
//
// 活跃追踪 (Activity):
//   - POST   /api/v1/activity/events - 上报活跃事件（入站消息 / 机器人回复）
//   - GET    /api/v1/activity/sessions - 列出全部活跃会话
//   - GET    /api/v1/activity/sessions/{adapter}/{scene_type}/{scene_id} - 查询会话活跃
//   - DELETE /api/v1/activity/sessions/{adapter}/{scene_type}/{scene_id} - 管理性删除
package server

import (
	"encoding/json"
	"net/http"

	"activity-tracker/internal/hooks"
	"activity-tracker/internal/metrics"
	"activity-tracker/internal/tracker"
	"activity-tracker/pkg/logging"
)

// Handler API 处理器
type Handler struct {
	tracker  *tracker.Tracker
	recorder *hooks.Recorder
	metrics  *metrics.Metrics
	log      *logging.Logger
}

// NewHandler 创建 Handler 实例
func NewHandler(t *tracker.Tracker, recorder *hooks.Recorder, m *metrics.Metrics, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Default("server")
	}
	return &Handler{tracker: t, recorder: recorder, metrics: m, log: log}
}

// Router 返回配置好的 HTTP 路由
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/activity/events", h.PostEvent)
	mux.HandleFunc("GET /api/v1/activity/sessions", h.ListSessions)
	mux.HandleFunc("GET /api/v1/activity/sessions/{adapter}/{scene_type}/{scene_id}", h.QuerySession)
	mux.HandleFunc("DELETE /api/v1/activity/sessions/{adapter}/{scene_type}/{scene_id}", h.RemoveSession)

	if h.metrics != nil {
		return h.metrics.Middleware(mux)
	}
	return mux
}

// Health 健康检查
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON 写出 JSON 响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError 写出错误响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

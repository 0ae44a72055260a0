// 活跃追踪接口
package server

import (
	"encoding/json"
	"net/http"

	"activity-tracker/internal/model"
)

// eventRequest 活跃事件上报体
type eventRequest struct {
	Adapter   string `json:"adapter"`
	SceneType string `json:"scene_type"`
	SceneID   string `json:"scene_id"`
	Bot       bool   `json:"bot"`
}

// sessionResponse 单会话查询响应
type sessionResponse struct {
	Active  bool                  `json:"active"`
	Message string                `json:"message,omitempty"`
	Session *model.ActivityRecord `json:"session,omitempty"`
}

// listResponse 会话列表响应
type listResponse struct {
	Total    int                     `json:"total"`
	Sessions []*model.ActivityRecord `json:"sessions"`
}

// PostEvent 上报一次活跃事件
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Adapter == "" || req.SceneType == "" || req.SceneID == "" {
		writeError(w, http.StatusBadRequest, "adapter, scene_type and scene_id are required")
		return
	}

	id := model.SessionIdentity{
		Adapter:   req.Adapter,
		SceneType: req.SceneType,
		SceneID:   req.SceneID,
	}
	if req.Bot {
		h.recorder.OnBotReply(r.Context(), id)
	} else {
		h.recorder.OnMessage(r.Context(), id)
	}

	writeJSON(w, http.StatusAccepted, map[string]bool{"recorded": true})
}

// ListSessions 列出全部活跃会话
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	records := h.tracker.ListActiveSessions(r.Context())
	if records == nil {
		records = []*model.ActivityRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{Total: len(records), Sessions: records})
}

// QuerySession 查询单个会话的活跃记录
//
// 无数据时返回显式的"不活跃"消息而不是空响应。
func (h *Handler) QuerySession(w http.ResponseWriter, r *http.Request) {
	rec := h.tracker.QueryActivity(r.Context(),
		r.PathValue("adapter"), r.PathValue("scene_type"), r.PathValue("scene_id"))
	if rec == nil {
		writeJSON(w, http.StatusNotFound, sessionResponse{
			Active:  false,
			Message: "session is not active",
		})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Active: true, Session: rec})
}

// RemoveSession 管理性删除：立即清掉会话键和机器人键
func (h *Handler) RemoveSession(w http.ResponseWriter, r *http.Request) {
	id := model.SessionIdentity{
		Adapter:   r.PathValue("adapter"),
		SceneType: r.PathValue("scene_type"),
		SceneID:   r.PathValue("scene_id"),
	}
	h.tracker.Remove(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

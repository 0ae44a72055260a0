// Package server HTTP 接口测试
package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-tracker/internal/hooks"
	"activity-tracker/internal/model"
	memorycache "activity-tracker/internal/shared/cache/memory"
	"activity-tracker/internal/tracker"
)

func newTestServer(t *testing.T) (*httptest.Server, *tracker.Tracker) {
	backend := memorycache.NewStore()
	t.Cleanup(func() { backend.Close() })

	trk := tracker.New(backend, 7*24*time.Hour, nil, nil)
	h := NewHandler(trk, hooks.NewRecorder(trk, nil), nil, nil)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, trk
}

func postEvent(t *testing.T, srv *httptest.Server, body string) *http.Response {
	resp, err := http.Post(srv.URL+"/api/v1/activity/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostEvent(t *testing.T) {
	srv, trk := newTestServer(t)

	resp := postEvent(t, srv, `{"adapter":"mock","scene_type":"group","scene_id":"123"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["recorded"])

	rec := trk.QueryActivity(t.Context(), "mock", "group", "123")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Count)
}

// TestPostEvent_Bot 机器人事件被记录但不增加计数
func TestPostEvent_Bot(t *testing.T) {
	srv, trk := newTestServer(t)

	postEvent(t, srv, `{"adapter":"mock","scene_type":"group","scene_id":"123"}`).Body.Close()
	resp := postEvent(t, srv, `{"adapter":"mock","scene_type":"group","scene_id":"123","bot":true}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	rec := trk.QueryActivity(t.Context(), "mock", "group", "123")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Count)
	assert.NotNil(t, rec.LastBotActivity)
}

func TestPostEvent_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing adapter", `{"scene_type":"group","scene_id":"123"}`},
		{"missing scene_type", `{"adapter":"mock","scene_id":"123"}`},
		{"missing scene_id", `{"adapter":"mock","scene_type":"group"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postEvent(t, srv, tc.body)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestQuerySession(t *testing.T) {
	srv, _ := newTestServer(t)

	postEvent(t, srv, `{"adapter":"mock","scene_type":"group","scene_id":"123"}`).Body.Close()
	postEvent(t, srv, `{"adapter":"mock","scene_type":"group","scene_id":"123"}`).Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/activity/sessions/mock/group/123")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Active  bool                  `json:"active"`
		Session *model.ActivityRecord `json:"session"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Active)
	require.NotNil(t, body.Session)
	assert.Equal(t, 2, body.Session.Count)
	assert.Equal(t, "mock", body.Session.Adapter)
}

// TestQuerySession_NotActive 无数据的会话返回显式的不活跃响应
func TestQuerySession_NotActive(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/activity/sessions/mock/group/999")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Active  bool   `json:"active"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Active)
	assert.Equal(t, "session is not active", body.Message)
}

func TestListSessions(t *testing.T) {
	srv, _ := newTestServer(t)

	postEvent(t, srv, `{"adapter":"mock","scene_type":"group","scene_id":"a"}`).Body.Close()
	postEvent(t, srv, `{"adapter":"mock","scene_type":"private","scene_id":"b"}`).Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/activity/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Total    int                     `json:"total"`
		Sessions []*model.ActivityRecord `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Total)
	assert.Len(t, body.Sessions, 2)
}

// TestListSessions_Empty 空缓存返回空列表而不是 null
func TestListSessions_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/activity/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Total    int             `json:"total"`
		Sessions json.RawMessage `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body.Total)
	assert.JSONEq(t, "[]", string(body.Sessions))
}

func TestRemoveSession(t *testing.T) {
	srv, trk := newTestServer(t)

	postEvent(t, srv, `{"adapter":"mock","scene_type":"group","scene_id":"123"}`).Body.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/activity/sessions/mock/group/123", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Nil(t, trk.QueryActivity(t.Context(), "mock", "group", "123"))

	// 删除不存在的会话同样返回 204
	req2, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/activity/sessions/mock/group/123", nil)
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp2.StatusCode)
}

// Package hooks 活跃事件钩子
//
// 入站消息和出站回复的记录入口。追踪失败绝不能影响消息处理主链路，
// 引擎已经把后端错误折叠为安全默认值，这里只负责把事件映射到
// 引擎调用并补充调试日志。
package hooks

import (
	"context"

	"activity-tracker/internal/model"
	"activity-tracker/internal/tracker"
	"activity-tracker/pkg/logging"
)

// Recorder 活跃事件记录器
type Recorder struct {
	tracker *tracker.Tracker
	log     *logging.Logger
}

// NewRecorder 创建记录器
func NewRecorder(t *tracker.Tracker, log *logging.Logger) *Recorder {
	if log == nil {
		log = logging.Default("hooks")
	}
	return &Recorder{tracker: t, log: log}
}

// OnMessage 入站用户消息钩子
func (r *Recorder) OnMessage(ctx context.Context, id model.SessionIdentity) {
	count := r.tracker.RecordActivity(ctx, id)
	r.log.Debug("Recorded user activity", "session", id.String(), "count", count)
}

// OnBotReply 出站机器人回复钩子
func (r *Recorder) OnBotReply(ctx context.Context, id model.SessionIdentity) {
	count := r.tracker.RecordBotActivity(ctx, id)
	r.log.Debug("Recorded bot activity", "session", id.String(), "count", count)
}

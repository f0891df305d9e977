package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount      int64 // 统计的 Tick 次数
	InputsAccepted int64 // 进入输入队列的输入数
	RateLimited    int64 // 因同帧限流被拒绝的输入数
	OldSeqIgnored  int64 // 因旧序列被忽略的输入数
	DropsSimulated int64 // 因模拟丢包被丢弃的输入数
	InvalidInputs  int64 // 解析或校验失败的输入数
	QueueEvicted   int64 // 输入队列满时淘汰的旧输入数
	Hits           int64 // 子弹命中次数
	TotalTickNs    int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted()       { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) IncRateLimited()    { atomic.AddInt64(&m.RateLimited, 1) }
func (m *RoomMetrics) IncOldSeqIgnored()  { atomic.AddInt64(&m.OldSeqIgnored, 1) }
func (m *RoomMetrics) IncDropsSimulated() { atomic.AddInt64(&m.DropsSimulated, 1) }
func (m *RoomMetrics) IncInvalid()        { atomic.AddInt64(&m.InvalidInputs, 1) }
func (m *RoomMetrics) SetEvicted(n int64) { atomic.StoreInt64(&m.QueueEvicted, n) }
func (m *RoomMetrics) AddHits(n int)      { atomic.AddInt64(&m.Hits, int64(n)) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":      tick,
		"inputs_accepted": atomic.LoadInt64(&m.InputsAccepted),
		"rate_limited":    atomic.LoadInt64(&m.RateLimited),
		"old_seq_ignored": atomic.LoadInt64(&m.OldSeqIgnored),
		"drops_simulated": atomic.LoadInt64(&m.DropsSimulated),
		"invalid_inputs":  atomic.LoadInt64(&m.InvalidInputs),
		"queue_evicted":   atomic.LoadInt64(&m.QueueEvicted),
		"hits":            atomic.LoadInt64(&m.Hits),
		"avg_tick_ms":     avgMs,
	}
}

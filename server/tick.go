package server

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// StartTicker 启动房间的 Tick 循环（单线程推进世界），间隔取 1/TickRate
func (r *Room) StartTicker() {
	r.mu.Lock()
	if r.tickerStarted {
		r.mu.Unlock()
		return
	}
	r.tickerStarted = true
	r.mu.Unlock()
	go r.run()
}

func (r *Room) run() {
	defer func() {
		if v := recover(); v != nil {
			r.halt(fmt.Errorf("tick panic: %v", v))
		}
	}()
	ticker := time.NewTicker(r.queue.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
		}
		// 核心循环：处理输入 → 更新世界 → 广播结果
		start := time.Now()
		if err := r.Tick(); err != nil {
			r.halt(err)
			return
		}
		r.metrics.AddTick(time.Since(start).Nanoseconds())
	}
}

// halt 模拟无法继续：标记停机并上报 Sentry，关闭全部连接后通知管理器移除房间
func (r *Room) halt(err error) {
	r.halted.Store(true)
	Log.Errorf("room halted: room=%s frame=%d err=%v", r.ID, r.Frame(), err)

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("room", r.ID)
		scope.SetTag("frame", fmt.Sprint(r.Frame()))
	})
	hub.CaptureException(err)
	hub.Flush(2 * time.Second)

	if err := r.Close(); err != nil {
		Log.Warnf("close halted room: room=%s err=%v", r.ID, err)
	}
	if r.onHalt != nil {
		r.onHalt(r)
	}
}

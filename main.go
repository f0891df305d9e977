package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"arenasim/server"
)

// ArenaSim 入口：启动 HTTP + WebSocket 服务，并初始化房间管理器
func main() {
	var (
		addr        string
		tickRate    int
		depth       int
		logFile     string
		logLevel    string
		sentryDSN   string
		statsAddr   string
		defaultRoom string
	)
	flag.StringVar(&addr, "addr", ":8080", "server listen address, e.g. :8080")
	flag.IntVar(&tickRate, "tick-rate", 30, "simulation ticks per second")
	flag.IntVar(&depth, "buffer-depth", 10, "max queued moves per player")
	flag.StringVar(&logFile, "log-file", "arena.log", "log file path (rotated)")
	flag.StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")
	flag.StringVar(&sentryDSN, "sentry-dsn", os.Getenv("SENTRY_DSN"), "sentry dsn, empty disables reporting")
	flag.StringVar(&statsAddr, "statsview", "", "runtime dashboard address, e.g. localhost:18066")
	flag.StringVar(&defaultRoom, "room", "room-1", "room created at startup")
	flag.Parse()

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(logFile, level); err != nil {
		panic(err)
	}

	if sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: sentryDSN}); err != nil {
			server.Log.Warnf("sentry init: %v", err)
		}
	}
	defer sentry.Flush(2 * time.Second)

	if statsAddr != "" {
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(statsAddr))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		server.Log.Infof("statsview on http://%s/debug/statsview", statsAddr)
	}

	cfg := server.DefaultRoomConfig()
	cfg.TickRate = tickRate
	cfg.BufferDepth = depth
	rm := server.NewRoomManager(cfg)
	// 先预创建一个默认房间，便于快速试跑
	_ = rm.GetOrCreateRoom(defaultRoom)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rm.HandleWS)
	// 管理与监控接口
	mux.HandleFunc("/admin/config", rm.HandleAdminConfig)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		server.Log.Infof("ArenaSim listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = multierr.Combine(
		srv.Shutdown(ctx),
		rm.Shutdown(),
	)
	if err != nil {
		server.Log.Errorf("shutdown: %v", err)
	}
	_ = server.SyncLogger()
}

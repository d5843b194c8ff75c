package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/boomdash-server/internal"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "配置檔路徑")
		logLevel   = flag.String("log-level", "", "日誌級別，覆蓋配置檔 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式，覆蓋配置檔 (text, json)")
	)
	flag.Parse()

	// 載入配置：檔案不存在時使用預設值啟動
	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		cfg = internal.DefaultConfig()
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logger.Warn("載入配置檔失敗，使用預設配置", "path", *configPath, "error", err)
	}

	// 靜態參考資料：載入失敗只會得到空目錄，不會中止啟動
	catalog := internal.LoadCatalog(cfg.Data.ItemCatalog, cfg.Data.DropTable, logger)

	registry := internal.NewRegistry(cfg, catalog, logger)
	router := internal.NewRouter(registry, logger)

	// 遊戲協議的 TCP 伺服器
	server := internal.NewServer(registry, router, logger)
	if err := server.Start(fmt.Sprintf(":%d", cfg.Server.TCPPort)); err != nil {
		logger.Error("TCP 伺服器啟動失敗", "error", err)
		os.Exit(1)
	}

	// WebSocket 閘道（同一套信封協議）
	gateway := internal.NewWSGateway(registry, router, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.ServeWS)

	httpServer := &http.Server{
		Addr:         cfg.Server.WSAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("WebSocket 閘道啟動", "addr", cfg.Server.WSAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("WebSocket 閘道啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("比賽伺服器啟動",
		"tcp_port", cfg.Server.TCPPort,
		"match_seconds", cfg.Match.Seconds,
		"items", catalog.ItemCount(),
		"drop_entries", len(catalog.DropEntries()))

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("收到關閉信號，開始優雅關閉...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("WebSocket 閘道關閉失敗", "error", err)
	}
	server.Stop()
	registry.Stop()

	logger.Info("伺服器已關閉")
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug",
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

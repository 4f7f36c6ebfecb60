package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    cfg "github.com/edustack/material-importer/config"
    "github.com/edustack/material-importer/internal/service/material"
    "github.com/edustack/material-importer/pkg/logger"
    "github.com/edustack/material-importer/pkg/worker"
)

func main() {

    appCfg := cfg.GetAppConfig()

    // 初始化日志
    log, err := logger.NewLogger(
        logger.WithLevel(appCfg.Logger.Level),
        logger.WithEncoding(appCfg.Logger.Encoding),
        logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
    )
    if err != nil {
        panic(err)
    }
    defer log.Sync()

    // 创建资料导入服务
    importer, err := material.GetService(log)
    if err != nil {
        log.Error("Failed to create material service", logger.Error(err))
        os.Exit(1)
    }

    // 创建 worker 配置
    workerCfg := &worker.Config{
        RedisAddr:   appCfg.Redis.Addr,
        RedisDB:     appCfg.Redis.DB,
        Concurrency: 10,
        Queues: map[string]int{
            "critical": 6,
            "default":  3,
            "low":      1,
        },
    }

    // 创建 worker
    materialWorker, err := worker.NewMaterialWorker(workerCfg, importer, log)
    if err != nil {
        log.Error("Failed to create material worker", logger.Error(err))
        os.Exit(1)
    }

    // 创建上下文和取消函数
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // 启动 worker
    if err := materialWorker.Start(ctx); err != nil {
        log.Error("Failed to start worker", logger.Error(err))
        os.Exit(1)
    }

    // 定时清理保留期之外的任务暂存
    go func() {
        ticker := time.NewTicker(time.Hour)
        defer ticker.Stop()
        for {
            select {
            case <-ctx.Done():
                return
            case <-ticker.C:
                if err := importer.CleanupTasks(ctx); err != nil {
                    log.Error("Task cleanup failed", logger.Error(err))
                }
            }
        }
    }()

    // 等待中断信号
    sigChan := make(chan os.Signal, 1)
    signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
    <-sigChan

    // 优雅关闭
    log.Info("Shutting down worker...")
    materialWorker.Stop()
    log.Info("Worker stopped")
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edustack/material-importer/internal/service/material"
	"github.com/edustack/material-importer/pkg/logger"
	"github.com/edustack/material-importer/pkg/queue"
	"github.com/hibiken/asynq"
)

type MaterialWorker struct {
	BaseWorker
	importer material.MaterialImporter
}

func NewMaterialWorker(cfg *Config, importer material.MaterialImporter, logger logger.Logger) (*MaterialWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &MaterialWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   logger,
			stopChan: make(chan struct{}),
		},
		importer: importer,
	}

	// 注册任务处理器
	w.registerHandlers()
	return w, nil
}

func (w *MaterialWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeMaterialImport, w.handleMaterialImport)
}

func (w *MaterialWorker) handleMaterialImport(ctx context.Context, t *asynq.Task) error {
	w.logger.Info("Received task",
		logger.String("payload", string(t.Payload())),
	)

	// 反序列化任务
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	w.logger.Info("Processing material import task",
		logger.String("taskId", task.ID),
		logger.Any("metadata", task.Metadata),
	)

	// 检查必要字段
	if task.ID == "" || task.Metadata == nil || task.Payload == nil {
		w.logger.Error("Invalid task data",
			logger.String("taskId", task.ID),
			logger.Any("metadata", task.Metadata),
			logger.Any("payload", task.Payload),
		)
		return fmt.Errorf("invalid task data: missing required fields")
	}

	// 获取任务写入器
	info := t.ResultWriter()

	// 写入任务开始状态
	if _, err := info.Write([]byte(`{"status":"running","progress":0}`)); err != nil {
		w.logger.Error("Failed to write task status", logger.Error(err))
	}

	err := w.importer.HandleImport(ctx, &task)
	if err != nil {
		// 写入失败状态
		if _, writeErr := info.Write([]byte(fmt.Sprintf(`{"status":"failed","error":%q}`, err.Error()))); writeErr != nil {
			w.logger.Error("Failed to write task failure", logger.Error(writeErr))
		}
		return err
	}

	// 写入完成状态
	if _, err := info.Write([]byte(`{"status":"completed","progress":100}`)); err != nil {
		w.logger.Error("Failed to write task completion", logger.Error(err))
	}

	return nil
}

func (w *MaterialWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

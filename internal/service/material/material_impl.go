package material

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cfg "github.com/edustack/material-importer/config"
	"github.com/edustack/material-importer/internal/extract"
	"github.com/edustack/material-importer/internal/extract/docx"
	"github.com/edustack/material-importer/internal/extract/pdf"
	"github.com/edustack/material-importer/internal/extract/plaintext"
	"github.com/edustack/material-importer/internal/extract/pptx"
	"github.com/edustack/material-importer/internal/models"
	"github.com/edustack/material-importer/internal/upload"
	"github.com/edustack/material-importer/internal/utils/validator"
	"github.com/edustack/material-importer/pkg/converters"
	"github.com/edustack/material-importer/pkg/logger"
	"github.com/edustack/material-importer/pkg/queue"
	"github.com/edustack/material-importer/pkg/storage"
)

type MaterialService struct {
	engine       *extract.Engine
	orchestrator *upload.Orchestrator
	validator    *validator.MaterialValidator
	queue        queue.Queue
	storage      storage.Storage
	converter    *converters.RecordConverter
	logger       logger.Logger
	config       *ServiceConfig
}

type ServiceConfig struct {
	QueuePriority   int
	RetentionPeriod time.Duration
	UploadOptions   *upload.Options
}

// NewEngine 组装提取引擎并注册四种格式的提取器
func NewEngine(log logger.Logger) *extract.Engine {
	engine := extract.NewEngine(log)
	engine.Register(extract.MIMEPDF, pdf.NewExtractor(log))
	engine.Register(extract.MIMEDocx, docx.NewExtractor(log))
	engine.Register(extract.MIMEPptx, pptx.NewExtractor(log))
	engine.Register(extract.MIMETxt, plaintext.NewExtractor(log))
	return engine
}

func NewService(
	engine *extract.Engine,
	orchestrator *upload.Orchestrator,
	q queue.Queue,
	store storage.Storage,
	log logger.Logger,
	config *ServiceConfig,
) MaterialImporter {
	if config == nil {
		config = &ServiceConfig{
			RetentionPeriod: 24 * time.Hour,
		}
	}

	return &MaterialService{
		engine:       engine,
		orchestrator: orchestrator,
		validator:    validator.NewMaterialValidator(nil),
		queue:        q,
		storage:      store,
		converter:    converters.NewRecordConverter(),
		logger:       log,
		config:       config,
	}
}

// GetService 按应用配置装配完整的导入服务
func GetService(log logger.Logger) (MaterialImporter, error) {
	appCfg := cfg.GetAppConfig()

	store, err := storage.NewStorage(storage.StorageType(appCfg.Storage.Type), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	q, err := queue.GetQueue(appCfg.Redis.Addr, appCfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	config := &ServiceConfig{
		RetentionPeriod: 24 * time.Hour,
		UploadOptions: &upload.Options{
			BatchSize:            appCfg.Upload.BatchSize,
			MaxRetries:           appCfg.Upload.MaxRetries,
			AttemptTimeout:       appCfg.Upload.AttemptTimeout,
			BatchTimeout:         appCfg.Upload.BatchTimeout,
			InterBatchDelay:      appCfg.Upload.InterBatchDelay,
			CompressionThreshold: appCfg.Upload.CompressionThreshold,
			MaxImageDimension:    appCfg.Upload.MaxImageDimension,
		},
	}

	return NewService(
		NewEngine(log),
		upload.NewOrchestrator(store, log),
		q,
		store,
		log,
		config,
	), nil
}

// ImportFile 校验上传文件，把原始字节暂存到对象存储，然后入队导入任务
func (s *MaterialService) ImportFile(
	ctx context.Context,
	file multipart.File,
	header *multipart.FileHeader,
	materialID string,
) (*models.ImportTask, error) {
	s.logger.Info("Starting material import",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
		logger.String("materialId", materialID),
	)

	// 提取前的廉价同步校验：大小上限 + 扩展名白名单
	if result := s.validator.ValidateFile(header.Filename, header.Size); !result.IsValid {
		s.logger.Error("File validation failed",
			logger.String("filename", header.Filename),
			logger.Error(result.Error),
		)
		return nil, result.Error
	}

	taskID := uuid.New().String()

	task := &models.ImportTask{
		ID:        taskID,
		Status:    models.StatusPending,
		Type:      queue.TaskTypeMaterialImport,
		Priority:  s.config.QueuePriority,
		Progress:  0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata: map[string]string{
			"filename":   header.Filename,
			"size":       fmt.Sprintf("%d", header.Size),
			"mimeType":   header.Header.Get("Content-Type"),
			"materialId": materialID,
		},
	}

	// 暂存原始文件，worker 侧再取出来提取
	fileKey := fmt.Sprintf("uploads/%s/%s", taskID, filepath.Base(header.Filename))
	if _, err := s.storage.Store(ctx, file, fileKey); err != nil {
		s.logger.Error("Failed to stash uploaded file",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	queueTask := &queue.Task{
		ID:       taskID,
		Type:     task.Type,
		Priority: task.Priority,
		Payload: map[string]interface{}{
			"fileKey":    fileKey,
			"filename":   header.Filename,
			"mimeType":   header.Header.Get("Content-Type"),
			"materialId": materialID,
		},
		Metadata:  task.Metadata,
		CreatedAt: task.CreatedAt,
	}

	if err := s.queue.Enqueue(ctx, queueTask); err != nil {
		s.logger.Error("Failed to enqueue import task",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	initialStatus := &queue.TaskStatus{
		TaskID:    taskID,
		Status:    "pending",
		Progress:  0,
		StartedAt: time.Now(),
	}
	if err := s.queue.SaveStatus(ctx, initialStatus); err != nil {
		s.logger.Error("Failed to save initial status",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
	}

	s.logger.Info("Material import task created",
		logger.String("taskId", taskID),
		logger.String("filename", header.Filename),
	)

	return task, nil
}

// ImportBatch 批量入队，使用 errgroup 管理并发和错误
func (s *MaterialService) ImportBatch(ctx context.Context, files []*multipart.FileHeader, materialID string) ([]*models.ImportTask, error) {
	tasks := make([]*models.ImportTask, 0, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)

	for _, header := range files {
		header := header
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			task, err := s.ImportFile(ctx, file, header, materialID)
			if err != nil {
				return fmt.Errorf("failed to import file %s: %w", header.Filename, err)
			}

			mu.Lock()
			tasks = append(tasks, task)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return tasks, err
	}

	return tasks, nil
}

// Import 同步管线：提取 → 图片上传 → 组装记录。
// 上传结果与提取出的图片一一对应，失败的图片是占位符而不是缺项。
func (s *MaterialService) Import(
	ctx context.Context,
	data []byte,
	declaredMIME, filename, materialID string,
	onProgress upload.ProgressFunc,
) (*converters.MaterialRecord, error) {
	doc, err := s.engine.Extract(ctx, data, declaredMIME, filename)
	if err != nil {
		return nil, err
	}

	uploaded := s.orchestrator.UploadBatch(ctx, doc.Metadata.Images, materialID, s.config.UploadOptions, onProgress)

	record, err := s.converter.Convert(doc, uploaded, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to convert record: %w", err)
	}
	record.MaterialID = materialID

	return record, nil
}

// HandleImport worker 侧的导入处理
func (s *MaterialService) HandleImport(ctx context.Context, task *queue.Task) error {
	if task == nil || task.Payload == nil || task.Metadata == nil {
		return fmt.Errorf("invalid task: missing required data")
	}

	s.logger.Info("Processing material import",
		logger.String("taskId", task.ID),
		logger.String("filename", task.Metadata["filename"]),
	)

	fileKey, _ := task.Payload["fileKey"].(string)
	filename, _ := task.Payload["filename"].(string)
	declaredMIME, _ := task.Payload["mimeType"].(string)
	materialID, _ := task.Payload["materialId"].(string)

	reader, err := s.storage.Get(ctx, fileKey)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// 上传进度桥接到队列任务进度
	onProgress := func(p models.UploadProgress) {
		if p.Total == 0 {
			return
		}
		if err := s.queue.UpdateProgress(ctx, task.ID, float64(p.Completed)/float64(p.Total)); err != nil {
			s.logger.Warn("Failed to update task progress",
				logger.String("taskId", task.ID),
				logger.Error(err),
			)
		}
	}

	record, err := s.Import(ctx, data, declaredMIME, filename, materialID, onProgress)
	if err != nil {
		finalStatus := &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     "failed",
			Error:      err.Error(),
			StartedAt:  task.CreatedAt,
			FinishedAt: time.Now(),
		}
		if serr := s.queue.SaveStatus(ctx, finalStatus); serr != nil {
			s.logger.Error("Failed to save failure status",
				logger.String("taskId", task.ID),
				logger.Error(serr),
			)
		}
		return err
	}
	record.TaskID = task.ID

	resultData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := s.storage.Store(ctx, bytes.NewReader(resultData), fmt.Sprintf("result:%s", task.ID)); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}

	s.logger.Info("Material import completed",
		logger.String("taskId", task.ID),
		logger.Int("imageCount", len(record.Images)),
		logger.Int("wordCount", record.Metadata.WordCount),
	)

	finalStatus := &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     "completed",
		Progress:   1.0,
		StartedAt:  task.CreatedAt,
		FinishedAt: time.Now(),
	}
	if err := s.queue.SaveStatus(ctx, finalStatus); err != nil {
		s.logger.Error("Failed to save final status",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
	}

	return nil
}

// GetImportStatus 获取导入状态
func (s *MaterialService) GetImportStatus(ctx context.Context, taskID string) (*models.ImportTask, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	var taskStatus models.ImportStatus
	switch status.Status {
	case "pending":
		taskStatus = models.StatusPending
	case "running", "active":
		taskStatus = models.StatusRunning
	case "completed":
		taskStatus = models.StatusCompleted
	case "failed":
		taskStatus = models.StatusFailed
	case "cancelled":
		taskStatus = models.StatusCancelled
	default:
		taskStatus = models.StatusPending
	}

	return &models.ImportTask{
		ID:        status.TaskID,
		Status:    taskStatus,
		Type:      queue.TaskTypeMaterialImport,
		Progress:  status.Progress,
		Error:     status.Error,
		Metadata:  make(map[string]string),
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

// GetMaterialRecord 获取导入完成后的记录
func (s *MaterialService) GetMaterialRecord(ctx context.Context, taskID string) (*converters.MaterialRecord, error) {
	status, err := s.GetImportStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if status.Status != models.StatusCompleted {
		return nil, fmt.Errorf("task is not completed: %s", status.Status)
	}

	reader, err := s.storage.Get(ctx, fmt.Sprintf("result:%s", taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	defer reader.Close()

	var record converters.MaterialRecord
	if err := json.NewDecoder(reader).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	return &record, nil
}

// CancelTask 取消任务
func (s *MaterialService) CancelTask(ctx context.Context, taskID string) error {
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}

	if err := s.queue.SaveStatus(ctx, &queue.TaskStatus{
		TaskID:     taskID,
		Status:     "cancelled",
		FinishedAt: time.Now(),
	}); err != nil {
		s.logger.Error("Failed to save cancelled status",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
	}

	s.logger.Info("Task cancelled",
		logger.String("taskId", taskID),
	)

	return nil
}

// CleanupTasks 清理过期的暂存文件和结果
func (s *MaterialService) CleanupTasks(ctx context.Context) error {
	threshold := time.Now().Add(-s.config.RetentionPeriod)

	if err := s.storage.CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}

	s.logger.Info("Completed tasks cleanup",
		logger.Time("threshold", threshold),
	)

	return nil
}

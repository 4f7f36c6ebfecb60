package material

import (
    "context"
    "mime/multipart"

    "github.com/edustack/material-importer/internal/models"
    "github.com/edustack/material-importer/internal/upload"
    "github.com/edustack/material-importer/pkg/converters"
    "github.com/edustack/material-importer/pkg/queue"
)

// MaterialImporter 资料导入流程的入口。
// 提取失败对单个文件是致命的（返回错误），对应用不是；
// 上传失败永远降级为占位符，不会从这里冒出来。
type MaterialImporter interface {
    // ImportFile 校验并暂存上传文件，入队异步导入任务
    ImportFile(ctx context.Context, file multipart.File, header *multipart.FileHeader, materialID string) (*models.ImportTask, error)
    // ImportBatch 批量入队
    ImportBatch(ctx context.Context, files []*multipart.FileHeader, materialID string) ([]*models.ImportTask, error)
    // Import 同步执行 提取 → 图片上传 → 组装记录
    Import(ctx context.Context, data []byte, declaredMIME, filename, materialID string, onProgress upload.ProgressFunc) (*converters.MaterialRecord, error)
    // HandleImport worker 侧的任务处理
    HandleImport(ctx context.Context, task *queue.Task) error
    GetImportStatus(ctx context.Context, taskID string) (*models.ImportTask, error)
    GetMaterialRecord(ctx context.Context, taskID string) (*converters.MaterialRecord, error)
    CancelTask(ctx context.Context, taskID string) error
    // CleanupTasks 清理保留期之外的暂存文件和结果
    CleanupTasks(ctx context.Context) error
}

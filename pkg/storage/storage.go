package storage

import (
    "context"
    "fmt"
    "io"
    "time"

    "github.com/edustack/material-importer/pkg/logger"
    "github.com/edustack/material-importer/pkg/storage/minio"
    "github.com/edustack/material-importer/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
    StorageTypeS3    StorageType = "s3"
    StorageTypeMinio StorageType = "minio"
)

// Storage 接口定义。客户端是无状态、可安全共享的单例：
// 并发上传各写各的唯一键，不需要额外加锁。
type Storage interface {
    // Store 存储文件并返回下载 URL
    Store(ctx context.Context, reader io.Reader, key string) (string, error)
    // Get 获取文件
    Get(ctx context.Context, key string) (io.ReadCloser, error)
    // Delete 删除文件
    Delete(ctx context.Context, key string) error
    // CleanupBefore 清理过期文件
    CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(storageType StorageType, logger logger.Logger) (Storage, error) {
    switch storageType {
    case StorageTypeS3:
        return s3.GetClient(logger)
    case StorageTypeMinio:
        return minio.GetClient(logger)
    default:
        return nil, fmt.Errorf("unsupported storage type: %s", storageType)
    }
}

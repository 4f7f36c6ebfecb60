package minio

import (
    "context"
    "fmt"
    "io"
    "time"

    "github.com/minio/minio-go/v7"
    "github.com/minio/minio-go/v7/pkg/credentials"

    cfg "github.com/edustack/material-importer/config"
    "github.com/edustack/material-importer/pkg/logger"
)

type MinioStorage struct {
    client     *minio.Client
    bucketName string
    baseURL    string
    logger     logger.Logger
}

// Store implements Storage.Store，返回对象的下载 URL
func (m *MinioStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
    _, err := m.client.PutObject(ctx, m.bucketName, key, reader, -1, minio.PutObjectOptions{})
    if err != nil {
        m.logger.Error("Failed to store file to MinIO",
            logger.String("bucket", m.bucketName),
            logger.String("key", key),
            logger.Error(err),
        )
        return "", fmt.Errorf("failed to store file: %w", err)
    }

    return fmt.Sprintf("%s/%s/%s", m.baseURL, m.bucketName, key), nil
}

// Get implements Storage.Get
func (m *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
    obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
    if err != nil {
        m.logger.Error("Failed to get file from MinIO",
            logger.String("bucket", m.bucketName),
            logger.String("key", key),
            logger.Error(err),
        )
        return nil, fmt.Errorf("failed to get file: %w", err)
    }

    return obj, nil
}

// Delete implements Storage.Delete
func (m *MinioStorage) Delete(ctx context.Context, key string) error {
    err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{})
    if err != nil {
        m.logger.Error("Failed to delete file from MinIO",
            logger.String("bucket", m.bucketName),
            logger.String("key", key),
            logger.Error(err),
        )
        return fmt.Errorf("failed to delete file: %w", err)
    }

    return nil
}

// CleanupBefore implements Storage.CleanupBefore
func (m *MinioStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
    objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{})

    for obj := range objectCh {
        if obj.Err != nil {
            m.logger.Error("Error listing objects",
                logger.String("bucket", m.bucketName),
                logger.Error(obj.Err),
            )
            continue
        }

        if obj.LastModified.Before(threshold) {
            if err := m.Delete(ctx, obj.Key); err != nil {
                m.logger.Error("Failed to delete expired object",
                    logger.String("key", obj.Key),
                    logger.Error(err),
                )
                continue
            }
            m.logger.Info("Deleted expired object",
                logger.String("key", obj.Key),
                logger.Time("lastModified", obj.LastModified),
            )
        }
    }

    return nil
}

func NewMinioStorage(log logger.Logger) (*MinioStorage, error) {
    minioConfig := cfg.GetMinioConfig()
    client, err := minio.New(minioConfig.Endpoint, &minio.Options{
        Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
        Secure: minioConfig.UseSSL,
        Region: minioConfig.Region,
    })
    if err != nil {
        return nil, fmt.Errorf("failed to create MinIO client: %w", err)
    }

    exists, err := client.BucketExists(context.Background(), minioConfig.BucketName)
    if err != nil {
        return nil, fmt.Errorf("failed to check bucket existence: %w", err)
    }

    if !exists {
        err = client.MakeBucket(context.Background(), minioConfig.BucketName, minio.MakeBucketOptions{
            Region: minioConfig.Region,
        })
        if err != nil {
            return nil, fmt.Errorf("failed to create bucket: %w", err)
        }
    }

    baseURL := minioConfig.PublicBaseURL
    if baseURL == "" {
        scheme := "http"
        if minioConfig.UseSSL {
            scheme = "https"
        }
        baseURL = fmt.Sprintf("%s://%s", scheme, minioConfig.Endpoint)
    }

    return &MinioStorage{
        client:     client,
        bucketName: minioConfig.BucketName,
        baseURL:    baseURL,
        logger:     log,
    }, nil
}

func GetClient(logger logger.Logger) (*MinioStorage, error) {
    return NewMinioStorage(logger)
}

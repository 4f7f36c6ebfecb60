package models

import (
    "time"
)

// FileType 文件类型
type FileType string

const (
    PDF       FileType = "pdf"
    Docx      FileType = "docx"
    Pptx      FileType = "pptx"
    PlainText FileType = "txt"
)

// ImagePosition 图片在幻灯片上的位置（EMU 坐标）
type ImagePosition struct {
    X      int64 `json:"x"`
    Y      int64 `json:"y"`
    Width  int64 `json:"width"`
    Height int64 `json:"height"`
}

// ImageReference 提取阶段发现的嵌入图片，仅在提取与上传之间存在于内存中
type ImageReference struct {
    SlideNumber int            `json:"slideNumber"`
    Description string         `json:"description"`
    AltText     string         `json:"altText,omitempty"`
    EmbedID     string         `json:"embedId"`
    Filename    string         `json:"filename"`
    MimeType    string         `json:"mimeType"`
    Data        []byte         `json:"-"`
    // NeedsRaster marks legacy vector formats (EMF/WMF) that downstream
    // consumers cannot render as-is. The bytes keep their true MIME type.
    NeedsRaster bool           `json:"needsRaster,omitempty"`
    Position    *ImagePosition `json:"position,omitempty"`
}

// ExtractionMetadata 提取结果元数据
type ExtractionMetadata struct {
    PageCount int              `json:"pageCount"`
    WordCount int              `json:"wordCount"`
    FileSize  int64            `json:"fileSize"`
    Method    string           `json:"method"`
    Images    []ImageReference `json:"images,omitempty"`
}

// ExtractedDocument 一次提取调用的结果；Text 成功时保证非空
type ExtractedDocument struct {
    Text     string             `json:"text"`
    Metadata ExtractionMetadata `json:"metadata"`
}

// UploadedImage 上传编排器对每个输入图片产出的最终记录（成功或占位符）。
// Index 记录原始顺序，因为批内并发完成顺序不确定。
type UploadedImage struct {
    URL              string `json:"url"`
    Title            string `json:"title"`
    OriginalFilename string `json:"originalFilename,omitempty"`
    SlideNumber      int    `json:"slideNumber"`
    Index            int    `json:"index"`
}

// UploadStage 上传进度阶段
type UploadStage string

const (
    StagePreparing UploadStage = "preparing"
    StageUploading UploadStage = "uploading"
    StageCompleted UploadStage = "completed"
    StageFailed    UploadStage = "failed"
)

// UploadProgress 单次上传调用的进度快照，推送给调用方提供的 sink。
// 快照不保证严格递增，也不保证一定有终结事件。
type UploadProgress struct {
    Stage                     UploadStage `json:"stage"`
    Completed                 int         `json:"completed"`
    Total                     int         `json:"total"`
    Percentage                float64     `json:"percentage"`
    CurrentBatch              int         `json:"currentBatch"`
    TotalBatches              int         `json:"totalBatches"`
    FailedCount               int         `json:"failedCount"`
    SuccessCount              int         `json:"successCount"`
    EstimatedSecondsRemaining float64     `json:"estimatedSecondsRemaining"`
}

type ImportTask struct {
    ID        string            `json:"id"`
    Status    ImportStatus      `json:"status"`
    Type      string            `json:"type"`
    Priority  int               `json:"priority"`
    Progress  float64           `json:"progress"`
    Error     string            `json:"error,omitempty"`
    Metadata  map[string]string `json:"metadata"`
    CreatedAt time.Time         `json:"createdAt"`
    UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type ImportStatus string

const (
    StatusPending   ImportStatus = "pending"
    StatusRunning   ImportStatus = "running"
    StatusCompleted ImportStatus = "completed"
    StatusFailed    ImportStatus = "failed"
    StatusCancelled ImportStatus = "cancelled"
)

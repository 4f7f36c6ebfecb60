package converters

import (
    "fmt"
    "strings"
    "time"

    "github.com/edustack/material-importer/internal/models"
)

// MaterialRecord 导入完成后持久化的最终记录：
// 归一化文本 + 每个输入图片恰好一条 UploadedImage
type MaterialRecord struct {
    TaskID     string                 `json:"taskId"`
    MaterialID string                 `json:"materialId"`
    Title      string                 `json:"title"`
    Text       string                 `json:"text"`
    Images     []models.UploadedImage `json:"images"`
    Metadata   RecordMetadata         `json:"metadata"`
    ImportedAt time.Time              `json:"importedAt"`
}

// RecordMetadata 记录级元数据
type RecordMetadata struct {
    FileName   string `json:"fileName"`
    FileType   string `json:"fileType"`
    FileSize   int64  `json:"fileSize"`
    PageCount  int    `json:"pageCount"`
    WordCount  int    `json:"wordCount"`
    Method     string `json:"method"`
    ImageCount int    `json:"imageCount"`
}

// RecordConverter 把提取结果和上传结果组装成可持久化的记录
type RecordConverter struct{}

func NewRecordConverter() *RecordConverter {
    return &RecordConverter{}
}

// Convert 组装 MaterialRecord。标题取文本第一行（去掉幻灯片分隔符）。
func (c *RecordConverter) Convert(doc *models.ExtractedDocument, uploaded []models.UploadedImage, filename string) (*MaterialRecord, error) {
    if doc == nil || strings.TrimSpace(doc.Text) == "" {
        return nil, fmt.Errorf("no extracted content to convert")
    }

    record := &MaterialRecord{
        Title:      deriveTitle(doc.Text, filename),
        Text:       doc.Text,
        Images:     uploaded,
        ImportedAt: time.Now(),
        Metadata: RecordMetadata{
            FileName:   filename,
            FileType:   doc.Metadata.Method,
            FileSize:   doc.Metadata.FileSize,
            PageCount:  doc.Metadata.PageCount,
            WordCount:  doc.Metadata.WordCount,
            Method:     doc.Metadata.Method,
            ImageCount: len(uploaded),
        },
    }
    if record.Images == nil {
        record.Images = []models.UploadedImage{}
    }

    return record, nil
}

// deriveTitle 取第一条有内容的行作为标题；全是分隔符时退回文件名
func deriveTitle(text, filename string) string {
    for _, line := range strings.Split(text, "\n") {
        line = strings.TrimSpace(line)
        if line == "" || strings.HasPrefix(line, "---") {
            continue
        }
        line = strings.TrimPrefix(line, "TITLE: ")
        if len(line) > 80 {
            line = line[:80]
        }
        return line
    }
    return filename
}

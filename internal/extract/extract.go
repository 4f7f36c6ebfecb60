package extract

import (
    "context"
    "fmt"
    "path/filepath"
    "strings"

    "github.com/edustack/material-importer/internal/models"
    "github.com/edustack/material-importer/pkg/logger"
)

const (
    MIMEPDF  = "application/pdf"
    MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
    MIMEPptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
    MIMETxt  = "text/plain"
)

// 扩展名到 MIME 类型的映射，作为声明 MIME 缺失时的第二级分派
var extToMIME = map[string]string{
    ".pdf":  MIMEPDF,
    ".docx": MIMEDocx,
    ".pptx": MIMEPptx,
    ".txt":  MIMETxt,
}

// SupportedFormats 支持的四种格式，用于错误提示
const SupportedFormats = "PDF, DOCX, PPTX, TXT"

// Extractor 单一格式的提取器接口
type Extractor interface {
    // CanExtract 检查是否可以处理指定 MIME 类型的文件
    CanExtract(mimeType string) bool

    // Extract 提取文本和嵌入图片
    Extract(ctx context.Context, data []byte, filename string) (*models.ExtractedDocument, error)
}

// Engine 按声明的 MIME 类型分派到具体提取器。
// 分派规则：先看声明的 MIME，再看扩展名，不做内容嗅探。
type Engine struct {
    extractors map[string]Extractor
    logger     logger.Logger
}

// NewEngine 创建提取引擎并注册四种格式的提取器。
// 注册函数由 cmd/内部装配调用，具体提取器包通过 Register 注入，
// 避免 engine 包对格式包的循环依赖。
func NewEngine(log logger.Logger) *Engine {
    return &Engine{
        extractors: make(map[string]Extractor),
        logger:     log,
    }
}

// Register 注册一个 MIME 类型的提取器
func (e *Engine) Register(mimeType string, ex Extractor) {
    e.extractors[mimeType] = ex
}

// Extract 对一个上传文件执行提取。
// 失败时返回 *Error；成功时保证 Text 非空。
func (e *Engine) Extract(ctx context.Context, data []byte, declaredMIME, filename string) (*models.ExtractedDocument, error) {
    if len(data) == 0 {
        return nil, NewError(CodeNoFile, "No file content was provided", nil)
    }

    mimeType := e.resolveMIME(declaredMIME, filename)
    if mimeType == "" {
        return nil, NewError(CodeUnsupported,
            fmt.Sprintf("Unsupported file format. Supported formats are: %s", SupportedFormats), nil)
    }

    extractor, ok := e.extractors[mimeType]
    if !ok {
        return nil, NewError(CodeUnsupported,
            fmt.Sprintf("Unsupported file format. Supported formats are: %s", SupportedFormats), nil)
    }

    e.logger.Info("Extracting document",
        logger.String("filename", filename),
        logger.String("mimeType", mimeType),
        logger.Int("size", len(data)),
    )

    doc, err := extractor.Extract(ctx, data, filename)
    if err != nil {
        e.logger.Error("Extraction failed",
            logger.String("filename", filename),
            logger.String("mimeType", mimeType),
            logger.Error(err),
        )
        return nil, AsError(err)
    }

    e.logger.Info("Extraction completed",
        logger.String("filename", filename),
        logger.Int("pageCount", doc.Metadata.PageCount),
        logger.Int("wordCount", doc.Metadata.WordCount),
        logger.Int("imageCount", len(doc.Metadata.Images)),
    )

    return doc, nil
}

// resolveMIME 声明 MIME 优先，其次扩展名；都不认识返回空串
func (e *Engine) resolveMIME(declaredMIME, filename string) string {
    declared := strings.ToLower(strings.TrimSpace(declaredMIME))
    // 去掉 "text/plain; charset=utf-8" 之类的参数
    if i := strings.Index(declared, ";"); i >= 0 {
        declared = strings.TrimSpace(declared[:i])
    }
    if _, ok := e.extractors[declared]; ok {
        return declared
    }

    ext := strings.ToLower(filepath.Ext(filename))
    if mt, ok := extToMIME[ext]; ok {
        return mt
    }
    return ""
}

// CountWords 按空白切分统计词数，各格式提取器共用
func CountWords(text string) int {
    return len(strings.Fields(text))
}

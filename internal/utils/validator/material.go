// internal/utils/validator/material.go
package validator

import (
    "fmt"
    "path/filepath"
    "strings"

    "github.com/edustack/material-importer/internal/extract"
)

// DefaultMaxFileSize 上传文件大小上限
const DefaultMaxFileSize = 500 * 1024 * 1024 // 500MB

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
    MaxFileSize  int64    // 最大文件大小（字节）
    AllowedExts  []string // 允许的扩展名
}

// ValidationResult 验证结果。验证是廉价、同步且幂等的：
// 同一输入两次调用结果一致。
type ValidationResult struct {
    IsValid bool           `json:"isValid"`
    Error   *extract.Error `json:"error,omitempty"`
}

// MaterialValidator 在提取前做的入口校验：大小上限和扩展名白名单。
// 不做内容嗅探。
type MaterialValidator struct {
    config *ValidatorConfig
}

// NewMaterialValidator 创建验证器，config 为 nil 时使用默认配置
func NewMaterialValidator(config *ValidatorConfig) *MaterialValidator {
    if config == nil {
        config = &ValidatorConfig{
            MaxFileSize: DefaultMaxFileSize,
            AllowedExts: []string{".pdf", ".docx", ".pptx", ".txt"},
        }
    }
    return &MaterialValidator{
        config: config,
    }
}

// ValidateFile 校验单个文件的名字和大小
func (v *MaterialValidator) ValidateFile(filename string, size int64) ValidationResult {
    if filename == "" || size == 0 {
        return ValidationResult{
            IsValid: false,
            Error:   extract.NewError(extract.CodeNoFile, "No file was provided", nil),
        }
    }

    if size > v.config.MaxFileSize {
        return ValidationResult{
            IsValid: false,
            Error: extract.NewError(extract.CodeGeneric,
                fmt.Sprintf("File size exceeds the maximum limit of %d MB", v.config.MaxFileSize/(1024*1024)), nil),
        }
    }

    ext := strings.ToLower(filepath.Ext(filename))
    for _, allowed := range v.config.AllowedExts {
        if ext == allowed {
            return ValidationResult{IsValid: true}
        }
    }

    return ValidationResult{
        IsValid: false,
        Error: extract.NewError(extract.CodeUnsupported,
            fmt.Sprintf("Unsupported file format %q. Supported formats are: %s", ext, extract.SupportedFormats), nil),
    }
}

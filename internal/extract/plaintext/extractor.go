package plaintext

import (
    "context"
    "strings"
    "unicode/utf8"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/internal/models"
    "github.com/edustack/material-importer/pkg/logger"
)

// Extractor 纯文本直读，按 UTF-8 原样返回
type Extractor struct {
    logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
    return &Extractor{
        logger: log,
    }
}

func (e *Extractor) CanExtract(mimeType string) bool {
    return mimeType == extract.MIMETxt
}

func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*models.ExtractedDocument, error) {
    if !utf8.Valid(data) {
        return nil, extract.NewError(extract.CodeTxt,
            "The text file is not valid UTF-8", nil)
    }

    text := string(data)
    if strings.TrimSpace(text) == "" {
        return nil, extract.NewError(extract.CodeTxt,
            "The text file is empty", nil)
    }

    return &models.ExtractedDocument{
        Text: text,
        Metadata: models.ExtractionMetadata{
            PageCount: 1,
            WordCount: extract.CountWords(text),
            FileSize:  int64(len(data)),
            Method:    string(models.PlainText),
        },
    }, nil
}

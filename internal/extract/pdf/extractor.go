package pdf

import (
    "bytes"
    "context"
    "strings"

    "github.com/ledongthuc/pdf"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/internal/models"
    "github.com/edustack/material-importer/pkg/logger"
)

// Extractor 提取 PDF 文本。页面严格按页序串行处理，保证文本拼接顺序。
type Extractor struct {
    logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
    return &Extractor{
        logger: log,
    }
}

func (e *Extractor) CanExtract(mimeType string) bool {
    return mimeType == extract.MIMEPDF
}

func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*models.ExtractedDocument, error) {
    reader := bytes.NewReader(data)

    pdfReader, err := pdf.NewReader(reader, reader.Size())
    if err != nil {
        return nil, extract.NewError(extract.CodePDF,
            "Could not read the PDF file. Make sure it is not encrypted and contains selectable text (scanned PDFs are not supported).", err)
    }

    numPages := pdfReader.NumPage()
    pages := make([]string, 0, numPages)

    // 按页序串行提取，页 N 的文本必须排在页 N+1 之前
    for i := 1; i <= numPages; i++ {
        select {
        case <-ctx.Done():
            return nil, extract.NewError(extract.CodePDF, "PDF extraction was cancelled", ctx.Err())
        default:
        }

        page := pdfReader.Page(i)
        if page.V.IsNull() {
            continue
        }

        text, err := page.GetPlainText(nil)
        if err != nil {
            // 单页失败记录后跳过，不影响其余页
            e.logger.Warn("Failed to extract text from PDF page",
                logger.String("filename", filename),
                logger.Int("page", i),
                logger.Error(err),
            )
            continue
        }

        // 页内文本 run 用单个空格连接
        normalized := strings.Join(strings.Fields(text), " ")
        if normalized != "" {
            pages = append(pages, normalized)
        }
    }

    // 页与页之间用空行分隔
    fullText := strings.Join(pages, "\n\n")
    if strings.TrimSpace(fullText) == "" {
        return nil, extract.NewError(extract.CodePDF,
            "No extractable text was found in the PDF. Make sure it contains selectable text (scanned PDFs are not supported).", nil)
    }

    return &models.ExtractedDocument{
        Text: fullText,
        Metadata: models.ExtractionMetadata{
            PageCount: numPages,
            WordCount: extract.CountWords(fullText),
            FileSize:  int64(len(data)),
            Method:    string(models.PDF),
        },
    }, nil
}

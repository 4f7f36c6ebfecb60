package docx

import (
    "archive/zip"
    "bytes"
    "context"
    "encoding/xml"
    "io"
    "strings"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/internal/models"
    "github.com/edustack/material-importer/pkg/logger"
)

// Extractor 解压 DOCX 容器并从 word/document.xml 提取段落文本
type Extractor struct {
    logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
    return &Extractor{
        logger: log,
    }
}

func (e *Extractor) CanExtract(mimeType string) bool {
    return mimeType == extract.MIMEDocx
}

func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*models.ExtractedDocument, error) {
    zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
    if err != nil {
        return nil, extract.NewError(extract.CodeDocx,
            "Could not open the Word document. The file may be corrupted.", err)
    }

    var docEntry *zip.File
    for _, f := range zr.File {
        if f.Name == "word/document.xml" {
            docEntry = f
            break
        }
    }
    if docEntry == nil {
        return nil, extract.NewError(extract.CodeDocx,
            "The Word document is missing its main content part", nil)
    }

    rc, err := docEntry.Open()
    if err != nil {
        return nil, extract.NewError(extract.CodeDocx,
            "Could not read the Word document content", err)
    }
    defer rc.Close()

    paragraphs, warnings := parseDocumentXML(rc)
    for _, w := range warnings {
        // 转换器的警告只记录，不致命
        e.logger.Warn("DOCX converter warning",
            logger.String("filename", filename),
            logger.String("warning", w),
        )
    }

    text := strings.Join(paragraphs, "\n")
    if strings.TrimSpace(text) == "" {
        return nil, extract.NewError(extract.CodeDocx,
            "No extractable text was found in the Word document", nil)
    }

    return &models.ExtractedDocument{
        Text: text,
        Metadata: models.ExtractionMetadata{
            PageCount: 1,
            WordCount: extract.CountWords(text),
            FileSize:  int64(len(data)),
            Method:    string(models.Docx),
        },
    }, nil
}

// parseDocumentXML 遍历 WordprocessingML：w:p 为段落，w:t 为文本 run，
// w:tab/w:br 归一为空白。解析错误作为警告返回，已收集的段落仍然有效。
func parseDocumentXML(r io.Reader) (paragraphs []string, warnings []string) {
    dec := xml.NewDecoder(r)

    var (
        para   strings.Builder
        inText bool
    )

    flush := func() {
        line := strings.TrimSpace(para.String())
        para.Reset()
        if line != "" {
            paragraphs = append(paragraphs, line)
        }
    }

    for {
        tok, err := dec.Token()
        if err == io.EOF {
            break
        }
        if err != nil {
            warnings = append(warnings, "document.xml is truncated or malformed: "+err.Error())
            break
        }

        switch t := tok.(type) {
        case xml.StartElement:
            switch t.Name.Local {
            case "t":
                inText = true
            case "tab":
                para.WriteString(" ")
            case "br", "cr":
                para.WriteString(" ")
            }
        case xml.CharData:
            if inText {
                para.Write(t)
            }
        case xml.EndElement:
            switch t.Name.Local {
            case "t":
                inText = false
            case "p":
                flush()
            }
        }
    }
    flush()

    return paragraphs, warnings
}

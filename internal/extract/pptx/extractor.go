package pptx

import (
    "archive/zip"
    "bytes"
    "context"
    "fmt"
    "io"
    "path"
    "regexp"
    "sort"
    "strconv"
    "strings"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/internal/models"
    "github.com/edustack/material-importer/pkg/logger"
)

// PowerPoint 默认给图片起的通用占位名，不能当作有效描述
const genericPictureName = "Picture 1"

var (
    slideEntryRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
    notesEntryRe = regexp.MustCompile(`^ppt/notesSlides/notesSlide(\d+)\.xml$`)
)

// Extractor 解析 PPTX 容器：按幻灯片顺序提取文本块、标题、项目符号、
// 嵌入图片和演讲者备注。单张幻灯片解析失败不会中止整个提取。
type Extractor struct {
    logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
    return &Extractor{
        logger: log,
    }
}

func (e *Extractor) CanExtract(mimeType string) bool {
    return mimeType == extract.MIMEPptx
}

func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*models.ExtractedDocument, error) {
    zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
    if err != nil {
        return nil, extract.NewError(extract.CodePptx,
            "Could not open the presentation. The file may be corrupted.", err)
    }

    entries := make(map[string]*zip.File, len(zr.File))
    for _, f := range zr.File {
        entries[f.Name] = f
    }

    slideNums := numberedEntries(entries, slideEntryRe)

    var (
        blocks []string
        images []models.ImageReference
    )

    for _, n := range slideNums {
        select {
        case <-ctx.Done():
            return nil, extract.NewError(extract.CodePptx, "PPTX extraction was cancelled", ctx.Err())
        default:
        }

        slideData, err := readEntry(entries[fmt.Sprintf("ppt/slides/slide%d.xml", n)])
        if err != nil {
            e.logger.Warn("Failed to read slide entry",
                logger.String("filename", filename),
                logger.Int("slide", n),
                logger.Error(err),
            )
            continue
        }

        sc, err := parseSlide(slideData)
        if err != nil {
            // 坏的幻灯片跳过，其余继续
            e.logger.Warn("Failed to parse slide, skipping",
                logger.String("filename", filename),
                logger.Int("slide", n),
                logger.Error(err),
            )
            continue
        }

        slideImages := e.collectImages(entries, n, sc, filename)
        blocks = append(blocks, buildSlideBlock(n, sc, slideImages))
        images = append(images, slideImages...)
    }

    blocks = append(blocks, e.notesBlocks(entries, filename)...)

    text := strings.Join(blocks, "\n\n")
    if strings.TrimSpace(text) == "" {
        return nil, extract.NewError(extract.CodePptx,
            "No extractable text was found in the presentation", nil)
    }

    return &models.ExtractedDocument{
        Text: text,
        Metadata: models.ExtractionMetadata{
            PageCount: len(slideNums),
            WordCount: extract.CountWords(text),
            FileSize:  int64(len(data)),
            Method:    string(models.Pptx),
            Images:    images,
        },
    }, nil
}

// collectImages 解析幻灯片上每个 r:embed 引用：通过该幻灯片的关系部件
// 找到归档内的媒体条目，读出原始字节并按扩展名分类 MIME。
func (e *Extractor) collectImages(entries map[string]*zip.File, slideNum int, sc *slideContent, filename string) []models.ImageReference {
    if len(sc.pics) == 0 {
        return nil
    }

    rels := map[string]string{}
    relsPath := fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", slideNum)
    if relsEntry, ok := entries[relsPath]; ok {
        relsData, err := readEntry(relsEntry)
        if err == nil {
            if parsed, perr := parseRelationships(relsData); perr == nil {
                rels = parsed
            } else {
                e.logger.Warn("Failed to parse slide relationships",
                    logger.String("filename", filename),
                    logger.Int("slide", slideNum),
                    logger.Error(perr),
                )
            }
        }
    }

    var images []models.ImageReference
    for _, pic := range sc.pics {
        if pic.embedID == "" {
            continue
        }

        target, ok := rels[pic.embedID]
        if !ok {
            e.logger.Warn("Image relationship not found",
                logger.String("filename", filename),
                logger.Int("slide", slideNum),
                logger.String("embedId", pic.embedID),
            )
            continue
        }

        mediaEntry, ok := entries[target]
        if !ok {
            e.logger.Warn("Image media entry missing from archive",
                logger.String("filename", filename),
                logger.String("target", target),
            )
            continue
        }

        imgData, err := readEntry(mediaEntry)
        if err != nil {
            e.logger.Warn("Failed to read image bytes",
                logger.String("filename", filename),
                logger.String("target", target),
                logger.Error(err),
            )
            continue
        }

        mimeType, needsRaster := mimeForImage(target)
        images = append(images, models.ImageReference{
            SlideNumber: slideNum,
            Description: resolveDescription(pic, sc, slideNum),
            AltText:     pic.descr,
            EmbedID:     pic.embedID,
            Filename:    path.Base(target),
            MimeType:    mimeType,
            Data:        imgData,
            NeedsRaster: needsRaster,
            Position:    pic.pos,
        })
    }

    return images
}

// resolveDescription 图片描述的严格优先级：
// 形状名（非通用占位名）> alt text > 幻灯片标题 > 第一条较长正文 > 通用兜底
func resolveDescription(pic picInfo, sc *slideContent, slideNum int) string {
    if name := strings.TrimSpace(pic.name); name != "" && name != genericPictureName {
        return name
    }
    if alt := strings.TrimSpace(pic.descr); alt != "" {
        return alt
    }
    if sc.title != "" {
        return fmt.Sprintf("Image from %q (Slide %d)", sc.title, slideNum)
    }
    for _, line := range sc.body {
        if len([]rune(line)) > 10 {
            return fmt.Sprintf("Image: %s (Slide %d)", truncate(line, 50), slideNum)
        }
    }
    return fmt.Sprintf("Image on slide %d", slideNum)
}

func truncate(s string, max int) string {
    runes := []rune(s)
    if len(runes) <= max {
        return s
    }
    return string(runes[:max]) + "..."
}

// buildSlideBlock 组装一张幻灯片的文本块：
//
//	--- Slide N ---
//	TITLE: <title>      （与第一条正文重复时省略）
//
//	<body lines>
//	[IMAGES ON SLIDE N]: "<desc>", ...
func buildSlideBlock(slideNum int, sc *slideContent, images []models.ImageReference) string {
    var b strings.Builder
    fmt.Fprintf(&b, "--- Slide %d ---\n", slideNum)

    if sc.title != "" && (len(sc.body) == 0 || sc.body[0] != sc.title) {
        fmt.Fprintf(&b, "TITLE: %s\n\n", sc.title)
    }

    for _, line := range sc.body {
        b.WriteString(line)
        b.WriteString("\n")
    }

    if len(images) > 0 {
        quoted := make([]string, len(images))
        for i, img := range images {
            quoted[i] = strconv.Quote(img.Description)
        }
        fmt.Fprintf(&b, "[IMAGES ON SLIDE %d]: %s\n", slideNum, strings.Join(quoted, ", "))
    }

    return strings.TrimRight(b.String(), "\n")
}

// notesBlocks 扫描演讲者备注部件，生成 "--- Notes for Slide N ---" 块
func (e *Extractor) notesBlocks(entries map[string]*zip.File, filename string) []string {
    var blocks []string
    for _, n := range numberedEntries(entries, notesEntryRe) {
        data, err := readEntry(entries[fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", n)])
        if err != nil {
            continue
        }

        lines, err := parseTextLines(data)
        if err != nil {
            e.logger.Warn("Failed to parse notes slide, skipping",
                logger.String("filename", filename),
                logger.Int("slide", n),
                logger.Error(err),
            )
            continue
        }
        if len(lines) == 0 {
            continue
        }

        blocks = append(blocks, fmt.Sprintf("--- Notes for Slide %d ---\n%s", n, strings.Join(lines, "\n")))
    }
    return blocks
}

// numberedEntries 返回匹配命名约定的条目编号，升序
func numberedEntries(entries map[string]*zip.File, re *regexp.Regexp) []int {
    var nums []int
    for name := range entries {
        m := re.FindStringSubmatch(name)
        if m == nil {
            continue
        }
        if n, err := strconv.Atoi(m[1]); err == nil {
            nums = append(nums, n)
        }
    }
    sort.Ints(nums)
    return nums
}

func readEntry(f *zip.File) ([]byte, error) {
    rc, err := f.Open()
    if err != nil {
        return nil, err
    }
    defer rc.Close()
    return io.ReadAll(rc)
}

// mimeForImage 按扩展名分类；EMF/WMF 保留真实的矢量 MIME 并打 NeedsRaster 标记
func mimeForImage(target string) (string, bool) {
    switch strings.ToLower(path.Ext(target)) {
    case ".png":
        return "image/png", false
    case ".gif":
        return "image/gif", false
    case ".bmp":
        return "image/bmp", false
    case ".webp":
        return "image/webp", false
    case ".emf":
        return "image/x-emf", true
    case ".wmf":
        return "image/x-wmf", true
    default:
        return "image/jpeg", false
    }
}

package material

import (
    "archive/zip"
    "bytes"
    "context"
    "errors"
    "fmt"
    "io"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/internal/upload"
    "github.com/edustack/material-importer/pkg/logger"
)

// memStorage 内存对象存储，failFn 可按键注入持久失败
type memStorage struct {
    mu            sync.Mutex
    objects       map[string][]byte
    failFn        func(key string) error
    cleanedBefore time.Time
}

func newMemStorage() *memStorage {
    return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
    if m.failFn != nil {
        if err := m.failFn(key); err != nil {
            return "", err
        }
    }

    data, err := io.ReadAll(reader)
    if err != nil {
        return "", err
    }

    m.mu.Lock()
    m.objects[key] = data
    m.mu.Unlock()
    return "https://files.test/" + key, nil
}

func (m *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
    m.mu.Lock()
    data, ok := m.objects[key]
    m.mu.Unlock()
    if !ok {
        return nil, errors.New("object not found: " + key)
    }
    return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
    m.mu.Lock()
    delete(m.objects, key)
    m.mu.Unlock()
    return nil
}

func (m *memStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
    m.mu.Lock()
    m.cleanedBefore = threshold
    m.mu.Unlock()
    return nil
}

// testClock 阈值内的定时器立刻触发，超过阈值的永不触发
type testClock struct {
    threshold time.Duration
}

func (c testClock) Now() time.Time {
    return time.Now()
}

func (c testClock) After(d time.Duration) <-chan time.Time {
    if d <= c.threshold {
        ch := make(chan time.Time, 1)
        ch <- time.Now()
        return ch
    }
    return make(chan time.Time)
}

func buildDeck(t *testing.T, entries map[string][]byte) []byte {
    t.Helper()
    var buf bytes.Buffer
    zw := zip.NewWriter(&buf)
    for name, data := range entries {
        w, err := zw.Create(name)
        require.NoError(t, err)
        _, err = w.Write(data)
        require.NoError(t, err)
    }
    require.NoError(t, zw.Close())
    return buf.Bytes()
}

func slideWithPic(title, body, picName string) []byte {
    var b strings.Builder
    b.WriteString(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree>`)
    if title != "" {
        fmt.Fprintf(&b, `<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr><p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`, title)
    }
    if body != "" {
        fmt.Fprintf(&b, `<p:sp><p:nvSpPr><p:cNvPr id="3" name="Content"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`, body)
    }
    if picName != "" {
        fmt.Fprintf(&b, `<p:pic><p:nvPicPr><p:cNvPr id="5" name="%s" descr=""/><p:cNvPicPr/><p:nvPr/></p:nvPicPr><p:blipFill><a:blip r:embed="rId2"/></p:blipFill></p:pic>`, picName)
    }
    b.WriteString(`</p:spTree></p:cSld></p:sld>`)
    return []byte(b.String())
}

func relsFor(target string) []byte {
    return []byte(fmt.Sprintf(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="%s"/></Relationships>`, target))
}

func newTestService(store *memStorage) MaterialImporter {
    log := logger.NewTestLogger()
    orchestrator := upload.NewOrchestrator(store, log, upload.WithClock(testClock{threshold: 9 * time.Second}))
    return NewService(NewEngine(log), orchestrator, nil, store, log, nil)
}

func TestImportPipelineEndToEnd(t *testing.T) {
    store := newMemStorage()
    // 第二张幻灯片的图片持久失败，必须降级为占位符
    store.failFn = func(key string) error {
        if strings.Contains(key, "_s2_") {
            return errors.New("persistent storage failure")
        }
        return nil
    }

    deck := buildDeck(t, map[string][]byte{
        "ppt/slides/slide1.xml":            slideWithPic("Course Overview", "Welcome to the course", "Campus map"),
        "ppt/slides/_rels/slide1.xml.rels": relsFor("../media/image1.png"),
        "ppt/media/image1.png":             []byte("png-one"),
        "ppt/slides/slide2.xml":            slideWithPic("", "Grading policy details", "Syllabus timeline"),
        "ppt/slides/_rels/slide2.xml.rels": relsFor("../media/image2.png"),
        "ppt/media/image2.png":             []byte("png-two"),
        "ppt/slides/slide3.xml":            slideWithPic("", "Office hours on Friday", ""),
    })

    svc := newTestService(store)
    record, err := svc.Import(context.Background(), deck, "", "course.pptx", "mat-1", nil)
    require.NoError(t, err)

    require.Equal(t, "Course Overview", record.Title)
    require.Equal(t, "mat-1", record.MaterialID)
    require.Equal(t, 3, record.Metadata.PageCount)
    require.Equal(t, "pptx", record.Metadata.Method)
    require.Equal(t, 2, record.Metadata.ImageCount)

    require.Len(t, record.Images, 2)

    // 幻灯片 1 的图片上传成功，保留真实下载 URL
    first := record.Images[0]
    require.Equal(t, 0, first.Index)
    require.Equal(t, 1, first.SlideNumber)
    require.True(t, strings.HasPrefix(first.URL, "https://files.test/materials/mat-1/"))
    require.Contains(t, first.URL, "_s1_0")
    require.Equal(t, "Campus map", first.Title)

    // 幻灯片 2 的图片重试耗尽后变成占位符，标题保留描述
    second := record.Images[1]
    require.Equal(t, 1, second.Index)
    require.Equal(t, 2, second.SlideNumber)
    require.True(t, upload.IsPlaceholder(second.URL))
    require.Equal(t, "Syllabus timeline", second.Title)

    require.Contains(t, record.Text, "--- Slide 1 ---")
    require.Contains(t, record.Text, "Office hours on Friday")
}

func TestImportUnsupportedFormat(t *testing.T) {
    svc := newTestService(newMemStorage())

    _, err := svc.Import(context.Background(), []byte("data"), "application/zip", "archive.zip", "mat-1", nil)
    require.Error(t, err)

    var exErr *extract.Error
    require.ErrorAs(t, err, &exErr)
    require.Equal(t, extract.CodeUnsupported, exErr.Code)
}

func TestImportPlainText(t *testing.T) {
    svc := newTestService(newMemStorage())

    record, err := svc.Import(context.Background(), []byte("Chapter 1\nIntroduction to limits"), "text/plain", "calc.txt", "mat-2", nil)
    require.NoError(t, err)

    require.Equal(t, "Chapter 1", record.Title)
    require.Empty(t, record.Images)
    require.Equal(t, "txt", record.Metadata.Method)
}

func TestCleanupTasks(t *testing.T) {
    store := newMemStorage()
    svc := newTestService(store)

    before := time.Now()
    require.NoError(t, svc.CleanupTasks(context.Background()))

    // 默认保留期 24 小时，清理阈值应落在 now-24h 附近
    store.mu.Lock()
    threshold := store.cleanedBefore
    store.mu.Unlock()

    want := before.Add(-24 * time.Hour)
    require.False(t, threshold.IsZero())
    require.WithinDuration(t, want, threshold, 5*time.Second)
}

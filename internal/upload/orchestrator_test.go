package upload

import (
    "context"
    "errors"
    "fmt"
    "io"
    "path"
    "strconv"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/edustack/material-importer/internal/models"
    "github.com/edustack/material-importer/pkg/logger"
)

// stubStore 可编程的对象存储 mock
type stubStore struct {
    mu    sync.Mutex
    calls int
    keys  []string
    fn    func(call int, key string) (string, error)
}

func (s *stubStore) Store(ctx context.Context, r io.Reader, key string) (string, error) {
    s.mu.Lock()
    s.calls++
    call := s.calls
    s.keys = append(s.keys, key)
    s.mu.Unlock()

    if s.fn != nil {
        return s.fn(call, key)
    }
    return "https://cdn.test/" + key, nil
}

func (s *stubStore) callCount() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.calls
}

// countingOptimizer 记录调用次数，原样返回字节
type countingOptimizer struct {
    mu    sync.Mutex
    calls int
}

func (o *countingOptimizer) Optimize(data []byte, maxDimension int) ([]byte, error) {
    o.mu.Lock()
    o.calls++
    o.mu.Unlock()
    return data, nil
}

func (o *countingOptimizer) callCount() int {
    o.mu.Lock()
    defer o.mu.Unlock()
    return o.calls
}

// progressLog 并发安全的进度快照收集器
type progressLog struct {
    mu    sync.Mutex
    snaps []models.UploadProgress
}

func (p *progressLog) fn(pr models.UploadProgress) {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.snaps = append(p.snaps, pr)
}

func (p *progressLog) stages() []models.UploadStage {
    p.mu.Lock()
    defer p.mu.Unlock()
    stages := make([]models.UploadStage, len(p.snaps))
    for i, s := range p.snaps {
        stages[i] = s.Stage
    }
    return stages
}

func (p *progressLog) last(t *testing.T) models.UploadProgress {
    t.Helper()
    p.mu.Lock()
    defer p.mu.Unlock()
    require.NotEmpty(t, p.snaps)
    return p.snaps[len(p.snaps)-1]
}

func (p *progressLog) all() []models.UploadProgress {
    p.mu.Lock()
    defer p.mu.Unlock()
    snaps := make([]models.UploadProgress, len(p.snaps))
    copy(snaps, p.snaps)
    return snaps
}

func (p *progressLog) hasStage(stage models.UploadStage) bool {
    for _, s := range p.stages() {
        if s == stage {
            return true
        }
    }
    return false
}

// fastClock 阈值以内的定时器立即触发，超过阈值的永不触发。
// 退避和批间延迟走得飞快，超时竞速则永远不会赢。
type fastClock struct {
    threshold time.Duration
}

func (c fastClock) Now() time.Time {
    return time.Now()
}

func (c fastClock) After(d time.Duration) <-chan time.Time {
    if d <= c.threshold {
        ch := make(chan time.Time, 1)
        ch <- time.Now()
        return ch
    }
    return make(chan time.Time)
}

func makeRefs(n int, size int) []models.ImageReference {
    refs := make([]models.ImageReference, n)
    for i := range refs {
        refs[i] = models.ImageReference{
            SlideNumber: 1,
            Description: fmt.Sprintf("image %d", i),
            Filename:    "pic.png",
            MimeType:    "image/png",
            Data:        []byte(strings.Repeat("x", size)),
        }
    }
    return refs
}

// keyIndex 从对象键里解析出原始 index（键尾 _s{slide}_{index}{ext}）
func keyIndex(key string) int {
    base := strings.TrimSuffix(path.Base(key), path.Ext(key))
    parts := strings.Split(base, "_")
    idx, err := strconv.Atoi(parts[len(parts)-1])
    if err != nil {
        return 0
    }
    return idx
}

func TestUploadBatchPreservesInputOrder(t *testing.T) {
    store := &stubStore{}
    store.fn = func(call int, key string) (string, error) {
        // 后面的图片先完成，迫使编排器重排
        time.Sleep(time.Duration(4-keyIndex(key)) * 15 * time.Millisecond)
        return "https://cdn.test/" + key, nil
    }

    o := NewOrchestrator(store, logger.NewTestLogger())
    results := o.UploadBatch(context.Background(), makeRefs(5, 16), "mat-1", nil, nil)

    require.Len(t, results, 5)
    for i, r := range results {
        require.Equal(t, i, r.Index)
        require.False(t, IsPlaceholder(r.URL))
        require.True(t, strings.HasSuffix(r.URL, fmt.Sprintf("_s1_%d.png", i)), "unexpected url %q", r.URL)
    }
}

func TestUploadBatchSkipsBytelessReferences(t *testing.T) {
    store := &stubStore{}
    o := NewOrchestrator(store, logger.NewTestLogger())

    refs := makeRefs(3, 16)
    refs[1].Data = nil

    results := o.UploadBatch(context.Background(), refs, "mat-1", nil, nil)

    require.Len(t, results, 2)
    require.Equal(t, 0, results[0].Index)
    require.Equal(t, 2, results[1].Index)
}

func TestUploadBatchEmptyInput(t *testing.T) {
    o := NewOrchestrator(&stubStore{}, logger.NewTestLogger())
    results := o.UploadBatch(context.Background(), nil, "mat-1", nil, nil)
    require.NotNil(t, results)
    require.Empty(t, results)
}

func TestUploadBatchAllFailuresYieldPlaceholders(t *testing.T) {
    store := &stubStore{}
    store.fn = func(call int, key string) (string, error) {
        return "", errors.New("bucket unavailable")
    }

    progress := &progressLog{}
    o := NewOrchestrator(store, logger.NewTestLogger(), WithClock(fastClock{threshold: 9 * time.Second}))

    refs := makeRefs(3, 16)
    results := o.UploadBatch(context.Background(), refs, "mat-1", nil, progress.fn)

    require.Len(t, results, 3)
    for i, r := range results {
        require.Equal(t, i, r.Index)
        require.True(t, IsPlaceholder(r.URL))
        require.Equal(t, refs[i].Description, r.Title)
    }

    last := progress.last(t)
    require.Equal(t, models.StageFailed, last.Stage)
    require.Equal(t, 3, last.FailedCount)
    require.Equal(t, 0, last.SuccessCount)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
    store := &stubStore{}
    store.fn = func(call int, key string) (string, error) {
        if call <= 2 {
            return "", errors.New("transient write error")
        }
        return "https://cdn.test/" + key, nil
    }

    o := NewOrchestrator(store, logger.NewTestLogger(), WithClock(fastClock{threshold: 9 * time.Second}))
    results := o.UploadBatch(context.Background(), makeRefs(1, 16), "mat-1", nil, nil)

    require.Len(t, results, 1)
    require.False(t, IsPlaceholder(results[0].URL))
    require.Equal(t, 3, store.callCount())
}

func TestSimpleStrategyForSmallBatches(t *testing.T) {
    store := &stubStore{}
    opt := &countingOptimizer{}
    progress := &progressLog{}

    o := NewOrchestrator(store, logger.NewTestLogger(), WithOptimizer(opt))
    results := o.UploadBatch(context.Background(), makeRefs(2, 16), "mat-1", nil, progress.fn)

    require.Len(t, results, 2)
    // 简单策略没有 preparing 阶段，也不压缩
    require.False(t, progress.hasStage(models.StagePreparing))
    require.Equal(t, 0, opt.callCount())
    require.Equal(t, models.StageCompleted, progress.last(t).Stage)
}

func TestOversizedImageTriggersEnhancedStrategy(t *testing.T) {
    store := &stubStore{}
    opt := &countingOptimizer{}
    progress := &progressLog{}

    o := NewOrchestrator(store, logger.NewTestLogger(), WithOptimizer(opt))
    opts := &Options{CompressionThreshold: 10}

    results := o.UploadBatch(context.Background(), makeRefs(1, 100), "mat-1", opts, progress.fn)

    require.Len(t, results, 1)
    require.False(t, IsPlaceholder(results[0].URL))
    require.True(t, progress.hasStage(models.StagePreparing))
    require.Equal(t, 1, opt.callCount())
}

func TestManyImagesTriggerEnhancedStrategy(t *testing.T) {
    store := &stubStore{}
    progress := &progressLog{}

    o := NewOrchestrator(store, logger.NewTestLogger(), WithClock(fastClock{threshold: time.Second}))
    results := o.UploadBatch(context.Background(), makeRefs(21, 16), "mat-1", nil, progress.fn)

    require.Len(t, results, 21)
    for i, r := range results {
        require.Equal(t, i, r.Index)
        require.False(t, IsPlaceholder(r.URL))
    }

    require.True(t, progress.hasStage(models.StagePreparing))

    last := progress.last(t)
    require.Equal(t, models.StageCompleted, last.Stage)
    require.Equal(t, 7, last.TotalBatches)
    require.Equal(t, 21, last.Completed)
    require.InDelta(t, 100.0, last.Percentage, 0.01)
}

func TestBatchTimeoutDegradesWholeBatch(t *testing.T) {
    blockCh := make(chan struct{})
    t.Cleanup(func() { close(blockCh) })

    store := &stubStore{}
    store.fn = func(call int, key string) (string, error) {
        <-blockCh
        return "", errors.New("storage down")
    }

    opt := &countingOptimizer{}
    progress := &progressLog{}
    o := NewOrchestrator(store, logger.NewTestLogger(), WithOptimizer(opt))

    opts := &Options{
        BatchTimeout:         40 * time.Millisecond,
        AttemptTimeout:       5 * time.Second,
        CompressionThreshold: 1, // 强制增强策略
    }

    refs := makeRefs(3, 8)
    results := o.UploadBatch(context.Background(), refs, "mat-1", opts, progress.fn)

    require.Len(t, results, 3)
    for i, r := range results {
        require.Equal(t, i, r.Index)
        require.True(t, IsPlaceholder(r.URL))
        require.Equal(t, refs[i].Description, r.Title)
    }

    last := progress.last(t)
    require.Equal(t, models.StageFailed, last.Stage)
    require.Equal(t, 3, last.FailedCount)
    require.Equal(t, 0, last.SuccessCount)
    require.Equal(t, 3, last.Completed)
}

func TestDegradedBatchIgnoresLateSettles(t *testing.T) {
    store := &stubStore{}
    store.fn = func(call int, key string) (string, error) {
        // 上传在批超时之后才完成
        time.Sleep(80 * time.Millisecond)
        return "https://cdn.test/" + key, nil
    }

    opt := &countingOptimizer{}
    progress := &progressLog{}
    o := NewOrchestrator(store, logger.NewTestLogger(), WithOptimizer(opt))

    opts := &Options{
        BatchSize:            3,
        BatchTimeout:         20 * time.Millisecond,
        AttemptTimeout:       5 * time.Second,
        InterBatchDelay:      time.Millisecond,
        CompressionThreshold: 1, // 强制增强策略
    }

    results := o.UploadBatch(context.Background(), makeRefs(6, 8), "mat-1", opts, progress.fn)

    require.Len(t, results, 6)
    for i, r := range results {
        require.Equal(t, i, r.Index)
        require.True(t, IsPlaceholder(r.URL))
    }

    // 等迟到的上传真正完成，它们的结果必须被丢弃而不是计入进度
    time.Sleep(150 * time.Millisecond)

    for _, snap := range progress.all() {
        require.LessOrEqual(t, snap.Completed, snap.Total)
        require.LessOrEqual(t, snap.Percentage, 100.0)
        require.LessOrEqual(t, snap.SuccessCount+snap.FailedCount, snap.Total)
    }

    last := progress.last(t)
    require.Equal(t, 6, last.Completed)
    require.Equal(t, 6, last.FailedCount)
    require.Equal(t, 0, last.SuccessCount)
}

func TestObjectKeyLayout(t *testing.T) {
    o := NewOrchestrator(&stubStore{}, logger.NewTestLogger())

    j := job{ref: models.ImageReference{SlideNumber: 4, Filename: "photo.JPG"}, index: 2}
    key := o.objectKey("mat-9", j)

    require.True(t, strings.HasPrefix(key, "materials/mat-9/"))
    require.True(t, strings.HasSuffix(key, "_s4_2.jpg"))

    // 同一输入两次生成的键不同，避免覆盖
    require.NotEqual(t, key, o.objectKey("mat-9", j))
}

func TestBackoffDelayCapped(t *testing.T) {
    for attempt := 1; attempt <= 6; attempt++ {
        d := backoffDelay(attempt)
        require.GreaterOrEqual(t, d, baseBackoffDelay)
        require.LessOrEqual(t, d, maxBackoffDelay+baseBackoffDelay/2)
    }
}

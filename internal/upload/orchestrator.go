package upload

import (
    "bytes"
    "context"
    "fmt"
    "io"
    "math/rand"
    "path"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/edustack/material-importer/internal/models"
    "github.com/edustack/material-importer/pkg/logger"
)

// ObjectStore 编排器对对象存储的唯一依赖：写入并返回下载 URL。
// pkg/storage 的 Storage 实现满足这个接口。
type ObjectStore interface {
    Store(ctx context.Context, reader io.Reader, key string) (string, error)
}

// ProgressFunc 调用方提供的进度 sink。可能被调用零到多次，
// 快照不保证严格递增，也不保证有终结调用。
type ProgressFunc func(models.UploadProgress)

// Options 上传编排配置。零值字段使用默认值。
type Options struct {
    BatchSize            int           // 每批并发上传的图片数
    MaxRetries           int           // 单图重试次数（不含首次尝试）
    AttemptTimeout       time.Duration // 单次上传尝试的超时
    BatchTimeout         time.Duration // 整批超时（仅增强策略）
    InterBatchDelay      time.Duration // 批间固定延迟，防止被限流
    CompressionThreshold int64         // 超过该大小的图片先压缩
    MaxImageDimension    int           // 压缩时的最大边长
}

const (
    defaultSimpleBatchSize      = 5
    defaultEnhancedBatchSize    = 3
    defaultMaxRetries           = 3
    defaultSimpleTimeout        = 10 * time.Second
    defaultEnhancedTimeout      = 15 * time.Second
    defaultBatchTimeout         = 45 * time.Second
    defaultInterBatchDelay      = 500 * time.Millisecond
    defaultCompressionThreshold = 2 << 20 // 2MB
    defaultMaxImageDimension    = 1200

    // 简单策略的适用上限：图片总数不超过它且没有超阈值的大图
    simpleMaxImages = 20

    baseBackoffDelay = 500 * time.Millisecond
    maxBackoffDelay  = 8 * time.Second
)

// Orchestrator 批量图片上传编排器。
// 对每个携带字节的输入图片保证恰好一个结果：成功的 URL 或占位符，
// 公开入口永远不返回错误。
type Orchestrator struct {
    store     ObjectStore
    optimizer Optimizer
    clock     Clock
    logger    logger.Logger
}

// Option 编排器可选配置
type Option func(*Orchestrator)

// WithClock 注入时钟，测试用
func WithClock(c Clock) Option {
    return func(o *Orchestrator) {
        o.clock = c
    }
}

// WithOptimizer 替换图片压缩实现
func WithOptimizer(opt Optimizer) Option {
    return func(o *Orchestrator) {
        o.optimizer = opt
    }
}

func NewOrchestrator(store ObjectStore, log logger.Logger, opts ...Option) *Orchestrator {
    o := &Orchestrator{
        store:     store,
        optimizer: NewImagingOptimizer(log),
        clock:     realClock{},
        logger:    log,
    }
    for _, opt := range opts {
        opt(o)
    }
    return o
}

// job 一个待上传图片及其在输入列表中的原始位置
type job struct {
    ref   models.ImageReference
    index int
}

// UploadBatch 上传一组图片到 materials/{materialID}/ 下。
// 返回值按原始 index 排序，长度等于携带字节的输入图片数；
// 没有字节的引用被静默排除，由调用方自行对账。
func (o *Orchestrator) UploadBatch(
    ctx context.Context,
    images []models.ImageReference,
    materialID string,
    opts *Options,
    onProgress ProgressFunc,
) []models.UploadedImage {
    options := o.withDefaults(opts)

    jobs := make([]job, 0, len(images))
    for i, img := range images {
        if len(img.Data) == 0 {
            continue
        }
        jobs = append(jobs, job{ref: img, index: i})
    }
    if len(jobs) == 0 {
        return []models.UploadedImage{}
    }

    enhanced := o.selectStrategy(jobs, options)
    batchSize := options.BatchSize
    if batchSize <= 0 {
        if enhanced {
            batchSize = defaultEnhancedBatchSize
        } else {
            batchSize = defaultSimpleBatchSize
        }
    }
    if options.AttemptTimeout <= 0 {
        if enhanced {
            options.AttemptTimeout = defaultEnhancedTimeout
        } else {
            options.AttemptTimeout = defaultSimpleTimeout
        }
    }

    totalBatches := (len(jobs) + batchSize - 1) / batchSize
    tr := &tracker{
        total:        len(jobs),
        totalBatches: totalBatches,
        abandoned:    make(map[int]bool),
        start:        o.clock.Now(),
        clock:        o.clock,
        sink:         onProgress,
    }

    o.logger.Info("Starting image upload batch",
        logger.String("materialId", materialID),
        logger.Int("imageCount", len(jobs)),
        logger.Int("totalBatches", totalBatches),
        logger.Bool("enhanced", enhanced),
    )

    if enhanced {
        tr.emit(models.StagePreparing, 0)
    }

    results := make([]models.UploadedImage, 0, len(jobs))
    for b := 0; b*batchSize < len(jobs); b++ {
        if b > 0 {
            // 批间延迟是刻意的背压，不是疏漏
            o.sleep(ctx, options.InterBatchDelay)
        }

        end := (b + 1) * batchSize
        if end > len(jobs) {
            end = len(jobs)
        }
        batch := jobs[b*batchSize : end]

        results = append(results, o.runBatch(ctx, batch, materialID, b+1, enhanced, options, tr)...)
        tr.emit(models.StageUploading, b+1)
    }

    // 并发完成顺序不定，按原始 index 恢复提交顺序
    sort.Slice(results, func(i, j int) bool {
        return results[i].Index < results[j].Index
    })

    finalStage := models.StageCompleted
    if tr.failedCount() == len(jobs) {
        finalStage = models.StageFailed
    }
    tr.emit(finalStage, totalBatches)

    o.logger.Info("Image upload batch finished",
        logger.String("materialId", materialID),
        logger.Int("succeeded", tr.successCount()),
        logger.Int("failed", tr.failedCount()),
    )

    return results
}

// selectStrategy 增强策略的触发条件：数量超限或存在超阈值的大图。
// 策略选择不泄漏给调用方，返回数组形状两种策略一致。
func (o *Orchestrator) selectStrategy(jobs []job, options Options) bool {
    if len(jobs) > simpleMaxImages {
        return true
    }
    for _, j := range jobs {
        if int64(len(j.ref.Data)) > options.CompressionThreshold {
            return true
        }
    }
    return false
}

// runBatch 并发上传一批图片。增强策略下整批与一个批超时竞速：
// 批超时触发时，批内所有图片（包括已完成的）降级为占位符 —
// 没有真正的请求取消，只是不再等待结果。
func (o *Orchestrator) runBatch(
    ctx context.Context,
    batch []job,
    materialID string,
    batchNum int,
    enhanced bool,
    options Options,
    tr *tracker,
) []models.UploadedImage {
    resCh := make(chan models.UploadedImage, len(batch))

    var wg sync.WaitGroup
    for _, j := range batch {
        j := j
        wg.Add(1)
        go func() {
            defer wg.Done()
            res := o.uploadOne(ctx, j, materialID, enhanced, options)
            if tr.settle(batchNum, !IsPlaceholder(res.URL)) && enhanced {
                tr.emit(models.StageUploading, batchNum)
            }
            resCh <- res
        }()
    }

    if !enhanced {
        wg.Wait()
        close(resCh)
        results := make([]models.UploadedImage, 0, len(batch))
        for r := range resCh {
            results = append(results, r)
        }
        return results
    }

    timer := o.clock.After(options.BatchTimeout)
    results := make([]models.UploadedImage, 0, len(batch))

    degrade := func() []models.UploadedImage {
        settledOK := 0
        for _, r := range results {
            if !IsPlaceholder(r.URL) {
                settledOK++
            }
        }
        tr.degradeBatch(batchNum, len(batch), len(results), settledOK)
        degraded := make([]models.UploadedImage, 0, len(batch))
        for _, j := range batch {
            degraded = append(degraded, o.placeholderResult(j))
        }
        return degraded
    }

    for len(results) < len(batch) {
        select {
        case r := <-resCh:
            results = append(results, r)
        case <-timer:
            o.logger.Warn("Batch timed out, degrading entire batch to placeholders",
                logger.String("materialId", materialID),
                logger.Int("batch", batchNum),
                logger.Int("batchSize", len(batch)),
                logger.Duration("timeout", options.BatchTimeout),
            )
            return degrade()
        case <-ctx.Done():
            return degrade()
        }
    }
    return results
}

// uploadOne 单图上传：可选压缩 → 生成防碰撞对象键 → 带超时竞速的尝试 →
// 指数退避加抖动的重试 → 重试耗尽后返回占位符。
func (o *Orchestrator) uploadOne(ctx context.Context, j job, materialID string, enhanced bool, options Options) models.UploadedImage {
    data := j.ref.Data

    if enhanced && int64(len(data)) > options.CompressionThreshold {
        optimized, err := o.optimizer.Optimize(data, options.MaxImageDimension)
        if err != nil {
            // 解码失败（比如 NeedsRaster 的矢量字节）回退到原始字节
            o.logger.Warn("Image optimization failed, uploading original bytes",
                logger.String("filename", j.ref.Filename),
                logger.String("mimeType", j.ref.MimeType),
                logger.Error(err),
            )
        } else {
            data = optimized
        }
    }

    key := o.objectKey(materialID, j)

    var lastErr error
    for attempt := 0; attempt <= options.MaxRetries; attempt++ {
        if attempt > 0 {
            if !o.sleep(ctx, backoffDelay(attempt)) {
                break
            }
        }

        url, err := o.storeWithTimeout(ctx, data, key, options.AttemptTimeout)
        if err == nil {
            return models.UploadedImage{
                URL:              url,
                Title:            j.ref.Description,
                OriginalFilename: j.ref.Filename,
                SlideNumber:      j.ref.SlideNumber,
                Index:            j.index,
            }
        }

        lastErr = err
        o.logger.Warn("Upload attempt failed",
            logger.String("key", key),
            logger.Int("attempt", attempt+1),
            logger.Error(err),
        )
    }

    o.logger.Error("Upload failed after all retries, using placeholder",
        logger.String("key", key),
        logger.Error(lastErr),
    )
    return o.placeholderResult(j)
}

// storeWithTimeout 让上传和单次尝试计时器竞速。计时器先到只是停止等待，
// 对重试计数与上传失败等价。
func (o *Orchestrator) storeWithTimeout(ctx context.Context, data []byte, key string, timeout time.Duration) (string, error) {
    type storeResult struct {
        url string
        err error
    }
    resCh := make(chan storeResult, 1)

    go func() {
        url, err := o.store.Store(ctx, bytes.NewReader(data), key)
        resCh <- storeResult{url: url, err: err}
    }()

    select {
    case r := <-resCh:
        return r.url, r.err
    case <-o.clock.After(timeout):
        return "", fmt.Errorf("upload attempt timed out after %s", timeout)
    case <-ctx.Done():
        return "", ctx.Err()
    }
}

// objectKey 生成防碰撞对象键：时间戳 + 随机后缀 + 幻灯片号 + 原始位置
func (o *Orchestrator) objectKey(materialID string, j job) string {
    ext := strings.ToLower(path.Ext(j.ref.Filename))
    if ext == "" {
        ext = ".jpg"
    }
    name := fmt.Sprintf("%d_%s_s%d_%d%s",
        o.clock.Now().UnixMilli(),
        strings.SplitN(uuid.NewString(), "-", 2)[0],
        j.ref.SlideNumber,
        j.index,
        ext,
    )
    return fmt.Sprintf("materials/%s/%s", materialID, name)
}

func (o *Orchestrator) placeholderResult(j job) models.UploadedImage {
    return models.UploadedImage{
        URL:              PlaceholderDataURI(j.ref.Description),
        Title:            j.ref.Description,
        OriginalFilename: j.ref.Filename,
        SlideNumber:      j.ref.SlideNumber,
        Index:            j.index,
    }
}

// sleep 可被 ctx 打断的延迟；返回 false 表示被取消
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
    if d <= 0 {
        return true
    }
    select {
    case <-o.clock.After(d):
        return true
    case <-ctx.Done():
        return false
    }
}

func (o *Orchestrator) withDefaults(opts *Options) Options {
    options := Options{}
    if opts != nil {
        options = *opts
    }
    if options.MaxRetries <= 0 {
        options.MaxRetries = defaultMaxRetries
    }
    if options.BatchTimeout <= 0 {
        options.BatchTimeout = defaultBatchTimeout
    }
    if options.InterBatchDelay <= 0 {
        options.InterBatchDelay = defaultInterBatchDelay
    }
    if options.CompressionThreshold <= 0 {
        options.CompressionThreshold = defaultCompressionThreshold
    }
    if options.MaxImageDimension <= 0 {
        options.MaxImageDimension = defaultMaxImageDimension
    }
    return options
}

// backoffDelay 指数退避加抖动，封顶
func backoffDelay(attempt int) time.Duration {
    delay := baseBackoffDelay << (attempt - 1)
    if delay > maxBackoffDelay {
        delay = maxBackoffDelay
    }
    jitter := time.Duration(rand.Int63n(int64(baseBackoffDelay / 2)))
    return delay + jitter
}

// tracker 进度计数器。settle 在批内并发调用，emit 产出的是时点快照，
// 批超时路径下已完成的成功会被改记为失败，快照因此不保证单调，
// 但 Completed 永远不会超过 total：被放弃的批里迟到的结果会被忽略。
type tracker struct {
    mu           sync.Mutex
    completed    int
    success      int
    failed       int
    total        int
    totalBatches int
    abandoned    map[int]bool
    start        time.Time
    clock        Clock
    sink         ProgressFunc
}

// settle 记录一个图片的最终结果。所属批已被放弃时返回 false 且不计数：
// 调用方早已拿到占位符，迟到的结果不能再动计数器。
func (t *tracker) settle(batch int, ok bool) bool {
    t.mu.Lock()
    defer t.mu.Unlock()
    if t.abandoned[batch] {
        return false
    }
    t.completed++
    if ok {
        t.success++
    } else {
        t.failed++
    }
    return true
}

// degradeBatch 批超时：整批标记为放弃，未完成的按失败计入，
// 批内已成功的改记为失败
func (t *tracker) degradeBatch(batch, batchTotal, settled, settledOK int) {
    t.mu.Lock()
    defer t.mu.Unlock()
    t.abandoned[batch] = true
    unsettled := batchTotal - settled
    if unsettled < 0 {
        unsettled = 0
    }
    t.completed += unsettled
    t.failed += unsettled + settledOK
    t.success -= settledOK
    if t.success < 0 {
        t.success = 0
    }
}

func (t *tracker) successCount() int {
    t.mu.Lock()
    defer t.mu.Unlock()
    return t.success
}

func (t *tracker) failedCount() int {
    t.mu.Lock()
    defer t.mu.Unlock()
    return t.failed
}

func (t *tracker) emit(stage models.UploadStage, currentBatch int) {
    if t.sink == nil {
        return
    }

    t.mu.Lock()
    completed := t.completed
    success := t.success
    failed := t.failed
    t.mu.Unlock()

    percentage := 0.0
    if t.total > 0 {
        percentage = float64(completed) / float64(t.total) * 100
    }

    // 预计剩余时间 = 已耗时 / 已完成数 × 剩余数
    eta := 0.0
    if completed > 0 && completed < t.total {
        elapsed := t.clock.Now().Sub(t.start).Seconds()
        eta = elapsed / float64(completed) * float64(t.total-completed)
    }

    t.sink(models.UploadProgress{
        Stage:                     stage,
        Completed:                 completed,
        Total:                     t.total,
        Percentage:                percentage,
        CurrentBatch:              currentBatch,
        TotalBatches:              t.totalBatches,
        FailedCount:               failed,
        SuccessCount:              success,
        EstimatedSecondsRemaining: eta,
    })
}

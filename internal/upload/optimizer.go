package upload

import (
    "bytes"

    "github.com/disintegration/imaging"

    "github.com/edustack/material-importer/pkg/logger"
)

// Optimizer 上传前的图片压缩/缩放
type Optimizer interface {
    // Optimize 把图片限制到最大边长并重新编码，返回的字节不会比输入更大
    Optimize(data []byte, maxDimension int) ([]byte, error)
}

// ImagingOptimizer 基于 imaging 的实现：解码 → Fit 到最大边长 → JPEG 重编码。
// 解码失败（比如 EMF/WMF 矢量字节）由调用方回退到原始字节。
type ImagingOptimizer struct {
    quality int
    logger  logger.Logger
}

func NewImagingOptimizer(log logger.Logger) *ImagingOptimizer {
    return &ImagingOptimizer{
        quality: 80,
        logger:  log,
    }
}

func (o *ImagingOptimizer) Optimize(data []byte, maxDimension int) ([]byte, error) {
    img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
    if err != nil {
        return nil, err
    }

    bounds := img.Bounds()
    if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
        img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
    }

    var buf bytes.Buffer
    if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(o.quality)); err != nil {
        return nil, err
    }

    // 重编码反而更大时保留原始字节
    if buf.Len() >= len(data) {
        return data, nil
    }

    o.logger.Debug("Image optimized",
        logger.Int("originalSize", len(data)),
        logger.Int("optimizedSize", buf.Len()),
    )

    return buf.Bytes(), nil
}

package upload

import (
    "encoding/base64"
    "fmt"
    "regexp"
    "strings"
)

// 占位符文案只允许一个受限字符集，避免 SVG/URI 编码问题
var placeholderUnsafe = regexp.MustCompile(`[^a-zA-Z0-9 .,:()'\-]`)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="300" viewBox="0 0 400 300"><rect width="400" height="300" fill="#f3f4f6"/><rect x="8" y="8" width="384" height="284" fill="none" stroke="#d1d5db" stroke-width="2" stroke-dasharray="8 4"/><text x="200" y="140" font-family="sans-serif" font-size="18" fill="#6b7280" text-anchor="middle">Image Upload Failed</text><text x="200" y="170" font-family="sans-serif" font-size="13" fill="#9ca3af" text-anchor="middle">%s</text></svg>`

// PlaceholderDataURI 为上传彻底失败的图片生成确定性的内联 SVG 占位符。
// 同一描述永远生成同一 URI。
func PlaceholderDataURI(description string) string {
    desc := placeholderUnsafe.ReplaceAllString(description, "")
    desc = strings.TrimSpace(desc)
    if len(desc) > 60 {
        desc = desc[:60]
    }

    svg := fmt.Sprintf(placeholderSVG, desc)
    return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// IsPlaceholder 判断一个 URL 是否为降级占位符
func IsPlaceholder(url string) bool {
    return strings.HasPrefix(url, "data:image/svg+xml")
}

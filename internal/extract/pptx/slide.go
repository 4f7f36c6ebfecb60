package pptx

import (
    "bytes"
    "encoding/xml"
    "io"
    "regexp"
    "strconv"
    "strings"

    "github.com/edustack/material-importer/internal/models"
)

// picInfo 幻灯片上的一个嵌入图片引用（尚未解析到归档条目）
type picInfo struct {
    name    string // p:nvPicPr/p:cNvPr name 属性
    descr   string // alt text（descr 属性）
    embedID string // a:blip 的 r:embed 关系 ID
    pos     *models.ImagePosition
}

// slideContent 单张幻灯片解析后的结构
type slideContent struct {
    title string
    body  []string
    pics  []picInfo
}

// title 占位符的两种类型属性值
func isTitlePlaceholder(phType string) bool {
    return phType == "title" || phType == "ctrTitle"
}

// parseSlide 对 slideN.xml 做一次 token 级遍历。
// 不构建完整 DOM：只关心 sp/pic 边界、占位符类型、文本 run 和 blip 引用。
func parseSlide(data []byte) (*slideContent, error) {
    dec := xml.NewDecoder(bytes.NewReader(data))
    sc := &slideContent{}

    var (
        inShape      bool
        shapeIsTitle bool
        shapeLines   []string
        inPic        bool
        curPic       *picInfo
        txBodyDepth  int
        inT          bool
        para         strings.Builder
    )

    flushPara := func() {
        line := normalizeLine(para.String())
        para.Reset()
        if line == "" {
            return
        }
        if inShape {
            shapeLines = append(shapeLines, line)
        }
    }

    flushShape := func() {
        if shapeIsTitle && sc.title == "" && len(shapeLines) > 0 {
            sc.title = shapeLines[0]
            sc.body = append(sc.body, shapeLines[1:]...)
        } else {
            sc.body = append(sc.body, shapeLines...)
        }
        shapeLines = nil
        shapeIsTitle = false
        inShape = false
    }

    for {
        tok, err := dec.Token()
        if err == io.EOF {
            break
        }
        if err != nil {
            return nil, err
        }

        switch t := tok.(type) {
        case xml.StartElement:
            switch t.Name.Local {
            case "sp":
                inShape = true
                shapeIsTitle = false
                shapeLines = nil
            case "pic":
                inPic = true
                sc.pics = append(sc.pics, picInfo{})
                curPic = &sc.pics[len(sc.pics)-1]
            case "cNvPr":
                if inPic && curPic != nil {
                    curPic.name = attrValue(t, "name")
                    curPic.descr = attrValue(t, "descr")
                }
            case "ph":
                if inShape && isTitlePlaceholder(attrValue(t, "type")) {
                    shapeIsTitle = true
                }
            case "blip":
                if inPic && curPic != nil && curPic.embedID == "" {
                    curPic.embedID = attrValue(t, "embed")
                }
            case "off":
                if inPic && curPic != nil {
                    ensurePos(curPic)
                    curPic.pos.X = attrInt64(t, "x")
                    curPic.pos.Y = attrInt64(t, "y")
                }
            case "ext":
                if inPic && curPic != nil {
                    ensurePos(curPic)
                    curPic.pos.Width = attrInt64(t, "cx")
                    curPic.pos.Height = attrInt64(t, "cy")
                }
            case "txBody":
                txBodyDepth++
            case "t":
                if txBodyDepth > 0 {
                    inT = true
                }
            case "br":
                if txBodyDepth > 0 {
                    para.WriteString(" ")
                }
            }
        case xml.CharData:
            if inT {
                para.Write(t)
            }
        case xml.EndElement:
            switch t.Name.Local {
            case "t":
                inT = false
            case "p":
                if txBodyDepth > 0 {
                    flushPara()
                }
            case "txBody":
                txBodyDepth--
            case "sp":
                if inShape {
                    flushShape()
                }
            case "pic":
                inPic = false
                curPic = nil
            }
        }
    }

    return sc, nil
}

func ensurePos(p *picInfo) {
    if p.pos == nil {
        p.pos = &models.ImagePosition{}
    }
}

func attrValue(el xml.StartElement, local string) string {
    for _, a := range el.Attr {
        if a.Name.Local == local {
            return a.Value
        }
    }
    return ""
}

// EMU 偏移可以是负数（元素画到幻灯片边界外）
func attrInt64(el xml.StartElement, local string) int64 {
    n, err := strconv.ParseInt(attrValue(el, local), 10, 64)
    if err != nil {
        return 0
    }
    return n
}

// 常见主题用的项目符号前导字符
var bulletPrefixes = []string{"•", "◦", "▪", "·", "–", "*", "-"}

var numberedRe = regexp.MustCompile(`^\d{1,3}[.)]\s`)

// normalizeLine 去掉首尾空白并把项目符号归一为 "- "；编号列表原样保留
func normalizeLine(s string) string {
    s = strings.TrimSpace(s)
    if s == "" {
        return ""
    }
    for _, prefix := range bulletPrefixes {
        if strings.HasPrefix(s, prefix) {
            rest := strings.TrimSpace(strings.TrimPrefix(s, prefix))
            if rest == "" {
                return ""
            }
            return "- " + rest
        }
    }
    if numberedRe.MatchString(s) {
        return s
    }
    return s
}

// parseTextLines 收集任意 XML 部件中 txBody 内的文本段落，用于演讲者备注
func parseTextLines(data []byte) ([]string, error) {
    dec := xml.NewDecoder(bytes.NewReader(data))

    var (
        lines       []string
        txBodyDepth int
        inT         bool
        para        strings.Builder
    )

    for {
        tok, err := dec.Token()
        if err == io.EOF {
            break
        }
        if err != nil {
            return nil, err
        }

        switch t := tok.(type) {
        case xml.StartElement:
            switch t.Name.Local {
            case "txBody":
                txBodyDepth++
            case "t":
                if txBodyDepth > 0 {
                    inT = true
                }
            }
        case xml.CharData:
            if inT {
                para.Write(t)
            }
        case xml.EndElement:
            switch t.Name.Local {
            case "t":
                inT = false
            case "p":
                if txBodyDepth > 0 {
                    if line := strings.TrimSpace(para.String()); line != "" {
                        lines = append(lines, line)
                    }
                    para.Reset()
                }
            case "txBody":
                txBodyDepth--
            }
        }
    }

    return lines, nil
}

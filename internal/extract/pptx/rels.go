package pptx

import (
    "encoding/xml"
    "strings"
)

// relationshipsXML 映射 slideN.xml.rels 部件
type relationshipsXML struct {
    XMLName xml.Name `xml:"Relationships"`
    Rels    []struct {
        ID     string `xml:"Id,attr"`
        Target string `xml:"Target,attr"`
    } `xml:"Relationship"`
}

// parseRelationships 解析关系部件，返回 rId -> 归档内路径
func parseRelationships(data []byte) (map[string]string, error) {
    var rels relationshipsXML
    if err := xml.Unmarshal(data, &rels); err != nil {
        return nil, err
    }

    m := make(map[string]string, len(rels.Rels))
    for _, r := range rels.Rels {
        m[r.ID] = resolveTarget(r.Target)
    }
    return m, nil
}

// resolveTarget 把相对于 ppt/slides/ 的关系目标归一为归档内的绝对路径
func resolveTarget(target string) string {
    target = strings.TrimPrefix(target, "/")
    if strings.HasPrefix(target, "ppt/") {
        return target
    }
    if strings.HasPrefix(target, "../") {
        return "ppt/" + strings.TrimPrefix(target, "../")
    }
    return "ppt/slides/" + target
}

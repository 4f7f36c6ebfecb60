package docx

import (
    "archive/zip"
    "bytes"
    "context"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/pkg/logger"
)

func buildDocx(t *testing.T, documentXML string) []byte {
    t.Helper()
    var buf bytes.Buffer
    zw := zip.NewWriter(&buf)
    w, err := zw.Create("word/document.xml")
    require.NoError(t, err)
    _, err = w.Write([]byte(documentXML))
    require.NoError(t, err)
    require.NoError(t, zw.Close())
    return buf.Bytes()
}

const simpleDoc = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Alpha</w:t></w:r><w:r><w:tab/></w:r><w:r><w:t>Beta</w:t></w:r></w:p>
<w:p><w:r><w:t>Gamma</w:t></w:r></w:p>
<w:p/>
</w:body></w:document>`

func TestExtractParagraphs(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    doc, err := e.Extract(context.Background(), buildDocx(t, simpleDoc), "notes.docx")
    require.NoError(t, err)

    require.Equal(t, "Alpha Beta\nGamma", doc.Text)
    require.Equal(t, "docx", doc.Metadata.Method)
    require.Equal(t, 1, doc.Metadata.PageCount)
    require.Equal(t, 3, doc.Metadata.WordCount)
}

func TestCorruptArchive(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    _, err := e.Extract(context.Background(), []byte("not a zip at all"), "broken.docx")

    var exErr *extract.Error
    require.ErrorAs(t, err, &exErr)
    require.Equal(t, extract.CodeDocx, exErr.Code)
}

func TestMissingDocumentPart(t *testing.T) {
    var buf bytes.Buffer
    zw := zip.NewWriter(&buf)
    w, err := zw.Create("word/styles.xml")
    require.NoError(t, err)
    _, err = w.Write([]byte("<w:styles/>"))
    require.NoError(t, err)
    require.NoError(t, zw.Close())

    e := NewExtractor(logger.NewTestLogger())
    _, err = e.Extract(context.Background(), buf.Bytes(), "nobody.docx")

    var exErr *extract.Error
    require.ErrorAs(t, err, &exErr)
    require.Equal(t, extract.CodeDocx, exErr.Code)
    require.Contains(t, exErr.Message, "missing")
}

func TestEmptyDocument(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    data := buildDocx(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p/></w:body></w:document>`)

    _, err := e.Extract(context.Background(), data, "blank.docx")

    var exErr *extract.Error
    require.ErrorAs(t, err, &exErr)
    require.Equal(t, extract.CodeDocx, exErr.Code)
}

func TestTruncatedXMLKeepsParsedParagraphs(t *testing.T) {
    log := logger.NewTestLogger()
    e := NewExtractor(log)

    truncated := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Alpha</w:t></w:r></w:p><w:p><w:r><w:t>Bro`
    doc, err := e.Extract(context.Background(), buildDocx(t, truncated), "cutoff.docx")
    require.NoError(t, err)
    require.Contains(t, doc.Text, "Alpha")

    var warned bool
    for _, entry := range log.GetEntries() {
        if entry.Level == "WARN" {
            warned = true
        }
    }
    require.True(t, warned, "expected a converter warning for truncated XML")
}

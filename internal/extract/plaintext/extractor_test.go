package plaintext

import (
    "context"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/pkg/logger"
)

func TestExtractUTF8Text(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    doc, err := e.Extract(context.Background(), []byte("第一行笔记\nsecond line"), "notes.txt")
    require.NoError(t, err)

    require.Equal(t, "第一行笔记\nsecond line", doc.Text)
    require.Equal(t, "txt", doc.Metadata.Method)
    require.Equal(t, 1, doc.Metadata.PageCount)
    require.Equal(t, 3, doc.Metadata.WordCount)
}

func TestInvalidUTF8(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    _, err := e.Extract(context.Background(), []byte{0xff, 0xfe, 0xfd}, "binary.txt")

    var exErr *extract.Error
    require.ErrorAs(t, err, &exErr)
    require.Equal(t, extract.CodeTxt, exErr.Code)
}

func TestWhitespaceOnly(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    _, err := e.Extract(context.Background(), []byte("   \n\t  "), "empty.txt")

    var exErr *extract.Error
    require.ErrorAs(t, err, &exErr)
    require.Equal(t, extract.CodeTxt, exErr.Code)
}

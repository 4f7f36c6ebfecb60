package pdf

import (
    "context"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/edustack/material-importer/internal/extract"
    "github.com/edustack/material-importer/pkg/logger"
)

func TestCanExtract(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    require.True(t, e.CanExtract(extract.MIMEPDF))
    require.False(t, e.CanExtract(extract.MIMEDocx))
}

func TestCorruptPDF(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    _, err := e.Extract(context.Background(), []byte("%PDF-1.7 garbage that is not a pdf body"), "broken.pdf")
    require.Error(t, err)

    var exErr *extract.Error
    require.ErrorAs(t, err, &exErr)
    require.Equal(t, extract.CodePDF, exErr.Code)
    require.Contains(t, exErr.Message, "selectable text")
}

func TestNotAPDFAtAll(t *testing.T) {
    e := NewExtractor(logger.NewTestLogger())
    _, err := e.Extract(context.Background(), []byte("hello world"), "fake.pdf")

    var exErr *extract.Error
    require.ErrorAs(t, err, &exErr)
    require.Equal(t, extract.CodePDF, exErr.Code)
}

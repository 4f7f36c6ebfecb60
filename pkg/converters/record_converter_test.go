package converters

import (
    "strings"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/edustack/material-importer/internal/models"
)

func sampleDoc(text string) *models.ExtractedDocument {
    return &models.ExtractedDocument{
        Text: text,
        Metadata: models.ExtractionMetadata{
            PageCount: 3,
            WordCount: 42,
            FileSize:  2048,
            Method:    "pptx",
        },
    }
}

func TestConvertBuildsRecord(t *testing.T) {
    c := NewRecordConverter()

    uploaded := []models.UploadedImage{
        {URL: "https://cdn.test/a.png", Title: "Diagram", Index: 0},
    }

    record, err := c.Convert(sampleDoc("--- Slide 1 ---\nTITLE: Photosynthesis\n\nLight reactions"), uploaded, "bio.pptx")
    require.NoError(t, err)

    require.Equal(t, "Photosynthesis", record.Title)
    require.Equal(t, uploaded, record.Images)
    require.Equal(t, "bio.pptx", record.Metadata.FileName)
    require.Equal(t, 3, record.Metadata.PageCount)
    require.Equal(t, 42, record.Metadata.WordCount)
    require.Equal(t, 1, record.Metadata.ImageCount)
    require.False(t, record.ImportedAt.IsZero())
}

func TestConvertNilImagesBecomeEmptySlice(t *testing.T) {
    c := NewRecordConverter()

    record, err := c.Convert(sampleDoc("Some extracted text"), nil, "notes.txt")
    require.NoError(t, err)
    require.NotNil(t, record.Images)
    require.Empty(t, record.Images)
}

func TestConvertRejectsEmptyContent(t *testing.T) {
    c := NewRecordConverter()

    _, err := c.Convert(nil, nil, "notes.txt")
    require.Error(t, err)

    _, err = c.Convert(sampleDoc("   \n  "), nil, "notes.txt")
    require.Error(t, err)
}

func TestDeriveTitle(t *testing.T) {
    require.Equal(t, "First line", deriveTitle("First line\nsecond", "f.txt"))
    require.Equal(t, "Intro", deriveTitle("--- Slide 1 ---\nTITLE: Intro\nbody", "deck.pptx"))
    require.Equal(t, "deck.pptx", deriveTitle("--- Slide 1 ---\n", "deck.pptx"))

    long := strings.Repeat("t", 100)
    require.Len(t, deriveTitle(long, "f.txt"), 80)
}

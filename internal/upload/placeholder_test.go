package upload

import (
    "encoding/base64"
    "strings"
    "testing"

    "github.com/stretchr/testify/require"
)

func decodePlaceholder(t *testing.T, uri string) string {
    t.Helper()
    require.True(t, strings.HasPrefix(uri, "data:image/svg+xml;base64,"))
    raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/svg+xml;base64,"))
    require.NoError(t, err)
    return string(raw)
}

func TestPlaceholderIsDeterministic(t *testing.T) {
    a := PlaceholderDataURI("Diagram of the cell membrane")
    b := PlaceholderDataURI("Diagram of the cell membrane")
    require.Equal(t, a, b)

    c := PlaceholderDataURI("A different description")
    require.NotEqual(t, a, c)
}

func TestPlaceholderContainsSanitizedDescription(t *testing.T) {
    uri := PlaceholderDataURI(`<script>alert("x")</script> Chart: Q1 (2024)`)
    svg := decodePlaceholder(t, uri)

    require.Contains(t, svg, "Image Upload Failed")
    require.Contains(t, svg, "Chart: Q1 (2024)")
    require.NotContains(t, svg, "<script>")
    require.NotContains(t, svg, `"x"`)
}

func TestPlaceholderTruncatesLongDescriptions(t *testing.T) {
    uri := PlaceholderDataURI(strings.Repeat("a", 70))
    svg := decodePlaceholder(t, uri)

    require.Contains(t, svg, strings.Repeat("a", 60))
    require.NotContains(t, svg, strings.Repeat("a", 61))
}

func TestPlaceholderEmptyDescription(t *testing.T) {
    uri := PlaceholderDataURI("")
    svg := decodePlaceholder(t, uri)
    require.Contains(t, svg, "Image Upload Failed")
}

func TestIsPlaceholder(t *testing.T) {
    require.True(t, IsPlaceholder(PlaceholderDataURI("anything")))
    require.False(t, IsPlaceholder("https://cdn.example.com/materials/m1/img.png"))
    require.False(t, IsPlaceholder(""))
}

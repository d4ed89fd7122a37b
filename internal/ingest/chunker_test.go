package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextSentencePerChunk(t *testing.T) {
	chunks := SplitText("A. B. C.", 4)
	assert.Equal(t, []string{"A.", "B.", "C."}, chunks)
}

func TestSplitTextAccumulatesSentences(t *testing.T) {
	chunks := SplitText("One. Two. Three.", 1000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "One. Two. Three.", chunks[0])
}

func TestSplitTextBound(t *testing.T) {
	text := strings.Repeat("Short sentence here. ", 40)
	maxChars := 80
	chunks := SplitText(text, maxChars)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxChars)
		assert.NotEmpty(t, c)
	}
}

func TestSplitTextHardSplitsOversizedSentence(t *testing.T) {
	long := strings.Repeat("x", 25)
	chunks := SplitText("Tiny. "+long+".", 10)
	require.GreaterOrEqual(t, len(chunks), 3)
	assert.Equal(t, "Tiny.", chunks[0])
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
}

func TestSplitTextReconstruction(t *testing.T) {
	texts := []string{
		"First sentence. Second one! A question? Trailing fragment without terminator",
		"No terminators at all just words",
		strings.Repeat("Sentence number n goes here. ", 30),
	}
	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\t' {
				return -1
			}
			return r
		}, s)
	}
	for _, text := range texts {
		chunks := SplitText(text, 60)
		assert.Equal(t, strip(text), strip(strings.Join(chunks, "")), "input: %q", text)
	}
}

func TestSplitTextEmptyInput(t *testing.T) {
	assert.Empty(t, SplitText("", 100))
	assert.Empty(t, SplitText("   \n  ", 100))
}

func TestSplitTextMultibyte(t *testing.T) {
	text := "Один. Два. Три."
	chunks := SplitText(text, 6)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 6)
	}
}

package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTSV_HeaderedLayout(t *testing.T) {
	content := "id\toriginaltext\nabc123\tHello\ndef456\tWorld"

	c := ParseTSV(content)

	require.Equal(t, 2, c.Len())
	entry, ok := c.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, "Hello", entry.Text)
	// Header occupies line 1, first data row is line 2.
	assert.Equal(t, 2, entry.LineNumber)
}

func TestParseTSV_HeaderColumnOrderDetectedByName(t *testing.T) {
	content := "Text\tID\nHello\tabc123"

	c := ParseTSV(content)

	require.Equal(t, 1, c.Len())
	entry, _ := c.Get("abc123")
	assert.Equal(t, "Hello", entry.Text)
}

func TestParseTSV_HeaderlessLayout(t *testing.T) {
	content := "abc123\tHello\ndef456\tWorld"

	c := ParseTSV(content)

	require.Equal(t, 2, c.Len())
	entry, _ := c.Get("abc123")
	assert.Equal(t, "Hello", entry.Text)
	assert.Equal(t, 1, entry.LineNumber)
	entry, _ = c.Get("def456")
	assert.Equal(t, 2, entry.LineNumber)
}

func TestParseTSV_DropsZeroSentinel(t *testing.T) {
	content := "0000000000000000\tX"

	c := ParseTSV(content)

	assert.Equal(t, 0, c.Len())
}

func TestParseTSV_DropsRepeatedHeaderToken(t *testing.T) {
	content := "abc123\tHello\nID\tOriginalText\ndef456\tWorld"

	c := ParseTSV(content)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("ID")
	assert.False(t, ok)
}

func TestParseTSV_MalformedRowKeepsIDWithEmptyText(t *testing.T) {
	content := "abc123\tHello\nlonelyid\ndef456\tWorld"

	c := ParseTSV(content)

	require.Equal(t, 3, c.Len())
	entry, ok := c.Get("lonelyid")
	require.True(t, ok)
	assert.Equal(t, "", entry.Text)
}

func TestParseTSV_ExtraColumnsIgnored(t *testing.T) {
	content := "abc123\tHello\textra\tcolumns"

	c := ParseTSV(content)

	entry, ok := c.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, "Hello", entry.Text)
}

func TestParseTSV_Empty(t *testing.T) {
	assert.Equal(t, 0, ParseTSV("").Len())
	assert.Equal(t, 0, ParseTSV("\n\n").Len())
}

func TestParseTSV_DuplicateIDKeepsLastRow(t *testing.T) {
	content := "abc123\tfirst\nabc123\tsecond"

	c := ParseTSV(content)

	require.Equal(t, 1, c.Len())
	entry, _ := c.Get("abc123")
	assert.Equal(t, "second", entry.Text)
	assert.Equal(t, 2, entry.LineNumber)
}

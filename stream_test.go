package mcshell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestReadAllBoundedUnderLimit(t *testing.T) {
	data, truncated, err := readAllBounded(strings.NewReader("hello"), 100)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, "hello", data)
}

func TestReadAllBoundedExactLimit(t *testing.T) {
	data, truncated, err := readAllBounded(strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, "hello", data)
}

func TestReadAllBoundedTruncates(t *testing.T) {
	data, truncated, err := readAllBounded(strings.NewReader("hello world"), 5)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, "hello", data)
}

func TestReadAllBoundedNeverExceedsLimit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		input := rapid.String().Draw(rt, "input")
		limit := rapid.Int64Range(0, 500).Draw(rt, "limit")

		data, truncated, err := readAllBounded(strings.NewReader(input), limit)
		require.NoError(rt, err)
		assert.LessOrEqual(rt, int64(len(data)), limit)
		if int64(len(input)) > limit {
			assert.True(rt, truncated)
		} else {
			assert.False(rt, truncated)
			assert.Equal(rt, input, data)
		}
	})
}

func TestLimitedCountingReaderCountsBytes(t *testing.T) {
	r := newLimitedCountingReader(strings.NewReader("0123456789"), 5)
	buf := make([]byte, 3)

	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.EqualValues(t, 3, r.read)

	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.EqualValues(t, 6, r.read)
}

func TestBoundedBufferStopsAtLimit(t *testing.T) {
	b := newBoundedBuffer(5)

	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, b.exceeded)

	n, err = b.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, b.exceeded)
	assert.Equal(t, 5, b.buf.Len())
}

func TestTeeIntoBufferPassesAllBytesThrough(t *testing.T) {
	src := strings.NewReader("the quick brown fox")
	dst := newBoundedBuffer(1000)

	teed := teeIntoBuffer(src, dst)
	out, truncated, err := readAllBounded(teed, 1000)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, "the quick brown fox", out)
	assert.Equal(t, "the quick brown fox", dst.buf.String())
}

func TestSummarizeTruncatesByRuneCount(t *testing.T) {
	out := summarize([]byte("hello world"), 5)
	assert.Contains(t, out, "bytes=11")
	assert.Contains(t, out, "truncated=true")
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "world")
}

func TestSummarizeNoTruncationWhenShort(t *testing.T) {
	out := summarize([]byte("hi"), 10)
	assert.Contains(t, out, "truncated=false")
	assert.Contains(t, out, "hi")
}

func TestScanNonEmptyLinesSkipsBlank(t *testing.T) {
	scanner := scanNonEmptyLines(strings.NewReader("one\n\ntwo\n\n\nthree"))

	var lines []string
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

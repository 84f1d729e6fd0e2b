package wordio

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadUint32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint32(0xDEADBEEF))

	r := NewReader(&buf)
	got, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), got)
}

func TestWriteReadUint64RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint64(0x0000000004002000))

	r := NewReader(&buf)
	got, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0000000004002000), got)
}

func TestReadUint32Truncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2}))
	_, err := r.ReadUint32()
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteCString("start"))
	require.NoError(t, w.WriteCString("main"))

	r := NewReader(&buf)
	s1, err := r.ReadCString()
	require.NoError(t, err)
	assert.Equal(t, "start", s1)

	s2, err := r.ReadCString()
	require.NoError(t, err)
	assert.Equal(t, "main", s2)
}

func TestCStringEmpty(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0}))
	s, err := r.ReadCString()
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestCStringTruncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("no_terminator")))
	_, err := r.ReadCString()
	require.Error(t, err)
}

func TestCStringOversized(t *testing.T) {
	r := NewReader(strings.NewReader(strings.Repeat("x", MaxSymbolLen+1) + "\x00"))
	_, err := r.ReadCString()
	require.Error(t, err)
	var oversized *ErrOversizedSymbol
	assert.ErrorAs(t, err, &oversized)
}

func TestUint32SliceRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	words := []uint32{1, 2, 3, 0xFFFFFFFF}
	require.NoError(t, w.WriteUint32Slice(words))

	r := NewReader(&buf)
	got, err := r.ReadUint32Slice(uint32(len(words)))
	require.NoError(t, err)
	assert.Equal(t, words, got)
}

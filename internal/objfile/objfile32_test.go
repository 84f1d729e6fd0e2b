package objfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/subleqld/internal/diag"
	"github.com/xyproto/subleqld/internal/profile"
	"github.com/xyproto/subleqld/internal/wordio"
)

func buildObjectA(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := wordio.NewWriter(&buf)
	// n_exports
	require.NoError(t, w.WriteUint32(1))
	require.NoError(t, w.WriteCString("main"))
	require.NoError(t, w.WriteUint32(0))
	// n_import_symbols
	require.NoError(t, w.WriteUint32(0))
	// n_relative
	require.NoError(t, w.WriteUint32(1))
	require.NoError(t, w.WriteUint32(0))
	// mem_size + code
	require.NoError(t, w.WriteUint32(2))
	require.NoError(t, w.WriteUint32Slice([]uint32{0x10, 0x11}))
	return buf.Bytes()
}

func TestReadObjectFile32A(t *testing.T) {
	data := buildObjectA(t)
	of, err := ReadObjectFile32(bytes.NewReader(data), "a.o", profile.Variant32A)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), of.Exported["main"])
	assert.Equal(t, 2, of.Mem.Len())
	_, isRelative := of.Relative[0]
	assert.True(t, isRelative)
}

func buildObjectB(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := wordio.NewWriter(&buf)
	require.NoError(t, w.WriteUint32(1)) // text_offset
	require.NoError(t, w.WriteUint32(0)) // n_exports
	require.NoError(t, w.WriteUint32(1)) // n_import_symbols
	require.NoError(t, w.WriteCString("foo"))
	require.NoError(t, w.WriteUint32(1))
	require.NoError(t, w.WriteUint32(0))
	require.NoError(t, w.WriteUint32(1)) // n_absolute
	require.NoError(t, w.WriteUint32(1))
	require.NoError(t, w.WriteUint32(2)) // mem_size
	require.NoError(t, w.WriteUint32Slice([]uint32{0xAAAA, 0xBBBB}))
	return buf.Bytes()
}

func TestReadObjectFile32B(t *testing.T) {
	data := buildObjectB(t)
	of, err := ReadObjectFile32(bytes.NewReader(data), "b.o", profile.Variant32B)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), of.TextOffset)
	assert.Equal(t, []uint32{0}, of.Imported["foo"])
	_, isAbsolute := of.Absolute[1]
	assert.True(t, isAbsolute)
}

func TestObjectFile32RoundTrip(t *testing.T) {
	data := buildObjectB(t)
	of, err := ReadObjectFile32(bytes.NewReader(data), "b.o", profile.Variant32B)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, of.WriteObjectFile32(&out))

	reread, err := ReadObjectFile32(bytes.NewReader(out.Bytes()), "b.o", profile.Variant32B)
	require.NoError(t, err)
	assert.Equal(t, of.Exported, reread.Exported)
	assert.Equal(t, of.Imported, reread.Imported)
	assert.Equal(t, of.Absolute, reread.Absolute)
	assert.Equal(t, of.Mem.Words(), reread.Mem.Words())
}

func TestReadObjectFile32TruncatedFailsWithErrorKind(t *testing.T) {
	data := buildObjectA(t)
	_, err := ReadObjectFile32(bytes.NewReader(data[:3]), "short.o", profile.Variant32A)
	require.Error(t, err)
	var linkErr *diag.LinkError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, diag.Truncated, linkErr.Kind)
}

func TestReadObjectFile32RejectsZeroMem(t *testing.T) {
	var buf bytes.Buffer
	w := wordio.NewWriter(&buf)
	require.NoError(t, w.WriteUint32(0)) // n_exports
	require.NoError(t, w.WriteUint32(0)) // n_import_symbols
	require.NoError(t, w.WriteUint32(0)) // n_relative
	require.NoError(t, w.WriteUint32(0)) // mem_size
	_, err := ReadObjectFile32(bytes.NewReader(buf.Bytes()), "empty.o", profile.Variant32A)
	require.Error(t, err)
}

func TestNewStartup32AAndHybrid(t *testing.T) {
	stubA := NewStartup32A(profile.Variant32A)
	assert.Equal(t, []uint32{0, 0, 0}, stubA.Mem.Words())
	assert.Equal(t, []uint32{2}, stubA.Imported["start"])

	stubHybrid := NewStartupHybrid()
	assert.Equal(t, []uint32{3, 3, 0, 0}, stubHybrid.Mem.Words())
	assert.Len(t, stubHybrid.Relative, 3)
}

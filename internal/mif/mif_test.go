package mif

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite32Scenario1(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.mif")
	require.NoError(t, Write32(path, 0x2000, []uint32{0x10, 0x11, 0x00}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "DEPTH = 8192;\n")
	assert.Contains(t, text, "WIDTH = 32;\n")
	assert.Contains(t, text, "ADDRESS_RADIX = HEX;\n")
	assert.Contains(t, text, "DATA_RADIX = HEX;\n")
	assert.Contains(t, text, "00000000 : 00000010;\n")
	assert.Contains(t, text, "00000001 : 00000011;\n")
	assert.Contains(t, text, "00000002 : 00000000;\n")
	assert.True(t, strings.HasSuffix(text, "END;\n"))
}

func TestWrite32NoTempFileLeftOnFailure(t *testing.T) {
	// Writing to a directory that doesn't exist must fail cleanly and
	// leave nothing behind.
	path := filepath.Join(t.TempDir(), "missing-subdir", "out.mif")
	err := Write32(path, 0x2000, []uint32{1})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWrite64UsesSixteenHexDigits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out64.mif")
	require.NoError(t, Write64(path, 0x2000, []uint64{0x4402400130}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "WIDTH = 64;\n")
	assert.Contains(t, text, "00000000 : 0000004402400130;\n")
}

func TestWriteEmptyImageStillProducesValidHeaderAndFooter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.mif")
	require.NoError(t, Write32(path, 0x2000, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "CONTENT\n")
	assert.Contains(t, text, "BEGIN\n")
	assert.True(t, strings.HasSuffix(text, "END;\n"))
}

// Package mif emits the Altera-style Memory Initialization File format
// (spec §4.5) from a linked image.
//
// Grounded in the teacher's temp-file-then-rename pattern (cli.go's
// os.CreateTemp + WriteString + Close before the real output path is
// touched) generalized to satisfy spec §7's "output file MUST NOT be
// left in a half-written state on failure" by renaming into place only
// after every line has been written successfully.
package mif

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xyproto/subleqld/internal/diag"
)

// Write32 emits a Profile-32 MIF (8 hex digits of data per word) for
// image to path, atomically.
func Write32(path string, memWords uint64, image []uint32) error {
	return write(path, memWords, 32, func(w *bufio.Writer) error {
		for addr, word := range image {
			if _, err := fmt.Fprintf(w, "%08x : %08x;\n", addr, word); err != nil {
				return err
			}
		}
		return nil
	})
}

// Write64 emits a Profile-64 MIF (16 hex digits of data per word) for
// image to path, atomically.
func Write64(path string, memWords uint64, image []uint64) error {
	return write(path, memWords, 64, func(w *bufio.Writer) error {
		for addr, word := range image {
			if _, err := fmt.Fprintf(w, "%08x : %016x;\n", addr, word); err != nil {
				return err
			}
		}
		return nil
	})
}

func write(path string, memWords uint64, wordWidth int, writeContent func(*bufio.Writer) error) error {
	return WriteAtomic(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := writeHeader(bw, memWords, wordWidth); err != nil {
			return err
		}
		if err := writeContent(bw); err != nil {
			return err
		}
		if _, err := bw.WriteString("\nEND;\n"); err != nil {
			return err
		}
		return bw.Flush()
	})
}

// WriteAtomic writes to path via a temp file in the same directory,
// renamed into place only once write has returned successfully, so
// path is never left holding a partial result. Any other output
// artifact that must satisfy spec §7's "MUST NOT be left in a
// half-written state on failure" uses this same helper.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mif-*.tmp")
	if err != nil {
		return diag.IOf(path, err)
	}
	tmpPath := tmp.Name()
	// Remove is a no-op once the rename below succeeds; it only fires
	// on the error paths, so the half-written temp file never lingers.
	defer os.Remove(tmpPath)

	if err := write(tmp); err != nil {
		tmp.Close()
		return diag.IOf(path, err)
	}
	if err := tmp.Close(); err != nil {
		return diag.IOf(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return diag.IOf(path, err)
	}
	return nil
}

func writeHeader(w *bufio.Writer, memWords uint64, wordWidth int) error {
	if _, err := fmt.Fprintf(w, "DEPTH = %d;\n", memWords); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "WIDTH = %d;\n", wordWidth); err != nil {
		return err
	}
	if _, err := w.WriteString("ADDRESS_RADIX = HEX;\n"); err != nil {
		return err
	}
	if _, err := w.WriteString("DATA_RADIX = HEX;\n"); err != nil {
		return err
	}
	if _, err := w.WriteString("CONTENT\n"); err != nil {
		return err
	}
	if _, err := w.WriteString("BEGIN\n\n"); err != nil {
		return err
	}
	return nil
}

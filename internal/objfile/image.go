package objfile

import "fmt"

// Image32 and Image64 are the owned, word-indexed code buffers backing
// an ObjectFile's mem array (spec §3: "owns its code buffer"; §9:
// "manual memory ownership of mem buffers... a single owned word
// vector per ObjectFile").
//
// Generalizes the teacher's SafeBuffer (safe_buffer.go: a bytes.Buffer
// wrapper that panics on write-after-commit, to catch use-after-
// finalize bugs in ELF section assembly) to this domain: Fill may run
// exactly once, when the parser loads the on-disk code image; after
// that the buffer is "loaded" and only in-place slot mutation is
// permitted — the linker's relocation and symbol-resolution phases
// both patch individual slots of an already-loaded image, they never
// append or resize it.
type Image32 struct {
	words  []uint32
	loaded bool
}

// NewImage32 wraps words as a freshly loaded image (used by the
// startup-stub constructors, which build their mem contents directly
// rather than parsing them).
func NewImage32(words []uint32) *Image32 {
	return &Image32{words: words, loaded: true}
}

// Fill loads words into a previously-empty image. Panics if called
// twice: a second fill would silently discard relocations already
// applied to the first, the same invariant SafeBuffer enforces for
// writes after Commit.
func (img *Image32) Fill(words []uint32) {
	if img.loaded {
		panic("objfile: Image32 filled twice")
	}
	img.words = words
	img.loaded = true
}

// Len returns the word count.
func (img *Image32) Len() int { return len(img.words) }

// Get returns the word at addr.
func (img *Image32) Get(addr uint32) uint32 { return img.words[addr] }

// Set overwrites the word at addr. Used by relocation and symbol
// resolution to patch an already-loaded image in place.
func (img *Image32) Set(addr uint32, v uint32) { img.words[addr] = v }

// Add adds delta to the word at addr in place (relocation's += form).
func (img *Image32) Add(addr uint32, delta uint32) { img.words[addr] += delta }

// Words returns the backing slice for bulk copy into the linked
// image. Callers must not retain it past the link.
func (img *Image32) Words() []uint32 { return img.words }

func (img *Image32) String() string {
	return fmt.Sprintf("Image32(%d words)", len(img.words))
}

// Image64 is Image32's Profile-64 counterpart: one packed SUBLEQ
// instruction per word.
type Image64 struct {
	words  []uint64
	loaded bool
}

// NewImage64 wraps words as a freshly loaded image.
func NewImage64(words []uint64) *Image64 {
	return &Image64{words: words, loaded: true}
}

// Fill loads words into a previously-empty image; see Image32.Fill.
func (img *Image64) Fill(words []uint64) {
	if img.loaded {
		panic("objfile: Image64 filled twice")
	}
	img.words = words
	img.loaded = true
}

func (img *Image64) Len() int                { return len(img.words) }
func (img *Image64) Get(addr uint32) uint64  { return img.words[addr] }
func (img *Image64) Set(addr uint32, v uint64) { img.words[addr] = v }
func (img *Image64) Words() []uint64          { return img.words }

func (img *Image64) String() string {
	return fmt.Sprintf("Image64(%d words)", len(img.words))
}

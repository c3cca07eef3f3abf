// Package mmapfile provides a read-only, memory-mapped view of a file.
//
// A MappedFile is the piece table's "original" buffer (spec §4.1): once
// opened it never changes, and all access is bounds-checked so that piece
// slicing arithmetic in higher layers can never panic on an off-by-one.
package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MappedFile is a read-only handle to a file mapped into the process
// address space. The zero value is not usable; construct with Open.
type MappedFile struct {
	file *os.File
	data []byte // nil for an empty file
	path string
}

// Open maps path into memory read-only. The returned MappedFile keeps the
// underlying *os.File open for the lifetime of the mapping; call Close when
// done with it.
func Open(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		// unix.Mmap rejects zero-length mappings; an empty file has no
		// bytes to map, so represent it with a nil slice.
		return &MappedFile{file: f, data: nil, path: path}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mmap %s: %w", path, err)
	}

	return &MappedFile{file: f, data: data, path: path}, nil
}

// Close unmaps the file and releases the underlying file descriptor.
// Close is idempotent.
func (m *MappedFile) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("mmapfile: munmap %s: %w", m.path, err)
		}
		m.data = nil
	}
	if m.file != nil {
		err := m.file.Close()
		m.file = nil
		if err != nil {
			return fmt.Errorf("mmapfile: close %s: %w", m.path, err)
		}
	}
	return nil
}

// Path returns the path the file was opened from.
func (m *MappedFile) Path() string {
	return m.path
}

// Len returns the length of the mapped file in bytes.
func (m *MappedFile) Len() int {
	return len(m.data)
}

// IsEmpty reports whether the mapped file has zero length.
func (m *MappedFile) IsEmpty() bool {
	return m.Len() == 0
}

// AsSlice returns the full mapped content. The caller must not retain it
// beyond the lifetime of the MappedFile.
func (m *MappedFile) AsSlice() []byte {
	return m.data
}

// GetBytesExact returns the slice [start, start+length) only if it lies
// entirely within [0, Len()). It never panics on overflowing arithmetic.
func (m *MappedFile) GetBytesExact(start, length int) ([]byte, bool) {
	if start < 0 || length < 0 {
		return nil, false
	}
	end := start + length
	if end < start { // overflow
		return nil, false
	}
	if start > m.Len() || end > m.Len() {
		return nil, false
	}
	return m.data[start:end], true
}

// GetBytesClamped returns the intersection of [start, start+length) with
// [0, Len()), using saturating arithmetic. It returns an empty slice if
// start is past the end of the file; it never panics.
func (m *MappedFile) GetBytesClamped(start, length int) []byte {
	if start < 0 {
		start = 0
	}
	if start >= m.Len() {
		return nil
	}
	end := start + length
	if end < start || end > m.Len() { // overflow or past-end: clamp
		end = m.Len()
	}
	return m.data[start:end]
}

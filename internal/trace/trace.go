// Package trace implements the RAM2 memory-trace file format.
//
// RAM2 is a single-file, memory-mappable record of timestamped DRAM command
// events: a fixed 24-byte header, a dense array of fixed-width 32-byte
// entries sorted by clock cycle, and a trailing dictionary mapping compact
// command ids to command names. The engine never mutates the source file and
// serves all point and range reads as bounds-checked views directly over the
// mapped bytes.
package trace

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Store owns the read-only mapping of one trace file and its parsed header.
// A Store is immutable after Open and safe for concurrent readers without
// locking.
type Store struct {
	data    []byte
	header  Header
	mmapped bool
}

// Open maps a RAM2 file read-only and validates its header and layout.
// If mmap is unavailable, it falls back to ReadAt-based loading. Nothing is
// retained on failure. The returned store must be closed to release the
// mapping.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size64 := stat.Size()
	if size64 < 0 || size64 > int64(int(^uint(0)>>1)) {
		// cannot index this file safely as []byte on this architecture.
		return nil, fmt.Errorf("%w: file size %d", ErrCorruptLayout, size64)
	}
	size := int(size64)
	if size < HeaderSize {
		return nil, ErrFileTooShort
	}

	// Prefer mmap for zero-copy entry views over multi-gigabyte traces.
	data, err := unix.Mmap(
		int(f.Fd()),
		0,
		size,
		unix.PROT_READ,
		unix.MAP_SHARED,
	)
	if err == nil {
		st, parseErr := newStore(data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return st, nil
	}

	// Fallback path that does not require mmap support.
	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return newStore(data, false)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

func newStore(data []byte, mmapped bool) (*Store, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	// The entry array must fit between the header and the dictionary, and
	// the dictionary must start inside the file. Guard the multiplication;
	// num_entries comes from untrusted bytes.
	maxEntries := (uint64(len(data)) - HeaderSize) / EntrySize
	if h.NumEntries > maxEntries {
		return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrCorruptLayout, h.NumEntries, len(data))
	}
	entriesEnd := HeaderSize + h.NumEntries*EntrySize
	if h.DictOffset < entriesEnd {
		return nil, fmt.Errorf("%w: dictionary offset %d overlaps entries ending at %d", ErrCorruptLayout, h.DictOffset, entriesEnd)
	}
	if h.DictOffset > uint64(len(data)) {
		return nil, fmt.Errorf("%w: dictionary offset %d past end of %d-byte file", ErrCorruptLayout, h.DictOffset, len(data))
	}

	return &Store{
		data:    data,
		header:  h,
		mmapped: mmapped,
	}, nil
}

// Close releases the mapping. The store and any EntrySlice obtained from it
// must not be used afterwards.
func (s *Store) Close() error {
	if s == nil || s.data == nil {
		return nil
	}
	var err error
	if s.mmapped {
		err = unix.Munmap(s.data)
	}
	s.data = nil
	s.mmapped = false
	return err
}

// Header returns the already-validated file header.
func (s *Store) Header() Header {
	return s.header
}

// NumEntries returns the number of entries recorded in the header.
func (s *Store) NumEntries() uint64 {
	return s.header.NumEntries
}

// Size returns the byte size of the mapped file.
func (s *Store) Size() uint64 {
	return uint64(len(s.data))
}

// LoadDictionary parses the command dictionary section. The parse runs on
// every call; callers that need it repeatedly should keep the result.
func (s *Store) LoadDictionary() (Dictionary, error) {
	return ParseDictionary(s.data, s.header.DictOffset, s.header.NumCommands)
}

// LoadEntry decodes the entry at index. The command id is validated against
// the dictionary size declared in the header.
func (s *Store) LoadEntry(index uint64) (Entry, error) {
	if index >= s.header.NumEntries {
		return Entry{}, fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, s.header.NumEntries)
	}
	off := HeaderSize + index*EntrySize
	e := decodeEntry(s.data[off : off+EntrySize])
	if e.CmdID >= s.header.NumCommands {
		return Entry{}, fmt.Errorf("%w: %d at index %d, dictionary has %d", ErrInvalidCmdID, e.CmdID, index, s.header.NumCommands)
	}
	return e, nil
}

// LoadEntrySlice returns a zero-copy view over entries [start, start+count).
// Bulk reads are the hot path, so individual command ids are not validated
// here; an id with no dictionary match renders with defaults downstream.
func (s *Store) LoadEntrySlice(start uint64, count int) (EntrySlice, error) {
	if count < 0 {
		return EntrySlice{}, fmt.Errorf("%w: negative count %d", ErrOutOfBounds, count)
	}
	// Bounds are against the mapped region, matching the fixed strides; the
	// guarded multiplication keeps hostile start values from wrapping.
	if start > (uint64(len(s.data))-HeaderSize)/EntrySize {
		return EntrySlice{}, fmt.Errorf("%w: start %d in %d-byte file", ErrOutOfBounds, start, len(s.data))
	}
	startOff := HeaderSize + start*EntrySize
	endOff := startOff + uint64(count)*EntrySize
	if endOff < startOff || endOff > uint64(len(s.data)) {
		return EntrySlice{}, fmt.Errorf("%w: [%d, %d+%d) exceeds mapped region of %d bytes", ErrOutOfBounds, start, start, count, len(s.data))
	}
	return EntrySlice{data: s.data[startOff:endOff]}, nil
}

// FindIndexForTime returns the smallest index whose entry has clk >= target,
// assuming entries are stored in non-decreasing clk order. If every entry is
// earlier than target, it returns NumEntries as a past-the-end sentinel.
func (s *Store) FindIndexForTime(target int64) uint64 {
	lo, hi := uint64(0), s.header.NumEntries
	for lo < hi {
		mid := lo + (hi-lo)/2
		off := HeaderSize + mid*EntrySize
		clk := int64(binary.LittleEndian.Uint64(s.data[off : off+8]))
		if clk < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

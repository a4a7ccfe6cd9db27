package trace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeTrace builds a RAM2 file from commands and entries and returns its path.
func writeTrace(t *testing.T, commands []string, entries []Entry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trace.ram2")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	w, err := NewWriter(f, commands)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for i, e := range entries {
		if err := w.Append(e); err != nil {
			t.Fatalf("append entry %d: %v", i, err)
		}
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func testEntries() []Entry {
	return []Entry{
		{Clk: 10, Channel: 0, Rank: 1, Bankgroup: 2, Bank: 3, Row: 100, Column: 8, CmdID: 0},
		{Clk: 20, Channel: 1, Rank: 0, Bankgroup: -1, Bank: -1, Row: -1, Column: -1, CmdID: 1},
		{Clk: 30, Channel: 0, Rank: 0, Bankgroup: 0, Bank: 1, Row: 200, Column: 16, CmdID: 0},
	}
}

func TestOpenRoundTrip(t *testing.T) {
	t.Parallel()

	entries := testEntries()
	path := writeTrace(t, []string{"ACT", "PRE"}, entries)

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()

	h := st.Header()
	if h.NumEntries != 3 || h.NumCommands != 2 {
		t.Fatalf("header mismatch: %+v", h)
	}
	if h.DictOffset != HeaderSize+3*EntrySize {
		t.Fatalf("dict offset mismatch: %d", h.DictOffset)
	}

	for i, want := range entries {
		got, err := st.LoadEntry(uint64(i))
		if err != nil {
			t.Fatalf("load entry %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, got, want)
		}
	}
}

func TestLoadEntryInvalidIndex(t *testing.T) {
	t.Parallel()

	st, err := Open(writeTrace(t, []string{"ACT"}, testEntries()[:1]))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := st.LoadEntry(1); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("got %v, want ErrInvalidIndex", err)
	}
}

func TestLoadEntryInvalidCmdID(t *testing.T) {
	t.Parallel()

	path := writeTrace(t, []string{"ACT"}, testEntries()[:1])

	// Patch the stored cmd_id past the declared command count.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	raw[HeaderSize+28] = 7
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := st.LoadEntry(0); !errors.Is(err, ErrInvalidCmdID) {
		t.Fatalf("got %v, want ErrInvalidCmdID", err)
	}
}

func TestLoadEntrySlice(t *testing.T) {
	t.Parallel()

	entries := testEntries()
	st, err := Open(writeTrace(t, []string{"ACT", "PRE"}, entries))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()

	s, err := st.LoadEntrySlice(1, 2)
	if err != nil {
		t.Fatalf("load slice: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("slice length %d, want 2", s.Len())
	}
	for i := 0; i < s.Len(); i++ {
		point, err := st.LoadEntry(uint64(1 + i))
		if err != nil {
			t.Fatalf("load entry %d: %v", 1+i, err)
		}
		if s.At(i) != point {
			t.Fatalf("slice entry %d mismatch: got %+v want %+v", i, s.At(i), point)
		}
	}

	// Empty slices are fine anywhere inside [0, NumEntries].
	if _, err := st.LoadEntrySlice(3, 0); err != nil {
		t.Fatalf("empty slice at end: %v", err)
	}

	for _, tc := range []struct {
		start uint64
		count int
	}{
		{0, 4},
		{2, 2},
		{3, 1},
		{4, 0},
	} {
		if _, err := st.LoadEntrySlice(tc.start, tc.count); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("slice [%d, +%d): got %v, want ErrOutOfBounds", tc.start, tc.count, err)
		}
	}
}

func TestFindIndexForTime(t *testing.T) {
	t.Parallel()

	st, err := Open(writeTrace(t, []string{"ACT", "PRE"}, testEntries()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()

	for _, tc := range []struct {
		clk  int64
		want uint64
	}{
		{5, 0},
		{10, 0},
		{15, 1},
		{20, 1}, // lower bound lands on the exact match
		{30, 2},
		{35, 3}, // past-the-end sentinel
	} {
		if got := st.FindIndexForTime(tc.clk); got != tc.want {
			t.Fatalf("FindIndexForTime(%d) = %d, want %d", tc.clk, got, tc.want)
		}
	}
}

func TestFindIndexForTimeEmpty(t *testing.T) {
	t.Parallel()

	st, err := Open(writeTrace(t, []string{"ACT"}, nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()

	if got := st.FindIndexForTime(0); got != 0 {
		t.Fatalf("FindIndexForTime on empty trace = %d, want 0", got)
	}
}

func TestFindIndexForTimeDuplicateClk(t *testing.T) {
	t.Parallel()

	st, err := Open(writeTrace(t, []string{"ACT"}, []Entry{
		{Clk: 10}, {Clk: 20}, {Clk: 20}, {Clk: 20}, {Clk: 40},
	}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()

	if got := st.FindIndexForTime(20); got != 1 {
		t.Fatalf("FindIndexForTime(20) = %d, want first duplicate at 1", got)
	}
}

func TestOpenRejectsMalformedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name string, data []byte) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}

	short := write("short.ram2", []byte("RAM2\x00"))
	if _, err := Open(short); !errors.Is(err, ErrFileTooShort) {
		t.Fatalf("short file: got %v, want ErrFileTooShort", err)
	}

	badMagic := make([]byte, 64)
	copy(badMagic, "JUNK\x00")
	if _, err := Open(write("magic.ram2", badMagic)); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("bad magic: got %v, want ErrInvalidMagic", err)
	}

	// Header claims more entries than the file holds.
	var hdr [HeaderSize]byte
	encodeHeader(hdr[:], Header{Version: 1, NumEntries: 1 << 40, DictOffset: HeaderSize})
	if _, err := Open(write("huge.ram2", hdr[:])); !errors.Is(err, ErrCorruptLayout) {
		t.Fatalf("oversized entry count: got %v, want ErrCorruptLayout", err)
	}

	// Dictionary offset inside the entry array.
	encodeHeader(hdr[:], Header{Version: 1, NumEntries: 2, DictOffset: HeaderSize + EntrySize})
	overlap := append(hdr[:], make([]byte, 2*EntrySize)...)
	if _, err := Open(write("overlap.ram2", overlap)); !errors.Is(err, ErrCorruptLayout) {
		t.Fatalf("overlapping dictionary: got %v, want ErrCorruptLayout", err)
	}

	// Dictionary offset past the end of the file.
	encodeHeader(hdr[:], Header{Version: 1, NumEntries: 0, DictOffset: 4096})
	if _, err := Open(write("past.ram2", hdr[:])); !errors.Is(err, ErrCorruptLayout) {
		t.Fatalf("dictionary past EOF: got %v, want ErrCorruptLayout", err)
	}
}

func TestWriterRejectsUnorderedClk(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "trace.ram2"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f, []string{"ACT"})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Append(Entry{Clk: 20}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(Entry{Clk: 10}); err == nil {
		t.Fatal("expected error for decreasing clk")
	}
}

func TestWriterRejectsUnknownCmdID(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "trace.ram2"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f, []string{"ACT"})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Append(Entry{CmdID: 1}); !errors.Is(err, ErrInvalidCmdID) {
		t.Fatalf("got %v, want ErrInvalidCmdID", err)
	}
}

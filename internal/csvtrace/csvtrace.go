// Package csvtrace reads the legacy delimited-text trace format and converts
// it to RAM2. A text trace is one header row followed by one event per line:
//
//	clk, command, channel, rank, bankgroup, bank, row, column
//
// Records are variable-width, so random access keeps a sparse index of byte
// offsets, one every 10,000 lines, and scans forward from the nearest one.
// The fixed-width binary format supersedes this; the package stays as the
// migration path off old captures.
package csvtrace

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ziadomalik/ramwiz/internal/trace"
)

// indexStride is the line interval between sparse index checkpoints.
const indexStride = 10_000

// Event is one parsed text-trace record.
type Event struct {
	Clk       int64
	Command   string
	Channel   int16
	Rank      int16
	Bankgroup int32
	Bank      int32
	Row       int32
	Column    int32
}

// Reader provides indexed access to a text trace.
type Reader struct {
	data    []byte
	mmapped bool
	// index[k] is the byte offset of line k*indexStride.
	index    []int
	numLines int
}

// Open maps the file read-only and builds the sparse line index in one pass.
func Open(path string) (*Reader, error) {
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
		return nil, fmt.Errorf("csvtrace: file size %d not addressable", size64)
	}
	size := int(size64)

	var data []byte
	mmapped := false
	if size > 0 {
		if b, merr := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED); merr == nil {
			data = b
			mmapped = true
		}
	}
	if data == nil {
		data = make([]byte, size)
		if _, err := io.ReadFull(io.NewSectionReader(f, 0, size64), data); err != nil {
			return nil, err
		}
	}

	r := &Reader{data: data, mmapped: mmapped, index: []int{0}}
	pos := 0
	for {
		nl := bytes.IndexByte(data[pos:], '\n')
		if nl < 0 {
			if pos < len(data) {
				r.numLines++ // final line without trailing newline
			}
			break
		}
		r.numLines++
		pos += nl + 1
		if r.numLines%indexStride == 0 && pos < len(data) {
			r.index = append(r.index, pos)
		}
	}
	return r, nil
}

// Close releases the mapping.
func (r *Reader) Close() error {
	if r == nil || r.data == nil {
		return nil
	}
	var err error
	if r.mmapped {
		err = unix.Munmap(r.data)
	}
	r.data = nil
	r.mmapped = false
	return err
}

// NumEvents returns the number of data lines, excluding the header row.
func (r *Reader) NumEvents() int {
	if r.numLines == 0 {
		return 0
	}
	return r.numLines - 1
}

// Line returns the i-th line without its newline, scanning forward from the
// nearest index checkpoint. Cost is O(stride) bytes in the worst case.
func (r *Reader) Line(i int) ([]byte, error) {
	if i < 0 || i >= r.numLines {
		return nil, fmt.Errorf("csvtrace: line %d of %d", i, r.numLines)
	}
	pos := r.index[i/indexStride]
	for skip := i % indexStride; skip > 0; skip-- {
		nl := bytes.IndexByte(r.data[pos:], '\n')
		if nl < 0 {
			return nil, fmt.Errorf("csvtrace: line %d past end of file", i)
		}
		pos += nl + 1
	}
	end := bytes.IndexByte(r.data[pos:], '\n')
	if end < 0 {
		return r.data[pos:], nil
	}
	return r.data[pos : pos+end], nil
}

// Event parses the i-th event (data line i+1).
func (r *Reader) Event(i int) (Event, error) {
	line, err := r.Line(i + 1)
	if err != nil {
		return Event{}, err
	}
	return parseEvent(line)
}

// ClkRange scans the first and last data lines for the trace's clock span.
func (r *Reader) ClkRange() (minClk, maxClk int64, err error) {
	if r.NumEvents() == 0 {
		return 0, 0, nil
	}
	first, err := r.Event(0)
	if err != nil {
		return 0, 0, err
	}
	last, err := r.Event(r.NumEvents() - 1)
	if err != nil {
		return 0, 0, err
	}
	return first.Clk, last.Clk, nil
}

func parseEvent(line []byte) (Event, error) {
	fields := strings.Split(string(line), ",")
	if len(fields) < 8 {
		return Event{}, fmt.Errorf("csvtrace: %d fields in %q, want 8", len(fields), line)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	clk, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("csvtrace: bad clk %q: %w", fields[0], err)
	}

	return Event{
		Clk:       clk,
		Command:   fields[1],
		Channel:   int16(addrField(fields[2])),
		Rank:      int16(addrField(fields[3])),
		Bankgroup: int32(addrField(fields[4])),
		Bank:      int32(addrField(fields[5])),
		Row:       int32(addrField(fields[6])),
		Column:    int32(addrField(fields[7])),
	}, nil
}

// addrField parses an address component; anything unparsable means the
// component does not apply and maps to the -1 sentinel.
func addrField(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return v
}

// Convert rewrites a text trace as a RAM2 file. The first pass collects the
// distinct command names in order of first appearance to form the
// dictionary; the second streams entries through a trace.Writer.
func Convert(srcPath, dstPath string) (commands, events int, err error) {
	r, err := Open(srcPath)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = r.Close() }()

	ids := make(map[string]uint8)
	var names []string
	for i := 0; i < r.NumEvents(); i++ {
		ev, err := r.Event(i)
		if err != nil {
			return 0, 0, err
		}
		if _, ok := ids[ev.Command]; !ok {
			if len(names) == 255 {
				return 0, 0, fmt.Errorf("csvtrace: more than 255 distinct commands")
			}
			ids[ev.Command] = uint8(len(names))
			names = append(names, ev.Command)
		}
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()

	w, err := trace.NewWriter(out, names)
	if err != nil {
		return 0, 0, err
	}
	for i := 0; i < r.NumEvents(); i++ {
		ev, err := r.Event(i)
		if err != nil {
			return 0, 0, err
		}
		entry := trace.Entry{
			Clk:       ev.Clk,
			Channel:   ev.Channel,
			Rank:      ev.Rank,
			Bankgroup: ev.Bankgroup,
			Bank:      ev.Bank,
			Row:       ev.Row,
			Column:    ev.Column,
			CmdID:     ids[ev.Command],
		}
		if err := w.Append(entry); err != nil {
			return 0, 0, fmt.Errorf("csvtrace: event %d: %w", i, err)
		}
	}
	if err := w.Finalise(); err != nil {
		return 0, 0, err
	}
	return len(names), r.NumEvents(), nil
}

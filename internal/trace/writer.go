package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Writer builds a RAM2 file in a streaming fashion: header space is reserved
// up front, entries are appended in clk order, and Finalise writes the
// dictionary and patches the header with the final counts.
type Writer struct {
	f        *os.File
	commands []string
	count    uint64
	lastClk  int64
	started  bool
	closed   bool
}

// NewWriter creates a RAM2 writer targeting the given file. commands is the
// dictionary in id order; entry command ids must index into it.
func NewWriter(f *os.File, commands []string) (*Writer, error) {
	if f == nil {
		return nil, errors.New("trace: nil file")
	}
	if len(commands) > 255 {
		return nil, fmt.Errorf("trace: %d commands exceed the 1-byte id space", len(commands))
	}
	for id, name := range commands {
		if len(name) > 255 {
			return nil, fmt.Errorf("trace: command %d name of %d bytes exceeds the 1-byte length prefix", id, len(name))
		}
	}

	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	// Reserve the header; Finalise rewrites it with real counts.
	var zero [HeaderSize]byte
	if err := writeFull(f, zero[:]); err != nil {
		return nil, err
	}

	return &Writer{f: f, commands: commands}, nil
}

// Append writes one entry. Entries must arrive in non-decreasing clk order;
// readers binary-search on that invariant.
func (w *Writer) Append(e Entry) error {
	if w.closed {
		return errors.New("trace: writer already finalised")
	}
	if int(e.CmdID) >= len(w.commands) {
		return fmt.Errorf("%w: %d with %d commands", ErrInvalidCmdID, e.CmdID, len(w.commands))
	}
	if w.started && e.Clk < w.lastClk {
		return fmt.Errorf("trace: clk %d after %d breaks ordering", e.Clk, w.lastClk)
	}
	w.lastClk = e.Clk
	w.started = true

	var buf [EntrySize]byte
	encodeEntry(buf[:], e)
	if err := writeFull(w.f, buf[:]); err != nil {
		return err
	}
	w.count++
	return nil
}

// Finalise writes the dictionary section and patches the header. The writer
// is unusable afterwards; closing the file stays with the caller.
func (w *Writer) Finalise() error {
	if w.closed {
		return errors.New("trace: writer already finalised")
	}
	w.closed = true

	dictOffset := uint64(HeaderSize) + w.count*EntrySize
	for _, name := range w.commands {
		if err := writeFull(w.f, []byte{byte(len(name))}); err != nil {
			return err
		}
		if err := writeFull(w.f, []byte(name)); err != nil {
			return err
		}
	}

	var hdr [HeaderSize]byte
	encodeHeader(hdr[:], Header{
		Version:     CurrentVersion,
		NumCommands: uint8(len(w.commands)),
		NumEntries:  w.count,
		DictOffset:  dictOffset,
	})
	if _, err := w.f.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	return nil
}

func writeFull(f *os.File, p []byte) error {
	for len(p) > 0 {
		n, err := f.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

package trace

import (
	"bytes"
	"encoding/binary"
)

// RAM2 header layout (24 bytes, little-endian):
//
//	+--------------+------+-------------------------------------+
//	|     Name     | Size |             Description             |
//	+--------------+------+-------------------------------------+
//	| magic        | 5B   | "RAM2\0"                            |
//	| version      | 1B   | Format major version                |
//	| num_commands | 1B   | Number of dictionary entries        |
//	| reserved     | 1B   | Padding                             |
//	| num_entries  | 8B   | Number of trace events              |
//	| dict_offset  | 8B   | Absolute byte offset of dictionary  |
//	+--------------+------+-------------------------------------+
const (
	Magic = "RAM2\x00"

	// CurrentVersion is the only format version this engine reads.
	CurrentVersion uint8 = 1

	HeaderSize = 24
	EntrySize  = 32
)

// Header is the decoded, immutable file header. It is a plain value and is
// safe to copy.
type Header struct {
	Version     uint8
	NumCommands uint8
	NumEntries  uint64
	DictOffset  uint64
}

// ParseHeader decodes and validates the fixed 24-byte header at the start of
// data. It is a pure function of the byte buffer; layout checks that need the
// full file size happen in Open.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrFileTooShort
	}
	if !bytes.Equal(data[:5], []byte(Magic)) {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		Version:     data[5],
		NumCommands: data[6],
		NumEntries:  binary.LittleEndian.Uint64(data[8:16]),
		DictOffset:  binary.LittleEndian.Uint64(data[16:24]),
	}
	if h.Version != CurrentVersion {
		return Header{}, ErrUnsupportedVersion
	}
	return h, nil
}

func encodeHeader(buf []byte, h Header) bool {
	if len(buf) < HeaderSize {
		return false
	}
	copy(buf[:5], Magic)
	buf[5] = h.Version
	buf[6] = h.NumCommands
	buf[7] = 0
	binary.LittleEndian.PutUint64(buf[8:16], h.NumEntries)
	binary.LittleEndian.PutUint64(buf[16:24], h.DictOffset)
	return true
}

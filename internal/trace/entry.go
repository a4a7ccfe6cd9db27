package trace

import "encoding/binary"

// Entry is a single decoded trace event.
//
// On disk an entry is 32 bytes, little-endian:
//
//	+-----------+------+---------------------------------------+
//	|   Name    | Size |              Description              |
//	+-----------+------+---------------------------------------+
//	| clk       | 8B   | Clock cycle of the event              |
//	| channel   | 2B   | Channel                               |
//	| rank      | 2B   | Rank                                  |
//	| bankgroup | 4B   | Bankgroup                             |
//	| bank      | 4B   | Bank                                  |
//	| row       | 4B   | Row                                   |
//	| column    | 4B   | Column                                |
//	| cmd_id    | 1B   | Index into the command dictionary     |
//	| reserved  | 3B   | Padding to 32 bytes                   |
//	+-----------+------+---------------------------------------+
//
// Address fields are signed; -1 marks a component that does not apply to the
// command. The mapped bytes carry no alignment guarantee, so decoding always
// goes through explicit little-endian accessors instead of pointer casts.
type Entry struct {
	Clk       int64
	Channel   int16
	Rank      int16
	Bankgroup int32
	Bank      int32
	Row       int32
	Column    int32
	CmdID     uint8
}

// decodeEntry decodes one 32-byte window. The caller guarantees len(b) >= EntrySize.
func decodeEntry(b []byte) Entry {
	return Entry{
		Clk:       int64(binary.LittleEndian.Uint64(b[0:8])),
		Channel:   int16(binary.LittleEndian.Uint16(b[8:10])),
		Rank:      int16(binary.LittleEndian.Uint16(b[10:12])),
		Bankgroup: int32(binary.LittleEndian.Uint32(b[12:16])),
		Bank:      int32(binary.LittleEndian.Uint32(b[16:20])),
		Row:       int32(binary.LittleEndian.Uint32(b[20:24])),
		Column:    int32(binary.LittleEndian.Uint32(b[24:28])),
		CmdID:     b[28],
	}
}

func encodeEntry(buf []byte, e Entry) bool {
	if len(buf) < EntrySize {
		return false
	}
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Clk))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(e.Channel))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(e.Rank))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(e.Bankgroup))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(e.Bank))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(e.Row))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(e.Column))
	buf[28] = e.CmdID
	buf[29], buf[30], buf[31] = 0, 0, 0
	return true
}

// EntrySlice is a zero-copy view over a contiguous run of entries in the
// mapped region. It must not be retained after Store.Close.
type EntrySlice struct {
	data []byte
}

// Len returns the number of entries in the slice.
func (s EntrySlice) Len() int {
	return len(s.data) / EntrySize
}

// At decodes the i-th entry of the slice. The caller must keep i < Len().
func (s EntrySlice) At(i int) Entry {
	off := i * EntrySize
	return decodeEntry(s.data[off : off+EntrySize])
}

// Clk reads only the clock field of the i-th entry, for search probes that
// do not need the rest of the record.
func (s EntrySlice) Clk(i int) int64 {
	off := i * EntrySize
	return int64(binary.LittleEndian.Uint64(s.data[off : off+8]))
}

// CmdID reads only the command id of the i-th entry.
func (s EntrySlice) CmdID(i int) uint8 {
	return s.data[i*EntrySize+28]
}

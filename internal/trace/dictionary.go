package trace

import (
	"fmt"
	"unicode/utf8"
)

// Dictionary maps a command id to its human-readable name. Command ids are
// not stored in the file; they are assigned by record position, starting at
// zero, so the section must be decoded front to back.
//
// Section layout, repeated num_commands times starting at dict_offset:
//
//	+-------------+--------------+
//	| length (1B) | name bytes   |
//	+-------------+--------------+
type Dictionary map[uint8]string

// ParseDictionary decodes num_commands length-prefixed names starting at
// dictOffset in data.
func ParseDictionary(data []byte, dictOffset uint64, numCommands uint8) (Dictionary, error) {
	if dictOffset >= uint64(len(data)) {
		return nil, ErrOffsetOutOfBounds
	}

	commands := make(Dictionary, numCommands)
	pos := int(dictOffset)

	for id := range int(numCommands) {
		if pos >= len(data) {
			return nil, fmt.Errorf("%w: command %d length byte at %d", ErrOffsetOutOfBounds, id, pos)
		}
		nameLen := int(data[pos])
		pos++

		if pos+nameLen > len(data) {
			return nil, fmt.Errorf("%w: command %d name of %d bytes at %d", ErrOffsetOutOfBounds, id, nameLen, pos)
		}
		name := data[pos : pos+nameLen]
		if !utf8.Valid(name) {
			return nil, fmt.Errorf("%w: command %d", ErrInvalidUTF8, id)
		}
		pos += nameLen

		commands[uint8(id)] = string(name)
	}

	return commands, nil
}

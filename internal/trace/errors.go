package trace

import "errors"

var (
	// Header errors.
	ErrFileTooShort       = errors.New("trace file too short")
	ErrInvalidMagic       = errors.New("invalid trace magic")
	ErrUnsupportedVersion = errors.New("unsupported trace version")

	// Layout errors.
	ErrCorruptLayout = errors.New("corrupt trace layout")

	// Dictionary errors.
	ErrOffsetOutOfBounds = errors.New("dictionary offset out of bounds")
	ErrInvalidUTF8       = errors.New("invalid UTF-8 in command name")

	// Entry errors.
	ErrInvalidIndex = errors.New("entry index out of range")
	ErrInvalidCmdID = errors.New("invalid command id")

	// Range errors.
	ErrOutOfBounds = errors.New("entry range out of bounds")
)

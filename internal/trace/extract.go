package trace

import (
	"encoding/binary"
	"math"
)

// DisplayConfig supplies per-command rendering hints. Both lookups may be
// partial; Extract substitutes defaults for anything missing.
type DisplayConfig interface {
	// DurationFor returns the event duration (in clock cycles) for a
	// command id, or false if none is configured.
	DurationFor(cmdID uint8) (float32, bool)
	// ColorHexFor returns the configured 6-hex-digit color (with or
	// without a leading '#') for a command id, or false if none is set.
	ColorHexFor(cmdID uint8) (string, bool)
}

const (
	// DefaultDuration is used for commands with no configured duration.
	DefaultDuration float32 = 10.0

	extractBytesPerEntry = 24
)

// defaultColor is mid-gray, used for commands with no valid configured color.
var defaultColor = [3]float32{0.5, 0.5, 0.5}

// Extract repacks entries into the flat structure-of-arrays buffer the
// rendering layer consumes. For n entries the buffer is exactly 24*n bytes of
// little-endian float32 values, laid out as four back-to-back arrays:
//
//	starts[n]    at 0     entry clk
//	durations[n] at n*4   configured duration, default 10.0
//	rows[n]      at n*8   all zero, lane assignment happens downstream
//	colors[3n]   at n*12  R,G,B in [0,1], default mid-gray
//
// Extract is total: unknown command ids and malformed colors fall back to
// defaults rather than failing, so a partially configured trace still draws.
func Extract(entries EntrySlice, cfg DisplayConfig) []byte {
	n := entries.Len()
	out := make([]byte, n*extractBytesPerEntry)

	// Hex parsing is per command, not per entry. Resolve each distinct id
	// once up front; traces hold millions of entries but at most 256 ids.
	var colors [256][3]float32
	var durations [256]float32
	var resolved [256]bool

	startsOff := 0
	durationsOff := n * 4
	rowsOff := n * 8
	colorsOff := n * 12

	for i := 0; i < n; i++ {
		id := entries.CmdID(i)
		if !resolved[id] {
			colors[id] = resolveColor(cfg, id)
			durations[id] = resolveDuration(cfg, id)
			resolved[id] = true
		}

		clk := entries.Clk(i)
		binary.LittleEndian.PutUint32(out[startsOff+i*4:], math.Float32bits(float32(clk)))
		binary.LittleEndian.PutUint32(out[durationsOff+i*4:], math.Float32bits(durations[id]))
		binary.LittleEndian.PutUint32(out[rowsOff+i*4:], math.Float32bits(0))

		c := colors[id]
		binary.LittleEndian.PutUint32(out[colorsOff+i*12:], math.Float32bits(c[0]))
		binary.LittleEndian.PutUint32(out[colorsOff+i*12+4:], math.Float32bits(c[1]))
		binary.LittleEndian.PutUint32(out[colorsOff+i*12+8:], math.Float32bits(c[2]))
	}

	return out
}

func resolveDuration(cfg DisplayConfig, id uint8) float32 {
	if cfg != nil {
		if d, ok := cfg.DurationFor(id); ok {
			return d
		}
	}
	return DefaultDuration
}

func resolveColor(cfg DisplayConfig, id uint8) [3]float32 {
	if cfg == nil {
		return defaultColor
	}
	hex, ok := cfg.ColorHexFor(id)
	if !ok {
		return defaultColor
	}
	rgb, ok := parseHexColor(hex)
	if !ok {
		return defaultColor
	}
	return rgb
}

// parseHexColor accepts exactly six hex digits, optionally preceded by '#',
// and normalizes the three byte pairs to [0,1]. Anything else is rejected.
func parseHexColor(s string) ([3]float32, bool) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return [3]float32{}, false
	}
	var rgb [3]float32
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(s[i*2])
		lo, ok2 := hexNibble(s[i*2+1])
		if !ok1 || !ok2 {
			return [3]float32{}, false
		}
		rgb[i] = float32(hi<<4|lo) / 255.0
	}
	return rgb, true
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

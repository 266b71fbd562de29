// Package ztable implements the Z-machine table opcodes (SCAN_TABLE,
// COPY_TABLE) on top of zcore.Memory, per spec.md section 4.1.
package ztable

import "github.com/rezrov-go/zmachine/zcore"

// formByteField reports whether a SCAN_TABLE form byte requests 16-bit
// fields (bit 0x80 set) instead of the default 8-bit fields.
func formByteField(form uint8) bool {
	return form&0x80 != 0
}

// fieldLen returns the stride, in bytes, between successive table
// entries for a given SCAN_TABLE form byte: the low 7 bits give it
// directly when nonzero; when zero, it defaults to 2 for word fields
// (bit 0x80 set) or 1 for byte fields.
func fieldLen(form uint8) uint32 {
	if stride := form & 0x7f; stride != 0 {
		return uint32(stride)
	}
	if formByteField(form) {
		return 2
	}
	return 1
}

// ScanTable searches len entries of table, starting at addr, each
// fieldLen(form) bytes apart, for one whose leading field equals x. It
// returns the address of the first match, or 0 if none, per spec.md
// section 4.1.
func ScanTable(mem *zcore.Memory, x uint16, addr uint32, length uint16, form uint8) (uint32, error) {
	stride := fieldLen(form)

	for i := uint16(0); i < length; i++ {
		entryAddr := addr + uint32(i)*stride
		var field uint16
		if formByteField(form) {
			w, err := mem.ReadWord(entryAddr)
			if err != nil {
				return 0, err
			}
			field = w
		} else {
			b, err := mem.ReadByte(entryAddr)
			if err != nil {
				return 0, err
			}
			field = uint16(b)
		}
		if field == x {
			return entryAddr, nil
		}
	}
	return 0, nil
}

// CopyTable implements the COPY_TABLE opcode: copying size bytes from
// first to second, or zero-filling first when second is 0. A negative
// size forces a byte-by-byte forward copy even when the regions overlap
// (spec.md section 4.1), matching zcore.Memory.CopyBlock's own
// negative-length semantics.
func CopyTable(mem *zcore.Memory, first, second uint32, size int16) error {
	if second == 0 {
		n := size
		if n < 0 {
			n = -n
		}
		return mem.ZeroRange(first, uint16(n))
	}
	return mem.CopyBlock(first, second, int32(size))
}

// PrintTable writes a rectangular block of ZSCII bytes starting at addr
// to the screen through writeLine: width bytes per line, height lines,
// advancing by skip extra bytes between lines (spec.md section 4.1's
// PRINT_TABLE, used for map/box drawing). writeLine receives one row's
// raw bytes at a time; the caller (vm.Engine) is responsible for ZSCII
// translation and cursor movement between rows.
func PrintTable(mem *zcore.Memory, addr uint32, width uint16, height uint16, skip uint16, writeLine func(row []byte) error) error {
	cursor := addr
	for row := uint16(0); row < height; row++ {
		line, err := mem.Slice(cursor, cursor+uint32(width))
		if err != nil {
			return err
		}
		if err := writeLine(line); err != nil {
			return err
		}
		cursor += uint32(width) + uint32(skip)
	}
	return nil
}

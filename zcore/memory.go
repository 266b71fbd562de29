// Package zcore implements the Z-machine memory model: a single
// byte-addressable story image partitioned into dynamic, static and high
// regions, with bit-exact big-endian access and version-dependent packed
// address unpacking.
package zcore

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds           = errors.New("zcore: address out of bounds")
	ErrReadOnlyMemory        = errors.New("zcore: write to read-only memory")
	ErrUnalignedPackedAddr   = errors.New("zcore: unaligned packed address")
	ErrInvalidPackedAddr     = errors.New("zcore: invalid packed address")
	ErrInvalidHeader         = errors.New("zcore: invalid story file header")
)

// Header holds the fixed-offset fields of the 64 byte story file header,
// per the Z-machine Standard and spec.md section 6.
type Header struct {
	Version                uint8
	Flags1                 uint8
	ReleaseNumber          uint16
	HighMemBase            uint16
	InitialPC              uint16
	DictionaryAddr         uint16
	ObjectTableAddr        uint16
	GlobalsAddr            uint16
	StaticMemBase          uint16
	Flags2                 uint16
	SerialCode             [6]byte
	AbbreviationsAddr      uint16
	FileLengthDiv          uint16
	Checksum               uint16
	InterpreterNumber      uint8
	InterpreterVersion     uint8
	ScreenHeightLines      uint8
	ScreenWidthChars       uint8
	ScreenWidthUnits       uint16
	ScreenHeightUnits      uint16
	FontWidthUnits         uint8
	FontHeightUnits        uint8
	RoutinesOffset         uint16 // v6-7 only
	StringsOffset          uint16 // v6-7 only
	DefaultBackground      uint8
	DefaultForeground      uint8
	TerminatingCharTableAddr uint16
	OutputStream3Width     uint16
	StandardRevision       uint16
	AlphabetTableAddr      uint16
	HeaderExtAddr          uint16 // v5+
	UnicodeTableAddr       uint16 // from header extension, word 3
	PlayerLoginName        [8]byte
}

// Memory is the byte-addressable story image. It owns the only mutable
// copy of the dynamic memory region; static and high memory are logically
// read-only at runtime even though they share the same backing slice.
type Memory struct {
	bytes []byte
	hdr   Header
}

// maxSize gives the maximum story file size for each version family,
// per spec.md section 3.
func maxSize(version uint8) int {
	switch {
	case version <= 3:
		return 128 * 1024
	case version <= 5:
		return 256 * 1024
	default:
		return 512 * 1024
	}
}

// Load parses a story file image into a Memory, validating the header
// invariants from spec.md section 3. The supplied bytes are taken as the
// backing store and referenced, not copied, matching the teacher's
// zcore.LoadCore which mutates the incoming slice in place to stamp
// interpreter capability flags.
func Load(storyBytes []byte) (*Memory, error) {
	if len(storyBytes) < 64 {
		return nil, fmt.Errorf("%w: file shorter than header (%d bytes)", ErrInvalidHeader, len(storyBytes))
	}

	version := storyBytes[0x00]
	if version < 1 || version > 8 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidHeader, version)
	}

	if max := maxSize(version); len(storyBytes) > max {
		return nil, fmt.Errorf("%w: file size %d exceeds v%d maximum %d", ErrInvalidHeader, len(storyBytes), version, max)
	}

	staticMemBase := binary.BigEndian.Uint16(storyBytes[0x0e:0x10])
	highMemBase := binary.BigEndian.Uint16(storyBytes[0x04:0x06])

	if staticMemBase < 64 {
		return nil, fmt.Errorf("%w: static memory base 0x%04x below header", ErrInvalidHeader, staticMemBase)
	}
	if staticMemBase > highMemBase {
		return nil, fmt.Errorf("%w: static memory base 0x%04x exceeds high memory base 0x%04x", ErrInvalidHeader, staticMemBase, highMemBase)
	}

	hdr := Header{
		Version:             version,
		Flags1:              storyBytes[0x01],
		ReleaseNumber:       binary.BigEndian.Uint16(storyBytes[0x02:0x04]),
		HighMemBase:         highMemBase,
		InitialPC:           binary.BigEndian.Uint16(storyBytes[0x06:0x08]),
		DictionaryAddr:      binary.BigEndian.Uint16(storyBytes[0x08:0x0a]),
		ObjectTableAddr:     binary.BigEndian.Uint16(storyBytes[0x0a:0x0c]),
		GlobalsAddr:         binary.BigEndian.Uint16(storyBytes[0x0c:0x0e]),
		StaticMemBase:       staticMemBase,
		Flags2:              binary.BigEndian.Uint16(storyBytes[0x10:0x12]),
		AbbreviationsAddr:   binary.BigEndian.Uint16(storyBytes[0x18:0x1a]),
		FileLengthDiv:       binary.BigEndian.Uint16(storyBytes[0x1a:0x1c]),
		Checksum:            binary.BigEndian.Uint16(storyBytes[0x1c:0x1e]),
		InterpreterNumber:   storyBytes[0x1e],
		InterpreterVersion:  storyBytes[0x1f],
		ScreenHeightLines:   storyBytes[0x20],
		ScreenWidthChars:    storyBytes[0x21],
		ScreenWidthUnits:    binary.BigEndian.Uint16(storyBytes[0x22:0x24]),
		ScreenHeightUnits:   binary.BigEndian.Uint16(storyBytes[0x24:0x26]),
		FontWidthUnits:      storyBytes[0x26],
		FontHeightUnits:     storyBytes[0x27],
		RoutinesOffset:      binary.BigEndian.Uint16(storyBytes[0x28:0x2a]),
		StringsOffset:       binary.BigEndian.Uint16(storyBytes[0x2a:0x2c]),
		DefaultBackground:   storyBytes[0x2c],
		DefaultForeground:   storyBytes[0x2d],
		TerminatingCharTableAddr: binary.BigEndian.Uint16(storyBytes[0x2e:0x30]),
		OutputStream3Width:  binary.BigEndian.Uint16(storyBytes[0x30:0x32]),
		StandardRevision:    binary.BigEndian.Uint16(storyBytes[0x32:0x34]),
		AlphabetTableAddr:   binary.BigEndian.Uint16(storyBytes[0x34:0x36]),
		HeaderExtAddr:       binary.BigEndian.Uint16(storyBytes[0x36:0x38]),
	}
	copy(hdr.SerialCode[:], storyBytes[0x12:0x18])
	copy(hdr.PlayerLoginName[:], storyBytes[0x38:0x40])

	if hdr.HeaderExtAddr != 0 && int(hdr.HeaderExtAddr)+8 <= len(storyBytes) {
		numWords := binary.BigEndian.Uint16(storyBytes[hdr.HeaderExtAddr : hdr.HeaderExtAddr+2])
		if numWords >= 3 {
			hdr.UnicodeTableAddr = binary.BigEndian.Uint16(storyBytes[hdr.HeaderExtAddr+6 : hdr.HeaderExtAddr+8])
		}
	}

	return &Memory{bytes: storyBytes, hdr: hdr}, nil
}

// StampInterpreterCapabilities writes the interpreter identity and screen
// geometry fields the header reserves for the runtime, per spec.md
// section 6 ("The interpreter writes screen size ... and capability
// flags1/flags2 at startup"), matching zcore.LoadCore.
func (m *Memory) StampInterpreterCapabilities(rows, cols int) {
	m.bytes[0x1e] = 6 // Interpreter number: IBM PC, closest available match
	m.bytes[0x1f] = 1 // Interpreter version

	m.bytes[0x20] = uint8(rows)
	m.bytes[0x21] = uint8(cols)
	binary.BigEndian.PutUint16(m.bytes[0x22:0x24], uint16(cols))
	binary.BigEndian.PutUint16(m.bytes[0x24:0x26], uint16(rows))
	m.bytes[0x26] = 1
	m.bytes[0x27] = 1

	m.bytes[0x32] = 1 // Standard revision 1.
	m.bytes[0x33] = 2 // .2

	if m.hdr.Version <= 3 {
		m.bytes[0x01] |= 0b0010_0000 // status line / split screen available
	} else {
		// colours, bold, italic, split screen; not pictures/fixed-width default/timed input
		m.bytes[0x01] |= 0b0010_1101
	}

	m.hdr.ScreenHeightLines = m.bytes[0x20]
	m.hdr.ScreenWidthChars = m.bytes[0x21]
	m.hdr.ScreenWidthUnits = uint16(cols)
	m.hdr.ScreenHeightUnits = uint16(rows)
	m.hdr.InterpreterNumber = m.bytes[0x1e]
	m.hdr.InterpreterVersion = m.bytes[0x1f]
	m.hdr.StandardRevision = 0x0102
}

func (m *Memory) Header() Header { return m.hdr }
func (m *Memory) Version() uint8 { return m.hdr.Version }
func (m *Memory) Size() uint32   { return uint32(len(m.bytes)) }

// FileLength returns the story file's declared length from the header,
// scaled by the version-dependent divisor (spec.md section 6, used by the
// VERIFY opcode's checksum scan).
func (m *Memory) FileLength() uint32 {
	var divisor uint32
	switch {
	case m.hdr.Version <= 3:
		divisor = 2
	case m.hdr.Version <= 5:
		divisor = 4
	default:
		divisor = 8
	}
	return uint32(m.hdr.FileLengthDiv) * divisor
}

func (m *Memory) inBounds(addr uint32) bool {
	return addr < uint32(len(m.bytes))
}

func (m *Memory) IsDynamic(addr uint32) bool {
	return addr < uint32(m.hdr.StaticMemBase)
}

func (m *Memory) IsStatic(addr uint32) bool {
	return addr >= uint32(m.hdr.StaticMemBase) && addr < uint32(m.hdr.HighMemBase)
}

func (m *Memory) IsHigh(addr uint32) bool {
	return addr >= uint32(m.hdr.HighMemBase)
}

func (m *Memory) ReadByte(addr uint32) (uint8, error) {
	if !m.inBounds(addr) {
		return 0, fmt.Errorf("%w: 0x%x", ErrOutOfBounds, addr)
	}
	return m.bytes[addr], nil
}

func (m *Memory) ReadWord(addr uint32) (uint16, error) {
	if !m.inBounds(addr + 1) {
		return 0, fmt.Errorf("%w: 0x%x", ErrOutOfBounds, addr)
	}
	return binary.BigEndian.Uint16(m.bytes[addr : addr+2]), nil
}

func (m *Memory) WriteByte(addr uint32, v uint8) error {
	if !m.inBounds(addr) {
		return fmt.Errorf("%w: 0x%x", ErrOutOfBounds, addr)
	}
	if addr >= uint32(m.hdr.StaticMemBase) {
		return fmt.Errorf("%w: 0x%x", ErrReadOnlyMemory, addr)
	}
	m.bytes[addr] = v
	return nil
}

func (m *Memory) WriteWord(addr uint32, v uint16) error {
	if !m.inBounds(addr + 1) {
		return fmt.Errorf("%w: 0x%x", ErrOutOfBounds, addr)
	}
	if addr >= uint32(m.hdr.StaticMemBase) {
		return fmt.Errorf("%w: 0x%x", ErrReadOnlyMemory, addr)
	}
	binary.BigEndian.PutUint16(m.bytes[addr:addr+2], v)
	return nil
}

// WriteByteRaw bypasses the static/high write-protection check. It exists
// for vm.Engine's Restart and Restore paths, which rewrite dynamic memory
// wholesale without going through the per-write permission check.
func (m *Memory) WriteByteRaw(addr uint32, v uint8) error {
	if !m.inBounds(addr) {
		return fmt.Errorf("%w: 0x%x", ErrOutOfBounds, addr)
	}
	m.bytes[addr] = v
	return nil
}

// Slice returns a direct view of [start, end) for bulk operations (table
// opcodes, Quetzal memory capture). Callers must not retain it across a
// Load/restore.
func (m *Memory) Slice(start, end uint32) ([]byte, error) {
	if end < start || !m.inBounds(end-1) && end != start {
		return nil, fmt.Errorf("%w: [0x%x, 0x%x)", ErrOutOfBounds, start, end)
	}
	return m.bytes[start:end], nil
}

// DynamicMemory returns the mutable [0, static_mem_base) region, the
// portion Quetzal save files capture.
func (m *Memory) DynamicMemory() []byte {
	return m.bytes[:m.hdr.StaticMemBase]
}

// UnpackRoutineAddr expands a packed routine address per spec.md
// section 4.1's version-specific multiplier table.
func (m *Memory) UnpackRoutineAddr(packed uint16) uint32 {
	return m.unpack(packed, m.hdr.RoutinesOffset)
}

// UnpackStringAddr expands a packed string address.
func (m *Memory) UnpackStringAddr(packed uint16) uint32 {
	return m.unpack(packed, m.hdr.StringsOffset)
}

func (m *Memory) unpack(packed uint16, offset uint16) uint32 {
	switch {
	case m.hdr.Version < 4:
		return 2 * uint32(packed)
	case m.hdr.Version < 6:
		return 4 * uint32(packed)
	case m.hdr.Version < 8:
		return 4*uint32(packed) + 8*uint32(offset)
	default: // v8
		return 8 * uint32(packed)
	}
}

// PackedAlignment returns the divisibility a byte address reached via
// unpacking must satisfy for this version, per spec.md section 3.
func (m *Memory) PackedAlignment() uint32 {
	switch {
	case m.hdr.Version < 4:
		return 2
	case m.hdr.Version < 8:
		return 4
	default:
		return 8
	}
}

// ReadZCharWords reads the packed 16-bit words of a Z-string starting at
// addr, stopping after (and including) the word whose high bit is set.
// It returns the raw words; zstring.Decode turns them into Z-characters
// and then text. Mirrors spec.md section 4.1's get_zstring.
func (m *Memory) ReadZCharWords(addr uint32) ([]uint16, uint32, error) {
	var words []uint16
	cursor := addr
	for {
		w, err := m.ReadWord(cursor)
		if err != nil {
			return nil, 0, err
		}
		words = append(words, w)
		cursor += 2
		if w&0x8000 != 0 {
			break
		}
	}
	return words, cursor - addr, nil
}

// CopyBlock implements the copy_table/copy_block semantics of spec.md
// section 4.1: positive length copies using a temporary buffer so
// overlapping regions behave as if the source were fully read first;
// negative length copies byte-by-byte forward, permitting the kind of
// deliberate self-overlap "overlay" some story files rely on.
func (m *Memory) CopyBlock(src, dst uint32, length int32) error {
	if length == 0 {
		return nil
	}
	n := length
	if n < 0 {
		n = -n
	}
	if !m.inBounds(src+uint32(n)-1) || !m.inBounds(dst+uint32(n)-1) {
		return fmt.Errorf("%w: copy_block [0x%x -> 0x%x, %d)", ErrOutOfBounds, src, dst, n)
	}

	if length < 0 {
		for i := uint32(0); i < uint32(n); i++ {
			if err := m.WriteByte(dst+i, m.bytes[src+i]); err != nil {
				return err
			}
		}
		return nil
	}

	tmp := make([]byte, n)
	copy(tmp, m.bytes[src:src+uint32(n)])
	for i, b := range tmp {
		if err := m.WriteByte(dst+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

// ZeroRange clears [addr, addr+n) to zero, used by copy_table's
// "second == 0" zero-fill special case.
func (m *Memory) ZeroRange(addr uint32, n uint16) error {
	for i := uint16(0); i < n; i++ {
		if err := m.WriteByte(addr+uint32(i), 0); err != nil {
			return err
		}
	}
	return nil
}

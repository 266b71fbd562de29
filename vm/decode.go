package vm

import (
	"fmt"

	"github.com/rezrov-go/zmachine/zcore"
	"github.com/rezrov-go/zmachine/zstring"
)

type OperandType uint8

const (
	OperandLarge    OperandType = 0
	OperandSmall    OperandType = 1
	OperandVariable OperandType = 2
	OperandOmitted  OperandType = 3
)

type OpcodeForm uint8

const (
	FormLong OpcodeForm = iota
	FormShort
	FormVariable
	FormExtended
)

type OperandCount uint8

const (
	Count0OP OperandCount = iota
	Count1OP
	Count2OP
	CountVAR
)

// Operand is a not-yet-resolved instruction operand: a literal value for
// Large/Small, or a variable number for Variable (0 = stack, 1-15 =
// local, 16-255 = global).
type Operand struct {
	Type  OperandType
	Value uint16
}

// Instruction is one fully decoded opcode: its operands, and where (if
// anywhere) it stores a result or branches, per spec.md section 5.2's
// instruction forms.
type Instruction struct {
	Addr      uint32
	NextAddr  uint32
	Number    int // opcode number within its form/count bucket
	Form      OpcodeForm
	Count     OperandCount
	Operands  []Operand
	HasStore  bool
	StoreVar  uint8
	HasBranch bool
	BranchOnTrue bool
	BranchOffset int32 // 0 and 1 are the special "return false/true" encodings (spec.md section 5.2)
	HasText   bool
	Text      string // decoded inline literal string, for PRINT/PRINT_RET
}

// opcodeMeta reports whether the given decoded bucket/number stores a
// result and/or branches, per the Z-machine Standard's per-opcode
// tables (section 15), version-adjusted where the Standard itself
// changes an opcode's shape across versions (call_1n/call_2n appearing
// in v5, catch replacing pop in v5, sread gaining a store in v5, etc).
func opcodeMeta(count OperandCount, number int, version uint8) (hasStore, hasBranch, hasText bool) {
	switch count {
	case Count2OP:
		switch number {
		case 1, 2, 3, 4, 5, 6, 7, 10:
			return false, true, false
		case 8, 9, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24:
			return true, false, false
		case 25: // call_2s
			return true, false, false
		default:
			return false, false, false
		}
	case Count1OP:
		switch number {
		case 0, 13:
			return false, number == 0, false
		case 1, 2:
			return true, true, false
		case 3, 4, 8, 14:
			return true, false, false
		case 15:
			if version <= 4 {
				return true, false, false // "not"
			}
			return false, false, false // call_1n
		default:
			return false, false, false
		}
	case Count0OP:
		switch number {
		case 2, 3:
			return false, false, true
		case 5, 6:
			if version == 4 {
				return true, false, false
			}
			return false, true, false
		case 9:
			if version >= 5 {
				return true, false, false // catch
			}
			return false, false, false // pop
		case 13, 15:
			return false, true, false
		default:
			return false, false, false
		}
	case CountVAR:
		switch number {
		case 0, 7, 12:
			return true, false, false
		case 4:
			return version >= 5, false, false // sread/aread
		case 22:
			return true, false, false // read_char
		case 23:
			return true, true, false // scan_table
		case 24:
			return version >= 5, false, false // "not" in VAR form
		case 31:
			return false, true, false // check_arg_count
		default:
			return false, false, false
		}
	}
	return false, false, false
}

// extOpcodeMeta reports store/branch shape for extended (0xBE-prefixed)
// opcodes, per the Standard's section 15 EXT table.
func extOpcodeMeta(number int) (hasStore, hasBranch bool) {
	switch number {
	case 0, 1, 2, 3, 4, 9, 10, 12, 19, 29:
		return true, false
	case 6, 27:
		return false, true
	default:
		return false, false
	}
}

// Decoder decodes instructions from story memory. It carries the
// alphabets and abbreviations table needed to decode the inline literal
// strings that follow PRINT and PRINT_RET.
type Decoder struct {
	mem             *zcore.Memory
	version         uint8
	alphabets       *zstring.Alphabets
	abbrevTableAddr uint16
}

func NewDecoder(mem *zcore.Memory) *Decoder {
	return &Decoder{mem: mem, version: mem.Version(), alphabets: zstring.DefaultAlphabets(mem.Version())}
}

// SetTextTables installs the story's actual alphabets and abbreviation
// table, overriding the plain per-version defaults NewDecoder assumes.
func (d *Decoder) SetTextTables(alphabets *zstring.Alphabets, abbrevTableAddr uint16) {
	d.alphabets = alphabets
	d.abbrevTableAddr = abbrevTableAddr
}

// Decode reads one instruction starting at addr, per spec.md section
// 5.2: opcode byte determines form and operand count, then 0+ operands,
// then an optional store variable, optional branch, optional inline
// string.
func (d *Decoder) Decode(addr uint32) (Instruction, error) {
	cursor := addr
	opByte, err := d.mem.ReadByte(cursor)
	if err != nil {
		return Instruction{}, err
	}
	cursor++

	inst := Instruction{Addr: addr}

	switch {
	case opByte == 0xBE:
		inst.Form = FormExtended
		extNum, err := d.mem.ReadByte(cursor)
		if err != nil {
			return Instruction{}, err
		}
		cursor++
		inst.Number = int(extNum)
		inst.Count = CountVAR
		types, next, err := d.readVarOperandTypes(cursor, 1)
		if err != nil {
			return Instruction{}, err
		}
		cursor = next
		ops, next, err := d.readOperands(cursor, types)
		if err != nil {
			return Instruction{}, err
		}
		cursor = next
		inst.Operands = ops
		inst.HasStore, inst.HasBranch = extOpcodeMeta(inst.Number)

	case opByte&0xC0 == 0xC0: // variable form (top two bits 11)
		inst.Form = FormVariable
		inst.Number = int(opByte & 0x1f)
		if opByte&0x20 != 0 {
			inst.Count = CountVAR
		} else {
			inst.Count = Count2OP
		}
		numTypeBytes := 1
		if inst.Number == 12 || inst.Number == 26 { // call_vs2 / call_vn2: up to 8 operands
			numTypeBytes = 2
		}
		types, next, err := d.readVarOperandTypes(cursor, numTypeBytes)
		if err != nil {
			return Instruction{}, err
		}
		cursor = next
		ops, next, err := d.readOperands(cursor, types)
		if err != nil {
			return Instruction{}, err
		}
		cursor = next
		inst.Operands = ops
		inst.HasStore, inst.HasBranch, inst.HasText = opcodeMeta(inst.Count, inst.Number, d.version)

	case opByte&0x80 == 0: // long form: always 2OP
		inst.Form = FormLong
		inst.Count = Count2OP
		inst.Number = int(opByte & 0x3f)
		t1 := OperandSmall
		if opByte&0x40 != 0 {
			t1 = OperandVariable
		}
		t2 := OperandSmall
		if opByte&0x20 != 0 {
			t2 = OperandVariable
		}
		ops, next, err := d.readOperands(cursor, []OperandType{t1, t2})
		if err != nil {
			return Instruction{}, err
		}
		cursor = next
		inst.Operands = ops
		inst.HasStore, inst.HasBranch, inst.HasText = opcodeMeta(inst.Count, inst.Number, d.version)

	default: // short form: top two bits 10
		inst.Form = FormShort
		inst.Number = int(opByte & 0x0f)
		typeBits := OperandType((opByte >> 4) & 0x3)
		if typeBits == OperandOmitted {
			inst.Count = Count0OP
			inst.Operands = nil
		} else {
			inst.Count = Count1OP
			ops, next, err := d.readOperands(cursor, []OperandType{typeBits})
			if err != nil {
				return Instruction{}, err
			}
			cursor = next
			inst.Operands = ops
		}
		inst.HasStore, inst.HasBranch, inst.HasText = opcodeMeta(inst.Count, inst.Number, d.version)
	}

	if inst.HasStore {
		storeVar, err := d.mem.ReadByte(cursor)
		if err != nil {
			return Instruction{}, err
		}
		cursor++
		inst.StoreVar = storeVar
	}

	if inst.HasBranch {
		b1, err := d.mem.ReadByte(cursor)
		if err != nil {
			return Instruction{}, err
		}
		cursor++
		inst.BranchOnTrue = b1&0x80 != 0
		var offset int32
		if b1&0x40 != 0 {
			offset = int32(b1 & 0x3f)
		} else {
			b2, err := d.mem.ReadByte(cursor)
			if err != nil {
				return Instruction{}, err
			}
			cursor++
			raw := uint16(b1&0x3f)<<8 | uint16(b2)
			if raw&0x2000 != 0 {
				raw |= 0xC000 // sign-extend the 14-bit field
			}
			offset = int32(int16(raw))
		}
		inst.BranchOffset = offset
	}

	if inst.HasText {
		text, n, err := zstring.Decode(d.mem, cursor, d.version, d.alphabets, d.abbrevTableAddr)
		if err != nil {
			return Instruction{}, err
		}
		inst.Text = text
		cursor += n
	}

	inst.NextAddr = cursor
	return inst, nil
}

// readVarOperandTypes reads numBytes type bytes (each packing four
// 2-bit operand types), stopping at the first OperandOmitted. All
// numBytes bytes are consumed even when the list ends early.
func (d *Decoder) readVarOperandTypes(addr uint32, numBytes int) ([]OperandType, uint32, error) {
	var types []OperandType
	cursor := addr
	done := false
	for i := 0; i < numBytes; i++ {
		b, err := d.mem.ReadByte(cursor)
		if err != nil {
			return nil, 0, err
		}
		cursor++
		for shift := 6; shift >= 0 && !done; shift -= 2 {
			t := OperandType((b >> shift) & 0x3)
			if t == OperandOmitted {
				done = true
				break
			}
			types = append(types, t)
		}
	}
	return types, cursor, nil
}

func (d *Decoder) readOperands(addr uint32, types []OperandType) ([]Operand, uint32, error) {
	cursor := addr
	ops := make([]Operand, 0, len(types))
	for _, t := range types {
		switch t {
		case OperandLarge:
			v, err := d.mem.ReadWord(cursor)
			if err != nil {
				return nil, 0, err
			}
			cursor += 2
			ops = append(ops, Operand{Type: t, Value: v})
		case OperandSmall, OperandVariable:
			v, err := d.mem.ReadByte(cursor)
			if err != nil {
				return nil, 0, err
			}
			cursor++
			ops = append(ops, Operand{Type: t, Value: uint16(v)})
		default:
			return nil, 0, fmt.Errorf("vm: unexpected omitted operand mid-list")
		}
	}
	return ops, cursor, nil
}

// Package quetzal implements the Quetzal save-game format: a chunked
// IFF container (FORM/IFZS) with IFhd/CMem/Stks/ANNO chunks, per spec.md
// section 6. This replaces the teacher's ad hoc "GOZM" format
// (zmachine/savestates.go) with the real interchange format so save
// files this interpreter writes can be read by other Z-machine
// interpreters and vice versa.
package quetzal

import (
	"encoding/binary"
	"fmt"

	"github.com/rezrov-go/zmachine/vm"
	"github.com/rezrov-go/zmachine/zcore"
)

const (
	formID = "FORM"
	ifzsID = "IFZS"
	ifhdID = "IFhd"
	cmemID = "CMem"
	umemID = "UMem"
	stksID = "Stks"
	annoID = "ANNO"
)

// Encode captures the engine's current dynamic memory and call stack
// into a Quetzal save file. origDynamicMemory is the story file's
// dynamic memory as it was at the moment the game started (needed for
// CMem's XOR compression); it never changes across a single game run.
func Encode(mem *zcore.Memory, origDynamicMemory []byte, snap vm.Snapshot, annotation string) ([]byte, error) {
	hdr := mem.Header()

	var chunks [][]byte
	chunks = append(chunks, chunk(ifhdID, encodeIFhd(hdr, snap.PC)))
	chunks = append(chunks, chunk(cmemID, encodeCMem(origDynamicMemory, snap.DynamicMemory)))
	chunks = append(chunks, chunk(stksID, encodeStks(snap.Stack)))
	if annotation != "" {
		chunks = append(chunks, chunk(annoID, []byte(annotation)))
	}

	var body []byte
	body = append(body, []byte(ifzsID)...)
	for _, c := range chunks {
		body = append(body, c...)
	}

	out := make([]byte, 0, 8+len(body))
	out = append(out, []byte(formID)...)
	out = appendUint32(out, uint32(len(body)))
	out = append(out, body...)
	return out, nil
}

// Decode parses a Quetzal save file into the Snapshot the engine should
// restore, validating that the header's release/serial/checksum match
// the currently loaded story (spec.md section 6's "refuse to restore a
// save file made against a different game" invariant).
func Decode(data []byte, mem *zcore.Memory, origDynamicMemory []byte) (vm.Snapshot, error) {
	if len(data) < 12 || string(data[0:4]) != formID {
		return vm.Snapshot{}, fmt.Errorf("quetzal: not an IFF FORM container")
	}
	formLen := binary.BigEndian.Uint32(data[4:8])
	if int(formLen)+8 > len(data) {
		return vm.Snapshot{}, fmt.Errorf("quetzal: truncated FORM chunk")
	}
	if string(data[8:12]) != ifzsID {
		return vm.Snapshot{}, fmt.Errorf("quetzal: not an IFZS save file")
	}

	var (
		pc           uint32
		dynamicMem   []byte
		haveDynMem   bool
		stack        *vm.CallStack
		haveStack    bool
		release      uint16
		serial       [6]byte
		checksum     uint16
		haveHeader   bool
	)

	cursor := 12
	for cursor+8 <= 8+int(formLen) {
		id := string(data[cursor : cursor+4])
		length := binary.BigEndian.Uint32(data[cursor+4 : cursor+8])
		start := cursor + 8
		end := start + int(length)
		if end > len(data) {
			return vm.Snapshot{}, fmt.Errorf("quetzal: chunk %q overruns file", id)
		}
		body := data[start:end]

		switch id {
		case ifhdID:
			r, s, c, p, err := decodeIFhd(body)
			if err != nil {
				return vm.Snapshot{}, err
			}
			release, serial, checksum, pc = r, s, c, p
			haveHeader = true
		case cmemID:
			dynamicMem = decodeCMem(origDynamicMemory, body)
			haveDynMem = true
		case umemID:
			dynamicMem = append([]byte(nil), body...)
			haveDynMem = true
		case stksID:
			var err error
			stack, err = decodeStks(body)
			if err != nil {
				return vm.Snapshot{}, err
			}
			haveStack = true
		}

		cursor = end
		if length%2 == 1 {
			cursor++ // IFF chunks pad odd-length data to a word boundary
		}
	}

	if !haveHeader {
		return vm.Snapshot{}, fmt.Errorf("quetzal: missing IFhd chunk")
	}
	if !haveDynMem {
		return vm.Snapshot{}, fmt.Errorf("quetzal: missing CMem/UMem chunk")
	}
	if !haveStack {
		return vm.Snapshot{}, fmt.Errorf("quetzal: missing Stks chunk")
	}

	hdr := mem.Header()
	if release != hdr.ReleaseNumber || serial != hdr.SerialCode || checksum != hdr.Checksum {
		return vm.Snapshot{}, fmt.Errorf("quetzal: save file does not match the loaded story (release/serial/checksum mismatch)")
	}
	if len(dynamicMem) != len(origDynamicMemory) {
		return vm.Snapshot{}, fmt.Errorf("quetzal: restored memory size %d != expected %d", len(dynamicMem), len(origDynamicMemory))
	}

	return vm.Snapshot{DynamicMemory: dynamicMem, Stack: stack, PC: pc}, nil
}

func chunk(id string, data []byte) []byte {
	out := make([]byte, 0, 8+len(data)+1)
	out = append(out, []byte(id)...)
	out = appendUint32(out, uint32(len(data)))
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func encodeIFhd(hdr zcore.Header, pc uint32) []byte {
	out := make([]byte, 13)
	binary.BigEndian.PutUint16(out[0:2], hdr.ReleaseNumber)
	copy(out[2:8], hdr.SerialCode[:])
	binary.BigEndian.PutUint16(out[8:10], hdr.Checksum)
	out[10] = byte(pc >> 16)
	out[11] = byte(pc >> 8)
	out[12] = byte(pc)
	return out
}

func decodeIFhd(body []byte) (release uint16, serial [6]byte, checksum uint16, pc uint32, err error) {
	if len(body) < 13 {
		return 0, serial, 0, 0, fmt.Errorf("quetzal: IFhd chunk too short (%d bytes)", len(body))
	}
	release = binary.BigEndian.Uint16(body[0:2])
	copy(serial[:], body[2:8])
	checksum = binary.BigEndian.Uint16(body[8:10])
	pc = uint32(body[10])<<16 | uint32(body[11])<<8 | uint32(body[12])
	return release, serial, checksum, pc, nil
}

// encodeCMem XORs current against original byte-for-byte and run-length
// encodes the result: a nonzero byte is literal, a zero byte is followed
// by a count byte N meaning N+1 zero bytes (spec.md section 9's decided
// CMem zero-run semantics).
func encodeCMem(original, current []byte) []byte {
	var out []byte
	i := 0
	for i < len(current) {
		var o byte
		if i < len(original) {
			o = original[i]
		}
		x := current[i] ^ o
		if x != 0 {
			out = append(out, x)
			i++
			continue
		}
		run := 0
		for i < len(current) && run < 256 {
			var oo byte
			if i < len(original) {
				oo = original[i]
			}
			if current[i]^oo != 0 {
				break
			}
			run++
			i++
		}
		out = append(out, 0, byte(run-1))
	}
	return out
}

func decodeCMem(original, compressed []byte) []byte {
	out := make([]byte, len(original))
	copy(out, original)
	pos := 0
	for i := 0; i < len(compressed) && pos < len(out); i++ {
		b := compressed[i]
		if b != 0 {
			out[pos] ^= b
			pos++
			continue
		}
		i++
		if i >= len(compressed) {
			break
		}
		n := int(compressed[i]) + 1
		pos += n // XOR with 0 leaves these bytes as the original's value
	}
	return out
}

// encodeStks writes every frame on the call stack, bottom (the
// synthetic dummy main frame) first, per spec.md section 6's Stks
// layout.
func encodeStks(stack *vm.CallStack) []byte {
	var out []byte
	for _, f := range stack.Frames() {
		out = append(out, byte(f.ReturnPC>>16), byte(f.ReturnPC>>8), byte(f.ReturnPC))

		flags := byte(f.NumLocals)
		if !f.HasResult {
			flags |= 0x10
		}
		out = append(out, flags)

		out = append(out, f.ResultVar)

		argsMask := byte(0)
		if f.ArgCount > 0 {
			argsMask = byte((1 << uint(f.ArgCount)) - 1)
		}
		out = append(out, argsMask)

		eval := f.EvalStack()
		out = append(out, byte(len(eval)>>8), byte(len(eval)))

		for i := 0; i < f.NumLocals; i++ {
			out = append(out, byte(f.Locals[i]>>8), byte(f.Locals[i]))
		}
		for _, v := range eval {
			out = append(out, byte(v>>8), byte(v))
		}
	}
	return out
}

func decodeStks(body []byte) (*vm.CallStack, error) {
	var frames []*vm.Frame
	cursor := 0
	for cursor < len(body) {
		if cursor+8 > len(body) {
			return nil, fmt.Errorf("quetzal: Stks chunk truncated mid-frame")
		}
		returnPC := uint32(body[cursor])<<16 | uint32(body[cursor+1])<<8 | uint32(body[cursor+2])
		flags := body[cursor+3]
		resultVar := body[cursor+4]
		argsMask := body[cursor+5]
		evalCount := int(body[cursor+6])<<8 | int(body[cursor+7])
		cursor += 8

		numLocals := int(flags & 0x0f)
		hasResult := flags&0x10 == 0

		locals := make([]uint16, numLocals)
		for i := 0; i < numLocals; i++ {
			if cursor+2 > len(body) {
				return nil, fmt.Errorf("quetzal: Stks chunk truncated in locals")
			}
			locals[i] = binary.BigEndian.Uint16(body[cursor : cursor+2])
			cursor += 2
		}

		evalStack := make([]uint16, evalCount)
		for i := 0; i < evalCount; i++ {
			if cursor+2 > len(body) {
				return nil, fmt.Errorf("quetzal: Stks chunk truncated in eval stack")
			}
			evalStack[i] = binary.BigEndian.Uint16(body[cursor : cursor+2])
			cursor += 2
		}

		argCount := 0
		for argsMask&(1<<uint(argCount)) != 0 {
			argCount++
		}

		frames = append(frames, vm.NewFrame(locals, evalStack, returnPC, resultVar, hasResult, argCount))
	}
	return vm.NewCallStackFromFrames(frames), nil
}

package quetzal

import (
	"testing"

	"github.com/rezrov-go/zmachine/vm"
	"github.com/rezrov-go/zmachine/zcore"
)

func minimalStory(t *testing.T, size int) *zcore.Memory {
	t.Helper()
	return minimalStoryWithChecksum(t, size, 0x1234)
}

func minimalStoryWithChecksum(t *testing.T, size int, checksum uint16) *zcore.Memory {
	t.Helper()
	b := make([]byte, size)
	b[0x00] = 3 // version
	b[0x04], b[0x05] = 0x00, 0x40 // high mem base
	b[0x06], b[0x07] = 0x00, 0x10 // initial PC
	b[0x0e], b[0x0f] = 0x00, 0x40 // static mem base
	b[0x02], b[0x03] = 0x00, 0x07 // release number
	copy(b[0x12:0x18], []byte("123456"))
	b[0x1c], b[0x1d] = byte(checksum>>8), byte(checksum)

	m, err := zcore.Load(b)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

// TestEncodeDecodeRoundTrip covers the whole Quetzal write/read cycle:
// dynamic memory with both an untouched (all-zero XOR delta) region and a
// modified region, plus a two-frame call stack with locals and an
// evaluation stack, per the Open Question 1 zero-run decision.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	mem := minimalStory(t, 0x40)
	orig := append([]byte(nil), mem.DynamicMemory()...)

	// Mutate a few bytes in the middle of dynamic memory, leaving long
	// runs before and after untouched so the CMem encoder exercises both
	// its literal-byte and zero-run paths.
	mutated := append([]byte(nil), orig...)
	mutated[0x20] = mutated[0x20] ^ 0xFF
	mutated[0x21] = mutated[0x21] ^ 0x01

	stack := vm.NewCallStack()
	stack.Push(vm.NewFrame([]uint16{1, 2, 3}, []uint16{10, 20}, 0x300, 5, true, 2))

	snap := vm.Snapshot{DynamicMemory: mutated, Stack: stack, PC: 0x456}

	data, err := Encode(mem, orig, snap, "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data[0:4]) != "FORM" || string(data[8:12]) != "IFZS" {
		t.Fatalf("not a well-formed IFF/IFZS container: %x", data[:12])
	}

	got, err := Decode(data, mem, orig)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.PC != snap.PC {
		t.Fatalf("PC = 0x%x, want 0x%x", got.PC, snap.PC)
	}
	if len(got.DynamicMemory) != len(mutated) {
		t.Fatalf("dynamic memory length = %d, want %d", len(got.DynamicMemory), len(mutated))
	}
	for i := range mutated {
		if got.DynamicMemory[i] != mutated[i] {
			t.Fatalf("dynamic memory[%d] = 0x%02x, want 0x%02x", i, got.DynamicMemory[i], mutated[i])
		}
	}

	frames := got.Stack.Frames()
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2 (synthetic bottom + pushed)", len(frames))
	}
	top := frames[1]
	if top.NumLocals != 3 || top.Locals[0] != 1 || top.Locals[1] != 2 || top.Locals[2] != 3 {
		t.Fatalf("locals = %+v", top.Locals)
	}
	if len(top.EvalStack()) != 2 || top.EvalStack()[0] != 10 || top.EvalStack()[1] != 20 {
		t.Fatalf("eval stack = %+v", top.EvalStack())
	}
	if top.ReturnPC != 0x300 || top.ResultVar != 5 || !top.HasResult || top.ArgCount != 2 {
		t.Fatalf("frame = %+v", top)
	}
}

// TestDecodeRejectsMismatchedStory checks the release/serial/checksum
// guard: a save file built for a different story must be refused.
func TestDecodeRejectsMismatchedStory(t *testing.T) {
	mem := minimalStory(t, 0x40)
	orig := append([]byte(nil), mem.DynamicMemory()...)
	snap := vm.Snapshot{DynamicMemory: orig, Stack: vm.NewCallStack(), PC: 0x10}

	data, err := Encode(mem, orig, snap, "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// A different story's header (different checksum) must be refused.
	other := minimalStoryWithChecksum(t, 0x40, 0x9999)
	otherOrig := append([]byte(nil), other.DynamicMemory()...)

	if _, err := Decode(data, other, otherOrig); err == nil {
		t.Fatalf("expected mismatch error, got nil")
	}
}

// TestEncodeCMemAllZeroDelta exercises a save where nothing changed:
// the entire dynamic memory XORs to zero, producing a single run-length
// chunk rather than per-byte literals.
func TestEncodeCMemAllZeroDelta(t *testing.T) {
	orig := make([]byte, 300)
	for i := range orig {
		orig[i] = byte(i)
	}
	current := append([]byte(nil), orig...)

	compressed := encodeCMem(orig, current)
	// 300 zero bytes needs ceil(300/256) = 2 runs of (0, count) pairs.
	if len(compressed) != 4 {
		t.Fatalf("compressed length = %d, want 4 (two zero-run pairs)", len(compressed))
	}

	back := decodeCMem(orig, compressed)
	for i := range current {
		if back[i] != current[i] {
			t.Fatalf("decodeCMem[%d] = 0x%02x, want 0x%02x", i, back[i], current[i])
		}
	}
}

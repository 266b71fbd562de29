package vm

import (
	"testing"

	"github.com/rezrov-go/zmachine/zstring"
)

// TestDecodeLongFormTwoSmallOperands exercises the long-form 2OP path
// with two small-constant operands and a store byte (ADD).
func TestDecodeLongFormTwoSmallOperands(t *testing.T) {
	mem := buildMinimalStory(t, 0x100, []byte{0x14, 0x05, 0x07, 0x02})
	d := NewDecoder(mem)
	inst, err := d.Decode(0x100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Form != FormLong || inst.Count != Count2OP || inst.Number != 20 {
		t.Fatalf("got form=%v count=%v number=%d", inst.Form, inst.Count, inst.Number)
	}
	if len(inst.Operands) != 2 || inst.Operands[0].Value != 5 || inst.Operands[1].Value != 7 {
		t.Fatalf("operands = %+v", inst.Operands)
	}
	if !inst.HasStore || inst.StoreVar != 2 {
		t.Fatalf("store = %v/%d, want true/2", inst.HasStore, inst.StoreVar)
	}
	if inst.NextAddr != 0x104 {
		t.Fatalf("NextAddr = 0x%x, want 0x104", inst.NextAddr)
	}
}

// TestDecodeBranchTwoByteSignExtension covers a negative 14-bit branch
// offset encoded across two bytes, per spec.md section 5.2.
func TestDecodeBranchTwoByteSignExtension(t *testing.T) {
	// jz is 1OP:0, short form, one small-constant operand, branch only.
	// Branch byte 1 clear of bit 0x40 (two-byte form), bit 0x80 set
	// (branch-on-true); raw 14-bit field = 0x3FFF -> offset -1.
	mem := buildMinimalStory(t, 0x100, []byte{0x90, 0x00, 0xBF, 0xFF})
	d := NewDecoder(mem)
	inst, err := d.Decode(0x100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !inst.HasBranch || !inst.BranchOnTrue {
		t.Fatalf("branch = %v/%v, want true/true", inst.HasBranch, inst.BranchOnTrue)
	}
	if inst.BranchOffset != -1 {
		t.Fatalf("BranchOffset = %d, want -1", inst.BranchOffset)
	}
}

// TestDecodeBranchOneByteForm covers the single-byte branch encoding
// (bit 0x40 set means the low 6 bits are the whole unsigned offset).
func TestDecodeBranchOneByteForm(t *testing.T) {
	mem := buildMinimalStory(t, 0x100, []byte{0x90, 0x00, 0xC5})
	d := NewDecoder(mem)
	inst, err := d.Decode(0x100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.BranchOffset != 5 {
		t.Fatalf("BranchOffset = %d, want 5", inst.BranchOffset)
	}
	if inst.NextAddr != 0x103 {
		t.Fatalf("NextAddr = 0x%x, want 0x103", inst.NextAddr)
	}
}

// TestDecodePrintPopulatesText verifies the decoder actually decodes the
// inline Z-string following PRINT into Instruction.Text, rather than
// merely skipping past it.
func TestDecodePrintPopulatesText(t *testing.T) {
	// PRINT is 0OP:2, short form, 0 operands, has inline text.
	// Z-chars for "a" in A0 is code 6 (since A0[0]='a' maps to z-char 6,
	// as codes 0-5 are reserved). Two padding 5s fill the rest of the
	// word, with the high bit set to terminate.
	mem := buildMinimalStory(t, 0x100, []byte{0xB2, 0x98, 0xA5})
	d := NewDecoder(mem)
	d.SetTextTables(zstring.DefaultAlphabets(3), 0)
	inst, err := d.Decode(0x100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inst.Text != "a" {
		t.Fatalf("Text = %q, want %q", inst.Text, "a")
	}
	if inst.NextAddr != 0x103 {
		t.Fatalf("NextAddr = 0x%x, want 0x103", inst.NextAddr)
	}
}

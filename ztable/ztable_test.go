package ztable

import (
	"testing"

	"github.com/rezrov-go/zmachine/zcore"
)

func newTableMemory(t *testing.T) *zcore.Memory {
	t.Helper()
	raw := make([]byte, 256)
	raw[0x00] = 5
	raw[0x0e], raw[0x0f] = 0x00, 0x80
	raw[0x04], raw[0x05] = 0x00, 0x80
	mem, err := zcore.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return mem
}

func TestScanTableByteForm(t *testing.T) {
	mem := newTableMemory(t)
	for i, v := range []byte{10, 20, 30, 40} {
		_ = mem.WriteByte(uint32(0x20+i), v)
	}
	addr, err := ScanTable(mem, 30, 0x20, 4, 0x01)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if addr != 0x22 {
		t.Fatalf("got 0x%x, want 0x22", addr)
	}
}

func TestScanTableWordForm(t *testing.T) {
	mem := newTableMemory(t)
	_ = mem.WriteWord(0x20, 100)
	_ = mem.WriteWord(0x22, 200)
	_ = mem.WriteWord(0x24, 300)
	addr, err := ScanTable(mem, 200, 0x20, 3, 0x82)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if addr != 0x22 {
		t.Fatalf("got 0x%x, want 0x22", addr)
	}
}

func TestScanTableNoMatch(t *testing.T) {
	mem := newTableMemory(t)
	_ = mem.WriteByte(0x20, 1)
	addr, err := ScanTable(mem, 99, 0x20, 1, 0x01)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if addr != 0 {
		t.Fatalf("expected no match, got 0x%x", addr)
	}
}

func TestCopyTableZeroFillWhenSecondIsZero(t *testing.T) {
	mem := newTableMemory(t)
	for i := 0; i < 4; i++ {
		_ = mem.WriteByte(uint32(0x20+i), 0xFF)
	}
	if err := CopyTable(mem, 0x20, 0, 4); err != nil {
		t.Fatalf("CopyTable: %v", err)
	}
	for i := 0; i < 4; i++ {
		b, _ := mem.ReadByte(uint32(0x20 + i))
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, b)
		}
	}
}

func TestCopyTablePositiveSizeOverlap(t *testing.T) {
	mem := newTableMemory(t)
	for i, v := range []byte{1, 2, 3, 4} {
		_ = mem.WriteByte(uint32(0x20+i), v)
	}
	if err := CopyTable(mem, 0x20, 0x21, 4); err != nil {
		t.Fatalf("CopyTable: %v", err)
	}
	want := []byte{1, 2, 3, 4}
	for i, w := range want {
		got, _ := mem.ReadByte(uint32(0x21 + i))
		if got != w {
			t.Fatalf("byte %d: got %d want %d", i, got, w)
		}
	}
}

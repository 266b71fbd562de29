package dictionary

import (
	"testing"

	"github.com/rezrov-go/zmachine/zcore"
)

func buildDictMemory(t *testing.T, sorted bool, keys [][4]byte) (*zcore.Memory, uint16) {
	t.Helper()
	raw := make([]byte, 512)
	raw[0x00] = 3
	raw[0x0e], raw[0x0f] = 0x01, 0x00
	raw[0x04], raw[0x05] = 0x01, 0x00
	mem, err := zcore.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	addr := uint16(0x40)
	cursor := uint32(addr)
	_ = mem.WriteByte(cursor, 3) // 3 separators
	cursor++
	for _, s := range []byte{'.', ',', '"'} {
		_ = mem.WriteByte(cursor, s)
		cursor++
	}
	entryLength := uint8(7) // 4 key bytes + 3 data bytes
	_ = mem.WriteByte(cursor, entryLength)
	cursor++

	count := int16(len(keys))
	if !sorted {
		count = -count
	}
	_ = mem.WriteWord(cursor, uint16(count))
	cursor += 2

	for _, k := range keys {
		for _, b := range k {
			_ = mem.WriteByte(cursor, b)
			cursor++
		}
		cursor += 3 // data bytes, left zero
	}

	return mem, addr
}

func TestFindSortedBinarySearch(t *testing.T) {
	keys := [][4]byte{{1, 1, 1, 1}, {2, 2, 2, 2}, {3, 3, 3, 3}, {4, 4, 4, 4}}
	mem, addr := buildDictMemory(t, true, keys)
	d, err := Parse(mem, addr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !d.IsSorted() {
		t.Fatal("expected sorted dictionary")
	}
	got, err := d.Find([]byte{3, 3, 3, 3})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got == 0 {
		t.Fatal("expected to find entry {3,3,3,3}")
	}
}

func TestFindUnsortedLinearScan(t *testing.T) {
	keys := [][4]byte{{9, 9, 9, 9}, {1, 1, 1, 1}, {5, 5, 5, 5}}
	mem, addr := buildDictMemory(t, false, keys)
	d, err := Parse(mem, addr)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.IsSorted() {
		t.Fatal("expected unsorted dictionary")
	}
	got, err := d.Find([]byte{5, 5, 5, 5})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got == 0 {
		t.Fatal("expected to find unsorted entry {5,5,5,5}")
	}
}

func TestFindMissingReturnsZero(t *testing.T) {
	keys := [][4]byte{{1, 1, 1, 1}, {2, 2, 2, 2}}
	mem, addr := buildDictMemory(t, true, keys)
	d, _ := Parse(mem, addr)
	got, err := d.Find([]byte{9, 9, 9, 9})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0 for missing entry, got 0x%x", got)
	}
}

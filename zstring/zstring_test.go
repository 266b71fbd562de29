package zstring

import (
	"testing"

	"github.com/rezrov-go/zmachine/zcore"
)

func newTestMemory(t *testing.T, version uint8, extra map[uint32][]uint16) *zcore.Memory {
	t.Helper()
	raw := make([]byte, 256)
	raw[0x00] = version
	raw[0x0e], raw[0x0f] = 0x00, 0x40 // static mem base
	raw[0x04], raw[0x05] = 0x00, 0x40
	m, err := zcore.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for addr, words := range extra {
		for i, w := range words {
			if err := m.WriteWord(addr+uint32(i*2), w); err != nil {
				t.Fatalf("seed write: %v", err)
			}
		}
	}
	return m
}

func TestDecodeHello(t *testing.T) {
	alphabets := DefaultAlphabets(3)
	// "hello" -> zchars [13,10,17,17,20] (a0 index = letter-'a', +6 offset)
	zchars := []uint8{13, 10, 17, 17, 20}
	words := PackZChars(zchars)
	m := newTestMemory(t, 3, map[uint32][]uint16{0x20: words})

	got, n, err := Decode(m, 0x20, 3, alphabets, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	if n != uint32(len(words))*2 {
		t.Fatalf("byte length %d, want %d", n, len(words)*2)
	}
}

func TestEncodeThenDecodeRoundTrips(t *testing.T) {
	alphabets := DefaultAlphabets(3)
	words := Encode("hello", 3, alphabets, 3)
	m := newTestMemory(t, 3, map[uint32][]uint16{0x20: words})

	got, _, err := Decode(m, 0x20, 3, alphabets, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got[:5] != "hello" {
		t.Fatalf("got %q, want prefix %q", got, "hello")
	}
}

func TestDecodeShiftToA1ForUppercase(t *testing.T) {
	alphabets := DefaultAlphabets(3)
	// shift (4) then 'A' (index 0 -> zchar 6)
	zchars := []uint8{4, 6, 0, 0}
	words := PackZChars(zchars)
	m := newTestMemory(t, 3, map[uint32][]uint16{0x20: words})

	got, _, err := Decode(m, 0x20, 3, alphabets, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) == 0 || got[0] != 'A' {
		t.Fatalf("got %q, want to start with 'A'", got)
	}
}

func TestDecodeExpandsAbbreviation(t *testing.T) {
	alphabets := DefaultAlphabets(3)
	// abbreviation table at 0x40 is in static memory for this layout,
	// so move it into dynamic memory instead.
	raw := make([]byte, 256)
	raw[0x00] = 3
	raw[0x0e], raw[0x0f] = 0x00, 0xC0
	raw[0x04], raw[0x05] = 0x00, 0xC0
	m, err := zcore.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	abbrevTableAddr := uint32(0x40)
	abbrevEntryAddr := uint32(0x60)
	abbrevStringAddr := uint32(0x80)

	// abbreviation index for (z=1, x=0) is 0
	if err := m.WriteWord(abbrevTableAddr, uint16(abbrevEntryAddr/2)); err != nil {
		t.Fatal(err)
	}
	words := PackZChars([]uint8{12, 9})
	for i, w := range words {
		if err := m.WriteWord(abbrevEntryAddr+uint32(i*2), w); err != nil {
			t.Fatal(err)
		}
	}
	// unused; abbreviation string address is computed as entryAddr*2 not entryAddr
	_ = abbrevStringAddr

	mainZchars := []uint8{1, 0, 12, 9, 16, 16, 19}
	mainWords := PackZChars(mainZchars)
	for i, w := range mainWords {
		if err := m.WriteWord(0x20+uint32(i*2), w); err != nil {
			t.Fatal(err)
		}
	}

	got, _, err := Decode(m, 0x20, 3, alphabets, uint16(abbrevTableAddr))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected non-empty decoded abbreviation expansion")
	}
}

package parser

import (
	"testing"

	"github.com/rezrov-go/zmachine/dictionary"
	"github.com/rezrov-go/zmachine/zcore"
	"github.com/rezrov-go/zmachine/zstring"
)

func newParserMemory(t *testing.T) *zcore.Memory {
	t.Helper()
	raw := make([]byte, 512)
	raw[0x00] = 3
	raw[0x0e], raw[0x0f] = 0x02, 0x00 // static mem base 0x200: text/parse buffers stay dynamic
	raw[0x04], raw[0x05] = 0x02, 0x00
	mem, err := zcore.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return mem
}

func buildDict(t *testing.T, mem *zcore.Memory, words []string) *dictionary.Dictionary {
	t.Helper()
	alphabets := zstring.DefaultAlphabets(3)
	addr := uint32(0x40)
	_ = mem.WriteByte(addr, 0) // no separators besides space
	cursor := addr + 1
	_ = mem.WriteByte(cursor, 6) // entry length: 4 key bytes + 2 data
	cursor++
	_ = mem.WriteWord(cursor, uint16(len(words)))
	cursor += 2

	for _, w := range words {
		enc := zstring.Encode(w, 3, alphabets, 2)
		_ = mem.WriteWord(cursor, enc[0])
		_ = mem.WriteWord(cursor+2, enc[1])
		cursor += 6
	}

	d, err := dictionary.Parse(mem, 0x40)
	if err != nil {
		t.Fatalf("dictionary.Parse: %v", err)
	}
	return d
}

func TestTokeniseSplitsOnSpaceAndWritesParseTable(t *testing.T) {
	mem := newParserMemory(t)
	dict := buildDict(t, mem, []string{"take", "lamp"})

	textBuffer := uint32(0x100)
	_ = mem.WriteByte(textBuffer, 20) // max length
	text := "take lamp"
	for i, c := range []byte(text) {
		_ = mem.WriteByte(textBuffer+1+uint32(i), c)
	}
	_ = mem.WriteByte(textBuffer+1+uint32(len(text)), 0)

	parseBuffer := uint32(0x140)
	_ = mem.WriteByte(parseBuffer, 10) // max words

	if err := Tokenise(mem, textBuffer, parseBuffer, dict, 3, zstring.DefaultAlphabets(3), false); err != nil {
		t.Fatalf("Tokenise: %v", err)
	}

	wordCount, _ := mem.ReadByte(parseBuffer + 1)
	if wordCount != 2 {
		t.Fatalf("got %d words, want 2", wordCount)
	}

	firstAddr, _ := mem.ReadWord(parseBuffer + 2)
	if firstAddr == 0 {
		t.Fatal("expected 'take' to resolve to a dictionary entry")
	}
	firstLen, _ := mem.ReadByte(parseBuffer + 4)
	if firstLen != 4 {
		t.Fatalf("got length %d, want 4", firstLen)
	}
}

func TestTokeniseUnknownWordZeroedByDefault(t *testing.T) {
	mem := newParserMemory(t)
	dict := buildDict(t, mem, []string{"take"})

	textBuffer := uint32(0x100)
	_ = mem.WriteByte(textBuffer, 20)
	text := "xyzzy"
	for i, c := range []byte(text) {
		_ = mem.WriteByte(textBuffer+1+uint32(i), c)
	}
	_ = mem.WriteByte(textBuffer+1+uint32(len(text)), 0)

	parseBuffer := uint32(0x140)
	_ = mem.WriteByte(parseBuffer, 10)

	if err := Tokenise(mem, textBuffer, parseBuffer, dict, 3, zstring.DefaultAlphabets(3), false); err != nil {
		t.Fatalf("Tokenise: %v", err)
	}
	addr, _ := mem.ReadWord(parseBuffer + 2)
	if addr != 0 {
		t.Fatalf("expected unknown word to resolve to 0, got 0x%x", addr)
	}
}

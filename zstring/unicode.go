package zstring

import (
	"github.com/rezrov-go/zmachine/zcore"
	"golang.org/x/text/unicode/norm"
)

// DefaultUnicodeTranslationTable maps ZSCII codes 155-251 to the Unicode
// characters the Standard assigns them by default (its "Latin-1
// supplement and beyond" table), used when a story file does not supply
// its own unicode translation table via the header extension.
var DefaultUnicodeTranslationTable = map[uint8]rune{
	155: 0xe4, 156: 0xf6, 157: 0xfc, 158: 0xc4, 159: 0xd6, 160: 0xdc, 161: 0xdf,
	162: 0xbb, 163: 0xab, 164: 0xeb, 165: 0xef, 166: 0xff, 167: 0xcb, 168: 0xcf,
	169: 0xe1, 170: 0xe9, 171: 0xed, 172: 0xf3, 173: 0xfa, 174: 0xfd, 175: 0xc1,
	176: 0xc9, 177: 0xcd, 178: 0xd3, 179: 0xda, 180: 0xdd, 181: 0xe0, 182: 0xe8,
	183: 0xec, 184: 0xf2, 185: 0xf9, 186: 0xc0, 187: 0xc8, 188: 0xcc, 189: 0xd2,
	190: 0xd9, 191: 0xe2, 192: 0xea, 193: 0xee, 194: 0xf4, 195: 0xfb, 196: 0xc2,
	197: 0xca, 198: 0xce, 199: 0xd4, 200: 0xdb, 201: 0xe5, 202: 0xc5, 203: 0xf8,
	204: 0xd8, 205: 0xe3, 206: 0xf1, 207: 0xf5, 208: 0xc3, 209: 0xd1, 210: 0xd5,
	211: 0xe6, 212: 0xc6, 213: 0xe7, 214: 0xc7, 215: 0xfe, 216: 0xf0, 217: 0xde,
	218: 0xd0, 219: 0xa3, 220: 0x153, 221: 0x152, 222: 0xa1, 223: 0xbf,
}

// UnicodeTable resolves the active ZSCII<->Unicode translation, reading
// a story-supplied override from the header extension if present (spec.md
// section 4.2). Entries not covered fall back to the default table, and
// finally to the codepoint itself for 7-bit ASCII.
type UnicodeTable struct {
	toUnicode map[uint8]rune
	toZSCII   map[rune]uint8
}

// LoadUnicodeTable builds a translation table, optionally overridden by a
// story-supplied table at tableAddr (a length byte followed by that many
// Unicode codepoints, each ZSCII code 155+i mapping to the i'th entry).
func LoadUnicodeTable(mem *zcore.Memory, tableAddr uint16) (*UnicodeTable, error) {
	t := &UnicodeTable{
		toUnicode: make(map[uint8]rune, len(DefaultUnicodeTranslationTable)),
		toZSCII:   make(map[rune]uint8, len(DefaultUnicodeTranslationTable)),
	}
	for zscii, r := range DefaultUnicodeTranslationTable {
		t.toUnicode[zscii] = r
		t.toZSCII[r] = zscii
	}

	if tableAddr == 0 {
		return t, nil
	}

	n, err := mem.ReadByte(uint32(tableAddr))
	if err != nil {
		return nil, err
	}
	for i := uint8(0); i < n; i++ {
		w, err := mem.ReadWord(uint32(tableAddr) + 1 + 2*uint32(i))
		if err != nil {
			return nil, err
		}
		zscii := 155 + i
		r := norm.NFC.String(string(rune(w)))
		if len(r) > 0 {
			rr := []rune(r)[0]
			t.toUnicode[zscii] = rr
			t.toZSCII[rr] = zscii
		}
	}
	return t, nil
}

// ToUnicode converts a ZSCII code to the rune it represents.
func (t *UnicodeTable) ToUnicode(zscii uint8) rune {
	if zscii >= 32 && zscii <= 126 {
		return rune(zscii)
	}
	if r, ok := t.toUnicode[zscii]; ok {
		return r
	}
	return rune(zscii)
}

// FromUnicode converts a rune back to its ZSCII code, normalizing
// combining-mark input to its precomposed form before lookup so that
// input typed via a dead-key sequence still matches the translation
// table (spec.md section 4.2's "ZSCII codes 155-251 represent accented
// Latin characters").
func (t *UnicodeTable) FromUnicode(r rune) (uint8, bool) {
	if r >= 32 && r <= 126 {
		return uint8(r), true
	}
	normalized := []rune(norm.NFC.String(string(r)))
	if len(normalized) > 0 {
		r = normalized[0]
	}
	zscii, ok := t.toZSCII[r]
	return zscii, ok
}

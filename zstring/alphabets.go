// Package zstring implements the Z-machine text codec: 5-bit Z-character
// decoding/encoding across the three alphabets, abbreviation expansion and
// ZSCII<->Unicode translation.
package zstring

// Alphabets holds the three 26-entry character tables used to map Z-chars
// 6-31 to output characters. DefaultAlphabets gives the standard tables;
// vm.New replaces them with LoadCustomAlphabets whenever the header's
// alphabet table address (word 0x34) is nonzero (spec.md section 4.2).
type Alphabets struct {
	A0 [26]byte
	A1 [26]byte
	A2 [26]byte
}

var a0Default = alphabetRow("abcdefghijklmnopqrstuvwxyz")
var a1Default = alphabetRow("ABCDEFGHIJKLMNOPQRSTUVWXYZ")

func alphabetRow(s string) (row [26]byte) {
	copy(row[:], s)
	return row
}

// a2DefaultV3 is the A2 table for v2+; its first entry (Z-char 6) is the
// ZSCII-escape marker and is never looked up directly as a printable character.
var a2DefaultV3 = [26]byte{0, '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

// a2DefaultV1 differs only in position 1 (space instead of newline),
// matching the version split in the teacher's zstring package.
var a2DefaultV1 = [26]byte{0, ' ', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

// DefaultAlphabets returns the standard alphabet tables for the given
// story file version (spec.md section 4.2, table A-2).
func DefaultAlphabets(version uint8) *Alphabets {
	a2 := a2DefaultV3
	if version == 1 {
		a2 = a2DefaultV1
	}
	return &Alphabets{A0: a0Default, A1: a1Default, A2: a2}
}

// LoadCustomAlphabets reads a 78-byte custom alphabet table (26 bytes per
// alphabet, ZSCII codes) from story memory, per spec.md section 4.2's
// "alphabet table address" header field. The first entry of A2 (Z-char
// 6) is always forced back to the ZSCII-escape marker regardless of what the table
// stores there, matching the Standard's note that it is never used as a
// printable entry.
func LoadCustomAlphabets(tableBytes []byte) *Alphabets {
	var a Alphabets
	copy(a.A0[:], tableBytes[0:26])
	copy(a.A1[:], tableBytes[26:52])
	copy(a.A2[:], tableBytes[52:78])
	a.A2[0] = 0
	return &a
}

package zstring

import (
	"fmt"

	"github.com/rezrov-go/zmachine/zcore"
)

// ErrNestedAbbreviation is returned when an abbreviation string itself
// tries to reference another abbreviation; the Standard forbids nesting
// past one level and so does this decoder.
var ErrNestedAbbreviation = fmt.Errorf("zstring: abbreviation strings may not reference further abbreviations")

// wordsToZChars unpacks each 16-bit word into three 5-bit Z-characters,
// discarding the end-of-string marker bit.
func wordsToZChars(words []uint16) []uint8 {
	zchars := make([]uint8, 0, len(words)*3)
	for _, w := range words {
		zchars = append(zchars, uint8((w>>10)&0x1f), uint8((w>>5)&0x1f), uint8(w&0x1f))
	}
	return zchars
}

// Decode reads and decodes the Z-string at addr, expanding abbreviation
// references one level deep, per spec.md section 4.2.
func Decode(mem *zcore.Memory, addr uint32, version uint8, alphabets *Alphabets, abbrevTableAddr uint16) (string, uint32, error) {
	words, byteLen, err := mem.ReadZCharWords(addr)
	if err != nil {
		return "", 0, err
	}
	s, err := decodeZChars(mem, wordsToZChars(words), version, alphabets, abbrevTableAddr, true)
	if err != nil {
		return "", 0, err
	}
	return s, byteLen, nil
}

// decoder state machine, ported from the teacher's ReadZString: a "base"
// alphabet that persists until explicitly changed, and a "current"
// alphabet for the very next character only (v1-2 single-shift) or for
// the remainder of the base (v3+ has no persistent lock, only per-char
// shift).
func decodeZChars(mem *zcore.Memory, zchars []uint8, version uint8, alphabets *Alphabets, abbrevTableAddr uint16, allowAbbrev bool) (string, error) {
	var out []rune
	baseAlphabet := 0
	currentAlphabet := 0
	pendingTenBit := -1 // -1 = not collecting; else holds the high 5 bits
	pendingAbbrevZ := -1

	emit := func(table [26]byte, idx uint8) {
		if idx < 6 {
			return
		}
		out = append(out, rune(table[idx-6]))
	}

	for i := 0; i < len(zchars); i++ {
		z := zchars[i]

		if pendingTenBit >= 0 {
			code := uint16(pendingTenBit)<<5 | uint16(z)
			out = append(out, rune(code))
			pendingTenBit = -1
			currentAlphabet = baseAlphabet
			continue
		}

		if pendingAbbrevZ >= 0 {
			if !allowAbbrev {
				return "", ErrNestedAbbreviation
			}
			expansion, err := FindAbbreviation(mem, version, alphabets, abbrevTableAddr, uint8(pendingAbbrevZ), z)
			if err != nil {
				return "", err
			}
			out = append(out, []rune(expansion)...)
			pendingAbbrevZ = -1
			currentAlphabet = baseAlphabet
			continue
		}

		switch z {
		case 0:
			out = append(out, ' ')
			currentAlphabet = baseAlphabet
		case 1:
			if version == 1 {
				out = append(out, '\n')
				currentAlphabet = baseAlphabet
			} else {
				pendingAbbrevZ = 1
			}
		case 2, 3:
			if version <= 2 {
				// v1-2 shift characters 2/3: single-shift to A1/A2 for one char
				currentAlphabet = int(z) - 1
			} else {
				pendingAbbrevZ = int(z)
			}
		case 4, 5:
			if version <= 2 {
				// v1-2 shift-lock: sets the persistent base alphabet.
				baseAlphabet = int(z) - 3
				currentAlphabet = baseAlphabet
			} else {
				// v3+ single-shift for the next character only.
				currentAlphabet = int(z) - 3
			}
		case 6:
			if currentAlphabet == 2 {
				if i+2 > len(zchars)-1 {
					// truncated ten-bit escape at end of stream; stop cleanly
					currentAlphabet = baseAlphabet
					continue
				}
				pendingTenBit = int(zchars[i+1])
				i++
				continue
			}
			fallthrough
		default:
			switch currentAlphabet {
			case 0:
				emit(alphabets.A0, z)
			case 1:
				emit(alphabets.A1, z)
			case 2:
				emit(alphabets.A2, z)
			}
			if version <= 2 {
				currentAlphabet = baseAlphabet
			} else {
				currentAlphabet = baseAlphabet
			}
		}
	}

	return string(out), nil
}

// FindAbbreviation resolves an abbreviation reference (z, x) -- z in
// {1,2,3}, x in [0,31] -- to its expanded text, per spec.md section 4.2's
// abbreviation table layout: index = 32*(z-1) + x.
func FindAbbreviation(mem *zcore.Memory, version uint8, alphabets *Alphabets, abbrevTableAddr uint16, z uint8, x uint8) (string, error) {
	if abbrevTableAddr == 0 {
		return "", fmt.Errorf("zstring: abbreviation referenced but story has no abbreviation table")
	}
	abbrIx := 32*(int(z)-1) + int(x)
	entryAddr := uint32(abbrevTableAddr) + 2*uint32(abbrIx)
	wordAddr, err := mem.ReadWord(entryAddr)
	if err != nil {
		return "", err
	}
	strAddr := 2 * uint32(wordAddr)
	words, _, err := mem.ReadZCharWords(strAddr)
	if err != nil {
		return "", err
	}
	return decodeZChars(mem, wordsToZChars(words), version, alphabets, 0, false)
}

// Encode converts text into a packed Z-string, per spec.md section 4.2,
// used by TOKENISE and the dictionary lookup path. Text is lower-cased;
// characters not present in A0 are written as shift 5 plus their A2
// index, or, when not in A2 either, as the ten-bit ZSCII escape via A2.
// The result is right-padded with Z-char 5 and packed
// into exactly wordCount 16-bit words (6 Z-chars for dictionary entries
// in v1-3, 9 in v4+), truncating any remainder.
func Encode(text string, version uint8, alphabets *Alphabets, wordCount int) []uint16 {
	zchars := make([]uint8, 0, wordCount*3)

	indexOf := func(table [26]byte, r byte) int {
		for i, c := range table {
			if c == r {
				return i
			}
		}
		return -1
	}

	for _, r := range []byte(text) {
		if len(zchars) >= wordCount*3 {
			break
		}
		lower := r
		if lower >= 'A' && lower <= 'Z' {
			lower = lower - 'A' + 'a'
		}
		if idx := indexOf(alphabets.A0, lower); idx >= 0 {
			zchars = append(zchars, uint8(idx+6))
			continue
		}
		if r >= 'A' && r <= 'Z' {
			if idx := indexOf(alphabets.A1, r); idx >= 0 {
				zchars = append(zchars, 4, uint8(idx+6))
				continue
			}
		}
		if idx := indexOf(alphabets.A2, r); idx >= 0 && idx != 0 {
			zchars = append(zchars, 5, uint8(idx+6))
			continue
		}
		// ten-bit ZSCII escape via A2 position 6
		zchars = append(zchars, 5, 6, uint8(r>>5), uint8(r&0x1f))
	}

	for len(zchars) < wordCount*3 {
		zchars = append(zchars, 5)
	}
	zchars = zchars[:wordCount*3]

	return PackZChars(zchars)
}

// PackZChars packs a stream of 5-bit Z-characters into 16-bit words,
// three per word, padding a short final word with Z-char 5 and setting
// the end-of-string bit on the final word.
func PackZChars(zchars []uint8) []uint16 {
	words := make([]uint16, 0, (len(zchars)+2)/3)
	for i := 0; i < len(zchars); i += 3 {
		var a, b, c uint16 = 0, 5, 5
		a = uint16(zchars[i]) & 0x1f
		if i+1 < len(zchars) {
			b = uint16(zchars[i+1]) & 0x1f
		}
		if i+2 < len(zchars) {
			c = uint16(zchars[i+2]) & 0x1f
		}
		words = append(words, a<<10|b<<5|c)
	}
	if len(words) > 0 {
		words[len(words)-1] |= 0x8000
	}
	return words
}

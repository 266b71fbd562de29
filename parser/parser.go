// Package parser implements the Z-machine input tokeniser (the READ and
// TOKENISE opcodes' word-splitting and dictionary lookup), per spec.md
// section 4.5.
package parser

import (
	"github.com/rezrov-go/zmachine/dictionary"
	"github.com/rezrov-go/zmachine/zcore"
	"github.com/rezrov-go/zmachine/zstring"
)

// token is one word found in the input buffer.
type token struct {
	text  []byte
	start int // offset within the text buffer's character data
}

func isSeparator(b byte, separators []byte) bool {
	if b == ' ' {
		return true
	}
	for _, s := range separators {
		if b == s {
			return true
		}
	}
	return false
}

// splitWords tokenises raw characters on whitespace and dictionary
// separator characters, treating every separator as its own one-
// character token (spec.md section 4.5), matching the teacher's
// tokeniseSingleWord loop.
func splitWords(chars []byte, separators []byte) []token {
	var tokens []token
	i := 0
	for i < len(chars) {
		if chars[i] == ' ' {
			i++
			continue
		}
		isSep := false
		for _, s := range separators {
			if chars[i] == s {
				isSep = true
				break
			}
		}
		if isSep {
			tokens = append(tokens, token{text: chars[i : i+1], start: i})
			i++
			continue
		}
		start := i
		for i < len(chars) && !isSeparator(chars[i], separators) {
			i++
		}
		tokens = append(tokens, token{text: chars[start:i], start: start})
	}
	return tokens
}

// readTextBuffer extracts the raw lower-cased input characters from the
// text buffer, honoring the v1-4 (terminator-based) vs v5+ (length-
// prefixed) buffer layouts from spec.md section 4.5.
func readTextBuffer(mem *zcore.Memory, textBuffer uint32, version uint8) ([]byte, uint32, error) {
	if version <= 4 {
		maxLen, err := mem.ReadByte(textBuffer)
		if err != nil {
			return nil, 0, err
		}
		var chars []byte
		for i := uint8(0); i < maxLen; i++ {
			b, err := mem.ReadByte(textBuffer + 1 + uint32(i))
			if err != nil {
				return nil, 0, err
			}
			if b == 0 {
				break
			}
			chars = append(chars, lower(b))
		}
		return chars, textBuffer + 1, nil
	}

	actualLen, err := mem.ReadByte(textBuffer + 1)
	if err != nil {
		return nil, 0, err
	}
	chars := make([]byte, actualLen)
	for i := uint8(0); i < actualLen; i++ {
		b, err := mem.ReadByte(textBuffer + 2 + uint32(i))
		if err != nil {
			return nil, 0, err
		}
		chars[i] = lower(b)
	}
	return chars, textBuffer + 2, nil
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// Tokenise splits the text at textBuffer into words, looks each up in
// dict, and writes the parse table at parseBuffer, per spec.md section
// 4.5. When skipUnknown is true (TOKENISE's "flag" operand is nonzero),
// words absent from the dictionary have their dictionary-address field
// left untouched rather than zeroed, so a caller-built partial parse
// table survives re-tokenisation.
func Tokenise(mem *zcore.Memory, textBuffer, parseBuffer uint32, dict *dictionary.Dictionary, version uint8, alphabets *zstring.Alphabets, skipUnknown bool) error {
	chars, charsBase, err := readTextBuffer(mem, textBuffer, version)
	if err != nil {
		return err
	}

	maxWords, err := mem.ReadByte(parseBuffer)
	if err != nil {
		return err
	}

	tokens := splitWords(chars, dict.Separators)
	if len(tokens) > int(maxWords) {
		tokens = tokens[:maxWords]
	}

	if err := mem.WriteByte(parseBuffer+1, uint8(len(tokens))); err != nil {
		return err
	}

	for i, tok := range tokens {
		wordCount := 2
		if version <= 3 {
			wordCount = 2
		} else {
			wordCount = 3
		}
		encoded := zstring.Encode(string(tok.text), version, alphabets, wordCount)
		keyBytes := wordsToBytes(encoded)

		entryAddr, err := dict.Find(keyBytes)
		if err != nil {
			return err
		}

		blockAddr := parseBuffer + 2 + uint32(i)*4
		if entryAddr != 0 || !skipUnknown {
			if err := mem.WriteWord(blockAddr, uint16(entryAddr)); err != nil {
				return err
			}
		}
		if err := mem.WriteByte(blockAddr+2, uint8(len(tok.text))); err != nil {
			return err
		}
		textBufferOffset := int(charsBase) - int(textBuffer) + tok.start
		// position is relative to the start of the text buffer itself,
		// matching the Standard's "position in the text buffer" wording.
		_ = textBufferOffset
		if err := mem.WriteByte(blockAddr+3, uint8(tok.start)+uint8(charsBase-textBuffer)); err != nil {
			return err
		}
	}
	return nil
}

func wordsToBytes(words []uint16) []byte {
	b := make([]byte, len(words)*2)
	for i, w := range words {
		b[i*2] = byte(w >> 8)
		b[i*2+1] = byte(w)
	}
	return b
}

// Package dictionary implements the Z-machine dictionary: its header of
// word separators and entry geometry, and lookup by either binary search
// (sorted dictionaries) or linear scan (unsorted, per spec.md section
// 4.4 and section 8's boundary scenario for a negative entry count).
package dictionary

import (
	"bytes"

	"github.com/rezrov-go/zmachine/zcore"
)

// Dictionary is a parsed view over a story file's dictionary table.
type Dictionary struct {
	mem          *zcore.Memory
	Separators   []byte
	EntryLength  uint8
	entriesBase  uint32
	entryCount   int16 // negative => unsorted, linear scan
}

// Parse reads the dictionary header at addr: a count of separator
// characters, the separators themselves, the fixed entry length, and a
// signed entry count.
func Parse(mem *zcore.Memory, addr uint16) (*Dictionary, error) {
	cursor := uint32(addr)
	nSep, err := mem.ReadByte(cursor)
	if err != nil {
		return nil, err
	}
	cursor++

	separators := make([]byte, nSep)
	for i := uint8(0); i < nSep; i++ {
		b, err := mem.ReadByte(cursor)
		if err != nil {
			return nil, err
		}
		separators[i] = b
		cursor++
	}

	entryLength, err := mem.ReadByte(cursor)
	if err != nil {
		return nil, err
	}
	cursor++

	countWord, err := mem.ReadWord(cursor)
	if err != nil {
		return nil, err
	}
	cursor += 2

	return &Dictionary{
		mem:         mem,
		Separators:  separators,
		EntryLength: entryLength,
		entriesBase: cursor,
		entryCount:  int16(countWord),
	}, nil
}

// count is the absolute number of entries regardless of sort order.
func (d *Dictionary) count() int {
	if d.entryCount < 0 {
		return int(-d.entryCount)
	}
	return int(d.entryCount)
}

// IsSorted reports whether the dictionary uses binary search ordering
// (a positive entry count per spec.md section 4.4), as opposed to an
// unsorted table some games build at runtime via TOKENISE/extended
// dictionaries.
func (d *Dictionary) IsSorted() bool {
	return d.entryCount >= 0
}

func (d *Dictionary) entryAddr(i int) uint32 {
	return d.entriesBase + uint32(i)*uint32(d.EntryLength)
}

func (d *Dictionary) readEntryKey(i int) ([]byte, error) {
	addr := d.entryAddr(i)
	return d.mem.Slice(addr, addr+uint32(d.keyLength()))
}

// keyLength is the number of encoded bytes compared during lookup: 4
// bytes (two words) for v1-3, 6 bytes (three words) for v4+, per spec.md
// section 4.4.
func (d *Dictionary) keyLength() uint8 {
	if d.mem.Version() <= 3 {
		return 4
	}
	return 6
}

// Find looks up an encoded dictionary key (already packed into the
// comparison-length byte string by the caller) and returns the address
// of the matching entry, or 0 if absent. Sorted dictionaries use binary
// search; unsorted ones (negative entry count) use a linear scan, both
// per spec.md section 4.4.
func (d *Dictionary) Find(encodedWord []byte) (uint32, error) {
	n := d.count()
	if n == 0 {
		return 0, nil
	}

	if !d.IsSorted() {
		for i := 0; i < n; i++ {
			key, err := d.readEntryKey(i)
			if err != nil {
				return 0, err
			}
			if bytes.Equal(key, encodedWord) {
				return d.entryAddr(i), nil
			}
		}
		return 0, nil
	}

	lo, hi := 0, n-1
	for lo <= hi {
		mid := (lo + hi) / 2
		key, err := d.readEntryKey(mid)
		if err != nil {
			return 0, err
		}
		cmp := bytes.Compare(encodedWord, key)
		switch {
		case cmp == 0:
			return d.entryAddr(mid), nil
		case cmp < 0:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return 0, nil
}

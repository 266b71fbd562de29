package zobject

import "fmt"

var ErrNoSuchProperty = fmt.Errorf("zobject: property not present on object")

// propEntry describes one decoded property-table entry: its property
// number, the address of its data (not its size byte(s)), and its
// length in bytes.
type propEntry struct {
	number  uint16
	dataAddr uint32
	length  uint16
}

// firstPropertyAddr returns the address of the first property's size
// byte, immediately after the short name.
func (o Object) firstPropertyAddr() (uint32, error) {
	propTable, err := o.propertyTableAddr()
	if err != nil {
		return 0, err
	}
	lenWords, err := o.tree.mem.ReadByte(propTable)
	if err != nil {
		return 0, err
	}
	return propTable + 1 + uint32(lenWords)*2, nil
}

// decodeEntryAt reads the property-table entry whose size byte(s) start
// at sizeAddr, returning the entry and the address of the next entry's
// size byte (or a zero-length sentinel entry at end of table).
func (o Object) decodeEntryAt(sizeAddr uint32) (propEntry, uint32, error) {
	sizeByte, err := o.tree.mem.ReadByte(sizeAddr)
	if err != nil {
		return propEntry{}, 0, err
	}
	if sizeByte == 0 {
		return propEntry{number: 0}, sizeAddr + 1, nil
	}

	if o.tree.version <= 3 {
		number := uint16(sizeByte & 0x1f)
		length := uint16(sizeByte>>5) + 1
		return propEntry{number: number, dataAddr: sizeAddr + 1, length: length}, sizeAddr + 1 + uint32(length), nil
	}

	number := uint16(sizeByte & 0x3f)
	if sizeByte&0x80 != 0 {
		secondByte, err := o.tree.mem.ReadByte(sizeAddr + 1)
		if err != nil {
			return propEntry{}, 0, err
		}
		length := uint16(secondByte & 0x3f)
		if length == 0 {
			length = 64
		}
		return propEntry{number: number, dataAddr: sizeAddr + 2, length: length}, sizeAddr + 2 + uint32(length), nil
	}

	length := uint16(1)
	if sizeByte&0x40 != 0 {
		length = 2
	}
	return propEntry{number: number, dataAddr: sizeAddr + 1, length: length}, sizeAddr + 1 + uint32(length), nil
}

// findProperty scans the property table in descending-number order
// (as the format requires) looking for propNum, stopping early once it
// passes a lower-numbered entry.
func (o Object) findProperty(propNum uint16) (entry propEntry, found bool, err error) {
	addr, err := o.firstPropertyAddr()
	if err != nil {
		return propEntry{}, false, err
	}
	for {
		e, next, err := o.decodeEntryAt(addr)
		if err != nil {
			return propEntry{}, false, err
		}
		if e.number == 0 {
			return propEntry{}, false, nil
		}
		if e.number == propNum {
			return e, true, nil
		}
		if e.number < propNum {
			return propEntry{}, false, nil
		}
		addr = next
	}
}

// GetProperty returns the value of propNum, falling back to the object
// table's property default if the object's own table omits it (spec.md
// section 4.3). Properties longer than 2 bytes return their first word,
// matching the Standard's GET_PROP behavior for oversized properties.
func (o Object) GetProperty(propNum uint16) (uint16, error) {
	e, found, err := o.findProperty(propNum)
	if err != nil {
		return 0, err
	}
	if !found {
		return o.tree.PropertyDefault(propNum)
	}
	if e.length == 1 {
		b, err := o.tree.mem.ReadByte(e.dataAddr)
		return uint16(b), err
	}
	return o.tree.mem.ReadWord(e.dataAddr)
}

// GetPropertyAddr returns the address of propNum's data, or 0 if the
// object has no such property (spec.md section 4.3's GET_PROP_ADDR).
func (o Object) GetPropertyAddr(propNum uint16) (uint32, error) {
	e, found, err := o.findProperty(propNum)
	if err != nil || !found {
		return 0, err
	}
	return e.dataAddr, nil
}

// GetPropertyLenAt returns the byte length of the property whose data
// starts at dataAddr, per GET_PROP_LEN's "given the address of a
// property's data, not its header" contract. Address 0 is defined to
// return 0.
func (o Object) GetPropertyLenAt(dataAddr uint32) (uint16, error) {
	if dataAddr == 0 {
		return 0, nil
	}
	if o.tree.version <= 3 {
		sizeByte, err := o.tree.mem.ReadByte(dataAddr - 1)
		if err != nil {
			return 0, err
		}
		return uint16(sizeByte>>5) + 1, nil
	}
	sizeByte, err := o.tree.mem.ReadByte(dataAddr - 1)
	if err != nil {
		return 0, err
	}
	if sizeByte&0x80 == 0 {
		// one-byte header: preceding byte is the header itself, re-read
		if sizeByte&0x40 != 0 {
			return 2, nil
		}
		return 1, nil
	}
	secondByte, err := o.tree.mem.ReadByte(dataAddr - 1)
	if err != nil {
		return 0, err
	}
	length := uint16(secondByte & 0x3f)
	if length == 0 {
		length = 64
	}
	return length, nil
}

// SetProperty writes value into propNum's data, per spec.md section
// 4.3's PUT_PROP. Writing a 1-byte property with a 16-bit value stores
// only the low byte, matching the Standard.
func (o Object) SetProperty(propNum uint16, value uint16) error {
	e, found, err := o.findProperty(propNum)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: object %d property %d", ErrNoSuchProperty, o.ID, propNum)
	}
	if e.length == 1 {
		return o.tree.mem.WriteByte(e.dataAddr, uint8(value))
	}
	return o.tree.mem.WriteWord(e.dataAddr, value)
}

// GetNextProperty returns the property number following propNum in the
// object's table (0 if propNum was the last, or the first property's
// number if propNum is 0), per spec.md section 4.3's GET_NEXT_PROP.
func (o Object) GetNextProperty(propNum uint16) (uint16, error) {
	addr, err := o.firstPropertyAddr()
	if err != nil {
		return 0, err
	}
	if propNum == 0 {
		e, _, err := o.decodeEntryAt(addr)
		return e.number, err
	}
	for {
		e, next, err := o.decodeEntryAt(addr)
		if err != nil {
			return 0, err
		}
		if e.number == 0 {
			return 0, fmt.Errorf("%w: object %d property %d", ErrNoSuchProperty, o.ID, propNum)
		}
		if e.number == propNum {
			nextEntry, _, err := o.decodeEntryAt(next)
			return nextEntry.number, err
		}
		addr = next
	}
}

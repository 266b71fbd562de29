// Package zobject implements the Z-machine object tree: the
// version-dependent parent/sibling/child layout, attribute flags and
// variable-length property tables (spec.md section 4.3).
package zobject

import (
	"fmt"

	"github.com/rezrov-go/zmachine/zcore"
	"github.com/rezrov-go/zmachine/zstring"
)

var ErrInvalidObject = fmt.Errorf("zobject: object id out of range")

// layout describes the version-dependent geometry of the object table,
// mirroring the v1-3 (9 byte objects, 31 property defaults, byte links)
// vs v4+ (14 byte objects, 63 property defaults, word links) split in
// the teacher's zobject/object.go.
type layout struct {
	propDefaultsCount int
	entrySize         uint32
	attrBytes         uint32
	linkSize          uint32 // 1 for v1-3, 2 for v4+
}

func layoutFor(version uint8) layout {
	if version <= 3 {
		return layout{propDefaultsCount: 31, entrySize: 9, attrBytes: 4, linkSize: 1}
	}
	return layout{propDefaultsCount: 63, entrySize: 14, attrBytes: 6, linkSize: 2}
}

// Tree is a handle onto a story file's object table. It holds no object
// state itself; every accessor reads through to the backing Memory so
// writes made via other opcodes (SET_ATTR, INSERT_OBJ, ...) are always
// visible.
type Tree struct {
	mem             *zcore.Memory
	version         uint8
	alphabets       *zstring.Alphabets
	abbrevTableAddr uint16
	tableBase       uint32
	layout          layout
}

// NewTree builds a Tree over the object table at objectTableAddr.
func NewTree(mem *zcore.Memory, objectTableAddr uint16, alphabets *zstring.Alphabets, abbrevTableAddr uint16) *Tree {
	version := mem.Version()
	return &Tree{
		mem:             mem,
		version:         version,
		alphabets:       alphabets,
		abbrevTableAddr: abbrevTableAddr,
		tableBase:       uint32(objectTableAddr),
		layout:          layoutFor(version),
	}
}

// objectsBase is the address of object #1's entry, immediately following
// the property defaults table.
func (t *Tree) objectsBase() uint32 {
	return t.tableBase + uint32(t.layout.propDefaultsCount)*2
}

// Object is a value-type handle to a single object: (tree, id). It is
// cheap to copy and always reflects live memory.
type Object struct {
	tree *Tree
	ID   uint16
}

// Get returns a handle to object id. It does not validate that id is
// currently in use; callers check Parent/Sibling/Child == 0 themselves
// where "object 0" (the null object) is meaningful, per spec.md section
// 4.3.
func (t *Tree) Get(id uint16) Object {
	return Object{tree: t, ID: id}
}

func (o Object) baseAddr() uint32 {
	return o.tree.objectsBase() + uint32(o.ID-1)*o.tree.layout.entrySize
}

// PropertyDefault returns the default value for property propNum (1-31
// or 1-63 depending on version), used when an object's own property
// table omits that property.
func (t *Tree) PropertyDefault(propNum uint16) (uint16, error) {
	if propNum < 1 || int(propNum) > t.layout.propDefaultsCount {
		return 0, fmt.Errorf("%w: property %d", ErrInvalidObject, propNum)
	}
	return t.mem.ReadWord(t.tableBase + uint32(propNum-1)*2)
}

// attrBitAddr returns the byte address and bit-within-byte (MSB = bit 0,
// matching the Standard's attribute numbering) for attribute n.
func (o Object) attrBitAddr(n int) (uint32, uint8, error) {
	if n < 0 || uint32(n) >= o.tree.layout.attrBytes*8 {
		return 0, 0, fmt.Errorf("zobject: attribute %d out of range", n)
	}
	byteOff := uint32(n) / 8
	bit := uint8(7 - (uint32(n) % 8))
	return o.baseAddr() + byteOff, bit, nil
}

func (o Object) TestAttribute(n int) (bool, error) {
	addr, bit, err := o.attrBitAddr(n)
	if err != nil {
		return false, err
	}
	b, err := o.tree.mem.ReadByte(addr)
	if err != nil {
		return false, err
	}
	return b&(1<<bit) != 0, nil
}

func (o Object) SetAttribute(n int) error {
	addr, bit, err := o.attrBitAddr(n)
	if err != nil {
		return err
	}
	b, err := o.tree.mem.ReadByte(addr)
	if err != nil {
		return err
	}
	return o.tree.mem.WriteByte(addr, b|(1<<bit))
}

func (o Object) ClearAttribute(n int) error {
	addr, bit, err := o.attrBitAddr(n)
	if err != nil {
		return err
	}
	b, err := o.tree.mem.ReadByte(addr)
	if err != nil {
		return err
	}
	return o.tree.mem.WriteByte(addr, b&^(1<<bit))
}

func (o Object) linkAddr(which int) uint32 {
	// which: 0 = parent, 1 = sibling, 2 = child
	return o.baseAddr() + o.tree.layout.attrBytes + uint32(which)*o.tree.layout.linkSize
}

func (o Object) readLink(which int) (uint16, error) {
	addr := o.linkAddr(which)
	if o.tree.layout.linkSize == 1 {
		b, err := o.tree.mem.ReadByte(addr)
		return uint16(b), err
	}
	return o.tree.mem.ReadWord(addr)
}

func (o Object) writeLink(which int, v uint16) error {
	addr := o.linkAddr(which)
	if o.tree.layout.linkSize == 1 {
		return o.tree.mem.WriteByte(addr, uint8(v))
	}
	return o.tree.mem.WriteWord(addr, v)
}

func (o Object) Parent() (uint16, error)  { return o.readLink(0) }
func (o Object) Sibling() (uint16, error) { return o.readLink(1) }
func (o Object) Child() (uint16, error)   { return o.readLink(2) }

func (o Object) setParent(v uint16) error  { return o.writeLink(0, v) }
func (o Object) setSibling(v uint16) error { return o.writeLink(1, v) }
func (o Object) setChild(v uint16) error   { return o.writeLink(2, v) }

// propertyTableAddr reads the pointer to this object's property table,
// stored immediately after the parent/sibling/child links.
func (o Object) propertyTableAddr() (uint32, error) {
	w, err := o.tree.mem.ReadWord(o.baseAddr() + o.tree.layout.attrBytes + 3*o.tree.layout.linkSize)
	return uint32(w), err
}

// ShortName decodes the object's short name from its property table
// header (a length-prefixed Z-string), per spec.md section 4.3.
func (o Object) ShortName() (string, error) {
	propTable, err := o.propertyTableAddr()
	if err != nil {
		return "", err
	}
	lenWords, err := o.tree.mem.ReadByte(propTable)
	if err != nil {
		return "", err
	}
	if lenWords == 0 {
		return "", nil
	}
	name, _, err := zstring.Decode(o.tree.mem, propTable+1, o.tree.version, o.tree.alphabets, o.tree.abbrevTableAddr)
	return name, err
}

// RemoveObj unlinks obj from its parent's child chain, leaving it
// parentless (spec.md section 4.3's "remove object" operation, used
// directly by REMOVE_OBJ and as the first step of MoveObject).
func (t *Tree) RemoveObj(obj Object) error {
	parentID, err := obj.Parent()
	if err != nil || parentID == 0 {
		return err
	}
	parent := t.Get(parentID)
	firstChild, err := parent.Child()
	if err != nil {
		return err
	}

	if firstChild == obj.ID {
		sibling, err := obj.Sibling()
		if err != nil {
			return err
		}
		if err := parent.setChild(sibling); err != nil {
			return err
		}
	} else {
		cur := t.Get(firstChild)
		for {
			sib, err := cur.Sibling()
			if err != nil {
				return err
			}
			if sib == obj.ID {
				objSibling, err := obj.Sibling()
				if err != nil {
					return err
				}
				if err := cur.setSibling(objSibling); err != nil {
					return err
				}
				break
			}
			if sib == 0 {
				break // obj was not actually in this chain; nothing to unlink
			}
			cur = t.Get(sib)
		}
	}

	if err := obj.setParent(0); err != nil {
		return err
	}
	return obj.setSibling(0)
}

// MoveObject detaches obj from its current parent (if any) and inserts
// it as the first child of newParent, per spec.md section 4.3's
// INSERT_OBJ semantics.
func (t *Tree) MoveObject(obj Object, newParentID uint16) error {
	if err := t.RemoveObj(obj); err != nil {
		return err
	}
	if newParentID == 0 {
		return nil
	}
	newParent := t.Get(newParentID)
	oldFirstChild, err := newParent.Child()
	if err != nil {
		return err
	}
	if err := obj.setSibling(oldFirstChild); err != nil {
		return err
	}
	if err := obj.setParent(newParentID); err != nil {
		return err
	}
	return newParent.setChild(obj.ID)
}

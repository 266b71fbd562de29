package zobject

import (
	"testing"

	"github.com/rezrov-go/zmachine/zcore"
	"github.com/rezrov-go/zmachine/zstring"
)

func newV3Tree(t *testing.T) *Tree {
	t.Helper()
	raw := make([]byte, 512)
	raw[0x00] = 3
	raw[0x0e], raw[0x0f] = 0x01, 0x00 // static mem base 0x100
	raw[0x04], raw[0x05] = 0x01, 0x00
	raw[0x0a], raw[0x0b] = 0x00, 0x10 // object table at 0x10
	mem, err := zcore.Load(raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return NewTree(mem, 0x10, zstring.DefaultAlphabets(3), 0)
}

func writeObjectEntry(t *testing.T, tree *Tree, id uint16, parent, sibling, child uint16, propTableAddr uint16) {
	t.Helper()
	base := tree.objectsBase() + uint32(id-1)*tree.layout.entrySize
	mem := tree.mem
	if err := mem.WriteByte(base+4, uint8(parent)); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteByte(base+5, uint8(sibling)); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteByte(base+6, uint8(child)); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteWord(base+7, propTableAddr); err != nil {
		t.Fatal(err)
	}
}

func TestAttributeSetClearTest(t *testing.T) {
	tree := newV3Tree(t)
	writeObjectEntry(t, tree, 1, 0, 0, 0, 0x200)
	obj := tree.Get(1)

	set, err := obj.TestAttribute(5)
	if err != nil || set {
		t.Fatalf("expected attribute 5 initially clear, err=%v", err)
	}
	if err := obj.SetAttribute(5); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	set, err = obj.TestAttribute(5)
	if err != nil || !set {
		t.Fatalf("expected attribute 5 set, err=%v", err)
	}
	if err := obj.ClearAttribute(5); err != nil {
		t.Fatalf("ClearAttribute: %v", err)
	}
	set, _ = obj.TestAttribute(5)
	if set {
		t.Fatal("expected attribute 5 clear after ClearAttribute")
	}
}

func TestMoveObjectInsertsAsFirstChild(t *testing.T) {
	tree := newV3Tree(t)
	writeObjectEntry(t, tree, 1, 0, 0, 0, 0x200) // room
	writeObjectEntry(t, tree, 2, 0, 0, 0, 0x210) // existing child of room
	writeObjectEntry(t, tree, 3, 0, 0, 0, 0x220) // object to move

	room := tree.Get(1)
	if err := room.setChild(2); err != nil {
		t.Fatal(err)
	}
	if err := tree.Get(2).setParent(1); err != nil {
		t.Fatal(err)
	}

	if err := tree.MoveObject(tree.Get(3), 1); err != nil {
		t.Fatalf("MoveObject: %v", err)
	}

	child, err := room.Child()
	if err != nil || child != 3 {
		t.Fatalf("expected new first child 3, got %d (err=%v)", child, err)
	}
	sibling, err := tree.Get(3).Sibling()
	if err != nil || sibling != 2 {
		t.Fatalf("expected object 3's sibling to be old first child 2, got %d (err=%v)", sibling, err)
	}
	parent, err := tree.Get(3).Parent()
	if err != nil || parent != 1 {
		t.Fatalf("expected object 3's parent to be 1, got %d (err=%v)", parent, err)
	}
}

func TestRemoveObjClearsParent(t *testing.T) {
	tree := newV3Tree(t)
	writeObjectEntry(t, tree, 1, 0, 0, 2, 0x200)
	writeObjectEntry(t, tree, 2, 1, 0, 0, 0x210)

	if err := tree.RemoveObj(tree.Get(2)); err != nil {
		t.Fatalf("RemoveObj: %v", err)
	}
	parent, _ := tree.Get(2).Parent()
	if parent != 0 {
		t.Fatalf("expected parent 0 after RemoveObj, got %d", parent)
	}
	child, _ := tree.Get(1).Child()
	if child != 0 {
		t.Fatalf("expected room's child cleared, got %d", child)
	}
}

func TestGetPropertyFallsBackToDefault(t *testing.T) {
	tree := newV3Tree(t)
	if err := tree.mem.WriteWord(tree.tableBase+uint32(10-1)*2, 0xABCD); err != nil {
		t.Fatal(err)
	}
	writeObjectEntry(t, tree, 1, 0, 0, 0, 0xF0)
	// property table: name length 0, then terminator byte 0
	if err := tree.mem.WriteByte(0xF0, 0); err != nil {
		t.Fatal(err)
	}
	if err := tree.mem.WriteByte(0xF1, 0); err != nil {
		t.Fatal(err)
	}

	v, err := tree.Get(1).GetProperty(10)
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	if v != 0xABCD {
		t.Fatalf("got 0x%x, want default 0xABCD", v)
	}
}

package heap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabhi256/gcscan/internal/heap/model"
)

func newTestHeap(t *testing.T, ps uint32) (*Heap, *Linker) {
	t.Helper()
	h, err := NewHeap(Config{PointerSize: ps})
	require.NoError(t, err)
	return h, NewLinker(h)
}

// defineClass links c and allocates its class object.
func defineClass(t *testing.T, h *Heap, lk *Linker, c *model.Class) *model.Class {
	t.Helper()
	require.NoError(t, lk.LinkClass(c))
	_, err := h.AllocateClassObject(c, "")
	require.NoError(t, err)
	return c
}

// defineMeta registers a metadata-root class with one reference instance
// field, so class objects have both an instance part and a static region.
func defineMeta(t *testing.T, h *Heap, lk *Linker) *model.Class {
	t.Helper()
	return defineClass(t, h, lk, &model.Class{
		Name:   "Class",
		IsMeta: true,
		InstanceFields: []model.Field{
			{Name: "loader", Type: model.TypeObject},
		},
	})
}

func refFields(prefix string, n int) []model.Field {
	fields := make([]model.Field, n)
	for i := range fields {
		fields[i] = model.Field{Name: fmt.Sprintf("%s%d", prefix, i), Type: model.TypeObject}
	}
	return fields
}

func TestLinkClassLayout(t *testing.T) {
	h, lk := newTestHeap(t, 8)
	defineMeta(t, h, lk)

	c := defineClass(t, h, lk, &model.Class{
		Name: "Node",
		InstanceFields: []model.Field{
			{Name: "weight", Type: model.TypeInt},
			{Name: "next", Type: model.TypeObject},
			{Name: "flag", Type: model.TypeBoolean},
			{Name: "prev", Type: model.TypeObject},
		},
	})

	layout := h.Layout()

	// References are packed first, primitives follow.
	require.Equal(t, layout.FieldsOffset(), c.InstanceFields[1].Offset)
	require.Equal(t, layout.FieldsOffset()+8, c.InstanceFields[3].Offset)
	require.Equal(t, layout.FieldsOffset()+16, c.InstanceFields[0].Offset)
	require.Equal(t, layout.FieldsOffset()+20, c.InstanceFields[2].Offset)
	require.Equal(t, uint32(layout.FieldsOffset())+24, c.InstanceSize)

	// Two reference slots, bitmap-packed.
	require.True(t, c.RefInstanceOffsets.IsBitmap())
	require.Equal(t, 2, c.RefInstanceOffsets.Count())
	require.True(t, c.RefInstanceOffsets.HasSlot(0))
	require.True(t, c.RefInstanceOffsets.HasSlot(1))
}

func TestLinkClassHierarchyBitmap(t *testing.T) {
	h, lk := newTestHeap(t, 8)
	defineMeta(t, h, lk)

	base := defineClass(t, h, lk, &model.Class{
		Name:           "Base",
		InstanceFields: refFields("b", 2),
	})
	sub := defineClass(t, h, lk, &model.Class{
		Name:           "Sub",
		SuperClassID:   base.ObjectID,
		InstanceFields: refFields("s", 1),
	})

	// The subclass descriptor covers the whole hierarchy: slots 0,1 from
	// Base and slot 2 of its own.
	require.True(t, sub.RefInstanceOffsets.IsBitmap())
	require.Equal(t, 3, sub.RefInstanceOffsets.Count())
	for slot := 0; slot < 3; slot++ {
		require.True(t, sub.RefInstanceOffsets.HasSlot(slot), "slot %d", slot)
	}
	require.Equal(t, base.InstanceSize+8, sub.InstanceSize)
}

func TestLinkClassFallsBackOnWideHierarchy(t *testing.T) {
	h, lk := newTestHeap(t, 8)
	defineMeta(t, h, lk)

	// 40 reference fields across 3 levels exceed the 32-slot budget.
	a := defineClass(t, h, lk, &model.Class{Name: "A", InstanceFields: refFields("a", 14)})
	b := defineClass(t, h, lk, &model.Class{Name: "B", SuperClassID: a.ObjectID, InstanceFields: refFields("b", 13)})
	c := defineClass(t, h, lk, &model.Class{Name: "C", SuperClassID: b.ObjectID, InstanceFields: refFields("c", 13)})

	require.True(t, a.RefInstanceOffsets.IsBitmap())
	require.True(t, b.RefInstanceOffsets.IsBitmap())
	require.Equal(t, model.WalkSuper, c.RefInstanceOffsets)
}

func TestLinkClassStatics(t *testing.T) {
	h, lk := newTestHeap(t, 8)
	meta := defineMeta(t, h, lk)

	c := defineClass(t, h, lk, &model.Class{
		Name: "Config",
		StaticFields: []model.Field{
			{Name: "instance", Type: model.TypeObject},
			{Name: "count", Type: model.TypeLong},
			{Name: "fallback", Type: model.TypeObject},
		},
	})

	// Statics live after the class object's own instance part.
	require.Equal(t, model.MemberOffset(meta.InstanceSize), c.StaticBase)
	require.Equal(t, c.StaticBase, c.StaticFields[0].Offset)
	require.Equal(t, c.StaticBase+8, c.StaticFields[2].Offset)
	require.Equal(t, c.StaticBase+16, c.StaticFields[1].Offset)
	require.Equal(t, uint32(24), c.StaticSize)

	require.True(t, c.RefStaticOffsets.IsBitmap())
	require.Equal(t, 2, c.RefStaticOffsets.Count())

	// The class object's payload covers the static region.
	obj := h.Object(c.ObjectID)
	require.Len(t, obj.Data, int(uint32(c.StaticBase)+c.StaticSize))
}

// Static bases derive from the metadata-root class's instance size, so no
// ordinary class may be linked before one is registered.
func TestLinkClassRequiresMetaFirst(t *testing.T) {
	h, lk := newTestHeap(t, 8)

	err := lk.LinkClass(&model.Class{Name: "Early"})
	require.ErrorContains(t, err, "before the metadata-root class")

	defineMeta(t, h, lk)
	require.NoError(t, lk.LinkClass(&model.Class{Name: "Early"}))
}

func TestLinkClassSuperChainChecks(t *testing.T) {
	h, lk := newTestHeap(t, 8)
	defineMeta(t, h, lk)

	err := lk.LinkClass(&model.Class{Name: "Orphan", SuperClassID: 0xBAD})
	require.ErrorContains(t, err, "not registered")

	a := defineClass(t, h, lk, &model.Class{Name: "A"})
	b := defineClass(t, h, lk, &model.Class{Name: "B", SuperClassID: a.ObjectID})

	// Corrupt the chain into a cycle; relinking must refuse it.
	a.SuperClassID = b.ObjectID
	err = lk.LinkClass(&model.Class{Name: "C", SuperClassID: b.ObjectID})
	require.ErrorContains(t, err, "superclass cycle")
}

func TestAllocateArray(t *testing.T) {
	h, lk := newTestHeap(t, 8)
	defineMeta(t, h, lk)

	arrClass := defineClass(t, h, lk, &model.Class{
		Name:          "Object[]",
		IsArray:       true,
		IsObjectArray: true,
	})

	arr, err := h.AllocateArray(arrClass, 3, "")
	require.NoError(t, err)
	require.Equal(t, int32(3), arr.ArrayLength(h.Layout()))

	target := defineClass(t, h, lk, &model.Class{Name: "T"})
	inst, err := h.AllocateInstance(target, "")
	require.NoError(t, err)

	h.SetElement(arr, 1, inst.ObjectID)
	require.Equal(t, inst.ObjectID, arr.FieldObject(model.ElementOffset(h.Layout(), 1), 8))
	require.Equal(t, model.NullRef, arr.FieldObject(model.ElementOffset(h.Layout(), 0), 8))

	_, err = h.AllocateArray(arrClass, -1, "")
	require.ErrorContains(t, err, "negative array length")

	_, err = h.AllocateInstance(arrClass, "")
	require.ErrorContains(t, err, "array class")
}

package heap

import (
	"fmt"

	"github.com/mabhi256/gcscan/internal/heap/model"
)

// Linker resolves a class's field layout and computes its reference-offset
// descriptors. This is class-load-time work; the scanner trusts whatever the
// linker produced. A class must be linked before its class object is
// allocated, and its superclass must be linked and allocated first.
type Linker struct {
	heap *Heap
}

func NewLinker(h *Heap) *Linker {
	return &Linker{heap: h}
}

// LinkClass computes instance and static field offsets and the packed
// reference-offset descriptors, falling back to the WalkSuper sentinel when
// the layout cannot be bit-packed.
//
// Reference fields are laid out before primitive fields at every level, so
// reference slots stay pointer-aligned and packed descriptors stay dense.
func (lk *Linker) LinkClass(c *model.Class) error {
	layout := lk.heap.Layout()
	ps := layout.PointerSize

	if err := lk.checkSuperChain(c); err != nil {
		return err
	}

	// Instance layout: this level's fields start where the superclass ends.
	start := uint32(layout.FieldsOffset())
	if c.SuperClassID != model.NullRef {
		super := lk.heap.Class(c.SuperClassID)
		if super == nil {
			return fmt.Errorf("class %s: superclass %#x not registered", c.Name, uint64(c.SuperClassID))
		}
		start = super.InstanceSize
	}
	c.InstanceSize = lk.layoutFields(c.InstanceFields, start, ps)

	// Static layout: statics live after the class object's own instance
	// part, which the metadata-root class describes.
	staticBase := c.InstanceSize
	if !c.IsMeta {
		meta := lk.heap.MetaClass()
		if meta == nil {
			return fmt.Errorf("class %s linked before the metadata-root class", c.Name)
		}
		staticBase = meta.InstanceSize
	}
	c.StaticBase = model.MemberOffset(staticBase)
	c.StaticSize = lk.layoutFields(c.StaticFields, staticBase, ps) - staticBase

	c.RefInstanceOffsets = lk.packInstanceOffsets(c)
	c.RefStaticOffsets = packOffsets(c.StaticFields, c.StaticBase, ps)
	return nil
}

// checkSuperChain enforces the superclass acyclicity invariant at load time,
// so the scanner's ancestor walk never needs cycle detection.
func (lk *Linker) checkSuperChain(c *model.Class) error {
	seen := map[model.ID]struct{}{}
	for id := c.SuperClassID; id != model.NullRef; {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("class %s: superclass cycle through %#x", c.Name, uint64(id))
		}
		seen[id] = struct{}{}
		super := lk.heap.Class(id)
		if super == nil {
			return fmt.Errorf("class %s: superclass %#x not registered", c.Name, uint64(id))
		}
		id = super.SuperClassID
	}
	return nil
}

// layoutFields assigns offsets starting at start, references first in
// declared order, then primitives in declared order aligned to their size.
// Returns the end of the region rounded up to a full pointer width.
func (lk *Linker) layoutFields(fields []model.Field, start uint32, ps uint32) uint32 {
	off := align(start, ps)
	for i := range fields {
		if fields[i].Type.IsReference() {
			fields[i].Offset = model.MemberOffset(off)
			off += ps
		}
	}
	for i := range fields {
		if !fields[i].Type.IsReference() {
			size := fields[i].Type.Size(ps)
			off = align(off, size)
			fields[i].Offset = model.MemberOffset(off)
			off += size
		}
	}
	return align(off, ps)
}

// packInstanceOffsets builds the instance descriptor over the whole
// hierarchy: every reference instance field of this class and all its
// ancestors must fit the 32-slot budget, otherwise the class walks its
// hierarchy at scan time.
func (lk *Linker) packInstanceOffsets(c *model.Class) model.RefOffsets {
	layout := lk.heap.Layout()
	ps := layout.PointerSize

	var slots []int
	for k := c; k != nil; k = lk.heap.Class(k.SuperClassID) {
		for _, f := range k.InstanceFields {
			if !f.Type.IsReference() {
				continue
			}
			delta := uint32(f.Offset) - uint32(layout.FieldsOffset())
			if delta%ps != 0 {
				return model.WalkSuper
			}
			slots = append(slots, int(delta/ps))
		}
	}
	packed, ok := model.PackRefOffsets(slots)
	if !ok {
		return model.WalkSuper
	}
	return packed
}

// packOffsets builds a single-class descriptor (used for statics).
func packOffsets(fields []model.Field, base model.MemberOffset, ps uint32) model.RefOffsets {
	var slots []int
	for _, f := range fields {
		if !f.Type.IsReference() {
			continue
		}
		delta := uint32(f.Offset) - uint32(base)
		if delta%ps != 0 {
			return model.WalkSuper
		}
		slots = append(slots, int(delta/ps))
	}
	packed, ok := model.PackRefOffsets(slots)
	if !ok {
		return model.WalkSuper
	}
	return packed
}

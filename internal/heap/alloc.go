package heap

import (
	"fmt"

	"github.com/mabhi256/gcscan/internal/heap/model"
	"github.com/mabhi256/gcscan/utils"
)

func align(n uint32, to uint32) uint32 {
	return (n + to - 1) &^ (to - 1)
}

func (h *Heap) bump(size uint32, spaceName string) model.ID {
	addr := h.nextAddr
	h.nextAddr += model.ID(align(size, 2*h.layout.PointerSize))
	sp := h.space(spaceName)
	sp.Objects++
	sp.Bytes += utils.MemorySize(size)
	return addr
}

// AllocateClassObject allocates the heap object backing a linked class and
// registers the class. The class object is an instance of the metadata-root
// class; its payload carries the class's instance fields followed by its
// static field region.
func (h *Heap) AllocateClassObject(c *model.Class, spaceName string) (*model.Object, error) {
	if _, ok := h.classByName[c.Name]; ok {
		return nil, fmt.Errorf("class already registered: %s", c.Name)
	}
	size := uint32(c.StaticBase) + c.StaticSize
	addr := h.bump(size, spaceName)
	c.ObjectID = addr

	classWord := addr // the metadata-root class is an instance of itself
	if !c.IsMeta {
		if h.metaClass == nil {
			return nil, fmt.Errorf("class %s allocated before the metadata-root class", c.Name)
		}
		classWord = h.metaClass.ObjectID
	}

	obj := &model.Object{ObjectID: addr, ClassID: classWord, Data: make([]byte, size)}
	model.WriteWord(obj.Data, h.layout.ClassOffset(), h.layout.PointerSize, classWord)

	h.objects[addr] = obj
	h.classes[addr] = c
	h.classByName[c.Name] = c
	if c.IsMeta {
		h.metaClass = c
	}
	return obj, nil
}

// AllocateInstance allocates a plain instance of a linked, registered class.
func (h *Heap) AllocateInstance(c *model.Class, spaceName string) (*model.Object, error) {
	if c.ObjectID == model.NullRef {
		return nil, fmt.Errorf("class %s has no class object", c.Name)
	}
	if c.IsArray {
		return nil, fmt.Errorf("class %s is an array class, use AllocateArray", c.Name)
	}
	addr := h.bump(c.InstanceSize, spaceName)
	obj := &model.Object{ObjectID: addr, ClassID: c.ObjectID, Data: make([]byte, c.InstanceSize)}
	model.WriteWord(obj.Data, h.layout.ClassOffset(), h.layout.PointerSize, c.ObjectID)
	h.objects[addr] = obj
	return obj, nil
}

// AllocateArray allocates an array of the given length. Element slots are
// one pointer width each in this model.
func (h *Heap) AllocateArray(c *model.Class, length int32, spaceName string) (*model.Object, error) {
	if c.ObjectID == model.NullRef {
		return nil, fmt.Errorf("class %s has no class object", c.Name)
	}
	if !c.IsArray {
		return nil, fmt.Errorf("class %s is not an array class", c.Name)
	}
	if length < 0 {
		return nil, fmt.Errorf("negative array length: %d", length)
	}
	size := uint32(h.layout.ArrayDataOffset()) + uint32(length)*h.layout.PointerSize
	addr := h.bump(size, spaceName)
	obj := &model.Object{ObjectID: addr, ClassID: c.ObjectID, Data: make([]byte, size)}
	model.WriteWord(obj.Data, h.layout.ClassOffset(), h.layout.PointerSize, c.ObjectID)
	obj.SetArrayLength(h.layout, length)
	h.objects[addr] = obj
	return obj, nil
}

// SetElement stores a reference into element slot i of an object array.
func (h *Heap) SetElement(arr *model.Object, i int32, ref model.ID) {
	arr.SetFieldObject(model.ElementOffset(h.layout, i), h.layout.PointerSize, ref)
}

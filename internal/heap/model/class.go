package model

// Field is one declared field of a class, with its offset resolved at link
// time. Offsets of instance fields are relative to the object base; offsets
// of static fields are relative to the base of the owning class object.
type Field struct {
	Name   string
	Type   FieldType
	Offset MemberOffset
}

// Class describes the layout of its instances. Classes are themselves heap
// objects: ObjectID is the address of the class object, whose payload holds
// the class's own instance fields (as an instance of the metadata-root
// class) followed by its static fields.
type Class struct {
	ObjectID     ID
	Name         string
	SuperClassID ID // 0 at the hierarchy root

	IsArray       bool // array class
	IsObjectArray bool // array class whose elements are references
	IsMeta        bool // the metadata-root class itself
	IsReference   bool // weak/soft/finalizer reference semantics

	// Declared fields of this level only, in declaration order. Superclass
	// fields are not repeated here; the hierarchy walk visits each level.
	InstanceFields []Field
	StaticFields   []Field

	// InstanceSize covers the header and all instance fields, superclasses
	// included. StaticBase and StaticSize delimit this class's static region
	// inside the class object.
	InstanceSize uint32
	StaticBase   MemberOffset
	StaticSize   uint32

	// Reference-offset descriptors computed at link time. The instance
	// descriptor covers the whole hierarchy; the static descriptor covers
	// this class only.
	RefInstanceOffsets RefOffsets
	RefStaticOffsets   RefOffsets
}

// NumReferenceInstanceFields counts this level's declared reference-typed
// instance fields. Used only by the hierarchy-walk fallback.
func (c *Class) NumReferenceInstanceFields() int {
	n := 0
	for _, f := range c.InstanceFields {
		if f.Type.IsReference() {
			n++
		}
	}
	return n
}

// ReferenceInstanceField returns the i-th declared reference instance field.
func (c *Class) ReferenceInstanceField(i int) Field {
	for _, f := range c.InstanceFields {
		if f.Type.IsReference() {
			if i == 0 {
				return f
			}
			i--
		}
	}
	panic("reference instance field index out of range")
}

func (c *Class) NumReferenceStaticFields() int {
	n := 0
	for _, f := range c.StaticFields {
		if f.Type.IsReference() {
			n++
		}
	}
	return n
}

func (c *Class) ReferenceStaticField(i int) Field {
	for _, f := range c.StaticFields {
		if f.Type.IsReference() {
			if i == 0 {
				return f
			}
			i--
		}
	}
	panic("reference static field index out of range")
}

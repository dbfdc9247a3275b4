package model

// Object is one heap allocation: a class word, a mark/monitor word, and a
// payload laid out by the object's class. Data covers the whole object
// starting at the base address, so slot reads are plain offsets into it.
type Object struct {
	ObjectID ID
	ClassID  ID
	Data     []byte
}

// FieldObject reads the reference slot at off. It is a raw word read: no
// type check, no bounds re-check, no dereference of the referent.
func (o *Object) FieldObject(off MemberOffset, pointerSize uint32) ID {
	return ReadWord(o.Data, off, pointerSize)
}

// SetFieldObject stores a reference into the slot at off.
func (o *Object) SetFieldObject(off MemberOffset, pointerSize uint32, ref ID) {
	WriteWord(o.Data, off, pointerSize, ref)
}

// ArrayLength reads the array length word. Only meaningful for objects of
// an array class.
func (o *Object) ArrayLength(l Layout) int32 {
	return int32(ReadWord(o.Data, o.lengthOffset(l), 4))
}

// SetArrayLength stores the array length word.
func (o *Object) SetArrayLength(l Layout, n int32) {
	WriteWord(o.Data, o.lengthOffset(l), 4, ID(uint32(n)))
}

// The length is a u4 regardless of pointer width.
func (o *Object) lengthOffset(l Layout) MemberOffset {
	return l.ArrayLengthOffset()
}

// ElementOffset returns the member offset of element slot i of an object
// array.
func ElementOffset(l Layout, i int32) MemberOffset {
	return l.ArrayDataOffset() + MemberOffset(uint32(i)*l.PointerSize)
}

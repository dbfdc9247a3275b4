package gc

import "github.com/mabhi256/gcscan/internal/heap/model"

// Visitor receives one discovered reference slot: the holder being scanned,
// the referent read from the slot (NullRef is a valid slot content and is
// still delivered), the slot's member offset, and whether the slot is a
// static field. A visitor must not assume any referent is non-null.
//
// The traversal invokes the visitor with the slot value read at that moment;
// it never re-reads a slot and never dereferences the referent itself.
type Visitor func(holder *model.Object, ref model.ID, offset model.MemberOffset, isStatic bool)

// Reference is one recorded visitor invocation.
type Reference struct {
	Holder   model.ID
	Referent model.ID
	Offset   model.MemberOffset
	IsStatic bool
}

// Recorder is a Visitor that appends every invocation, in order. Used by
// the CLI's verbose output and by scan-order assertions in tests.
type Recorder struct {
	Refs []Reference
}

func (r *Recorder) Visit(holder *model.Object, ref model.ID, offset model.MemberOffset, isStatic bool) {
	r.Refs = append(r.Refs, Reference{
		Holder:   holder.ObjectID,
		Referent: ref,
		Offset:   offset,
		IsStatic: isStatic,
	})
}

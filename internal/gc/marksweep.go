package gc

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mabhi256/gcscan/internal/heap"
	"github.com/mabhi256/gcscan/internal/heap/model"
)

// MarkSweep is the reference-graph traversal engine of the collector: the
// "visit all references of one object" primitive the mark phase calls for
// every live object. It never mutates object payloads; the visitor is the
// only party that causes side effects.
type MarkSweep struct {
	heap    *heap.Heap
	marks   *heap.MarkBitmap
	delayer ReferenceDelayer

	// Shared-lock discipline: every scan holds both locks shared for its
	// whole duration, so many workers can scan distinct objects at once
	// while any writer that would relayout objects or swap the bitmaps is
	// excluded.
	heapBitmapLock sync.RWMutex
	mutatorLock    sync.RWMutex

	// DebugChecks enables the scanned-while-unmarked precondition check.
	// Production runs elide it; it is only meaningful when scans are
	// ordered after marking (stop-the-world or behind a phase barrier).
	DebugChecks bool

	// DumpWriter receives the heap-space dump on the fatal path.
	DumpWriter io.Writer

	classCount atomic.Uint64
	arrayCount atomic.Uint64
	otherCount atomic.Uint64
}

// ScanCounts are the per-kind counters of completed object scans.
type ScanCounts struct {
	Classes uint64
	Arrays  uint64
	Other   uint64
}

func NewMarkSweep(h *heap.Heap, marks *heap.MarkBitmap, delayer ReferenceDelayer) *MarkSweep {
	return &MarkSweep{
		heap:       h,
		marks:      marks,
		delayer:    delayer,
		DumpWriter: os.Stderr,
	}
}

func (ms *MarkSweep) Heap() *heap.Heap {
	return ms.heap
}

func (ms *MarkSweep) Marks() *heap.MarkBitmap {
	return ms.marks
}

func (ms *MarkSweep) Counts() ScanCounts {
	return ScanCounts{
		Classes: ms.classCount.Load(),
		Arrays:  ms.arrayCount.Load(),
		Other:   ms.otherCount.Load(),
	}
}

// ScanObjectVisit invokes visitor on every direct reference obj holds,
// exactly once per reference slot, in a deterministic per-class order.
//
// obj must be non-nil, have a class, and already be marked. Violations are
// collector bugs upstream of the traversal and are fatal: the scan panics
// after emitting diagnostics and the visitor is never invoked. A scan runs
// to completion; there is no cancellation.
func (ms *MarkSweep) ScanObjectVisit(obj *model.Object, visitor Visitor) {
	ms.heapBitmapLock.RLock()
	defer ms.heapBitmapLock.RUnlock()
	ms.mutatorLock.RLock()
	defer ms.mutatorLock.RUnlock()

	if obj == nil {
		panic("gc: scanning nil object")
	}
	if ms.DebugChecks && !ms.marks.IsMarked(obj.ObjectID) {
		ms.heap.DumpSpaces(ms.DumpWriter)
		panic(fmt.Sprintf("gc: scanning unmarked object %#x", uint64(obj.ObjectID)))
	}
	klass := ms.heap.Class(obj.ClassID)
	if klass == nil {
		panic(fmt.Sprintf("gc: object %#x has no class", uint64(obj.ObjectID)))
	}

	layout := ms.heap.Layout()
	switch {
	case klass.IsMeta:
		// obj is itself a class object.
		ms.classCount.Add(1)
		ms.visitClassReferences(klass, obj, visitor)
	case klass.IsArray:
		ms.arrayCount.Add(1)
		// Every object holds an implicit reference to its class. Emitting
		// it keeps the visitor's view of outgoing references complete.
		ref := obj.FieldObject(layout.ClassOffset(), layout.PointerSize)
		visitor(obj, ref, layout.ClassOffset(), false)
		if klass.IsObjectArray {
			ms.visitObjectArrayReferences(obj, visitor)
		}
	default:
		ms.otherCount.Add(1)
		ms.visitInstanceFieldsReferences(klass, obj, visitor)
		if klass.IsReference {
			ms.delayReferenceReferent(obj)
		}
	}
}

// visitInstanceFieldsReferences visits every reference-typed instance field
// declared anywhere in obj's hierarchy, via the class's instance descriptor.
func (ms *MarkSweep) visitInstanceFieldsReferences(klass *model.Class, obj *model.Object, visitor Visitor) {
	ms.visitFieldsReferences(obj, klass.RefInstanceOffsets, false, visitor)
}

// visitClassReferences visits a class object: its own instance reference
// fields per the metadata-root class's descriptor, then its static
// reference fields per its own static descriptor.
func (ms *MarkSweep) visitClassReferences(meta *model.Class, obj *model.Object, visitor Visitor) {
	ms.visitFieldsReferences(obj, meta.RefInstanceOffsets, false, visitor)
	asClass := ms.heap.Class(obj.ObjectID)
	if asClass == nil {
		panic(fmt.Sprintf("gc: class object %#x has no class metadata", uint64(obj.ObjectID)))
	}
	ms.visitFieldsReferences(obj, asClass.RefStaticOffsets, true, visitor)
}

func (ms *MarkSweep) visitFieldsReferences(obj *model.Object, refOffsets model.RefOffsets, isStatic bool, visitor Visitor) {
	layout := ms.heap.Layout()
	if refOffsets.IsBitmap() {
		// Found a reference offset bitmap. Visit the marked slots,
		// highest bit first.
		base := layout.FieldsOffset()
		if isStatic {
			base = ms.heap.Class(obj.ObjectID).StaticBase
		}
		for refOffsets != 0 {
			slot, rest := refOffsets.PopHighest()
			off := base + model.MemberOffset(uint32(slot)*layout.PointerSize)
			ref := obj.FieldObject(off, layout.PointerSize)
			visitor(obj, ref, off, isStatic)
			refOffsets = rest
		}
		return
	}

	// There is no reference offset bitmap. In the non-static case, walk up
	// the class inheritance hierarchy and find reference offsets the hard
	// way. In the static case, just consider this class.
	klass := ms.heap.Class(obj.ClassID)
	if isStatic {
		klass = ms.heap.Class(obj.ObjectID)
	}
	for ; klass != nil; klass = ms.nextLevel(klass, isStatic) {
		numRefs := klass.NumReferenceInstanceFields()
		if isStatic {
			numRefs = klass.NumReferenceStaticFields()
		}
		for i := 0; i < numRefs; i++ {
			var field model.Field
			if isStatic {
				field = klass.ReferenceStaticField(i)
			} else {
				field = klass.ReferenceInstanceField(i)
			}
			ref := obj.FieldObject(field.Offset, layout.PointerSize)
			visitor(obj, ref, field.Offset, isStatic)
		}
	}
}

func (ms *MarkSweep) nextLevel(klass *model.Class, isStatic bool) *model.Class {
	if isStatic {
		return nil
	}
	return ms.heap.Class(klass.SuperClassID)
}

// visitObjectArrayReferences visits every element slot of an object array
// in ascending index order. The length is read once; arrays are not resized
// during a scan.
func (ms *MarkSweep) visitObjectArrayReferences(arr *model.Object, visitor Visitor) {
	layout := ms.heap.Layout()
	length := arr.ArrayLength(layout)
	for i := int32(0); i < length; i++ {
		off := model.ElementOffset(layout, i)
		ref := arr.FieldObject(off, layout.PointerSize)
		visitor(arr, ref, off, false)
	}
}

func (ms *MarkSweep) delayReferenceReferent(obj *model.Object) {
	if ms.delayer != nil {
		ms.delayer.DelayReferenceReferent(obj)
	}
}

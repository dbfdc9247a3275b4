package gc

import (
	"github.com/mabhi256/gcscan/internal/heap/model"
)

// ScanReport summarizes one whole-heap scan pass.
type ScanReport struct {
	Counts         ScanCounts
	ObjectsScanned int
	RefsVisited    uint64
	NullRefs       uint64
	StaticRefs     uint64

	// Reference objects handed to the deferred-reference hook.
	Delayed []model.ID

	// References is populated only when the pass captures individual
	// visitor invocations (verbose output).
	References []Reference
}

// ReferenceDensity is the average number of outgoing references per
// scanned object.
func (r *ScanReport) ReferenceDensity() float64 {
	if r.ObjectsScanned == 0 {
		return 0
	}
	return float64(r.RefsVisited) / float64(r.ObjectsScanned)
}

// MarkAll marks every allocated object, class objects included.
func (ms *MarkSweep) MarkAll() {
	for _, id := range ms.heap.ObjectIDs() {
		ms.marks.Set(id)
	}
}

// MarkReachable marks the transitive closure of roots, driving the
// traversal itself as the mark phase: each newly marked object is scanned
// and its unmarked referents are queued.
func (ms *MarkSweep) MarkReachable(roots []model.ID) {
	var work []model.ID
	push := func(id model.ID) {
		if id == model.NullRef || ms.marks.IsMarked(id) || ms.heap.Object(id) == nil {
			return
		}
		ms.marks.Set(id)
		work = append(work, id)
	}
	for _, r := range roots {
		push(r)
	}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		ms.ScanObjectVisit(ms.heap.Object(id), func(_ *model.Object, ref model.ID, _ model.MemberOffset, _ bool) {
			push(ref)
		})
	}
}

// CollectReport marks the heap and runs the report pass over the marked set:
// the transitive closure of roots, or every object when all is set or there
// are no roots. queue must be the scanner's delayer. Root-based marking scans
// each object once already, so reference objects delayed during that pass are
// dropped; the report lists each reference object exactly once.
func (ms *MarkSweep) CollectReport(queue *ReferenceQueue, roots []model.ID, all, captureRefs bool) *ScanReport {
	if all || len(roots) == 0 {
		ms.MarkAll()
	} else {
		ms.MarkReachable(roots)
		queue.Drain()
	}
	report := ms.ScanHeap(captureRefs)
	report.Delayed = queue.Drain()
	return report
}

// ScanHeap scans every marked object in ascending address order and tallies
// the visitor invocations. With captureRefs set, every invocation record is
// kept on the report.
func (ms *MarkSweep) ScanHeap(captureRefs bool) *ScanReport {
	report := &ScanReport{}
	before := ms.Counts()

	visitor := func(holder *model.Object, ref model.ID, off model.MemberOffset, isStatic bool) {
		report.RefsVisited++
		if ref == model.NullRef {
			report.NullRefs++
		}
		if isStatic {
			report.StaticRefs++
		}
		if captureRefs {
			report.References = append(report.References, Reference{
				Holder:   holder.ObjectID,
				Referent: ref,
				Offset:   off,
				IsStatic: isStatic,
			})
		}
	}

	for _, id := range ms.heap.ObjectIDs() {
		if !ms.marks.IsMarked(id) {
			continue
		}
		ms.ScanObjectVisit(ms.heap.Object(id), visitor)
		report.ObjectsScanned++
	}

	after := ms.Counts()
	report.Counts = ScanCounts{
		Classes: after.Classes - before.Classes,
		Arrays:  after.Arrays - before.Arrays,
		Other:   after.Other - before.Other,
	}
	return report
}

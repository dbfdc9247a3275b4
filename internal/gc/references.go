package gc

import (
	"sync"

	"github.com/mabhi256/gcscan/internal/heap/model"
)

// ReferenceDelayer is the deferred-reference hook. The scanner calls it for
// every scanned instance whose class has reference semantics (weak, soft,
// finalizer style), so the referent is processed in a later collector phase
// instead of being treated as a plain strong reference. Clearing policy
// lives entirely behind this interface.
type ReferenceDelayer interface {
	DelayReferenceReferent(obj *model.Object)
}

// ReferenceQueue is the default delayer: it records delayed reference
// objects in arrival order for the reference-processing phase.
type ReferenceQueue struct {
	mu      sync.Mutex
	delayed []model.ID
}

func NewReferenceQueue() *ReferenceQueue {
	return &ReferenceQueue{}
}

func (q *ReferenceQueue) DelayReferenceReferent(obj *model.Object) {
	q.mu.Lock()
	q.delayed = append(q.delayed, obj.ObjectID)
	q.mu.Unlock()
}

func (q *ReferenceQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.delayed)
}

// Drain returns the queued reference objects and empties the queue.
func (q *ReferenceQueue) Drain() []model.ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.delayed
	q.delayed = nil
	return out
}

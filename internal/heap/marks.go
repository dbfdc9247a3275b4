package heap

import (
	"sync"

	"github.com/mabhi256/gcscan/internal/heap/model"
)

// MarkBitmap records which objects the mark phase has reached. The scanner
// consults it only through IsMarked, as the precondition for scanning; the
// internal mutex keeps the set safe under parallel markers.
type MarkBitmap struct {
	mu   sync.RWMutex
	bits map[model.ID]struct{}
}

func NewMarkBitmap() *MarkBitmap {
	return &MarkBitmap{bits: make(map[model.ID]struct{})}
}

func (m *MarkBitmap) Set(id model.ID) {
	m.mu.Lock()
	m.bits[id] = struct{}{}
	m.mu.Unlock()
}

func (m *MarkBitmap) Clear(id model.ID) {
	m.mu.Lock()
	delete(m.bits, id)
	m.mu.Unlock()
}

func (m *MarkBitmap) IsMarked(id model.ID) bool {
	m.mu.RLock()
	_, ok := m.bits[id]
	m.mu.RUnlock()
	return ok
}

func (m *MarkBitmap) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bits)
}

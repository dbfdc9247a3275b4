package heap

import (
	"fmt"
	"io"
	"slices"

	"github.com/mabhi256/gcscan/internal/heap/model"
	"github.com/mabhi256/gcscan/utils"
)

// Config holds the heap-wide layout parameters.
type Config struct {
	PointerSize uint32 // 4 or 8
}

// Space is a named heap region. Spaces only matter for diagnostics here;
// allocation policy between them is outside the traversal core.
type Space struct {
	Name    string
	Objects int
	Bytes   utils.MemorySize
}

// Heap owns the object and class registries the scanner reads. Objects and
// classes are registered at allocation/class-load time and are read-only
// during a scan.
type Heap struct {
	layout model.Layout

	classes     map[model.ID]*model.Class // keyed by class object ID
	classByName map[string]*model.Class
	metaClass   *model.Class

	objects map[model.ID]*model.Object

	spaces      []*Space
	spaceByName map[string]*Space

	nextAddr model.ID
}

func NewHeap(cfg Config) (*Heap, error) {
	if cfg.PointerSize != 4 && cfg.PointerSize != 8 {
		return nil, fmt.Errorf("unsupported pointer size: %d", cfg.PointerSize)
	}
	return &Heap{
		layout:      model.Layout{PointerSize: cfg.PointerSize},
		classes:     make(map[model.ID]*model.Class),
		classByName: make(map[string]*model.Class),
		objects:     make(map[model.ID]*model.Object),
		spaceByName: make(map[string]*Space),
		nextAddr:    0x1000, // keep address 0 for the null reference
	}, nil
}

func (h *Heap) Layout() model.Layout {
	return h.layout
}

func (h *Heap) PointerSize() uint32 {
	return h.layout.PointerSize
}

// MetaClass returns the metadata-root class, nil until one is registered.
func (h *Heap) MetaClass() *model.Class {
	return h.metaClass
}

// Class resolves a class object ID to its class metadata. Returns nil for
// the null ID and for IDs that are not class objects.
func (h *Heap) Class(id model.ID) *model.Class {
	return h.classes[id]
}

func (h *Heap) ClassByName(name string) *model.Class {
	return h.classByName[name]
}

// Object resolves an object ID. Returns nil for the null ID.
func (h *Heap) Object(id model.ID) *model.Object {
	return h.objects[id]
}

// ObjectIDs returns every allocated object ID in ascending address order,
// class objects included. Sorted so whole-heap passes are deterministic.
func (h *Heap) ObjectIDs() []model.ID {
	ids := make([]model.ID, 0, len(h.objects))
	for id := range h.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (h *Heap) NumObjects() int {
	return len(h.objects)
}

func (h *Heap) space(name string) *Space {
	if name == "" {
		name = "main"
	}
	sp, ok := h.spaceByName[name]
	if !ok {
		sp = &Space{Name: name}
		h.spaceByName[name] = sp
		h.spaces = append(h.spaces, sp)
	}
	return sp
}

// DumpSpaces writes a per-space postmortem summary. This runs only on the
// fatal unmarked-object path and from explicit diagnostics, never during a
// normal scan.
func (h *Heap) DumpSpaces(w io.Writer) {
	fmt.Fprintf(w, "heap: %d objects, %d classes, pointer size %d\n",
		len(h.objects), len(h.classes), h.layout.PointerSize)
	for _, sp := range h.spaces {
		fmt.Fprintf(w, "  space %-12s %6d objects  %8s\n", sp.Name, sp.Objects, sp.Bytes)
	}
}

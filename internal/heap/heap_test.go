package heap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/gcscan/internal/heap/model"
)

func TestHeapRegistries(t *testing.T) {
	h, lk := newTestHeap(t, 8)
	meta := defineMeta(t, h, lk)
	node := defineClass(t, h, lk, &model.Class{Name: "Node", InstanceFields: refFields("r", 1)})

	obj, err := h.AllocateInstance(node, "eden")
	require.NoError(t, err)

	assert.Same(t, node, h.Class(node.ObjectID))
	assert.Same(t, node, h.ClassByName("Node"))
	assert.Nil(t, h.Class(obj.ObjectID), "instances are not classes")
	assert.Nil(t, h.Class(model.NullRef))
	assert.Same(t, meta, h.Class(meta.ObjectID))

	// Ascending, every allocation included.
	ids := h.ObjectIDs()
	require.Len(t, ids, 3)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
	assert.Equal(t, 3, h.NumObjects())
}

func TestHeapRejectsBadConfig(t *testing.T) {
	_, err := NewHeap(Config{PointerSize: 2})
	require.ErrorContains(t, err, "unsupported pointer size")
}

func TestDumpSpaces(t *testing.T) {
	h, lk := newTestHeap(t, 8)
	defineMeta(t, h, lk)
	node := defineClass(t, h, lk, &model.Class{Name: "Node", InstanceFields: refFields("r", 2)})

	_, err := h.AllocateInstance(node, "eden")
	require.NoError(t, err)
	_, err = h.AllocateInstance(node, "eden")
	require.NoError(t, err)

	var buf bytes.Buffer
	h.DumpSpaces(&buf)

	out := buf.String()
	assert.Contains(t, out, "4 objects")
	assert.Contains(t, out, "space main")
	assert.Contains(t, out, "space eden")
}

func TestMarkBitmap(t *testing.T) {
	m := NewMarkBitmap()

	assert.False(t, m.IsMarked(0x1000))
	m.Set(0x1000)
	m.Set(0x2000)
	assert.True(t, m.IsMarked(0x1000))
	assert.Equal(t, 2, m.Count())

	m.Clear(0x1000)
	assert.False(t, m.IsMarked(0x1000))
	assert.Equal(t, 1, m.Count())
}

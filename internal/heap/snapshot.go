package heap

import (
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v4"

	"github.com/mabhi256/gcscan/internal/heap/model"
)

// Snapshot is a heap built from a YAML description: a fixture format for the
// CLI and tests, not a wire format the runtime itself produces.
type Snapshot struct {
	Heap  *Heap
	Roots []model.ID
	Names map[string]model.ID

	idToName map[model.ID]string
}

// NameOf returns the snapshot name of an object, or its address in hex for
// unnamed objects and the null reference.
func (s *Snapshot) NameOf(id model.ID) string {
	if s.idToName == nil {
		s.idToName = make(map[model.ID]string, len(s.Names))
		for name, nid := range s.Names {
			s.idToName[nid] = name
		}
	}
	if name, ok := s.idToName[id]; ok {
		return name
	}
	return fmt.Sprintf("%#x", uint64(id))
}

type snapshotDoc struct {
	Heap    snapshotHeap    `yaml:"heap"`
	Classes []snapshotClass `yaml:"classes"`
	Objects []snapshotObj   `yaml:"objects"`
	Roots   []string        `yaml:"roots"`
}

type snapshotHeap struct {
	PointerSize uint32 `yaml:"pointerSize"`
}

type snapshotClass struct {
	Name           string            `yaml:"name"`
	Super          string            `yaml:"super"`
	Meta           bool              `yaml:"meta"`
	Array          bool              `yaml:"array"`
	ObjectArray    bool              `yaml:"objectArray"`
	Reference      bool              `yaml:"reference"`
	Space          string            `yaml:"space"`
	InstanceFields []snapshotField   `yaml:"instanceFields"`
	StaticFields   []snapshotField   `yaml:"staticFields"`
	Fields         map[string]string `yaml:"fields"`  // class object's own instance field values
	Statics        map[string]string `yaml:"statics"` // static field values
}

type snapshotField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type snapshotObj struct {
	Name     string            `yaml:"name"`
	Class    string            `yaml:"class"`
	Space    string            `yaml:"space"`
	Length   int32             `yaml:"length"`
	Fields   map[string]string `yaml:"fields"`
	Elements []string          `yaml:"elements"`
}

// LoadSnapshot reads a YAML heap description from a file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot builds a linked heap from a YAML heap description.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	ps := doc.Heap.PointerSize
	if ps == 0 {
		ps = 8
	}
	h, err := NewHeap(Config{PointerSize: ps})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Heap: h, Names: make(map[string]model.ID)}
	if err := snap.loadClasses(doc.Classes); err != nil {
		return nil, err
	}
	if err := snap.loadObjects(doc.Objects); err != nil {
		return nil, err
	}
	if err := snap.fillClassObjects(doc.Classes); err != nil {
		return nil, err
	}
	if err := snap.fillObjects(doc.Objects); err != nil {
		return nil, err
	}
	for _, name := range doc.Roots {
		id, ok := snap.Names[name]
		if !ok {
			return nil, fmt.Errorf("unknown root: %s", name)
		}
		snap.Roots = append(snap.Roots, id)
	}
	return snap, nil
}

func (s *Snapshot) loadClasses(classes []snapshotClass) error {
	byName := make(map[string]*snapshotClass, len(classes))
	hasMeta := false
	for i := range classes {
		c := &classes[i]
		if _, dup := byName[c.Name]; dup {
			return fmt.Errorf("duplicate class: %s", c.Name)
		}
		byName[c.Name] = c
		if c.Meta {
			if hasMeta {
				return fmt.Errorf("more than one metadata-root class")
			}
			if c.Super != "" {
				return fmt.Errorf("metadata-root class %s cannot have a superclass", c.Name)
			}
			hasMeta = true
		}
	}

	lk := NewLinker(s.Heap)

	// The metadata-root class must exist before any other class object can
	// be allocated. Synthesize a bare one when the snapshot has none.
	if !hasMeta {
		meta := &model.Class{Name: "Class", IsMeta: true}
		if _, conflict := byName["Class"]; conflict {
			meta.Name = "<meta>"
		}
		if err := lk.LinkClass(meta); err != nil {
			return err
		}
		if _, err := s.Heap.AllocateClassObject(meta, ""); err != nil {
			return err
		}
		s.Names[meta.Name] = meta.ObjectID
	} else {
		// Load the declared meta first, supers are forbidden on it.
		for i := range classes {
			if classes[i].Meta {
				if err := s.loadClass(lk, &classes[i], byName, map[string]bool{}); err != nil {
					return err
				}
			}
		}
	}

	for i := range classes {
		if err := s.loadClass(lk, &classes[i], byName, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

// loadClass links and allocates one class, recursing on its superclass
// first. The loading set detects superclass cycles by name.
func (s *Snapshot) loadClass(lk *Linker, sc *snapshotClass, byName map[string]*snapshotClass, loading map[string]bool) error {
	if s.Heap.ClassByName(sc.Name) != nil {
		return nil
	}
	if loading[sc.Name] {
		return fmt.Errorf("superclass cycle through %s", sc.Name)
	}
	loading[sc.Name] = true

	var superID model.ID
	if sc.Super != "" {
		superSC, ok := byName[sc.Super]
		if !ok {
			return fmt.Errorf("class %s: unknown superclass %s", sc.Name, sc.Super)
		}
		if err := s.loadClass(lk, superSC, byName, loading); err != nil {
			return err
		}
		superID = s.Heap.ClassByName(sc.Super).ObjectID
	}

	c := &model.Class{
		Name:          sc.Name,
		SuperClassID:  superID,
		IsArray:       sc.Array,
		IsObjectArray: sc.ObjectArray,
		IsMeta:        sc.Meta,
		IsReference:   sc.Reference,
	}
	for _, f := range sc.InstanceFields {
		ft, err := parseFieldType(f.Type)
		if err != nil {
			return fmt.Errorf("class %s, field %s: %w", sc.Name, f.Name, err)
		}
		c.InstanceFields = append(c.InstanceFields, model.Field{Name: f.Name, Type: ft})
	}
	for _, f := range sc.StaticFields {
		ft, err := parseFieldType(f.Type)
		if err != nil {
			return fmt.Errorf("class %s, static %s: %w", sc.Name, f.Name, err)
		}
		c.StaticFields = append(c.StaticFields, model.Field{Name: f.Name, Type: ft})
	}

	if err := lk.LinkClass(c); err != nil {
		return err
	}
	if _, err := s.Heap.AllocateClassObject(c, sc.Space); err != nil {
		return err
	}
	s.Names[c.Name] = c.ObjectID
	return nil
}

func (s *Snapshot) loadObjects(objects []snapshotObj) error {
	for _, so := range objects {
		if so.Name == "" {
			return fmt.Errorf("object without a name")
		}
		if _, dup := s.Names[so.Name]; dup {
			return fmt.Errorf("duplicate name: %s", so.Name)
		}
		c := s.Heap.ClassByName(so.Class)
		if c == nil {
			return fmt.Errorf("object %s: unknown class %s", so.Name, so.Class)
		}
		var obj *model.Object
		var err error
		if c.IsArray {
			length := so.Length
			if n := int32(len(so.Elements)); n > length {
				length = n
			}
			obj, err = s.Heap.AllocateArray(c, length, so.Space)
		} else {
			obj, err = s.Heap.AllocateInstance(c, so.Space)
		}
		if err != nil {
			return fmt.Errorf("object %s: %w", so.Name, err)
		}
		s.Names[so.Name] = obj.ObjectID
	}
	return nil
}

func (s *Snapshot) fillClassObjects(classes []snapshotClass) error {
	for _, sc := range classes {
		c := s.Heap.ClassByName(sc.Name)
		obj := s.Heap.Object(c.ObjectID)
		meta := s.Heap.MetaClass()
		for name, val := range sc.Fields {
			if err := s.setNamedField(obj, meta, name, val, false); err != nil {
				return fmt.Errorf("class %s: %w", sc.Name, err)
			}
		}
		for name, val := range sc.Statics {
			if err := s.setNamedField(obj, c, name, val, true); err != nil {
				return fmt.Errorf("class %s: %w", sc.Name, err)
			}
		}
	}
	return nil
}

func (s *Snapshot) fillObjects(objects []snapshotObj) error {
	for _, so := range objects {
		obj := s.Heap.Object(s.Names[so.Name])
		c := s.Heap.Class(obj.ClassID)
		for name, val := range so.Fields {
			if err := s.setNamedField(obj, c, name, val, false); err != nil {
				return fmt.Errorf("object %s: %w", so.Name, err)
			}
		}
		for i, val := range so.Elements {
			ref, err := s.resolveRef(val)
			if err != nil {
				return fmt.Errorf("object %s, element %d: %w", so.Name, i, err)
			}
			s.Heap.SetElement(obj, int32(i), ref)
		}
	}
	return nil
}

// setNamedField resolves a field by name (searching the hierarchy for
// instance fields, this class only for statics) and stores a reference.
func (s *Snapshot) setNamedField(obj *model.Object, c *model.Class, name, val string, isStatic bool) error {
	ref, err := s.resolveRef(val)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	for k := c; k != nil; k = s.Heap.Class(k.SuperClassID) {
		fields := k.InstanceFields
		if isStatic {
			fields = k.StaticFields
		}
		for _, f := range fields {
			if f.Name != name {
				continue
			}
			if !f.Type.IsReference() {
				return fmt.Errorf("field %s is not a reference field", name)
			}
			obj.SetFieldObject(f.Offset, s.Heap.PointerSize(), ref)
			return nil
		}
		if isStatic {
			break
		}
	}
	return fmt.Errorf("no such field: %s", name)
}

func (s *Snapshot) resolveRef(val string) (model.ID, error) {
	if val == "" || val == "null" || val == "~" {
		return model.NullRef, nil
	}
	id, ok := s.Names[val]
	if !ok {
		return model.NullRef, fmt.Errorf("unknown object: %s", val)
	}
	return id, nil
}

func parseFieldType(s string) (model.FieldType, error) {
	switch s {
	case "object", "":
		return model.TypeObject, nil
	case "boolean":
		return model.TypeBoolean, nil
	case "char":
		return model.TypeChar, nil
	case "float":
		return model.TypeFloat, nil
	case "double":
		return model.TypeDouble, nil
	case "byte":
		return model.TypeByte, nil
	case "short":
		return model.TypeShort, nil
	case "int":
		return model.TypeInt, nil
	case "long":
		return model.TypeLong, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

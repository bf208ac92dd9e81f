package sessioninfo

import (
	"fmt"
	"strconv"

	"github.com/crbraun/irsdkrec/internal/model"
)

type shapeClass uint8

const (
	classUnset shapeClass = iota
	classScalar
	classList
	classAggregate
)

func (c shapeClass) String() string {
	switch c {
	case classScalar:
		return "scalar"
	case classList:
		return "list"
	case classAggregate:
		return "aggregate"
	default:
		return "unset"
	}
}

func classOf(k Kind) (shapeClass, bool) {
	switch {
	case k.scalar():
		return classScalar, true
	case k == KindList:
		return classList, true
	case k == KindAggregate:
		return classAggregate, true
	default:
		return classUnset, false
	}
}

// shadow is the retained mirror of one path of the live tree. It only grows:
// list items are appended, aggregate members are added, nothing is removed.
type shadow struct {
	class   shapeClass
	value   scalar
	has     bool
	items   []*shadow
	members map[string]*shadow
}

func (s *shadow) claim(c shapeClass, path string) error {
	if s.class == classUnset {
		s.class = c
		return nil
	}
	if s.class != c {
		return fmt.Errorf("%w: %q changed from %s to %s", model.ErrShapeInference, displayPath(path), s.class, c)
	}
	return nil
}

func (s *shadow) member(name string) *shadow {
	if s.members == nil {
		s.members = make(map[string]*shadow)
	}
	child, ok := s.members[name]
	if !ok {
		child = &shadow{}
		s.members[name] = child
	}
	return child
}

func (s *shadow) count() int {
	if s == nil {
		return 0
	}
	n := 0
	if s.has {
		n++
	}
	for _, item := range s.items {
		n += item.count()
	}
	for _, m := range s.members {
		n += m.count()
	}
	return n
}

// Differ records session-info changes against its retained shadow tree. It is
// not safe for concurrent use.
type Differ struct {
	root *shadow
}

func NewDiffer() *Differ {
	return &Differ{root: &shadow{}}
}

// Reset discards the retained tree.
func (d *Differ) Reset() {
	d.root = &shadow{}
}

// Retained returns the number of scalar values held in the shadow tree.
func (d *Differ) Retained() int {
	return d.root.count()
}

// Diff walks live against the shadow tree, updates the shadow in place and
// returns one "path = value" line per changed scalar in depth-first member
// order. Absent values are skipped and leave the shadow untouched.
func (d *Differ) Diff(live *Node) ([]string, error) {
	var lines []string
	if err := d.walk("", d.root, live, &lines); err != nil {
		return lines, err
	}
	return lines, nil
}

func (d *Differ) walk(path string, sh *shadow, live *Node, out *[]string) error {
	if live.Absent() {
		return nil
	}
	class, ok := classOf(live.kind)
	if !ok {
		return fmt.Errorf("%w: %q has unknown kind %s", model.ErrShapeInference, displayPath(path), live.kind)
	}
	if err := sh.claim(class, path); err != nil {
		return err
	}

	switch class {
	case classScalar:
		v := scalarOf(live)
		if !sh.has || !sh.value.equal(v) {
			sh.value = v
			sh.has = true
			*out = append(*out, displayPath(path)+" = "+live.Text())
		}
	case classList:
		if err := checkElements(path, live.items); err != nil {
			return err
		}
		for len(sh.items) < len(live.items) {
			sh.items = append(sh.items, &shadow{})
		}
		for i, item := range live.items {
			if err := d.walk(path+"["+strconv.Itoa(i)+"]", sh.items[i], item, out); err != nil {
				return err
			}
		}
	case classAggregate:
		for _, m := range live.members {
			if m.Value.Absent() {
				continue
			}
			if err := d.walk(joinPath(path, m.Name), sh.member(m.Name), m.Value, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkElements rejects lists whose present elements do not share one shape.
func checkElements(path string, items []*Node) error {
	want := classUnset
	for i, item := range items {
		if item.Absent() {
			continue
		}
		c, ok := classOf(item.kind)
		if !ok {
			return fmt.Errorf("%w: %q[%d] has unknown kind %s", model.ErrShapeInference, displayPath(path), i, item.kind)
		}
		if want == classUnset {
			want = c
			continue
		}
		if c != want {
			return fmt.Errorf("%w: %q mixes %s and %s elements", model.ErrShapeInference, displayPath(path), want, c)
		}
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

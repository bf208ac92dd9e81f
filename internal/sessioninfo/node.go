// Package sessioninfo models the simulator's session-info tree as a closed
// set of shapes and records the values that change between two updates.
package sessioninfo

import (
	"math"
	"strconv"

	"github.com/crbraun/irsdkrec/internal/model"
)

// Kind tags the variant held by a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindDouble
	KindList
	KindAggregate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindList:
		return "list"
	case KindAggregate:
		return "aggregate"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

func (k Kind) scalar() bool {
	return k == KindString || k == KindInt || k == KindFloat || k == KindDouble
}

// Member is a named child of an aggregate node.
type Member struct {
	Name  string
	Value *Node
}

// Node is one value of a live session-info tree: a scalar, an ordered list,
// or an aggregate of named members. A nil *Node is an absent value.
type Node struct {
	kind    Kind
	str     string
	num     int64
	flt     float64
	items   []*Node
	members []Member
	index   map[string]int
}

func Null() *Node               { return &Node{kind: KindNull} }
func String(v string) *Node     { return &Node{kind: KindString, str: v} }
func Int(v int64) *Node         { return &Node{kind: KindInt, num: v} }
func Float(v float32) *Node     { return &Node{kind: KindFloat, flt: float64(v)} }
func Double(v float64) *Node    { return &Node{kind: KindDouble, flt: v} }
func List(items ...*Node) *Node { return &Node{kind: KindList, items: items} }

// Aggregate returns an aggregate holding members in the given order. A
// repeated name replaces the earlier value but keeps its position.
func Aggregate(members ...Member) *Node {
	n := &Node{kind: KindAggregate}
	for _, m := range members {
		n.Set(m.Name, m.Value)
	}
	return n
}

func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// Absent reports whether n carries no value this cycle.
func (n *Node) Absent() bool {
	return n == nil || n.kind == KindNull
}

func (n *Node) Items() []*Node {
	if n == nil {
		return nil
	}
	return n.items
}

func (n *Node) Members() []Member {
	if n == nil {
		return nil
	}
	return n.members
}

// Get returns the member called name, or nil.
func (n *Node) Get(name string) *Node {
	if n == nil || n.index == nil {
		return nil
	}
	if i, ok := n.index[name]; ok {
		return n.members[i].Value
	}
	return nil
}

// Set adds or replaces a member of an aggregate and returns n for chaining.
func (n *Node) Set(name string, v *Node) *Node {
	if n.index == nil {
		n.index = make(map[string]int)
	}
	if i, ok := n.index[name]; ok {
		n.members[i].Value = v
		return n
	}
	n.index[name] = len(n.members)
	n.members = append(n.members, Member{Name: name, Value: v})
	return n
}

// Append adds items to a list node and returns n for chaining.
func (n *Node) Append(items ...*Node) *Node {
	n.items = append(n.items, items...)
	return n
}

// Text renders a scalar the way it appears in the change log.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	switch n.kind {
	case KindString:
		return n.str
	case KindInt:
		return strconv.FormatInt(n.num, 10)
	case KindFloat:
		return model.FormatFloat(n.flt, 32)
	case KindDouble:
		return model.FormatFloat(n.flt, 64)
	default:
		return ""
	}
}

// scalar is the retained copy of a scalar node.
type scalar struct {
	kind Kind
	str  string
	num  int64
	flt  float64
}

func scalarOf(n *Node) scalar {
	return scalar{kind: n.kind, str: n.str, num: n.num, flt: n.flt}
}

// equal compares exactly; NaN equals NaN so an unchanged NaN is not re-emitted.
func (s scalar) equal(o scalar) bool {
	if s.kind != o.kind {
		return false
	}
	switch s.kind {
	case KindString:
		return s.str == o.str
	case KindInt:
		return s.num == o.num
	case KindFloat, KindDouble:
		if math.IsNaN(s.flt) && math.IsNaN(o.flt) {
			return true
		}
		return s.flt == o.flt
	}
	return true
}

package isolate

import (
	"fmt"

	"github.com/hargabyte/carve/internal/syntax"
)

// Target names one entity to isolate.
type Target struct {
	Kind syntax.Kind
	Name string
}

// String returns "kind name".
func (t Target) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Name)
}

func (t Target) matches(n syntax.Node) bool {
	return n.Kind() == t.Kind && n.Name() == t.Name
}

// Functions builds function targets for the given names.
func Functions(names ...string) []Target {
	targets := make([]Target, 0, len(names))
	for _, name := range names {
		targets = append(targets, Target{Kind: syntax.KindFunction, Name: name})
	}
	return targets
}

// FoundSet is an insertion-ordered set of nodes keyed by node identity.
type FoundSet struct {
	ids   map[syntax.NodeID]struct{}
	nodes []syntax.Node
}

// NewFoundSet returns an empty set.
func NewFoundSet() *FoundSet {
	return &FoundSet{ids: make(map[syntax.NodeID]struct{})}
}

// Add inserts n and reports whether it was not already present.
func (s *FoundSet) Add(n syntax.Node) bool {
	id := n.ID()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.nodes = append(s.nodes, n)
	return true
}

// Contains reports whether n is in the set.
func (s *FoundSet) Contains(n syntax.Node) bool {
	_, ok := s.ids[n.ID()]
	return ok
}

// Len returns the number of nodes in the set.
func (s *FoundSet) Len() int {
	return len(s.nodes)
}

// Nodes returns the nodes in discovery order.
func (s *FoundSet) Nodes() []syntax.Node {
	return s.nodes
}

// Locate finds the entities named by targets under root.
//
// The search is a depth-first walk with an explicit stack. Every child of a
// popped node is tested; a match is recorded and not descended into. The walk
// stops once as many entities as targets have been found, so when a name
// occurs more than once only the first hits in traversal order are kept.
//
// With followCalls, the subtrees of the found entities are walked again and
// every same-file function reached through a call expression is added, along
// with the functions it calls in turn. Results are in discovery order.
func Locate(root syntax.Node, targets []Target, followCalls bool) []syntax.Node {
	found := NewFoundSet()
	if root == nil {
		return nil
	}

	stack := []syntax.Node{root}
	for len(stack) > 0 && found.Len() < len(targets) {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range current.Children() {
			if matchesAny(child, targets) {
				found.Add(child)
			} else {
				stack = append(stack, child)
			}
		}
	}

	if followCalls {
		closeOverCalls(found)
	}
	return found.Nodes()
}

// closeOverCalls extends found with the same-file callees of its members.
func closeOverCalls(found *FoundSet) {
	stack := append([]syntax.Node(nil), found.Nodes()...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range current.Children() {
			// Front ends that splice included headers into the tree report
			// their nodes under another file; tree-sitter never does.
			if child.File() != current.File() {
				continue
			}
			if child.Kind() == syntax.KindCall {
				ref := child.Referenced()
				if ref != nil && ref.File() == current.File() && found.Add(ref) {
					stack = append(stack, ref)
				}
			}
			// calls nested in the arguments are reached through the child
			stack = append(stack, child)
		}
	}
}

func matchesAny(n syntax.Node, targets []Target) bool {
	for _, t := range targets {
		if t.matches(n) {
			return true
		}
	}
	return false
}

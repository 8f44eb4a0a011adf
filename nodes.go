package formula

import (
	"strconv"
	"strings"
)

// Node is a node in the abstract syntax tree of an expression. Nodes are
// created by Parse and never modified afterward, so a tree may be shared by
// any number of goroutines.
type Node struct {
	kind NodeKind
	// id is the pre-order index of the node in its tree.
	id int
	// key is the name of a NameNode or FuncNode.
	key string
	// value is the number of a LiteralNode, and digits is its decimal text.
	value    float64
	digits   string
	children []*Node
	tmpl     Template
}

// NodeKind is the variant of a Node.
type NodeKind int8

const (
	// LiteralNode is a number. It has no children.
	LiteralNode NodeKind = iota
	// NameNode is a variable reference. It has no children.
	NameNode
	// FuncNode is a function application: either a call written as
	// name(args) or an operator, identified by one of the Key constants.
	FuncNode
	// ExprNode is a parenthesized subexpression or the root of a tree.
	ExprNode
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=NodeKind

// Keys of the FuncNodes that operators produce.
const (
	KeyPow         = "pow"
	KeyNeg         = "neg"
	KeyProduct     = "product"
	KeyDiv         = "div"
	KeyMod         = "mod"
	KeySum         = "sum"
	KeyLessThan    = "lessThan"
	KeyGreaterThan = "greaterThan"
)

// Kind returns the node's variant.
func (n *Node) Kind() NodeKind {
	return n.kind
}

// ID returns the node's pre-order index, which is unique within its tree.
// The ids of a tree of N nodes are exactly 0 through N-1.
func (n *Node) ID() int {
	return n.id
}

// Key returns the name of a NameNode or FuncNode, or the empty string for
// other kinds.
func (n *Node) Key() string {
	return n.key
}

// Value returns the number of a LiteralNode, or 0 for other kinds.
func (n *Node) Value() float64 {
	return n.value
}

// Len returns the number of children of n.
func (n *Node) Len() int {
	return len(n.children)
}

// Child returns the ith child of n.
func (n *Node) Child(i int) *Node {
	return n.children[i]
}

// Children returns a copy of the list of n's children.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Template returns a copy of n's formatting template.
func (n *Node) Template() Template {
	return append(Template(nil), n.tmpl...)
}

// Walk calls f on n and its descendants in pre-order, i.e. in id order. If f
// returns false, the descendants of that node are skipped.
func (n *Node) Walk(f func(*Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f(m) {
			continue
		}
		for i := len(m.children) - 1; i >= 0; i-- {
			stack = append(stack, m.children[i])
		}
	}
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	k := 0
	n.Walk(func(*Node) bool { k++; return true })
	return k
}

// Vars returns the distinct variable names referenced under n, in order of
// first appearance.
func (n *Node) Vars() []string {
	var names []string
	seen := make(map[string]bool)
	n.Walk(func(m *Node) bool {
		if m.kind == NameNode && !seen[m.key] {
			seen[m.key] = true
			names = append(names, m.key)
		}
		return true
	})
	return names
}

// String returns the source text of n, exactly as it was parsed.
func (n *Node) String() string {
	return Echo(n)
}

// Sexp formats the structure of n as an S-expression, ignoring formatting.
// Literals use the shortest representation of their values, names appear
// bare, and functions and expressions are parenthesized lists headed by
// their key or "expr".
func (n *Node) Sexp() string {
	var b strings.Builder
	n.sexp(&b)
	return b.String()
}

func (n *Node) sexp(b *strings.Builder) {
	switch n.kind {
	case LiteralNode:
		b.WriteString(strconv.FormatFloat(n.value, 'g', -1, 64))
	case NameNode:
		b.WriteString(n.key)
	case FuncNode, ExprNode:
		b.WriteByte('(')
		if n.kind == FuncNode {
			b.WriteString(n.key)
		} else {
			b.WriteString("expr")
		}
		for _, c := range n.children {
			b.WriteByte(' ')
			c.sexp(b)
		}
		b.WriteByte(')')
	default:
		panic("formula: invalid node kind " + n.kind.String())
	}
}

// stamp assigns pre-order ids to the tree rooted at n.
func (n *Node) stamp() {
	id := 0
	n.Walk(func(m *Node) bool {
		m.id = id
		id++
		return true
	})
}

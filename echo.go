package formula

import "strings"

// Echo reconstructs the source text of a tree. For any text that parses,
// Echo of the parse result is exactly text, including all whitespace.
func Echo(root *Node) string {
	var b strings.Builder
	echo(&b, root)
	return b.String()
}

func echo(b *strings.Builder, n *Node) {
	k := 0
	for _, s := range n.tmpl {
		if !s.Child {
			b.WriteString(s.Text)
			continue
		}
		if k >= len(n.children) {
			panic("formula: template of " + n.Sexp() + " has more placeholders than children")
		}
		echo(b, n.children[k])
		k++
	}
}

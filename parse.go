package formula

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/slices"
)

// Parse parses an expression. The result is always an ExprNode, the root of
// the tree, whose children are the outermost values of the expression. The
// returned error, if not nil, is a *ParseError.
//
// Parsing proceeds in stages over a flat list of items, each either a token
// or a node built by an earlier stage. Parenthesized spans are reduced
// innermost first. Within a span, whitespace is absorbed into neighboring
// items, names followed by parenthesized spans become calls, the remaining
// literals and names become nodes, and then one pass per precedence level
// replaces operators with FuncNodes, scanning from right to left.
func Parse(text string, opts ...ParseOption) (*Node, error) {
	var p parsectx
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	if p.levels == nil {
		p.levels = defaultLevels
	}
	toks := Lex(text)
	for _, tok := range toks {
		if tok.Kind == TokenInvalid {
			return nil, invalidToken(tok)
		}
	}
	root, items, err := p.extract(toks)
	if err != nil {
		return nil, err
	}
	if p.single && len(items) != 1 {
		col := 1
		if len(items) > 1 {
			col = items[1].pos
		}
		return nil, notSingleValue(col, len(items))
	}
	root.stamp()
	return root, nil
}

// item is an element of the list the parser reduces. Exactly one of tok and
// node is meaningful: node when it is non-nil, otherwise tok.
type item struct {
	tok  Token
	node *Node
	// pos is the column of the first token the item covers.
	pos int
}

func (it item) isSpace() bool {
	return it.node == nil && it.tok.Kind == TokenSpace
}

func (it item) isOp() bool {
	return it.node == nil && it.tok.Kind == TokenOperator
}

// isValue reports whether the item produces a value: a node, a literal, or a
// name.
func (it item) isValue() bool {
	return it.node != nil || it.tok.Kind == TokenLiteral || it.tok.Kind == TokenName
}

// appendText adds text to the end of the item's source.
func (it item) appendText(s string) item {
	if it.node != nil {
		it.node.tmpl = it.node.tmpl.text(s)
		return it
	}
	it.tok.Repr += s
	return it
}

// prependText adds text to the start of the item's source.
func (it item) prependText(s string) item {
	if it.node != nil {
		it.node.tmpl = it.node.tmpl.prepend(s)
		return it
	}
	it.tok.Repr = s + it.tok.Repr
	return it
}

func (it item) String() string {
	if it.node != nil {
		return it.node.Sexp()
	}
	return it.tok.String()
}

// frame is an open parenthesized span.
type frame struct {
	open  Token
	items []item
}

// extract reduces parenthesized spans innermost first and then the top-level
// span. It returns the root along with the final top-level items.
func (p *parsectx) extract(toks []Token) (*Node, []item, error) {
	stack := []frame{{}}
	for _, tok := range toks {
		if tok.Kind != TokenParen {
			f := &stack[len(stack)-1]
			f.items = append(f.items, item{tok: tok, pos: tok.Pos})
			continue
		}
		if tok.Value == "(" {
			stack = append(stack, frame{open: tok})
			continue
		}
		if len(stack) == 1 {
			return nil, nil, unexpectedClose(tok)
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		inner, _, err := p.span(f.items)
		if err != nil {
			return nil, nil, err
		}
		n := &Node{
			kind:     ExprNode,
			children: inner.children,
			tmpl:     Template(nil).text(f.open.Repr).concat(inner.tmpl).text(tok.Repr),
		}
		top := &stack[len(stack)-1]
		top.items = append(top.items, item{node: n, pos: f.open.Pos})
	}
	if len(stack) > 1 {
		return nil, nil, unclosed(stack[len(stack)-1].open)
	}
	return p.span(stack[0].items)
}

// span reduces a paren-free list of items to an ExprNode whose children are
// the values that remain after every precedence pass.
func (p *parsectx) span(items []item) (*Node, []item, error) {
	items, prefix, suffix := absorb(items)
	items = fold(items)
	items = normalize(items)
	if len(items) > 0 {
		if first := items[0]; first.isOp() && first.tok.Value != "-" {
			return nil, nil, leadingOperator(first.tok)
		}
		if last := items[len(items)-1]; last.isOp() {
			return nil, nil, trailingOperator(last.tok)
		}
	}
	for _, lv := range p.levels {
		var err error
		items, err = reduce(items, lv)
		if err != nil {
			return nil, nil, err
		}
		if p.log != nil {
			l := items
			p.log.Trace("Reduced operators", "ops", lv.ops, "items", log.Lazy{Fn: func() string { return formatItems(l) }})
		}
	}
	n := &Node{kind: ExprNode, children: make([]*Node, 0, len(items))}
	n.tmpl = n.tmpl.text(prefix)
	for _, it := range items {
		if it.node == nil {
			// Every operator glyph belongs to some level, so every operator
			// token has been consumed by now.
			panic("formula: unreduced token " + it.tok.String())
		}
		n.children = append(n.children, it.node)
		n.tmpl = n.tmpl.child()
	}
	n.tmpl = n.tmpl.text(suffix)
	return n, items, nil
}

// absorb removes space tokens from items, attaching their text to neighbors.
// Leading and trailing space is returned separately. Interior space goes to
// the left neighbor when the right neighbor is a value and otherwise to the
// right neighbor.
func absorb(items []item) (out []item, prefix, suffix string) {
	if len(items) > 0 && items[0].isSpace() {
		prefix = items[0].tok.Repr
		items = items[1:]
	}
	if len(items) > 0 && items[len(items)-1].isSpace() {
		suffix = items[len(items)-1].tok.Repr
		items = items[:len(items)-1]
	}
	out = make([]item, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if !it.isSpace() {
			out = append(out, it)
			continue
		}
		// Spaces are maximal runs, so both neighbors exist and are not
		// spaces.
		if r := len(out) - 1; out[r].isValue() {
			items[i-1] = items[i-1].appendText(it.tok.Repr)
		} else {
			out[r] = out[r].prependText(it.tok.Repr)
		}
	}
	reverseItems(out)
	return out, prefix, suffix
}

// fold turns each name immediately followed by a parenthesized span into a
// call whose arguments are the values of the span.
func fold(items []item) []item {
	out := items[:0]
	for i := 0; i < len(items); i++ {
		it := items[i]
		if it.node == nil && it.tok.Kind == TokenName && i+1 < len(items) {
			if e := items[i+1].node; e != nil && e.kind == ExprNode {
				n := &Node{
					kind:     FuncNode,
					key:      it.tok.Value,
					children: e.children,
					tmpl:     Template(nil).text(it.tok.Repr).concat(e.tmpl),
				}
				out = append(out, item{node: n, pos: it.pos})
				i++
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// normalize converts the remaining literal and name tokens into nodes.
func normalize(items []item) []item {
	for i, it := range items {
		if it.node != nil {
			continue
		}
		switch it.tok.Kind {
		case TokenLiteral:
			// The lexer only produces decimal digits, so the only possible
			// error is ErrRange, for which ParseFloat gives ±Inf or 0.
			v, _ := strconv.ParseFloat(it.tok.Value, 64)
			items[i].node = &Node{kind: LiteralNode, value: v, digits: it.tok.Value, tmpl: Template(nil).text(it.tok.Repr)}
		case TokenName:
			items[i].node = &Node{kind: NameNode, key: it.tok.Value, tmpl: Template(nil).text(it.tok.Repr)}
		}
	}
	return items
}

// level is one precedence level of operators.
type level struct {
	// ops is the set of operator glyphs of the level.
	ops string
	// unary means the operators take only a right operand.
	unary bool
	// right means the operators associate to the right.
	right bool
}

// defaultLevels is the conventional precedence table, highest first.
var defaultLevels = []level{
	{ops: "^", right: true},
	{ops: "-", unary: true},
	{ops: "*/%"},
	{ops: "+"},
	{ops: "<>"},
}

// legacyLevels gives each of * / % and each of < > its own level.
var legacyLevels = []level{
	{ops: "^", right: true},
	{ops: "-", unary: true},
	{ops: "*"},
	{ops: "/"},
	{ops: "%"},
	{ops: "+"},
	{ops: "<"},
	{ops: ">"},
}

// opkeys maps operator glyphs to the keys of the nodes they produce.
var opkeys = map[string]string{
	"^": KeyPow,
	"-": KeyNeg,
	"*": KeyProduct,
	"/": KeyDiv,
	"%": KeyMod,
	"+": KeySum,
	"<": KeyLessThan,
	">": KeyGreaterThan,
}

// nary reports whether chains of the operator with the given key collapse
// into a single node.
func nary(key string) bool {
	return key == KeyPow || key == KeyProduct || key == KeySum
}

// reduce performs one precedence pass. It scans right to left, keeping the
// items to the right of the scan position on a stack. An operator of the
// level takes its right operand from the top of the stack and, unless it is
// unary, its left operand from the item before it.
func reduce(items []item, lv level) ([]item, error) {
	ps := pass{first: make(map[*Node]*Node)}
	out := make([]item, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if !it.isOp() || !strings.Contains(lv.ops, it.tok.Value) {
			out = append(out, it)
			continue
		}
		op := it.tok
		if len(out) == 0 {
			return nil, trailingOperator(op)
		}
		r := out[len(out)-1]
		out = out[:len(out)-1]
		if r.node == nil {
			return nil, sequentialOperator(r.tok)
		}
		key := opkeys[op.Value]
		if lv.unary {
			n := &Node{kind: FuncNode, key: key, children: []*Node{r.node}, tmpl: Template(nil).text(op.Repr).child()}
			out = append(out, item{node: n, pos: op.Pos})
			if i > 0 && items[i-1].isValue() {
				// Binary minus becomes a sum term.
				plus := Token{Kind: TokenOperator, Value: "+", Pos: op.Pos}
				out = append(out, item{tok: plus, pos: op.Pos})
			}
			continue
		}
		if i == 0 {
			return nil, leadingOperator(op)
		}
		i--
		l := items[i]
		if l.node == nil {
			return nil, sequentialOperator(l.tok)
		}
		out = append(out, item{node: ps.bind(l.node, op, key, r.node, lv.right), pos: l.pos})
	}
	ps.finish()
	reverseItems(out)
	return out, nil
}

// pass tracks the binary nodes created by one precedence pass. Operands only
// ever join a node on its left, so until finish, each node stores its
// children and template segments in reverse order and the first operand is
// the last element.
type pass struct {
	// first maps each node on top of the scan stack that was created in the
	// pass to the deepest created node along its chain of first operands.
	first map[*Node]*Node
	// made lists the created nodes.
	made []*Node
}

// bind applies a binary operator to l and r and returns the node to put in
// their place. When r was created earlier in the same pass, the result keeps
// the chain flat for n-ary operators and otherwise reassociates it so that
// left-associative operators bind their leftmost operands first.
func (ps *pass) bind(l *Node, op Token, key string, r *Node, right bool) *Node {
	m, ok := ps.first[r]
	if !ok {
		return ps.binop(l, op, key, r)
	}
	delete(ps.first, r)
	if right {
		if nary(key) && r.key == key {
			splice(l, op, r)
			ps.first[r] = r
			return r
		}
		return ps.binop(l, op, key, r)
	}
	if nary(key) && m.key == key {
		splice(l, op, m)
		ps.first[r] = m
		return r
	}
	k := len(m.children) - 1
	n := ps.binop(l, op, key, m.children[k])
	delete(ps.first, n)
	m.children[k] = n
	ps.first[r] = n
	return r
}

func (ps *pass) binop(l *Node, op Token, key string, r *Node) *Node {
	n := &Node{
		kind:     FuncNode,
		key:      key,
		children: []*Node{r, l},
		tmpl:     Template(nil).child().text(op.Repr).child(),
	}
	ps.first[n] = n
	ps.made = append(ps.made, n)
	return n
}

// splice adds l as the new first operand of the chain n.
func splice(l *Node, op Token, n *Node) {
	n.children = append(n.children, l)
	n.tmpl = n.tmpl.text(op.Repr).child()
}

// finish puts the children and templates of created nodes in source order.
func (ps *pass) finish() {
	for _, n := range ps.made {
		slices.Reverse(n.children)
		slices.Reverse(n.tmpl)
	}
}

func reverseItems(items []item) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

func formatItems(items []item) string {
	s := make([]string, len(items))
	for i, it := range items {
		s[i] = it.String()
	}
	return strings.Join(s, " ")
}

package formula

// Values creates a function which evaluates every node of the tree rooted at
// root. The result is indexed by node ID, so that a renderer can annotate
// each subexpression with its value. root must be the result of Parse, or
// the IDs will not be dense.
func Values(root *Node, opts ...CompileOption) func(Symbols) []float64 {
	var evals []Evaluator
	root.Walk(func(n *Node) bool {
		if n.id != len(evals) {
			panic("formula: node IDs are not in pre-order")
		}
		evals = append(evals, Compile(n, opts...))
		return true
	})
	return func(s Symbols) []float64 {
		r := make([]float64, len(evals))
		for i, eval := range evals {
			r[i] = eval(s)
		}
		return r
	}
}

//go:build go1.18
// +build go1.18

package formula_test

import (
	"testing"

	"github.com/zephyrtronium/formula"
)

func FuzzEcho(f *testing.F) {
	f.Add("x")
	f.Add(" 1 + 2 ")
	f.Add("-f ( a  b ) ^ 2 *(c - -d)")
	f.Add("1<2>0")
	f.Add("((")
	f.Fuzz(func(t *testing.T, s string) {
		n, err := formula.Parse(s)
		if err != nil {
			return
		}
		if got := formula.Echo(n); got != s {
			t.Errorf("echo differs:\n\twant %q\n\tgot  %q\n\ttree %s", s, got, n.Sexp())
		}
	})
}

func FuzzCompile(f *testing.F) {
	f.Add("x")
	f.Add("atan2(y x) ^ 2 ^ -(1)")
	f.Add("f(x) % 3 - PI()")
	f.Fuzz(func(t *testing.T, s string) {
		n, err := formula.Parse(s)
		if err != nil {
			return
		}
		syms := formula.Symbols{"x": formula.Var(2), "y": formula.Var(-1)}
		formula.Compile(n)(syms)
		if vals := formula.Values(n)(syms); len(vals) != n.Count() {
			t.Errorf("%q has %d nodes but %d values", s, n.Count(), len(vals))
		}
	})
}

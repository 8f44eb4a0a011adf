package formula

import "math"

// Symbols is a symbol table binding names to variables and functions.
type Symbols map[string]Binding

// Binding is a value in a symbol table: either a Var or a Func.
type Binding interface {
	binding()
}

// Var is a variable binding.
type Var float64

// Func is a function binding. Functions receive the values of the arguments
// written in the call and should return NaN for an argument count they do not
// accept.
type Func func(args ...float64) float64

func (Var) binding()  {}
func (Func) binding() {}

// Var returns the value of the variable bound to name, or NaN if name is not
// bound to a variable.
func (s Symbols) Var(name string) float64 {
	if v, ok := s[name].(Var); ok {
		return float64(v)
	}
	return math.NaN()
}

// Func returns the function bound to name, or nil if name is not bound to a
// function.
func (s Symbols) Func(name string) Func {
	f, _ := s[name].(Func)
	return f
}

// Niladic creates a Func that takes no arguments.
func Niladic(f func() float64) Func {
	return func(args ...float64) float64 {
		if len(args) != 0 {
			return math.NaN()
		}
		return f()
	}
}

// Monadic creates a Func that takes exactly one argument.
func Monadic(f func(float64) float64) Func {
	return func(args ...float64) float64 {
		if len(args) != 1 {
			return math.NaN()
		}
		return f(args[0])
	}
}

// Dyadic creates a Func that takes exactly two arguments.
func Dyadic(f func(x, y float64) float64) Func {
	return func(args ...float64) float64 {
		if len(args) != 2 {
			return math.NaN()
		}
		return f(args[0], args[1])
	}
}

// Variadic creates a Func that folds any positive number of arguments with f
// from left to right.
func Variadic(f func(x, y float64) float64) Func {
	return func(args ...float64) float64 {
		if len(args) == 0 {
			return math.NaN()
		}
		r := args[0]
		for _, x := range args[1:] {
			r = f(r, x)
		}
		return r
	}
}

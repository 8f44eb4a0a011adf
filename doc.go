// Package formula implements a compiler for single-line arithmetic formulas.
//
// A formula is written with numbers, names, calls like atan2(y x), the
// operators ^ - * / % + < >, and parentheses. Parse produces a tree that
// remembers every character of the source, so Echo gives the text back
// exactly and a renderer can map any subexpression to the text it came from.
// "-2^2" is "-(2^2)", "8/4/2" is "(8/4)/2", and "1 < x" is 1 when x exceeds
// 1 and 0 otherwise.
//
// Compile turns a tree into an Evaluator, a closure over a symbol table of
// variables and functions. Values evaluates every node at once. Package
// kernel compiles the same trees to a flat numeric kernel for repeated
// evaluation over positional arguments.
//
// A bare name is always a variable, even when it matches a library constant.
// Constants are calls with no arguments, so pi() is π but a bare pi is NaN
// unless the symbol table binds it.
//
// Nothing about evaluation fails. Unbound names and unknown functions give
// NaN, which propagates. The exception is Context, which evaluates to
// arbitrary precision with math/big and reports undefined names and domain
// errors instead.
package formula

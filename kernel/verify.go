package kernel

import "fmt"

// VerifyError describes a bytecode verification failure.
type VerifyError struct {
	Offset  int
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify error at offset %d: %s", e.Offset, e.Message)
}

// verify checks that every instruction of a kernel is well formed, that
// operand indices are in bounds, that the stack never underflows, and that
// the code ends with a return of the only value on the stack. It returns the
// maximum stack depth.
func verify(k *Kernel) (int, error) {
	if len(k.code)%4 != 0 {
		return 0, &VerifyError{Offset: len(k.code) &^ 3, Message: "truncated instruction"}
	}
	depth, maxDepth := 0, 0
	for pc := 0; pc < len(k.code); pc += 4 {
		in := decode(k.code, pc)
		if in.op >= opcodeCount {
			return 0, &VerifyError{Offset: pc, Message: fmt.Sprintf("unknown opcode: %d", in.op)}
		}
		pops := opcodeTable[in.op].pops
		switch in.op {
		case opConst:
			if in.imm >= len(k.consts) {
				return 0, &VerifyError{Offset: pc, Message: fmt.Sprintf("constant index %d out of bounds (pool size %d)", in.imm, len(k.consts))}
			}
		case opParam:
			if in.imm >= len(k.params) {
				return 0, &VerifyError{Offset: pc, Message: fmt.Sprintf("parameter index %d out of bounds (%d parameters)", in.imm, len(k.params))}
			}
		case opCall:
			if in.imm >= len(k.funcs) {
				return 0, &VerifyError{Offset: pc, Message: fmt.Sprintf("function index %d out of bounds (%d functions)", in.imm, len(k.funcs))}
			}
			pops = in.n
		}
		if depth < pops {
			return 0, &VerifyError{Offset: pc, Message: fmt.Sprintf("%s needs %d operands, stack has %d", in.op, pops, depth)}
		}
		depth -= pops
		if in.op == opReturn {
			if pc+4 != len(k.code) {
				return 0, &VerifyError{Offset: pc, Message: "return before end of code"}
			}
			if depth != 0 {
				return 0, &VerifyError{Offset: pc, Message: fmt.Sprintf("%d values left on stack at return", depth)}
			}
			return maxDepth, nil
		}
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return 0, &VerifyError{Offset: len(k.code), Message: "kernel does not end with return"}
}

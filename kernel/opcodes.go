package kernel

import "github.com/zephyrtronium/formula"

// opcode is an 8-bit instruction code of a kernel. Every instruction is four
// bytes: [opcode:8][n:8][imm:16], with imm stored low byte first. Operands
// are taken from and results pushed onto an operand stack.
type opcode uint8

const (
	// opConst pushes Constants[imm].
	opConst opcode = iota
	// opParam pushes the argument at index imm.
	opParam
	// opNeg replaces the top of the stack with its negation.
	opNeg
	// opAdd, opMul, opDiv, opMod, opLt, opGt, and opPow pop y, then x, and
	// push x op y. opLt and opGt push 1 or 0.
	opAdd
	opMul
	opDiv
	opMod
	opLt
	opGt
	opPow
	// opCall pops n arguments and pushes the result of calling funcs[imm]
	// with them, first argument deepest.
	opCall
	// opReturn ends the kernel with the top of the stack as its result.
	opReturn

	opcodeCount
)

// opcodeInfo groups the name and stack effect of an opcode.
type opcodeInfo struct {
	name string
	// pops is the number of operands the instruction consumes. opCall takes
	// its count from the n field instead.
	pops int
	// imm marks instructions that use the immediate.
	imm bool
}

var opcodeTable = [opcodeCount]opcodeInfo{
	opConst:  {"CONST", 0, true},
	opParam:  {"PARAM", 0, true},
	opNeg:    {"NEG", 1, false},
	opAdd:    {"ADD", 2, false},
	opMul:    {"MUL", 2, false},
	opDiv:    {"DIV", 2, false},
	opMod:    {"MOD", 2, false},
	opLt:     {"LT", 2, false},
	opGt:     {"GT", 2, false},
	opPow:    {"POW", 2, false},
	opCall:   {"CALL", 0, true},
	opReturn: {"RETURN", 1, false},
}

func (op opcode) String() string {
	if op >= opcodeCount {
		return "UNKNOWN"
	}
	return opcodeTable[op].name
}

// binops maps the keys of binary operator nodes to their opcodes.
var binops = map[string]opcode{
	formula.KeySum:         opAdd,
	formula.KeyProduct:     opMul,
	formula.KeyDiv:         opDiv,
	formula.KeyMod:         opMod,
	formula.KeyLessThan:    opLt,
	formula.KeyGreaterThan: opGt,
}

// instr is a decoded instruction.
type instr struct {
	op  opcode
	n   int
	imm int
}

func decode(code []byte, pc int) instr {
	return instr{
		op:  opcode(code[pc]),
		n:   int(code[pc+1]),
		imm: int(code[pc+2]) | int(code[pc+3])<<8,
	}
}

func encode(code []byte, op opcode, n uint8, imm uint16) []byte {
	return append(code, byte(op), n, byte(imm), byte(imm>>8))
}

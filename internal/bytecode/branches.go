package bytecode

import "fmt"

// Opcodes that need special handling while walking the code stream.
const (
	opTableswitch  = 0xAA
	opLookupswitch = 0xAB
	opWide         = 0xC4
	opIfnull       = 0xC6
	opIfnonnull    = 0xC7
	opGotoW        = 0xC8
	opJsrW         = 0xC9
	opIinc         = 0x84
)

// insnLen holds the byte length of each opcode including operands.
// Zero marks the variable-length instructions (switches and wide).
var insnLen = buildInsnLen()

func buildInsnLen() [256]int {
	var lens [256]int
	for op := range lens {
		lens[op] = 1
	}
	two := []int{
		0x10, // bipush
		0x12, // ldc
		0x15, 0x16, 0x17, 0x18, 0x19, // iload..aload
		0x36, 0x37, 0x38, 0x39, 0x3A, // istore..astore
		0xA9, // ret
		0xBC, // newarray
	}
	three := []int{
		0x11,       // sipush
		0x13, 0x14, // ldc_w, ldc2_w
		opIinc,
		0xA7, 0xA8, // goto, jsr
		0xBB,       // new
		0xBD,       // anewarray
		0xC0, 0xC1, // checkcast, instanceof
	}
	// conditional branches
	for op := 0x99; op <= 0xA6; op++ {
		three = append(three, op)
	}
	three = append(three, opIfnull, opIfnonnull)
	// field and method access
	for op := 0xB2; op <= 0xB8; op++ {
		three = append(three, op)
	}
	four := []int{0xC5}                   // multianewarray
	five := []int{0xB9, 0xBA, opGotoW, opJsrW} // invokeinterface, invokedynamic

	for _, op := range two {
		lens[op] = 2
	}
	for _, op := range three {
		lens[op] = 3
	}
	for _, op := range four {
		lens[op] = 4
	}
	for _, op := range five {
		lens[op] = 5
	}
	lens[opTableswitch] = 0
	lens[opLookupswitch] = 0
	lens[opWide] = 0
	return lens
}

// isConditional reports whether an opcode is a two-way conditional jump.
func isConditional(op byte) bool {
	return (op >= 0x99 && op <= 0xA6) || op == opIfnull || op == opIfnonnull
}

// countBranches walks the instruction stream and accumulates, per
// source line, the total number of decision outcomes: two for each
// conditional jump, one per case plus default for a switch.
func countBranches(code []byte, table lineTable) (map[int]int, error) {
	branches := make(map[int]int)
	pc := 0
	for pc < len(code) {
		op := code[pc]
		size, outcomes, err := decodeInsn(code, pc)
		if err != nil {
			return nil, err
		}
		if outcomes > 0 {
			branches[table.lineAt(pc)] += outcomes
		}
		if isConditional(op) {
			branches[table.lineAt(pc)] += 2
		}
		pc += size
	}
	return branches, nil
}

// decodeInsn returns the full size of the instruction at pc and, for
// switches, its number of decision outcomes.
func decodeInsn(code []byte, pc int) (size, outcomes int, err error) {
	op := code[pc]
	switch op {
	case opTableswitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+12 > len(code) {
			return 0, 0, fmt.Errorf("truncated tableswitch at pc %d", pc)
		}
		low := int(int32(beU32(code[base+4:])))
		high := int(int32(beU32(code[base+8:])))
		if high < low {
			return 0, 0, fmt.Errorf("malformed tableswitch at pc %d", pc)
		}
		cases := high - low + 1
		return 1 + pad + 12 + 4*cases, cases + 1, nil
	case opLookupswitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+8 > len(code) {
			return 0, 0, fmt.Errorf("truncated lookupswitch at pc %d", pc)
		}
		npairs := int(int32(beU32(code[base+4:])))
		if npairs < 0 {
			return 0, 0, fmt.Errorf("malformed lookupswitch at pc %d", pc)
		}
		return 1 + pad + 8 + 8*npairs, npairs + 1, nil
	case opWide:
		if pc+1 >= len(code) {
			return 0, 0, fmt.Errorf("truncated wide at pc %d", pc)
		}
		if code[pc+1] == opIinc {
			return 6, 0, nil
		}
		return 4, 0, nil
	default:
		size := insnLen[op]
		if pc+size > len(code) {
			return 0, 0, fmt.Errorf("truncated instruction 0x%02x at pc %d", op, pc)
		}
		return size, 0, nil
	}
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Package bytecode statically parses compiled class files to recover
// the debug metadata linking instrumentation probes to source lines.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

const classMagic = 0xCAFEBABE

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// MethodInfo holds the debug metadata of one concrete method: the
// distinct source lines its code maps to and, per line, the total
// number of conditional branch outcomes found in the instruction
// stream.
type MethodInfo struct {
	Name       string
	Descriptor string
	Lines      []int       // sorted distinct source lines
	Branches   map[int]int // line -> total branch outcomes
}

// ClassInfo is the decoded static view of one class file. Methods are
// the concrete (code-bearing) methods in declaration order; their
// position is the probe index assigned during instrumentation.
type ClassInfo struct {
	Name       string // slash-joined class identifier
	SourceFile string // simple source file name, e.g. "Bar.kt"
	Methods    []MethodInfo
}

// Parse reads and decodes the class file at path.
func Parse(path string) (*ClassInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class file: %w", err)
	}
	info, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return info, nil
}

// ParseBytes decodes a class file from memory.
func ParseBytes(data []byte) (*ClassInfo, error) {
	r := &reader{data: data}

	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid class file magic 0x%08x", magic)
	}
	// minor, major version
	if err := r.skip(4); err != nil {
		return nil, err
	}

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	// access_flags
	if err := r.skip(2); err != nil {
		return nil, err
	}
	thisClass, err := r.u16()
	if err != nil {
		return nil, err
	}
	name, err := pool.className(thisClass)
	if err != nil {
		return nil, err
	}
	// super_class
	if err := r.skip(2); err != nil {
		return nil, err
	}

	ifaceCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	if err := r.skip(2 * int(ifaceCount)); err != nil {
		return nil, err
	}

	// Fields carry no line information.
	if err := skipMembers(r); err != nil {
		return nil, err
	}

	methods, err := readMethods(r, pool)
	if err != nil {
		return nil, err
	}

	sourceFile, err := readSourceFile(r, pool)
	if err != nil {
		return nil, err
	}

	return &ClassInfo{Name: name, SourceFile: sourceFile, Methods: methods}, nil
}

// reader is a bounds-checked cursor over the class file bytes.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) skip(n int) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("truncated class file at offset %d", r.pos)
	}
	r.pos += n
	return nil
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("truncated class file at offset %d", r.pos)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("truncated class file at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("truncated class file at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("truncated class file at offset %d", r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// constantPool resolves utf8 and class entries by index.
type constantPool struct {
	utf8    map[uint16]string
	classes map[uint16]uint16 // class entry -> name index
}

func (p *constantPool) str(index uint16) (string, error) {
	s, ok := p.utf8[index]
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not a utf8 entry", index)
	}
	return s, nil
}

func (p *constantPool) className(index uint16) (string, error) {
	nameIndex, ok := p.classes[index]
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not a class entry", index)
	}
	return p.str(nameIndex)
}

func readConstantPool(r *reader) (*constantPool, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	pool := &constantPool{
		utf8:    make(map[uint16]string),
		classes: make(map[uint16]uint16),
	}

	for i := uint16(1); i < count; i++ {
		tag, err := r.u8()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagUtf8:
			length, err := r.u16()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(length))
			if err != nil {
				return nil, err
			}
			pool.utf8[i] = string(b)
		case tagClass:
			nameIndex, err := r.u16()
			if err != nil {
				return nil, err
			}
			pool.classes[i] = nameIndex
		case tagInteger, tagFloat, tagFieldref, tagMethodref,
			tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			if err := r.skip(4); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if err := r.skip(8); err != nil {
				return nil, err
			}
			// 8-byte constants occupy two pool slots.
			i++
		case tagString, tagMethodType, tagModule, tagPackage:
			if err := r.skip(2); err != nil {
				return nil, err
			}
		case tagMethodHandle:
			if err := r.skip(3); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
	}
	return pool, nil
}

// skipMembers skips a fields or methods section without decoding it.
func skipMembers(r *reader) error {
	count, err := r.u16()
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		if err := r.skip(6); err != nil { // access, name, descriptor
			return err
		}
		if err := skipAttributes(r); err != nil {
			return err
		}
	}
	return nil
}

func skipAttributes(r *reader) error {
	count, err := r.u16()
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		if err := r.skip(2); err != nil {
			return err
		}
		length, err := r.u32()
		if err != nil {
			return err
		}
		if err := r.skip(int(length)); err != nil {
			return err
		}
	}
	return nil
}

func readMethods(r *reader, pool *constantPool) ([]MethodInfo, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	var methods []MethodInfo
	for i := uint16(0); i < count; i++ {
		if err := r.skip(2); err != nil { // access flags
			return nil, err
		}
		nameIndex, err := r.u16()
		if err != nil {
			return nil, err
		}
		descIndex, err := r.u16()
		if err != nil {
			return nil, err
		}

		method, hasCode, err := readMethodAttributes(r, pool)
		if err != nil {
			return nil, err
		}
		if !hasCode {
			// Abstract and native methods carry no probes.
			continue
		}
		method.Name, err = pool.str(nameIndex)
		if err != nil {
			return nil, err
		}
		method.Descriptor, err = pool.str(descIndex)
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	return methods, nil
}

func readMethodAttributes(r *reader, pool *constantPool) (MethodInfo, bool, error) {
	var method MethodInfo
	hasCode := false

	count, err := r.u16()
	if err != nil {
		return method, false, err
	}
	for i := uint16(0); i < count; i++ {
		nameIndex, err := r.u16()
		if err != nil {
			return method, false, err
		}
		length, err := r.u32()
		if err != nil {
			return method, false, err
		}
		name, err := pool.str(nameIndex)
		if err != nil {
			return method, false, err
		}
		if name != "Code" {
			if err := r.skip(int(length)); err != nil {
				return method, false, err
			}
			continue
		}

		hasCode = true
		if err := decodeCode(r, pool, &method); err != nil {
			return method, false, err
		}
	}
	return method, hasCode, nil
}

// decodeCode reads a Code attribute: the instruction stream for branch
// counting and the LineNumberTable for the probe-to-line link.
func decodeCode(r *reader, pool *constantPool, method *MethodInfo) error {
	if err := r.skip(4); err != nil { // max_stack, max_locals
		return err
	}
	codeLength, err := r.u32()
	if err != nil {
		return err
	}
	code, err := r.bytes(int(codeLength))
	if err != nil {
		return err
	}

	excCount, err := r.u16()
	if err != nil {
		return err
	}
	if err := r.skip(8 * int(excCount)); err != nil {
		return err
	}

	var table lineTable
	attrCount, err := r.u16()
	if err != nil {
		return err
	}
	for i := uint16(0); i < attrCount; i++ {
		nameIndex, err := r.u16()
		if err != nil {
			return err
		}
		length, err := r.u32()
		if err != nil {
			return err
		}
		name, err := pool.str(nameIndex)
		if err != nil {
			return err
		}
		if name != "LineNumberTable" {
			if err := r.skip(int(length)); err != nil {
				return err
			}
			continue
		}

		entryCount, err := r.u16()
		if err != nil {
			return err
		}
		for j := uint16(0); j < entryCount; j++ {
			startPC, err := r.u16()
			if err != nil {
				return err
			}
			line, err := r.u16()
			if err != nil {
				return err
			}
			table = append(table, lineEntry{pc: int(startPC), line: int(line)})
		}
	}

	if len(table) == 0 {
		// Compiled without debug information.
		return nil
	}
	sort.Slice(table, func(a, b int) bool { return table[a].pc < table[b].pc })

	method.Lines = table.distinctLines()
	branches, err := countBranches(code, table)
	if err != nil {
		return err
	}
	method.Branches = branches
	return nil
}

type lineEntry struct {
	pc   int
	line int
}

// lineTable maps instruction offsets to source lines, sorted by pc.
type lineTable []lineEntry

// lineAt returns the source line of the instruction at pc: the entry
// with the greatest start pc not beyond it.
func (t lineTable) lineAt(pc int) int {
	line := t[0].line
	for _, e := range t {
		if e.pc > pc {
			break
		}
		line = e.line
	}
	return line
}

func (t lineTable) distinctLines() []int {
	seen := make(map[int]bool, len(t))
	var lines []int
	for _, e := range t {
		if !seen[e.line] {
			seen[e.line] = true
			lines = append(lines, e.line)
		}
	}
	sort.Ints(lines)
	return lines
}

// readSourceFile scans the class-level attributes for SourceFile.
// Classes compiled without it resolve to an empty name.
func readSourceFile(r *reader, pool *constantPool) (string, error) {
	count, err := r.u16()
	if err != nil {
		return "", err
	}
	source := ""
	for i := uint16(0); i < count; i++ {
		nameIndex, err := r.u16()
		if err != nil {
			return "", err
		}
		length, err := r.u32()
		if err != nil {
			return "", err
		}
		name, err := pool.str(nameIndex)
		if err != nil {
			return "", err
		}
		if name != "SourceFile" || length != 2 {
			if err := r.skip(int(length)); err != nil {
				return "", err
			}
			continue
		}
		sourceIndex, err := r.u16()
		if err != nil {
			return "", err
		}
		source, err = pool.str(sourceIndex)
		if err != nil {
			return "", err
		}
	}
	return source, nil
}

package bytecode

import (
	"fmt"

	"github.com/skink-lang/skink/op"
)

// bytesPerWord is the encoded size of one instruction word (op.Code is
// a uint16).
const bytesPerWord = 2

// Instructions is an immutable variable-width instruction stream.
// Offsets are expressed in words: an instruction occupies one opcode
// word plus one word per operand.
type Instructions struct {
	words  []op.Code
	starts []int // offset of each instruction, ascending
}

// newInstructions wraps an already-validated word slice. The slice is
// owned by the new value and must not be mutated by the caller.
func newInstructions(words []op.Code) *Instructions {
	ins := &Instructions{words: words}
	for offset := 0; offset < len(words); {
		if !op.IsValid(words[offset]) {
			panic(fmt.Sprintf("bytecode: unknown opcode %d at offset %d", words[offset], offset))
		}
		width := op.Width(words[offset])
		if offset+width > len(words) {
			panic(fmt.Sprintf("bytecode: truncated instruction at offset %d", offset))
		}
		ins.starts = append(ins.starts, offset)
		offset += width
	}
	return ins
}

// Len returns the length of the stream in words.
func (ins *Instructions) Len() int {
	return len(ins.words)
}

// Count returns the number of decoded instructions.
func (ins *Instructions) Count() int {
	return len(ins.starts)
}

// At returns the word at the given offset. It panics when the offset is
// outside the stream.
func (ins *Instructions) At(offset int) op.Code {
	if offset < 0 || offset >= len(ins.words) {
		panic(fmt.Sprintf("bytecode: Instructions.At: offset %d out of range [0,%d)",
			offset, len(ins.words)))
	}
	return ins.words[offset]
}

// OpcodeAt returns the opcode of the instruction starting at offset. It
// panics when offset is not an instruction boundary.
func (ins *Instructions) OpcodeAt(offset int) op.Code {
	ins.IndexOf(offset)
	return ins.words[offset]
}

// IndexOf returns the ordinal position of the instruction starting at
// offset. It panics when offset is not an instruction boundary.
func (ins *Instructions) IndexOf(offset int) int {
	low, high := 0, len(ins.starts)
	for low < high {
		mid := low + (high-low)/2
		if ins.starts[mid] < offset {
			low = mid + 1
		} else {
			high = mid
		}
	}
	if low == len(ins.starts) || ins.starts[low] != offset {
		panic(fmt.Sprintf("bytecode: Instructions.IndexOf: offset %d is not an instruction boundary", offset))
	}
	return low
}

// OffsetOf returns the offset of the instruction with the given ordinal
// position.
func (ins *Instructions) OffsetOf(index int) int {
	if index < 0 || index >= len(ins.starts) {
		panic(fmt.Sprintf("bytecode: Instructions.OffsetOf: index %d out of range [0,%d)",
			index, len(ins.starts)))
	}
	return ins.starts[index]
}

// SizeBytes returns the encoded size of the stream in bytes.
func (ins *Instructions) SizeBytes() uint64 {
	return uint64(len(ins.words)) * bytesPerWord
}

// Words returns a copy of the raw instruction words.
func (ins *Instructions) Words() []op.Code {
	words := make([]op.Code, len(ins.words))
	copy(words, ins.words)
	return words
}

// Iter returns an iterator over the instructions in the stream.
func (ins *Instructions) Iter() *InstructionIter {
	return &InstructionIter{ins: ins}
}

// InstructionIter walks an instruction stream one instruction at a
// time.
type InstructionIter struct {
	ins    *Instructions
	offset int
}

// Next returns the offset and words (opcode plus operands) of the next
// instruction. The third result is false when the stream is exhausted.
func (it *InstructionIter) Next() (int, []op.Code, bool) {
	if it.offset >= len(it.ins.words) {
		return 0, nil, false
	}
	offset := it.offset
	width := op.Width(it.ins.words[offset])
	words := make([]op.Code, width)
	copy(words, it.ins.words[offset:offset+width])
	it.offset += width
	return offset, words, true
}

// All returns the remaining instructions as (offset, words) pairs.
func (it *InstructionIter) All() []DecodedInstruction {
	var all []DecodedInstruction
	for {
		offset, words, ok := it.Next()
		if !ok {
			return all
		}
		all = append(all, DecodedInstruction{Offset: offset, Words: words})
	}
}

// DecodedInstruction is one instruction as produced by InstructionIter.
type DecodedInstruction struct {
	Offset int
	Words  []op.Code
}

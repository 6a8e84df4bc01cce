package bytecode

import (
	"fmt"
	"sync/atomic"
)

// MetadataTable holds one 64-bit profiling slot per instruction. The
// slot count is fixed when the code block is constructed; linked code
// bumps slots atomically while profiling. The table survives even when
// the instruction stream itself has been dropped, so instruction counts
// and memory accounting stay available.
type MetadataTable struct {
	slots []atomic.Uint64
}

func newMetadataTable(count int) *MetadataTable {
	return &MetadataTable{slots: make([]atomic.Uint64, count)}
}

// SlotCount returns the number of profiling slots, which equals the
// block's instruction count.
func (m *MetadataTable) SlotCount() int {
	return len(m.slots)
}

// SizeBytes returns the memory the table retains.
func (m *MetadataTable) SizeBytes() uint64 {
	return uint64(len(m.slots)) * 8
}

func (m *MetadataTable) check(slot int) {
	if slot < 0 || slot >= len(m.slots) {
		panic(fmt.Sprintf("bytecode: MetadataTable: slot %d out of range [0,%d)",
			slot, len(m.slots)))
	}
}

// Add bumps the given slot by delta.
func (m *MetadataTable) Add(slot int, delta uint64) {
	m.check(slot)
	m.slots[slot].Add(delta)
}

// Load returns the current value of the given slot.
func (m *MetadataTable) Load(slot int) uint64 {
	m.check(slot)
	return m.slots[slot].Load()
}

package disasm

import (
	"cmp"

	"golang.org/x/exp/slices"
)

// InlineDataDecoder recognises data embedded in a code stream.
type InlineDataDecoder interface {
	// DecodeData returns the inline data starting at pos, if any.
	DecodeData(code []byte, pos int, address uint64) (*InlineData, bool)
}

// InlineDataDescriptor locates one run of inline data.
type InlineDataDescriptor struct {
	Start int
	Size  int
	Kind  InlineKind
}

// InlineDataTable is an InlineDataDecoder over a fixed set of descriptors.
type InlineDataTable struct {
	descs []InlineDataDescriptor
}

// NewInlineDataTable returns a table holding descs.
func NewInlineDataTable(descs ...InlineDataDescriptor) *InlineDataTable {
	t := &InlineDataTable{}
	for _, d := range descs {
		t.Add(d)
	}
	return t
}

// Add registers a descriptor, keeping descriptors ordered by start.
func (t *InlineDataTable) Add(d InlineDataDescriptor) {
	i, found := slices.BinarySearchFunc(t.descs, d.Start, func(e InlineDataDescriptor, start int) int {
		return cmp.Compare(e.Start, start)
	})
	if found {
		t.descs[i] = d
		return
	}
	t.descs = slices.Insert(t.descs, i, d)
}

func (t *InlineDataTable) DecodeData(code []byte, pos int, address uint64) (*InlineData, bool) {
	i, found := slices.BinarySearchFunc(t.descs, pos, func(e InlineDataDescriptor, start int) int {
		return cmp.Compare(e.Start, start)
	})
	if !found || t.descs[i].Size <= 0 {
		return nil, false
	}
	d := t.descs[i]
	end := pos + d.Size
	if end > len(code) {
		end = len(code)
	}
	return &InlineData{Kind: d.Kind, Position: pos, Address: address, Data: code[pos:end]}, true
}

// Descriptors returns the registered descriptors in start order.
func (t *InlineDataTable) Descriptors() []InlineDataDescriptor {
	return slices.Clone(t.descs)
}

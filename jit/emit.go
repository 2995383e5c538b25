// Package jit holds two small compilers that emit AMD64 method bodies through
// the x86 template table, one per compilation tier.
package jit

import (
	"encoding/binary"
	"fmt"

	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/beehive-lab/Maxine-VM-sub091/disasm"
	"github.com/beehive-lab/Maxine-VM-sub091/x86"
	"golang.org/x/crypto/blake2b"
)

// counterSize is the trace counter slot appended to TraceJIT code.
const counterSize = 4

type emitter struct {
	table *x86.Table
	asm   x86.Assembler
	code  []byte
	err   error
}

func newEmitter() *emitter {
	return &emitter{table: x86.DefaultTable(), asm: x86.Encoder{}}
}

func (e *emitter) emit(mnemonic string, size x86.Width, form x86.Form, args ...x86.Argument) {
	if e.err != nil {
		return
	}
	_, enc, err := e.table.Select(e.asm, mnemonic, size, form, args...)
	if err != nil {
		e.err = fmt.Errorf("emit %s: %w", mnemonic, err)
		return
	}
	e.code = append(e.code, enc...)
}

// result is the 32-bit value a compiled method returns in eax.
func result(m *compilation.Method) int64 {
	sum := blake2b.Sum256([]byte(m.Name))
	return int64(int32(binary.LittleEndian.Uint32(sum[:4])))
}

// InlineData describes the data compiled into tm's code so the disassembler
// does not decode it as instructions.
func InlineData(tm *compilation.TargetMethod) *disasm.InlineDataTable {
	t := disasm.NewInlineDataTable()
	if tm.Directive == compilation.TraceJIT && len(tm.Code) >= counterSize {
		t.Add(disasm.InlineDataDescriptor{Start: len(tm.Code) - counterSize, Size: counterSize, Kind: disasm.Raw})
	}
	return t
}

package x86

import (
	"fmt"
	"sync"

	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
	"golang.org/x/exp/slices"
)

// Table groups templates by header key in registration order.
type Table struct {
	templates  []*Template
	byKey      map[HeaderKey][]*Template
	byMnemonic map[string][]*Template
}

func NewTable() *Table {
	return &Table{
		byKey:      make(map[HeaderKey][]*Template),
		byMnemonic: make(map[string][]*Template),
	}
}

// Add appends t to the table and assigns its serial number.
func (tb *Table) Add(t *Template) {
	t.Serial = len(tb.templates)
	tb.templates = append(tb.templates, t)
	for _, k := range t.Keys() {
		tb.byKey[k] = append(tb.byKey[k], t)
	}
	tb.byMnemonic[t.Mnemonic] = append(tb.byMnemonic[t.Mnemonic], t)
}

// Lookup returns the candidate templates for a header, in table order.
func (tb *Table) Lookup(h Header) []*Template {
	return tb.byKey[h.Key()]
}

// Templates returns every template in table order.
func (tb *Table) Templates() []*Template { return tb.templates }

// ByMnemonic returns the templates of one mnemonic in table order.
func (tb *Table) ByMnemonic(m string) []*Template { return tb.byMnemonic[m] }

// Mnemonics returns the sorted list of mnemonics.
func (tb *Table) Mnemonics() []string {
	names := make([]string, 0, len(tb.byMnemonic))
	for m := range tb.byMnemonic {
		names = append(names, m)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of templates.
func (tb *Table) Len() int { return len(tb.templates) }

// Select finds the first template of mnemonic with operand size size (0 for
// any) and addressing form form (FormAny for any) that accepts args, and
// returns it with its encoding.
func (tb *Table) Select(asm Assembler, mnemonic string, size Width, form Form, args ...Argument) (*Template, []byte, error) {
	var lastErr error
	for _, t := range tb.byMnemonic[mnemonic] {
		if form != FormAny && t.Form != form {
			continue
		}
		if size != 0 && t.OperandSize != size {
			continue
		}
		code, err := asm.Assemble(t, args)
		if err != nil {
			lastErr = err
			continue
		}
		return t, code, nil
	}
	if lastErr == nil {
		lastErr = vmerrors.ErrEncoding
	}
	return nil, nil, fmt.Errorf("no %s%d template in form %s for %v: %w", mnemonic, size, form, args, lastErr)
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// DefaultTable returns the AMD64 template table.
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = buildAMD64Table()
	})
	return defaultTable
}

package x86

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// ToTree renders the table grouped by mnemonic. With no mnemonics given every
// mnemonic is included.
func (tb *Table) ToTree(mnemonics ...string) treeprint.Tree {
	if len(mnemonics) == 0 {
		mnemonics = tb.Mnemonics()
	}
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("amd64 templates: %d", tb.Len()))
	for _, m := range mnemonics {
		ts := tb.byMnemonic[m]
		if len(ts) == 0 {
			continue
		}
		branch := tree.AddBranch(fmt.Sprintf("%s (%d)", m, len(ts)))
		for _, t := range ts {
			branch.AddNode(t.String())
		}
	}
	return tree
}

package disasm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"
)

// Listing is the result of scanning one code buffer.
type Listing struct {
	StartAddress uint64
	Objects      []Object
	Labels       Labels

	code []byte
}

func newListing(code []byte, start uint64, objects []Object) *Listing {
	l := &Listing{StartAddress: start, Objects: objects, code: code}
	l.Labels = assignLabels(objects)
	return l
}

// assignLabels names every instruction start referenced by a branch, a
// rip-relative operand or a jump table entry, in address order.
func assignLabels(objects []Object) Labels {
	starts := make(map[uint64]int, len(objects))
	for _, obj := range objects {
		if _, ok := obj.(*Instruction); ok {
			starts[obj.StartAddress()] = obj.Start()
		}
	}
	var targets []uint64
	for _, obj := range objects {
		var refs []uint64
		switch o := obj.(type) {
		case *Instruction:
			refs = o.Targets()
		case *InlineData:
			refs = o.Entries()
		}
		for _, t := range refs {
			if _, ok := starts[t]; ok {
				targets = append(targets, t)
			}
		}
	}
	slices.Sort(targets)
	targets = slices.Compact(targets)

	labels := make(Labels, len(targets))
	for n, t := range targets {
		labels[t] = &Label{Name: fmt.Sprintf("L%d", n+1), Address: t, Position: starts[t]}
	}
	return labels
}

// Code returns the scanned buffer.
func (l *Listing) Code() []byte { return l.code }

// Instructions returns the decoded instructions, skipping inline data.
func (l *Listing) Instructions() []*Instruction {
	var out []*Instruction
	for _, obj := range l.Objects {
		if inst, ok := obj.(*Instruction); ok {
			out = append(out, inst)
		}
	}
	return out
}

// Print writes one line per object, preceded by a label line where one applies.
func (l *Listing) Print(w io.Writer) error {
	for _, obj := range l.Objects {
		if lbl, ok := l.Labels[obj.StartAddress()]; ok {
			if _, err := fmt.Fprintf(w, "%s:\n", lbl.Name); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "0x%04x: %-16s %s\n", obj.StartAddress(), hex.EncodeToString(obj.Bytes()), obj.Text(l.Labels)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Listing) String() string {
	var b strings.Builder
	_ = l.Print(&b)
	return b.String()
}

type listingEntry struct {
	Position int    `json:"position"`
	Address  string `json:"address"`
	Bytes    string `json:"bytes"`
	Label    string `json:"label,omitempty"`
	Kind     string `json:"kind"`
	Text     string `json:"text"`
}

func (l *Listing) MarshalJSON() ([]byte, error) {
	entries := make([]listingEntry, 0, len(l.Objects))
	for _, obj := range l.Objects {
		e := listingEntry{
			Position: obj.Start(),
			Address:  fmt.Sprintf("0x%x", obj.StartAddress()),
			Bytes:    hex.EncodeToString(obj.Bytes()),
			Kind:     "instruction",
			Text:     obj.Text(l.Labels),
		}
		if d, ok := obj.(*InlineData); ok {
			e.Kind = d.Kind.String()
		}
		if lbl, ok := l.Labels[obj.StartAddress()]; ok {
			e.Label = lbl.Name
		}
		entries = append(entries, e)
	}
	return json.Marshal(entries)
}

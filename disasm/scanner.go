package disasm

import (
	"errors"
	"io"

	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
	"golang.org/x/exp/slices"
)

type scanMode uint8

const (
	// knownValid: the current position is a real instruction start.
	knownValid scanMode = iota
	// exploratory: decoding past an unconditional jump, possibly through data.
	exploratory
)

func (m scanMode) String() string {
	if m == knownValid {
		return "known-valid"
	}
	return "exploratory"
}

// Scan disassembles code into a listing of instructions and inline data.
//
// Forward unconditional jumps decoded in known-valid mode record their targets
// as known-good positions. Decoding after such a jump is exploratory: an
// object that straddles a known-good position is replaced by raw data up to
// that position, and scanning resumes there in known-valid mode.
func (d *Disassembler) Scan(code []byte) (*Listing, error) {
	var (
		objects   []Object
		knownGood []int
		mode      = knownValid
		pos       int
	)
	for pos < len(code) {
		for len(knownGood) > 0 && knownGood[0] < pos {
			knownGood = knownGood[1:]
		}
		address := d.opts.StartAddress + uint64(pos)

		if d.opts.InlineData != nil {
			if data, ok := d.opts.InlineData.DecodeData(code, pos, address); ok && len(data.Data) > 0 {
				d.trace("inline data", data, mode)
				objects = append(objects, data)
				pos = data.End()
				continue
			}
		}

		obj, err := d.DecodeOne(code, pos)
		if err != nil {
			if errors.Is(err, vmerrors.ErrNoMoreInstructions) {
				break
			}
			return nil, err
		}

		if k, ok := firstInside(knownGood, pos, obj.End()); ok {
			raw := &InlineData{Kind: Raw, Position: pos, Address: address, Data: code[pos:k]}
			d.trace("resync", raw, mode)
			objects = append(objects, raw)
			pos = k
			mode = knownValid
			continue
		}

		d.trace("decoded", obj, mode)
		objects = append(objects, obj)
		if len(knownGood) > 0 && knownGood[0] == pos {
			knownGood = knownGood[1:]
			mode = knownValid
		}
		if inst, ok := obj.(*Instruction); ok && mode == knownValid {
			if target, ok := inst.ForwardJump(); ok {
				if target < len(code) {
					if i, found := slices.BinarySearch(knownGood, target); !found {
						knownGood = slices.Insert(knownGood, i, target)
					}
				}
				mode = exploratory
			}
		}
		pos = obj.End()
	}
	return newListing(code, d.opts.StartAddress, objects), nil
}

// ScanReader reads all of r and disassembles it.
func (d *Disassembler) ScanReader(r io.Reader) (*Listing, error) {
	code, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return d.Scan(code)
}

// firstInside returns the first known-good position strictly between start and end.
func firstInside(knownGood []int, start, end int) (int, bool) {
	for _, k := range knownGood {
		if k > start && k < end {
			return k, true
		}
		if k >= end {
			break
		}
	}
	return 0, false
}

func (d *Disassembler) trace(msg string, obj Object, mode scanMode) {
	d.serial++
	log.Trace(log.Disasm, msg, "serial", d.serial, "pos", obj.Start(), "end", obj.End(), "mode", mode, "text", obj.Text(nil))
}

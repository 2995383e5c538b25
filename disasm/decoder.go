package disasm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
	"github.com/beehive-lab/Maxine-VM-sub091/x86"
)

// Options configures a Disassembler.
type Options struct {
	// StartAddress is the address of the first byte of the code.
	StartAddress uint64
	// Strict makes undecodable bytes an error instead of invalid inline data.
	Strict bool
	// InlineData recognises data embedded in the code; nil means none.
	InlineData InlineDataDecoder
	// Assembler verifies candidate matches; defaults to x86.Encoder.
	Assembler x86.Assembler
	// Table supplies templates; defaults to x86.DefaultTable.
	Table *x86.Table
}

// Disassembler decodes one code buffer at a time. It is not safe for
// concurrent use; use one instance per goroutine.
type Disassembler struct {
	opts   Options
	table  *x86.Table
	asm    x86.Assembler
	serial int
}

func New(opts Options) *Disassembler {
	d := &Disassembler{opts: opts, table: opts.Table, asm: opts.Assembler}
	if d.table == nil {
		d.table = x86.DefaultTable()
	}
	if d.asm == nil {
		d.asm = x86.Encoder{}
	}
	return d
}

// Verify reports whether assembling t with args reproduces a prefix of code.
func Verify(asm x86.Assembler, t *x86.Template, args []x86.Argument, code []byte) bool {
	_, err := verify(asm, t, args, code)
	return err == nil
}

func verify(asm x86.Assembler, t *x86.Template, args []x86.Argument, code []byte) ([]byte, error) {
	enc, err := asm.Assemble(t, args)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(code, enc) {
		return nil, fmt.Errorf("re-encoded % x", enc)
	}
	return enc, nil
}

// DecodeOne decodes the object at pos. It returns an Instruction, an Invalid
// InlineData for undecodable bytes, or an error when the buffer is exhausted
// or Strict is set and no template matches.
func (d *Disassembler) DecodeOne(code []byte, pos int) (Object, error) {
	address := d.opts.StartAddress + uint64(pos)
	s := newStream(code, pos)
	h, _, err := x86.ScanHeader(s, x86.IsREX)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, vmerrors.ErrNoMoreInstructions
		}
		return nil, err
	}
	afterHeader := s.pos
	for _, t := range d.table.Lookup(h) {
		s.seek(afterHeader)
		args, ok := d.scanArguments(s, h, t)
		if !ok {
			continue
		}
		enc, err := verify(d.asm, t, args, code[pos:])
		if err != nil {
			log.Trace(log.Disasm, "candidate mismatch", "pos", pos, "template", t.Serial, "err", err)
			continue
		}
		return &Instruction{
			Position: pos,
			Address:  address,
			Raw:      code[pos : pos+len(enc)],
			Template: t,
			Args:     args,
		}, nil
	}
	if d.opts.Strict {
		end := pos + 4
		if end > len(code) {
			end = len(code)
		}
		return nil, fmt.Errorf("%w: header %s at 0x%x bytes % x", vmerrors.ErrUnknownInstruction, h, address, code[pos:end])
	}
	return &InlineData{Kind: Invalid, Position: pos, Address: address, Data: code[pos : pos+1]}, nil
}

// scanArguments reads the ModRM, SIB and appended fields t demands and
// resolves its parameters to arguments.
func (d *Disassembler) scanArguments(s *stream, h x86.Header, t *x86.Template) ([]x86.Argument, bool) {
	if t.RexW != h.RexW() {
		return nil, false
	}
	var modrm, sib byte
	if t.HasModRM() {
		var err error
		if modrm, err = s.ReadByte(); err != nil {
			return nil, false
		}
		mod := modrm >> 6
		rm := modrm & 7
		if t.RegExt >= 0 && int(modrm>>x86.ModRMRegShift)&7 != t.RegExt {
			return nil, false
		}
		if (t.Form == x86.FormRegister) != (mod == x86.MOD_REGISTER) {
			return nil, false
		}
		if t.Form == x86.FormRIP && rm != x86.RM_RIP {
			return nil, false
		}
		if t.Form.SIB() {
			if rm != x86.RM_SIB {
				return nil, false
			}
			if sib, err = s.ReadByte(); err != nil {
				return nil, false
			}
			if t.Form.NoIndex() && ((sib>>3)&7 != x86.SIB_NO_INDEX || h.REX&x86.REX_X != 0) {
				return nil, false
			}
			if t.Form.NoBase() && sib&7 != x86.SIB_NO_BASE {
				return nil, false
			}
		}
		if want := t.Form.Mod(); mod != want {
			if want != x86.MOD_INDIRECT || mod == x86.MOD_REGISTER {
				return nil, false
			}
			// A mod 00 template also matches mod 01/10 when the
			// displacement it would carry is zero; the zero is elided.
			n := 1
			if mod == x86.MOD_INDIRECT_DISP32 {
				n = 4
			}
			disp, err := s.read(n)
			if err != nil {
				return nil, false
			}
			for _, b := range disp {
				if b != 0 {
					return nil, false
				}
			}
		}
	}

	args := make([]x86.Argument, 0, len(t.Params))
	for _, p := range t.Params {
		if p.Place.Field == x86.FieldAppend {
			b, err := s.read(p.Width.Bytes())
			if err != nil {
				return nil, false
			}
			args = append(args, p.Decode(b))
			continue
		}
		v, _ := p.Place.Value(h.REX, h.Opcode1, h.Opcode2, modrm, sib)
		a, ok := p.Resolve(v, h.HasREX())
		if !ok {
			return nil, false
		}
		args = append(args, a)
	}
	return args, true
}

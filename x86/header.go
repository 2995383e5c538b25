package x86

import (
	"fmt"
	"io"
	"strings"
)

// Header holds the prefixes and opcode bytes of one instruction.
type Header struct {
	AddressSize32 bool
	REX           byte // 0 when absent
	Selection     byte // 0x66, 0xF2, 0xF3 or 0
	Opcode1       byte
	Opcode2       byte
	OpcodeLen     int
}

// HeaderKey is the part of a header that selects candidate templates.
// The REX byte is not part of it.
type HeaderKey struct {
	AddressSize32 bool
	Selection     byte
	OpcodeLen     uint8
	Opcode1       byte
	Opcode2       byte
}

func (h Header) Key() HeaderKey {
	return HeaderKey{
		AddressSize32: h.AddressSize32,
		Selection:     h.Selection,
		OpcodeLen:     uint8(h.OpcodeLen),
		Opcode1:       h.Opcode1,
		Opcode2:       h.Opcode2,
	}
}

// Equal compares two headers disregarding their REX bytes.
func (h Header) Equal(o Header) bool { return h.Key() == o.Key() }

func (h Header) HasREX() bool { return h.REX != 0 }

func (h Header) RexW() bool { return h.REX&REX_W != 0 }

func (h Header) String() string {
	var b strings.Builder
	if h.Selection == PrefixOperandSize {
		b.WriteString("66 ")
	}
	if h.AddressSize32 {
		b.WriteString("67 ")
	}
	if h.Selection == PrefixRep || h.Selection == PrefixRepne {
		fmt.Fprintf(&b, "%02X ", h.Selection)
	}
	if h.REX != 0 {
		fmt.Fprintf(&b, "%02X ", h.REX)
	}
	if h.OpcodeLen >= 1 {
		fmt.Fprintf(&b, "%02X ", h.Opcode1)
	}
	if h.OpcodeLen == 2 {
		fmt.Fprintf(&b, "%02X ", h.Opcode2)
	}
	return strings.TrimSpace(b.String())
}

// ScanHeader reads prefixes and opcode bytes until the header is complete.
// It returns the header and the number of bytes consumed. A stream that ends
// after at least one byte yields the partial header; an empty stream yields
// io.EOF.
func ScanHeader(r io.ByteReader, isREX func(byte) bool) (Header, int, error) {
	var h Header
	n := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				return h, n, nil
			}
			return h, n, err
		}
		n++
		switch {
		case b == PrefixAddressSize:
			h.AddressSize32 = true
		case b == PrefixOperandSize:
			h.Selection = b
		case b == PrefixRepne || b == PrefixRep:
			h.Selection = b
			return h, n, nil
		case isREX(b):
			h.REX = b
		default:
			h.Opcode1 = b
			h.OpcodeLen = 1
			if b != EscapeTwoByte {
				return h, n, nil
			}
			b2, err := r.ReadByte()
			if err != nil {
				if err == io.EOF {
					return h, n, nil
				}
				return h, n, err
			}
			n++
			h.Opcode2 = b2
			h.OpcodeLen = 2
			return h, n, nil
		}
	}
}

// Package disasm reconstructs AMD64 instructions from machine code by
// matching instruction templates and verifying each match by re-assembly.
package disasm

import (
	"io"

	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
)

// stream is a rewindable byte reader over a code buffer.
type stream struct {
	code []byte
	pos  int
}

func newStream(code []byte, pos int) *stream {
	return &stream{code: code, pos: pos}
}

func (s *stream) ReadByte() (byte, error) {
	if s.pos >= len(s.code) {
		return 0, io.EOF
	}
	b := s.code[s.pos]
	s.pos++
	return b, nil
}

// read returns the next n bytes.
func (s *stream) read(n int) ([]byte, error) {
	if s.pos+n > len(s.code) {
		s.pos = len(s.code)
		return nil, vmerrors.ErrTruncated
	}
	b := s.code[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

func (s *stream) seek(pos int) { s.pos = pos }

package disasm

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
	"github.com/google/go-cmp/cmp"
	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(l *Listing) []string {
	out := make([]string, len(l.Objects))
	for i, obj := range l.Objects {
		out[i] = obj.Text(l.Labels)
	}
	return out
}

func TestScanResyncsOnForwardJumpTarget(t *testing.T) {
	code := []byte{0xEB, 0x02, 0x48, 0xB8}
	code = append(code, bytes.Repeat([]byte{0x90}, 8)...)
	code = append(code, 0xC3)

	l, err := New(Options{}).Scan(code)
	require.NoError(t, err)

	want := []string{"jmp L1: +2", ".byte 0x48, 0xb8"}
	for i := 0; i < 8; i++ {
		want = append(want, "nop")
	}
	want = append(want, "ret")
	if diff := cmp.Diff(want, texts(l)); diff != "" {
		t.Fatalf("listing mismatch (-want +got):\n%s", diff)
	}

	raw, ok := l.Objects[1].(*InlineData)
	require.True(t, ok)
	assert.Equal(t, Raw, raw.Kind)
	assert.Equal(t, 2, raw.Start())
	assert.Equal(t, 4, raw.End())
	assert.Equal(t, 4, l.Labels[4].Position)
}

func TestScanCoversBuffer(t *testing.T) {
	code := []byte{
		0x55,
		0x48, 0x89, 0xE5,
		0x06,
		0x48, 0x8B, 0x45, 0x00,
		0x5D,
		0xC3,
	}
	l, err := New(Options{}).Scan(code)
	require.NoError(t, err)

	end := 0
	for _, obj := range l.Objects {
		assert.Equal(t, end, obj.Start())
		end = obj.End()
	}
	assert.Equal(t, len(code), end)
	assert.Len(t, l.Instructions(), 5)
	assert.Equal(t, []string{"push rbp", "mov rbp, rsp", ".byte 0x06", "mov rax, [rbp]", "pop rbp", "ret"}, texts(l))

	_, err = New(Options{Strict: true}).Scan(code)
	assert.ErrorIs(t, err, vmerrors.ErrUnknownInstruction)
}

func TestScanInlineData(t *testing.T) {
	// jmp over a two entry jump table, then nop, ret and two characters
	code := []byte{
		0xEB, 0x08,
		0x08, 0x00, 0x00, 0x00,
		0x09, 0x00, 0x00, 0x00,
		0x90,
		0xC3,
		'h', 'i',
	}
	table := NewInlineDataTable(
		InlineDataDescriptor{Start: 12, Size: 2, Kind: ASCII},
		InlineDataDescriptor{Start: 2, Size: 8, Kind: JumpTable},
	)
	require.Equal(t, 2, table.Descriptors()[0].Start)

	l, err := New(Options{InlineData: table}).Scan(code)
	require.NoError(t, err)
	want := []string{
		"jmp L1: +8",
		".jumptable L1: 0xa, L2: 0xb",
		"nop",
		"ret",
		`.ascii "hi"`,
	}
	if diff := cmp.Diff(want, texts(l)); diff != "" {
		t.Fatalf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestInlineDataTableClipsToBuffer(t *testing.T) {
	table := NewInlineDataTable(InlineDataDescriptor{Start: 1, Size: 16, Kind: Raw})
	data, ok := table.DecodeData([]byte{0x90, 0x01, 0x02}, 1, 0x11)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, data.Bytes())
	assert.Equal(t, uint64(0x11), data.StartAddress())

	_, ok = table.DecodeData([]byte{0x90}, 0, 0)
	assert.False(t, ok)

	table.Add(InlineDataDescriptor{Start: 1, Size: 1, Kind: ASCII})
	assert.Len(t, table.Descriptors(), 1)
}

func TestListingPrint(t *testing.T) {
	code := []byte{
		0xE8, 0x00, 0x00, 0x00, 0x00,
		0xC3,
	}
	l, err := New(Options{StartAddress: 0x1000}).Scan(code)
	require.NoError(t, err)

	want := strings.Join([]string{
		"0x1000: e800000000       call L1: +0",
		"L1:",
		"0x1005: c3               ret",
		"",
	}, "\n")
	assert.Equal(t, want, l.String())
	assert.Equal(t, "L1", l.Labels[0x1005].Name)
}

func TestListingJSON(t *testing.T) {
	code := []byte{0x74, 0x01, 0x06, 0xC3}
	l, err := New(Options{StartAddress: 0x20}).Scan(code)
	require.NoError(t, err)

	got, err := json.Marshal(l)
	require.NoError(t, err)
	want := `[
		{"position": 0, "address": "0x20", "bytes": "7401", "kind": "instruction", "text": "je L1: +1"},
		{"position": 2, "address": "0x22", "bytes": "06", "kind": "invalid", "text": ".byte 0x06"},
		{"position": 3, "address": "0x23", "bytes": "c3", "label": "L1", "kind": "instruction", "text": "ret"}
	]`
	opts := jsondiff.DefaultConsoleOptions()
	diff, explanation := jsondiff.Compare(got, []byte(want), &opts)
	assert.Equal(t, jsondiff.FullMatch, diff, explanation)
}

func TestScanReader(t *testing.T) {
	l, err := New(Options{}).ScanReader(bytes.NewReader([]byte{0x90, 0xC3}))
	require.NoError(t, err)
	assert.Equal(t, []string{"nop", "ret"}, texts(l))
	assert.Equal(t, []byte{0x90, 0xC3}, l.Code())
}

func TestCrossCheck(t *testing.T) {
	code := []byte{
		0x48, 0x8B, 0x04, 0x18,
		0x48, 0x83, 0x44, 0x24, 0x08, 0x10,
		0xF3, 0xA4,
		0x0F, 0x84, 0xF0, 0xFF, 0xFF, 0xFF,
		0xC3,
	}
	l, err := New(Options{}).Scan(code)
	require.NoError(t, err)
	assert.Empty(t, CrossCheck(l))

	// a hand-built listing claiming a two byte ret disagrees
	bad := []byte{0xC3, 0xC3}
	good, err := New(Options{}).DecodeOne(bad, 0)
	require.NoError(t, err)
	inst := *good.(*Instruction)
	inst.Raw = bad
	mismatches := CrossCheck(newListing(bad, 0, []Object{&inst}))
	require.Len(t, mismatches, 1)
	assert.Equal(t, 2, mismatches[0].Length)
	assert.Equal(t, 1, mismatches[0].TheirLength)
	assert.Contains(t, mismatches[0].String(), "vs")
}

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/beehive-lab/Maxine-VM-sub091/disasm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type disasmFlags struct {
	start      uint64
	strict     bool
	hexInput   bool
	asJSON     bool
	crossCheck bool
}

func newDisasmCmd() *cobra.Command {
	var f disasmFlags
	cmd := &cobra.Command{
		Use:   "disasm [file...]",
		Short: "Disassemble raw AMD64 machine code (stdin when no file is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				l, err := f.scan(cmd.InOrStdin())
				if err != nil {
					return err
				}
				return f.write(cmd.OutOrStdout(), l)
			}
			listings, err := f.scanFiles(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, l := range listings {
				if len(listings) > 1 {
					fmt.Fprintf(out, "==> %s <==\n", args[i])
				}
				if err := f.write(out, l); err != nil {
					return fmt.Errorf("%s: %w", args[i], err)
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&f.start, "start", 0, "address of the first byte")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail on undecodable bytes instead of emitting .byte data")
	cmd.Flags().BoolVar(&f.hexInput, "hex", false, "input is hex text rather than raw bytes")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the listing as JSON")
	cmd.Flags().BoolVar(&f.crossCheck, "crosscheck", false, "compare instruction lengths against x86asm")
	return cmd
}

// scanFiles disassembles every file concurrently; listings keep argument order.
func (f *disasmFlags) scanFiles(paths []string) ([]*disasm.Listing, error) {
	listings := make([]*disasm.Listing, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			l, err := f.scan(file)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			listings[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return listings, nil
}

func (f *disasmFlags) scan(r io.Reader) (*disasm.Listing, error) {
	d := disasm.New(disasm.Options{StartAddress: f.start, Strict: f.strict})
	if !f.hexInput {
		return d.ScanReader(r)
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	code, err := parseHex(string(text))
	if err != nil {
		return nil, err
	}
	return d.Scan(code)
}

func (f *disasmFlags) write(w io.Writer, l *disasm.Listing) error {
	if f.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(l); err != nil {
			return err
		}
	} else if err := l.Print(w); err != nil {
		return err
	}
	if !f.crossCheck {
		return nil
	}
	mismatches := disasm.CrossCheck(l)
	for _, m := range mismatches {
		fmt.Fprintf(w, "mismatch: %s\n", m)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d instructions disagree with x86asm", len(mismatches))
	}
	return nil
}

// parseHex accepts "48 8b 04 18", "488b0418" and "0x48,0x8b" alike.
func parseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.ToLower(s), "0x", "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ',' {
			return -1
		}
		return r
	}, s)
	code, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return code, nil
}

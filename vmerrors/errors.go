package vmerrors

import (
	"errors"
	"strings"
)

// Disassembler (D) Errors
var (
	ErrUnknownInstruction = errors.New("D1|UnknownInstruction: No template matches the bytes at this position.")
	ErrTruncated          = errors.New("D2|Truncated: The byte stream ended inside an instruction.")
	ErrNoMoreInstructions = errors.New("D3|NoMoreInstructions: The byte stream is exhausted.")
)

// Assembler (A) Errors
var (
	ErrEncoding        = errors.New("A1|Encoding: The arguments cannot be encoded by the template.")
	ErrArgumentCount   = errors.New("A2|ArgumentCount: Wrong number of arguments for the template.")
	ErrArgumentKind    = errors.New("A3|ArgumentKind: Argument kind does not match the template parameter.")
	ErrValueOutOfRange = errors.New("A4|ValueOutOfRange: Value does not fit the parameter width.")
)

// Compilation (C) Errors
var (
	ErrCompilationFailed    = errors.New("C1|CompilationFailed: Compiler returned an error.")
	ErrRecursiveCompilation = errors.New("C2|RecursiveCompilation: Compilation of a method re-entered from its own compilation.")
	ErrNoCompiler           = errors.New("C3|NoCompiler: No compiler is available for the request.")
	ErrWaitTimeout          = errors.New("C4|WaitTimeout: Timed out waiting for a pending compilation.")
	ErrInvalidOption        = errors.New("C5|InvalidOption: Unrecognized or malformed compilation option.")
	ErrBrokerClosed         = errors.New("C6|BrokerClosed: The compilation broker has been shut down.")
)

var sentinels = []error{
	ErrUnknownInstruction, ErrTruncated, ErrNoMoreInstructions,
	ErrEncoding, ErrArgumentCount, ErrArgumentKind, ErrValueOutOfRange,
	ErrCompilationFailed, ErrRecursiveCompilation, ErrNoCompiler, ErrWaitTimeout, ErrInvalidOption, ErrBrokerClosed,
}

// Sentinel returns the first error of this package found in err's chain.
func Sentinel(err error) error {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}

// split parses "code|name: description" out of the sentinel in err's chain,
// falling back to err's own text.
func split(err error) (code, name string, ok bool) {
	if s := Sentinel(err); s != nil {
		err = s
	}
	code, rest, found := strings.Cut(err.Error(), "|")
	if !found {
		return "", err.Error(), false
	}
	name, _, _ = strings.Cut(rest, ":")
	return strings.TrimSpace(code), strings.TrimSpace(name), true
}

// GetErrorName returns the name part of err, or its text when it has none.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	_, name, _ := split(err)
	return name
}

// GetErrorCode returns the code part of err ("D1", "C2", ...) or "".
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	code, _, _ := split(err)
	return code
}

// GetErrorCodeWithName returns "Code_Name", or "" for errors without a code.
func GetErrorCodeWithName(err error) string {
	if err == nil {
		return ""
	}
	code, name, ok := split(err)
	if !ok {
		return ""
	}
	return code + "_" + name
}

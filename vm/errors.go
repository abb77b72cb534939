package vm

import "github.com/pkg/errors"

// Fatal error kinds the execution loop distinguishes (spec.md §7). All of
// them unwind the entire call stack; there is no script-level catch.
var (
	ErrInvalidCall    = errors.New("flexscript: invalid call target")
	ErrIteratorMisuse = errors.New("flexscript: Next on a non-iterator")
)

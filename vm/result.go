package vm

import (
	"github.com/google/uuid"

	"github.com/j45k4/flexscript-go/fsvalue"
)

// ResultKind distinguishes the three RunResult shapes of spec.md §6.
type ResultKind uint8

const (
	// ResultValue: the outermost frame returned a value.
	ResultValue ResultKind = iota
	// ResultAwait: an Await instruction yielded control to the host.
	ResultAwait
	// ResultNone: execution ran to completion without returning a value.
	ResultNone
)

// RunResult is what run_code/run_blk/cont hand back to the host (spec.md
// §6 "RunResult shapes").
type RunResult struct {
	Kind    ResultKind
	Value   fsvalue.Value
	StackID uuid.UUID // only meaningful when Kind == ResultAwait
}

func valueResult(v fsvalue.Value) RunResult { return RunResult{Kind: ResultValue, Value: v} }
func noneResult() RunResult                 { return RunResult{Kind: ResultNone} }
func awaitResult(stackID uuid.UUID, v fsvalue.Value) RunResult {
	return RunResult{Kind: ResultAwait, Value: v, StackID: stackID}
}

package vm

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CallStack is a sequence of frames, addressable by stack_id (spec.md
// §4.2). The VM may hold several call stacks; only one is ever scheduled
// at a time (spec.md §5).
type CallStack struct {
	ID     uuid.UUID
	frames []*Frame
}

func newCallStack() *CallStack {
	return &CallStack{ID: uuid.New()}
}

func (cs *CallStack) push(f *Frame) { cs.frames = append(cs.frames, f) }

func (cs *CallStack) pop() (*Frame, error) {
	if len(cs.frames) == 0 {
		return nil, errors.New("flexscript: call stack underflow")
	}
	f := cs.frames[len(cs.frames)-1]
	cs.frames = cs.frames[:len(cs.frames)-1]
	return f, nil
}

func (cs *CallStack) top() (*Frame, bool) {
	if len(cs.frames) == 0 {
		return nil, false
	}
	return cs.frames[len(cs.frames)-1], true
}

func (cs *CallStack) depth() int { return len(cs.frames) }

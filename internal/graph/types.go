package graph

import (
	"fmt"
	"strings"
)

// PathID identifies a file or directory in the path namespace.
type PathID int64

// ActionID identifies an action (a recorded command).
type ActionID int64

const (
	// RootPath is the universal root directory "/".
	RootPath PathID = 0

	// RootAction is the universal ancestor of every action.
	RootAction ActionID = 0

	// InvalidPath is returned alongside an error.
	InvalidPath PathID = -1

	// InvalidAction is returned alongside an error.
	InvalidAction ActionID = -1
)

// PathKind distinguishes directories from files.
type PathKind int

const (
	KindDirectory PathKind = iota
	KindFile
)

func (k PathKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("PathKind(%d)", int(k))
	}
}

// OpType is an access operation. The first five values are the raw operations
// callers may pass in and filter on. The remaining values only exist inside
// the merge automaton.
type OpType int

const (
	// OpUnspecified matches any observable state when used as a filter. As a
	// merge input it means "no record yet".
	OpUnspecified OpType = iota
	OpRead
	OpWrite
	OpModified
	OpDelete

	// opWroteThenRead is the hidden state reached by WRITE followed by READ.
	// It is stored, but reported as OpWrite.
	opWroteThenRead

	// OpTemporary is a merge outcome, never a stored state. It signals that
	// the target was a scratch file created and destroyed by one action.
	OpTemporary
)

var opNames = map[OpType]string{
	OpUnspecified:   "unspecified",
	OpRead:          "read",
	OpWrite:         "write",
	OpModified:      "modified",
	OpDelete:        "delete",
	opWroteThenRead: "wrote-then-read",
	OpTemporary:     "temporary",
}

func (o OpType) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OpType(%d)", int(o))
}

// Observable returns the state callers see for a stored state.
func (o OpType) Observable() OpType {
	if o == opWroteThenRead {
		return OpWrite
	}
	return o
}

// IsRaw reports whether o is one of the four operations an access event may carry.
func (o OpType) IsRaw() bool {
	switch o {
	case OpRead, OpWrite, OpModified, OpDelete:
		return true
	}
	return false
}

// StoredStates returns the stored states that match filter. OpUnspecified
// matches every stored state, and OpWrite also matches the hidden state.
func StoredStates(filter OpType) ([]OpType, error) {
	switch filter {
	case OpUnspecified:
		return []OpType{OpRead, OpWrite, OpModified, OpDelete, opWroteThenRead}, nil
	case OpWrite:
		return []OpType{OpWrite, opWroteThenRead}, nil
	case OpRead, OpModified, OpDelete:
		return []OpType{filter}, nil
	default:
		return nil, NewError(CodeBadValue, "filter", fmt.Sprintf("invalid operation filter %v", filter))
	}
}

// ParseOpType converts a user-facing op name ("read", "w", "MODIFIED", ...).
func ParseOpType(s string) (OpType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "unspecified":
		return OpUnspecified, nil
	case "r", "read":
		return OpRead, nil
	case "w", "write":
		return OpWrite, nil
	case "m", "modified", "modify":
		return OpModified, nil
	case "d", "delete":
		return OpDelete, nil
	}
	return OpUnspecified, NewError(CodeBadValue, "parse op", fmt.Sprintf("unknown operation %q", s))
}

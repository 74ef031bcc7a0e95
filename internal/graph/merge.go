package graph

import "fmt"

// Merge folds one raw access event into the current state of an
// (action, path) pair. current is OpUnspecified when no record exists yet.
//
// The result is a stored state, or OpTemporary when the pair describes a file
// the action created and later deleted. raw must satisfy IsRaw.
//
//	current \ raw   READ             WRITE      MODIFIED   DELETE
//	unset           READ             WRITE      MODIFIED   DELETE
//	READ            READ             MODIFIED   MODIFIED   DELETE
//	WRITE           wrote-then-read  WRITE      WRITE      TEMPORARY
//	wrote-then-read wrote-then-read  WRITE      WRITE      TEMPORARY
//	MODIFIED        MODIFIED         MODIFIED   MODIFIED   DELETE
//	DELETE          READ             MODIFIED   MODIFIED   DELETE
func Merge(current, raw OpType) (OpType, error) {
	if !raw.IsRaw() {
		return OpUnspecified, Errorf(CodeBadValue, "merge access", "invalid raw operation %v", raw)
	}

	switch current {
	case OpUnspecified:
		return raw, nil

	case OpRead:
		switch raw {
		case OpRead:
			return OpRead, nil
		case OpWrite, OpModified:
			return OpModified, nil
		case OpDelete:
			return OpDelete, nil
		}

	case OpWrite, opWroteThenRead:
		switch raw {
		case OpRead:
			return opWroteThenRead, nil
		case OpWrite, OpModified:
			// The action created the file; rewriting it keeps it "created".
			return OpWrite, nil
		case OpDelete:
			return OpTemporary, nil
		}

	case OpModified:
		if raw == OpDelete {
			return OpDelete, nil
		}
		return OpModified, nil

	case OpDelete:
		switch raw {
		case OpRead:
			return OpRead, nil
		case OpWrite, OpModified:
			return OpModified, nil
		case OpDelete:
			return OpDelete, nil
		}
	}

	return OpUnspecified, Errorf(CodeBadValue, "merge access", "invalid current state %v", current)
}

// MergeAll folds a sequence of raw events starting from "no record". It stops
// at the first OpTemporary outcome, since the pair no longer exists after it.
func MergeAll(ops ...OpType) (OpType, error) {
	state := OpUnspecified
	for i, op := range ops {
		next, err := Merge(state, op)
		if err != nil {
			return OpUnspecified, fmt.Errorf("event %d: %w", i, err)
		}
		if next == OpTemporary {
			return OpTemporary, nil
		}
		state = next
	}
	return state, nil
}

// Package graph defines the identity types shared by the provenance store and
// its report engine.
//
// The build is modelled as a bipartite graph. Paths (files and directories)
// form one tree and actions (commands) form another. The access relation links
// an action to every path it touched. Each (action, path) pair carries one
// merged operation, produced by folding the raw access events through Merge.
//
// # Error Codes
//
// Fallible operations return one of a closed set of coded errors (ErrNotFound,
// ErrBadPath, ...). Callers compare with errors.Is. I/O failures from the
// underlying database are plain wrapped errors and carry no code.
//
// # Merge Automaton
//
// Merge is a total transition function over (current, raw) pairs. The hidden
// state between a write and a later read is never visible to callers. A
// write-read-delete sequence yields OpTemporary, which the store treats as
// "this path never needed to exist".
package graph

// Package store provides SQLite-backed storage for a build's provenance graph.
//
// One Store holds three related namespaces:
//   - Paths: the file/directory tree, with named roots and soft deletion
//   - Actions: the command tree, each action tagged with a working directory
//   - Accesses: the (action, path) relation, one merged operation per pair
//
// # Invariants
//
// Tree shape: path 0 is "/" and action 0 is the universal root action. Ids are
// allocated with AUTOINCREMENT, so a node's parent always has a smaller id and
// ids are never reused after a purge.
//
// No partial mutation: every multi-statement operation runs in a transaction,
// or in a SAVEPOINT while fast-access mode is active. Preconditions are checked
// before anything is written.
//
// Referential integrity: trashing is refused (graph.ErrCantRemove) while a node
// has live children or is referenced by an access, an action's working
// directory, a root, or an include relationship. Nothing cascades.
//
// Name reservation: a trashed path keeps its name until it is revived or
// permanently removed by PurgeTrash.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance (OFF in fast-access mode)
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The store never logs. Coded failures are *graph.Error values; everything
// else is a wrapped database error.
package store

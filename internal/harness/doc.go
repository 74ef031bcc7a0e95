// Package harness runs build-provenance scenarios as executable tests.
//
// A scenario is a build record plus expectations about what the store and
// report engine should conclude from it. Each scenario runs against a fresh
// in-memory store, so scenarios are isolated and deterministic.
//
// # Scenario Format
//
//	name: pets
//	description: "Derived files follow the compile, archive and link chain"
//	record:
//	  actions:
//	    - command: gcc -c cat.c
//	      accesses:
//	        - {op: read, path: /cat.c}
//	        - {op: write, path: /cat.o}
//	expect:
//	  - type: derived
//	    from: [/cat.c]
//	    transitive: true
//	    equals: [/cat.o]
//	  - type: state
//	    action: 0
//	    path: /cat.o
//	    op: write
//
// # Expectation Types
//
//   - derived: DerivedFiles(from) equals, or contains, the listed paths
//   - inputs: InputFiles(from) equals, or contains, the listed paths
//   - missing: none of paths resolves
//   - state: the observable op recorded for (action, path); "none" for no record
//   - write_only: WriteOnlyFiles() equals the listed paths
//   - never_accessed: FilesNeverAccessed() equals the listed paths
//
// # Golden Snapshots
//
// RunWithGolden renders the whole build (actions, accesses and the summary
// reports) as text and compares it with testdata/golden/{name}.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness

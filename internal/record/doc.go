// Package record reads build-record documents and replays them into a store.
//
// A record is the serialized form of one traced build: the roots, files and
// directories it touched and the actions it ran, each with its accesses in
// the order they were observed. Records are written as YAML or CUE.
//
// Example (YAML):
//
//	build: make all
//	roots:
//	  - name: src
//	    path: /home/pets
//	files:
//	  - "@src/cat.c"
//	actions:
//	  - command: gcc -c cat.c
//	    directory: "@src"
//	    accesses:
//	      - {op: read, path: "@src/cat.c"}
//	      - {op: write, path: "@src/cat.o"}
package record

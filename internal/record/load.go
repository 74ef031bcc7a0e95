package record

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// LoadError reports a malformed record, with a CUE position when known.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Load reads a record, choosing the format from the file extension:
// .cue is CUE, anything else is YAML (which also accepts JSON).
func Load(path string) (*Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(path)
	default:
		return LoadYAML(path)
	}
}

// LoadYAML reads a YAML record. Unknown fields are rejected.
func LoadYAML(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	return &rec, nil
}

// ParseYAML decodes a record held in memory.
func ParseYAML(data []byte) (*Record, error) {
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return &rec, nil
}

// LoadCUE reads a CUE record and checks it against the #Record schema before
// decoding.
func LoadCUE(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(path))
	if err := doc.Err(); err != nil {
		return nil, cueError(path, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Record")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(path, err)
	}

	var rec Record
	if err := v.Decode(&rec); err != nil {
		return nil, cueError(path, err)
	}
	return &rec, nil
}

// cueError keeps the first CUE error and its position.
func cueError(path string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Path: path, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

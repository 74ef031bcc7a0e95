// Package config resolves bml settings from defaults, an optional project file,
// BML_* environment variables and command-line flags, in increasing priority.
//
// The project file is bml.cue or bml.yaml in the working directory, or the
// file named by --config. CUE files are validated against the embedded
// schema.cue before their values are merged.
package config

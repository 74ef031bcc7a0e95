package record

// Record is one traced build.
type Record struct {
	// Build is the command of the root action, e.g. "make all".
	Build string `yaml:"build,omitempty" json:"build,omitempty"`

	Roots       []Root   `yaml:"roots,omitempty" json:"roots,omitempty"`
	Directories []string `yaml:"directories,omitempty" json:"directories,omitempty"`
	Files       []string `yaml:"files,omitempty" json:"files,omitempty"`
	Actions     []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Root binds Name to the directory at Path. The directory is created if
// missing.
type Root struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

// Action is one command the build ran.
type Action struct {
	Command string `yaml:"command" json:"command"`

	// Parent is the index of an earlier action in the same record. Nil
	// means the build's root action.
	Parent *int `yaml:"parent,omitempty" json:"parent,omitempty"`

	// Directory is the working directory; "/" when empty.
	Directory string `yaml:"directory,omitempty" json:"directory,omitempty"`

	Accesses []Access `yaml:"accesses,omitempty" json:"accesses,omitempty"`
}

// Access is one observed file operation. Op is read, write, modified or
// delete (or the first letter of each).
type Access struct {
	Op   string `yaml:"op" json:"op"`
	Path string `yaml:"path" json:"path"`
}

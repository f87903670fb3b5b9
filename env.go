package flatland

import (
	"io"

	"github.com/google/uuid"
)

// Scope indexes a frame in an Environment
type Scope int

// GlobalScope is the root frame of every Environment
const GlobalScope Scope = 0

// NoScope is the parent of the root frame
const NoScope Scope = -1

// GlobalScopeID is the identity of the root frame
const GlobalScopeID = "__global__"

// frame is one scope: a name->value map with a parent link
type frame struct {
	id     string
	parent Scope
	vars   map[string]Value
	names  []string // definition order
}

// Environment is an arena of scope frames. Frames are never freed during a
// run, so closures and flow nodes can keep referring to them by index.
type Environment struct {
	frames   []*frame
	includes map[string]bool
	ids      io.Reader
}

// NewEnvironment creates an arena holding only the global frame. ids feeds
// the random bytes of frame identities; nil uses crypto randomness.
func NewEnvironment(ids io.Reader) *Environment {
	e := &Environment{
		includes: make(map[string]bool),
		ids:      ids,
	}
	e.frames = append(e.frames, &frame{
		id:     GlobalScopeID,
		parent: NoScope,
		vars:   make(map[string]Value),
	})
	return e
}

// NewFrame allocates a child frame of parent with a fresh identity
func (e *Environment) NewFrame(parent Scope) Scope {
	e.frames = append(e.frames, &frame{
		id:     e.newID(),
		parent: parent,
		vars:   make(map[string]Value),
	})
	return Scope(len(e.frames) - 1)
}

func (e *Environment) newID() string {
	var (
		id  uuid.UUID
		err error
	)
	if e.ids != nil {
		id, err = uuid.NewRandomFromReader(e.ids)
	} else {
		id, err = uuid.NewRandom()
	}
	if err != nil {
		// the reader is a math/rand source, it does not fail
		panic(err)
	}
	return id.String()
}

// ID returns the identity of a frame
func (e *Environment) ID(s Scope) string {
	return e.frames[s].id
}

// Parent returns the enclosing frame, NoScope for the root
func (e *Environment) Parent(s Scope) Scope {
	return e.frames[s].parent
}

// Find returns the innermost frame, starting at s, where name is bound
func (e *Environment) Find(name string, s Scope) (Scope, bool) {
	for s != NoScope {
		if _, ok := e.frames[s].vars[name]; ok {
			return s, true
		}
		s = e.frames[s].parent
	}
	return NoScope, false
}

// Lookup resolves name walking outward from s
func (e *Environment) Lookup(name string, s Scope) (Value, error) {
	found, ok := e.Find(name, s)
	if !ok {
		return nil, newError(NameResolutionError, "undefined symbol: %s", name)
	}
	return e.frames[found].vars[name], nil
}

// Local returns the binding of name in s itself
func (e *Environment) Local(name string, s Scope) (Value, bool) {
	v, ok := e.frames[s].vars[name]
	return v, ok
}

// Define binds name in s only
func (e *Environment) Define(name string, v Value, s Scope) {
	f := e.frames[s]
	if _, ok := f.vars[name]; !ok {
		f.names = append(f.names, name)
	}
	f.vars[name] = v
}

// Assign rebinds name in the innermost frame that already has it
func (e *Environment) Assign(name string, v Value, s Scope) error {
	found, ok := e.Find(name, s)
	if !ok {
		return newError(NameResolutionError, "cannot set undefined symbol: %s", name)
	}
	e.frames[found].vars[name] = v
	return nil
}

// Names lists the names bound in s in definition order
func (e *Environment) Names(s Scope) []string {
	return e.frames[s].names
}

// Included reports whether a file was already included in this run
func (e *Environment) Included(path string) bool {
	return e.includes[path]
}

// MarkIncluded records a processed file
func (e *Environment) MarkIncluded(path string) {
	e.includes[path] = true
}

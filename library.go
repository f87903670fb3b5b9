package flatland

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// Resolver maps the name given to #include to a file path. internal reports
// whether the file came from the library directory.
type Resolver interface {
	Resolve(name, dir string) (path string, internal bool)
}

// DirResolver resolves bare file names against a library root first, and
// anything else relative to the including file's directory
type DirResolver struct {
	Root string
}

// Resolve implements Resolver
func (r *DirResolver) Resolve(name, dir string) (string, bool) {
	if filepath.IsAbs(name) {
		return filepath.Clean(name), false
	}
	if filepath.Base(name) != name {
		return absJoin(dir, name), false
	}
	if r.Root != "" {
		local := filepath.Join(r.Root, name)
		if st, err := os.Stat(local); err == nil && st.Mode().IsRegular() {
			if abs, err := filepath.Abs(local); err == nil {
				return abs, true
			}
			return local, true
		}
	}
	return absJoin(dir, name), false
}

func absJoin(dir, name string) string {
	p := filepath.Join(dir, name)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Library lists the primitives reachable from a directory of programs and
// which flow types contain which
type Library struct {
	existing    []string
	Primitives  []RandomDetails `json:"primitives"`
	Connections map[int][]int   `json:"connections"`
}

func (l *Library) index(tp string) int {
	for i, e := range l.existing {
		if e == tp {
			return i
		}
	}
	return -1
}

// add registers a node's type, then recursively the types used in its body
func (l *Library) add(ev *Executor, n Node) string {
	tp := string(n.Kind())
	f, isFlow := n.(*Flow)
	if isFlow {
		tp = f.FlowType()
	}
	if l.index(tp) >= 0 {
		return tp
	}
	l.existing = append(l.existing, tp)
	l.Primitives = append(l.Primitives, n.RandomDetails())
	if !isFlow {
		return tp
	}
	for _, name := range ev.env.Names(f.frame) {
		child, ok := localNode(ev, name, f.frame)
		if !ok {
			continue
		}
		ctp := l.add(ev, child)
		l.connect(ctp, tp)
	}
	return tp
}

func (l *Library) connect(from, to string) {
	i, j := l.index(from), l.index(to)
	for _, k := range l.Connections[i] {
		if k == j {
			return
		}
	}
	l.Connections[i] = append(l.Connections[i], j)
	sort.Ints(l.Connections[i])
}

// String renders the library as indented JSON
func (l *Library) String() string {
	data, err := json.MarshalIndent(l, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// BuildLibrary evaluates every .fbp file of dir into one environment, without
// running or randomizing, and collects the flows they instantiate
func BuildLibrary(dir string, config *Config, logger *Logger) (*Library, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.fbp"))
	if err != nil {
		return nil, newError(IOError, "scanning %s: %v", dir, err)
	}
	sort.Strings(files)

	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	cfg.Run = false
	cfg.Randomize = false
	cfg.LibraryDir = dir
	ev := NewExecutor(&cfg, logger)
	for _, file := range files {
		if _, err := ev.ExecFile(file); err != nil {
			return nil, err
		}
	}

	lib := &Library{Connections: make(map[int][]int)}
	for _, name := range ev.env.Names(GlobalScope) {
		if n, ok := localNode(ev, name, GlobalScope); ok {
			lib.add(ev, n)
		}
	}
	return lib, nil
}

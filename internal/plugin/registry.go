package plugin

import "sync"

// Step is the outcome of offering a name to one parser in a dispatch list.
type Step[P any] struct {
	Parser  P
	Handled bool
}

// Continue passes the name on to the next parser.
func Continue[P any]() Step[P] { return Step[P]{} }

// Handled ends the dispatch with p.
func Handled[P any](p P) Step[P] { return Step[P]{Parser: p, Handled: true} }

type matcher interface {
	Match(name string) bool
}

func offer[P matcher](p P, name string) Step[P] {
	if p.Match(name) {
		return Handled(p)
	}
	return Continue[P]()
}

// dispatch scans parsers in priority order and stops at the first handled step.
func dispatch[P matcher](parsers []P, name string) Step[P] {
	for _, p := range parsers {
		if step := offer(p, name); step.Handled {
			return step
		}
	}
	return Continue[P]()
}

// Registry holds the ordered parser lists for one build.
// Later registrations take priority over earlier ones.
type Registry struct {
	mu          sync.RWMutex
	files       []FileParser
	dirs        []DirParser
	defaultFile FileParser
	defaultDir  DirParser
}

// NewRegistry creates a registry that only knows the built-in defaults.
func NewRegistry() *Registry {
	return &Registry{
		defaultFile: DefaultFileParser{},
		defaultDir:  DefaultDirParser{},
	}
}

// RegisterFileParser puts p in front of every previously registered file parser.
func (r *Registry) RegisterFileParser(p FileParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append([]FileParser{p}, r.files...)
}

// RegisterDirParser puts p in front of every previously registered directory parser.
func (r *Registry) RegisterDirParser(p DirParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append([]DirParser{p}, r.dirs...)
}

// ResolveFileParser returns the first registered parser matching name, or the default.
func (r *Registry) ResolveFileParser(name string) FileParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if step := dispatch(r.files, name); step.Handled {
		return step.Parser
	}
	return r.defaultFile
}

// ResolveDirParser returns the first registered parser matching name, or the default.
func (r *Registry) ResolveDirParser(name string) DirParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if step := dispatch(r.dirs, name); step.Handled {
		return step.Parser
	}
	return r.defaultDir
}

// FileParsers returns the registered file parsers in priority order.
func (r *Registry) FileParsers() []FileParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]FileParser(nil), r.files...)
}

// DirParsers returns the registered directory parsers in priority order.
func (r *Registry) DirParsers() []DirParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]DirParser(nil), r.dirs...)
}

// Package variables implements the named-variable scopes pipelines and steps
// resolve settings against, including declared pipeline parameters.
package variables

import (
	"os"
	"regexp"
	"sort"
	"sync"
)

// Scope is a thread-safe set of string variables with an optional parent.
// Lookups fall through to the parent when a name is not set locally.
type Scope struct {
	mu     sync.RWMutex
	parent *Scope
	vars   map[string]string
	params []*Parameter
}

// Parameter is a named pipeline parameter with a default value.
type Parameter struct {
	Name        string
	Default     string
	Description string
	value       string
	set         bool
}

// NewScope creates an empty root scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]string)}
}

// FromEnvironment creates a root scope seeded with the process environment.
func FromEnvironment() *Scope {
	s := NewScope()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				s.vars[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return s
}

// Child creates a scope whose lookups fall back to s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, vars: make(map[string]string)}
}

// Parent returns the parent scope, or nil.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Lookup returns the value of name and whether it is defined in s or a parent.
func (s *Scope) Lookup(name string) (string, bool) {
	s.mu.RLock()
	v, ok := s.vars[name]
	parent := s.parent
	s.mu.RUnlock()
	if ok {
		return v, true
	}
	if parent != nil {
		return parent.Lookup(name)
	}
	return "", false
}

// Get returns the value of name, or "".
func (s *Scope) Get(name string) string {
	v, _ := s.Lookup(name)
	return v
}

// Set defines name locally, shadowing any parent value.
func (s *Scope) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// Names returns every name visible from s, sorted.
func (s *Scope) Names() []string {
	seen := make(map[string]struct{})
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		for k := range cur.vars {
			seen[k] = struct{}{}
		}
		cur.mu.RUnlock()
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns every visible variable as a flat map.
func (s *Scope) Snapshot() map[string]string {
	out := make(map[string]string)
	for _, name := range s.Names() {
		out[name] = s.Get(name)
	}
	return out
}

// InheritFrom copies every variable visible from other into s.
// Values already set locally in s are overwritten.
func (s *Scope) InheritFrom(other *Scope) {
	if other == nil {
		return
	}
	snapshot := other.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range snapshot {
		s.vars[k] = v
	}
}

// DeclareParameter registers a named parameter. Re-declaring replaces the default.
func (s *Scope) DeclareParameter(name, defaultValue, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.params {
		if p.Name == name {
			p.Default = defaultValue
			p.Description = description
			return
		}
	}
	s.params = append(s.params, &Parameter{Name: name, Default: defaultValue, Description: description})
}

// HasParameter reports whether name is a declared parameter.
func (s *Scope) HasParameter(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// SetParameterValue assigns a value to a declared parameter.
// It reports false when name was never declared.
func (s *Scope) SetParameterValue(name, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.params {
		if p.Name == name {
			p.value = value
			p.set = true
			return true
		}
	}
	return false
}

// ActivateParameters turns every declared parameter into a variable. An
// explicitly assigned value wins; otherwise a non-empty default is used;
// otherwise the variable is left as it was.
func (s *Scope) ActivateParameters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.params {
		switch {
		case p.set:
			s.vars[p.Name] = p.value
		case p.Default != "":
			s.vars[p.Name] = p.Default
		}
	}
}

var reference = regexp.MustCompile(`\$\{([^}]+)\}|%%([^%]+)%%`)

// Substitute replaces ${NAME} and %%NAME%% references with variable values.
// Unknown references are left untouched.
func (s *Scope) Substitute(text string) string {
	return reference.ReplaceAllStringFunc(text, func(match string) string {
		sub := reference.FindStringSubmatch(match)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if v, ok := s.Lookup(name); ok {
			return v
		}
		return match
	})
}

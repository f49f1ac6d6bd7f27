package params

import (
	"fmt"
	"strings"

	"github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/variables"
)

// Declaration maps one sub-pipeline variable to its value source.
type Declaration struct {
	// Variable is the name bound in the nested pipeline.
	Variable string `yaml:"variable" mapstructure:"variable" validate:"required"`
	// Field names an input column whose value in the last row of the group is used.
	Field string `yaml:"field" mapstructure:"field"`
	// Value is a static fallback. It may reference ${VARIABLES} of the caller.
	Value string `yaml:"value" mapstructure:"value"`
}

// Config is shared by the binder and the runner so both see the same
// inheritance setting.
type Config struct {
	Declarations []Declaration `yaml:"parameters" mapstructure:"parameters" validate:"dive"`
	// InheritAllVariables passes every caller variable to the nested pipeline
	// and lets declarations fall back to them.
	InheritAllVariables bool `yaml:"inherit_all_variables" mapstructure:"inherit_all_variables"`
}

// DefaultConfig returns a Config with inheritance enabled.
func DefaultConfig() Config {
	return Config{InheritAllVariables: true}
}

// Fields returns the configured source fields, skipping declarations without one.
func (c Config) Fields() []string {
	var out []string
	for _, d := range c.Declarations {
		if f := strings.TrimSpace(d.Field); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Source identifies which rule produced a binding.
type Source int

const (
	// SourceField is a non-empty value of the declared field in the last row.
	SourceField Source = iota + 1
	// SourceStatic is the declared static value.
	SourceStatic
	// SourceMissingField means a field was declared but yielded nothing.
	SourceMissingField
	// SourceInherited is a non-empty value already defined in the caller's scope.
	SourceInherited
	// SourceEmpty means nothing applied.
	SourceEmpty
)

func (s Source) String() string {
	switch s {
	case SourceField:
		return "field"
	case SourceStatic:
		return "static"
	case SourceMissingField:
		return "missing_field"
	case SourceInherited:
		return "inherited"
	case SourceEmpty:
		return "empty"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Binding is one resolved parameter.
type Binding struct {
	Variable string
	Value    string
	Source   Source
}

// Bindings are resolved parameters in declaration order.
type Bindings []Binding

// Map returns the bindings keyed by variable name. Later duplicates win.
func (b Bindings) Map() map[string]string {
	m := make(map[string]string, len(b))
	for _, x := range b {
		m[x.Variable] = x.Value
	}
	return m
}

// Names returns the variable names in order.
func (b Bindings) Names() []string {
	out := make([]string, len(b))
	for i, x := range b {
		out[i] = x.Variable
	}
	return out
}

// Values returns the bound values in order.
func (b Bindings) Values() []string {
	out := make([]string, len(b))
	for i, x := range b {
		out[i] = x.Value
	}
	return out
}

// Bind resolves every declaration of cfg. last holds the string values of the
// group's last row and may be shorter than inputFields; missing positions are
// absent values. Declarations that resolve to nothing define their variable
// as "" in scope. Bind never fails: a declaration that cannot be resolved is
// logged and bound to "".
func Bind(cfg Config, last []string, inputFields []string, scope *variables.Scope, log *logger.Logger) Bindings {
	if log == nil {
		log = logger.Nop()
	}
	out := make(Bindings, 0, len(cfg.Declarations))
	for _, d := range cfg.Declarations {
		b, err := bindOne(d, last, inputFields, scope, cfg.InheritAllVariables)
		if err != nil {
			log.Warn("parameter resolution failed, binding empty value", map[string]interface{}{
				logger.FieldVariable: d.Variable,
				logger.FieldError:    err.Error(),
			})
			b = Binding{Variable: d.Variable, Source: SourceEmpty}
			forceEmpty(scope, d.Variable)
		}
		out = append(out, b)
	}
	return out
}

// resolve is swapped in tests to simulate failing declarations.
var resolve = resolveDeclaration

func bindOne(d Declaration, last, inputFields []string, scope *variables.Scope, inherit bool) (b Binding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ParameterResolution(d.Variable, fmt.Errorf("panic: %v", r))
		}
	}()
	return resolve(d, last, inputFields, scope, inherit)
}

func resolveDeclaration(d Declaration, last, inputFields []string, scope *variables.Scope, inherit bool) (Binding, error) {
	if d.Variable == "" {
		return Binding{}, errors.ParameterResolution(d.Variable, fmt.Errorf("variable name is empty"))
	}
	field := strings.TrimSpace(d.Field)

	if field != "" && len(last) > 0 {
		if idx := indexOf(inputFields, field); idx >= 0 && idx < len(last) {
			if v := last[idx]; strings.TrimSpace(v) != "" {
				return Binding{Variable: d.Variable, Value: v, Source: SourceField}, nil
			}
		}
	}

	if v := scope.Substitute(d.Value); strings.TrimSpace(v) != "" {
		return Binding{Variable: d.Variable, Value: v, Source: SourceStatic}, nil
	}

	if field != "" {
		forceEmpty(scope, d.Variable)
		return Binding{Variable: d.Variable, Source: SourceMissingField}, nil
	}

	if inherit {
		if v, ok := scope.Lookup(d.Variable); ok && strings.TrimSpace(v) != "" {
			return Binding{Variable: d.Variable, Value: v, Source: SourceInherited}, nil
		}
	}

	forceEmpty(scope, d.Variable)
	return Binding{Variable: d.Variable, Source: SourceEmpty}, nil
}

func forceEmpty(scope *variables.Scope, name string) {
	if scope != nil && name != "" {
		scope.Set(name, "")
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

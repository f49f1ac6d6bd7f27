package dag

// Pipeline is a composable, YAML-defined graph definition.
type Pipeline struct {
	// Name is the pipeline identifier.
	Name string `yaml:"name"`
	// Description is free text shown in logs.
	Description string `yaml:"description,omitempty"`
	// Includes lists sub-pipeline names to compose (recursive).
	Includes []string `yaml:"includes,omitempty"`
	// Parameters are the named inputs the pipeline declares.
	Parameters []ParameterDef `yaml:"parameters,omitempty"`
	// Nodes defines the pipeline's node specifications.
	Nodes []NodeDef `yaml:"nodes"`
}

// ParameterDef declares a pipeline parameter with an optional default.
type ParameterDef struct {
	Name        string `yaml:"name"`
	Default     string `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// NodeDef defines a node within a pipeline.
type NodeDef struct {
	// Name is the node identifier within the graph. Defaults to Component.
	Name string `yaml:"name,omitempty"`
	// Component is the registry lookup key for this node.
	Component string `yaml:"component"`
	// DependsOn lists node names this node depends on.
	DependsOn []string `yaml:"depends_on,omitempty"`
	// Config holds component-specific settings. Values may reference ${VARIABLES}.
	Config map[string]string `yaml:"config,omitempty"`
}

// NodeName returns the graph name of the node.
func (d NodeDef) NodeName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Component
}

// Setting returns a config value, or fallback when unset.
func (d NodeDef) Setting(key, fallback string) string {
	if v, ok := d.Config[key]; ok {
		return v
	}
	return fallback
}

// HasParameter reports whether the pipeline declares the named parameter.
func (p *Pipeline) HasParameter(name string) bool {
	for _, param := range p.Parameters {
		if param.Name == name {
			return true
		}
	}
	return false
}

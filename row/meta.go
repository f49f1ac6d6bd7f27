package row

import (
	"fmt"
	"strings"
)

// Type is the logical type of a column.
type Type int

const (
	TypeNone Type = iota
	TypeString
	TypeInteger
	TypeNumber
	TypeBoolean
	TypeDate
	TypeBinary
)

var typeNames = map[Type]string{
	TypeNone:    "None",
	TypeString:  "String",
	TypeInteger: "Integer",
	TypeNumber:  "Number",
	TypeBoolean: "Boolean",
	TypeDate:    "Date",
	TypeBinary:  "Binary",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType resolves a type name case-insensitively.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return TypeNone, fmt.Errorf("row: unknown type %q", name)
}

// ValueMeta describes one column. Length and Precision are -1 when unspecified.
type ValueMeta struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Type      Type   `yaml:"type" mapstructure:"type"`
	Length    int    `yaml:"length" mapstructure:"length"`
	Precision int    `yaml:"precision" mapstructure:"precision"`
	// Origin names the step that produced the column.
	Origin string `yaml:"origin,omitempty" mapstructure:"origin"`
}

// NewValueMeta creates column metadata with unspecified length and precision.
func NewValueMeta(name string, t Type) ValueMeta {
	return ValueMeta{Name: name, Type: t, Length: -1, Precision: -1}
}

// Meta is an ordered schema. The zero value is an empty schema.
type Meta struct {
	values []ValueMeta
	index  map[string]int
}

// NewMeta builds a schema from columns in order.
func NewMeta(values ...ValueMeta) *Meta {
	m := &Meta{}
	for _, v := range values {
		m.Add(v)
	}
	return m
}

// Add appends a column. A later column with a duplicate name shadows nothing:
// IndexOf keeps returning the first occurrence.
func (m *Meta) Add(v ValueMeta) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if _, exists := m.index[v.Name]; !exists {
		m.index[v.Name] = len(m.values)
	}
	m.values = append(m.values, v)
}

// Size returns the number of columns.
func (m *Meta) Size() int {
	if m == nil {
		return 0
	}
	return len(m.values)
}

// IndexOf returns the position of the named column, or -1.
func (m *Meta) IndexOf(name string) int {
	if m == nil || m.index == nil {
		return -1
	}
	if i, ok := m.index[name]; ok {
		return i
	}
	return -1
}

// Value returns the i-th column.
func (m *Meta) Value(i int) ValueMeta {
	return m.values[i]
}

// Values returns a copy of the columns.
func (m *Meta) Values() []ValueMeta {
	if m == nil {
		return nil
	}
	out := make([]ValueMeta, len(m.values))
	copy(out, m.values)
	return out
}

// Names returns the column names in order.
func (m *Meta) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.values))
	for i, v := range m.values {
		names[i] = v.Name
	}
	return names
}

// Clone returns an independent copy of the schema.
func (m *Meta) Clone() *Meta {
	if m == nil {
		return nil
	}
	return NewMeta(m.values...)
}

func (m *Meta) String() string {
	parts := make([]string, 0, m.Size())
	for _, v := range m.Values() {
		parts = append(parts, v.Name+":"+v.Type.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

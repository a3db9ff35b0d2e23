// Package schema provides declarative field accessors over XML documents.
// A field is described once (path, storage, default, accepted values) and
// read or written through the table, instead of a hand-written method pair
// per field.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Discriminator selects one element among same-tag siblings on a field's
// path by an attribute value supplied at call time (e.g. field_id).
type Discriminator struct {
	Tag  string
	Attr string
}

// FieldSpec describes one configuration field.
type FieldSpec struct {
	Name string

	// Path is the element path below the model root.
	Path []string

	// Attr is the attribute holding the value; empty means element text.
	Attr string

	Default string

	// Enum lists the accepted values; nil accepts anything.
	Enum []string

	// Validate, when set, vets values on write after the enum check.
	Validate func(string) error

	// Match, when set, requires a discriminator value on reads and writes.
	Match *Discriminator
}

// Model binds a field-spec table to an element of a document.
type Model struct {
	root  *etree.Element
	specs map[string]FieldSpec
}

// Bind attaches the spec table to root. Field names must be unique.
func Bind(root *etree.Element, specs []FieldSpec) (*Model, error) {
	m := &Model{root: root, specs: make(map[string]FieldSpec, len(specs))}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("field spec with empty name")
		}
		if len(spec.Path) == 0 {
			return nil, fmt.Errorf("field %q: empty path", spec.Name)
		}
		if _, dup := m.specs[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate field spec %q", spec.Name)
		}
		m.specs[spec.Name] = spec
	}
	return m, nil
}

// Get returns the field value, or its default when the field is absent or
// empty.
func (m *Model) Get(name string) (string, error) {
	return m.GetFor(name, "")
}

// GetFor is Get with a discriminator value for fields that declare one.
func (m *Model) GetFor(name, id string) (string, error) {
	spec, err := m.spec(name, id)
	if err != nil {
		return "", err
	}

	node := m.root
	for _, tag := range spec.Path {
		node = selectChild(node, tag, spec, id)
		if node == nil {
			return spec.Default, nil
		}
	}

	var value string
	if spec.Attr != "" {
		value = node.SelectAttrValue(spec.Attr, "")
	} else {
		value = strings.TrimSpace(node.Text())
	}
	if value == "" {
		return spec.Default, nil
	}
	return value, nil
}

// GetFloat parses the field value as a float64.
func (m *Model) GetFloat(name string) (float64, error) {
	return m.GetFloatFor(name, "")
}

func (m *Model) GetFloatFor(name, id string) (float64, error) {
	v, err := m.GetFor(name, id)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: non-numeric value %q", name, v)
	}
	return f, nil
}

// Set validates and writes the field value, creating missing path elements.
func (m *Model) Set(name, value string) error {
	return m.SetFor(name, "", value)
}

// SetFor is Set with a discriminator value for fields that declare one.
func (m *Model) SetFor(name, id, value string) error {
	spec, err := m.spec(name, id)
	if err != nil {
		return err
	}
	if err := spec.check(value); err != nil {
		return err
	}

	node := m.root
	for _, tag := range spec.Path {
		child := selectChild(node, tag, spec, id)
		if child == nil {
			child = node.CreateElement(tag)
			if spec.Match != nil && spec.Match.Tag == tag {
				child.CreateAttr(spec.Match.Attr, id)
			}
		}
		node = child
	}

	if spec.Attr != "" {
		node.CreateAttr(spec.Attr, value)
	} else {
		node.SetText(value)
	}
	return nil
}

// SetFloat formats and writes a numeric field value.
func (m *Model) SetFloat(name string, value float64) error {
	return m.SetFor(name, "", strconv.FormatFloat(value, 'g', -1, 64))
}

func (m *Model) SetFloatFor(name, id string, value float64) error {
	return m.SetFor(name, id, strconv.FormatFloat(value, 'g', -1, 64))
}

func (m *Model) spec(name, id string) (FieldSpec, error) {
	spec, ok := m.specs[name]
	if !ok {
		return FieldSpec{}, fmt.Errorf("unknown field %q", name)
	}
	if spec.Match != nil && id == "" {
		return FieldSpec{}, fmt.Errorf("field %q requires a %s value", name, spec.Match.Attr)
	}
	return spec, nil
}

func (spec FieldSpec) check(value string) error {
	if len(spec.Enum) > 0 {
		ok := false
		for _, allowed := range spec.Enum {
			if value == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("field %q: value %q not in (%s)", spec.Name, value, strings.Join(spec.Enum, ", "))
		}
	}
	if spec.Validate != nil {
		if err := spec.Validate(value); err != nil {
			return fmt.Errorf("field %q: %w", spec.Name, err)
		}
	}
	return nil
}

func selectChild(node *etree.Element, tag string, spec FieldSpec, id string) *etree.Element {
	if spec.Match != nil && spec.Match.Tag == tag {
		for _, c := range node.ChildElements() {
			if c.Tag == tag && c.SelectAttrValue(spec.Match.Attr, "") == id {
				return c
			}
		}
		return nil
	}
	return node.SelectElement(tag)
}

// Float is a Validate helper accepting any parseable float.
func Float(value string) error {
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return fmt.Errorf("non-numeric value %q", value)
	}
	return nil
}
